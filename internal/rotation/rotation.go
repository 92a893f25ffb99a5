// Package rotation re-encrypts a document's secrets under a new KMS key.
package rotation

import (
	"context"

	"github.com/systmms/envars/internal/document"
	enverrors "github.com/systmms/envars/internal/errors"
	"github.com/systmms/envars/internal/logging"
	"github.com/systmms/envars/internal/resolve"
	"github.com/systmms/envars/pkg/secretbackend"
)

// Rotate builds a new document whose secrets are encrypted under newKeyID.
// The input document is never modified: every secret is decrypted with
// the key recorded at encryption time and re-encrypted into a clone, so a
// failure partway leaves the stored document untouched.
//
// Values under a per-location key override keep their override key; only
// secrets encrypted with the document key are rotated.
func Rotate(ctx context.Context, doc *document.Document, newKeyID string, backends resolve.BackendFactory, logger *logging.Logger) (*document.Document, error) {
	if secretbackend.FamilyForKey(newKeyID) == secretbackend.FamilyUnknown {
		return nil, enverrors.ConfigError{
			Field:      "kms_key",
			Value:      newKeyID,
			Message:    "new key identifier does not match any supported KMS family",
			Suggestion: "use an AWS KMS ARN (arn:aws:kms:...) or a GCP KMS resource name (projects/.../cryptoKeys/...)",
		}
	}

	next := doc.Clone()
	next.KeyID = newKeyID

	engine := resolve.New(doc, backends, nil, logger)

	rotated := 0
	for i, sv := range next.Values {
		if !sv.Secret {
			continue
		}
		if loc, ok := doc.LocationByName(sv.Scope.Location); ok && loc.KeyID != "" {
			logger.Debug("keeping %s (%s) on location key override", sv.Variable, sv.Scope)
			continue
		}

		plaintext, err := engine.DecryptValue(ctx, doc.Values[i])
		if err != nil {
			return nil, err
		}

		backend, err := backends(newKeyID)
		if err != nil {
			return nil, err
		}
		encCtx := secretbackend.NewContext(doc.App, sv.Scope.Environment, sv.Scope.Location)
		ciphertext, err := backend.Encrypt(ctx, plaintext, newKeyID, encCtx)
		if err != nil {
			return nil, err
		}

		next.Values[i].Value = ciphertext
		next.Values[i].KeyID = newKeyID
		rotated++
	}

	logger.Info("re-encrypted %d secret value(s) under %s", rotated, newKeyID)
	return next, nil
}
