// Package backends wires key identifiers to the secret backend that can
// encrypt and decrypt with them. The backend family is derived from the
// key identifier itself, so documents never name a cloud explicitly.
package backends

import (
	"sync"

	enverrors "github.com/systmms/envars/internal/errors"
	"github.com/systmms/envars/internal/logging"
	"github.com/systmms/envars/pkg/secretbackend"
)

// Factory creates and caches backends per key identifier. Client handles
// are expensive to build (credential chains, TLS), so one backend per
// family is shared across keys.
type Factory struct {
	logger *logging.Logger

	mu       sync.Mutex
	byFamily map[secretbackend.Family]secretbackend.Backend
}

// NewFactory creates a backend factory.
func NewFactory(logger *logging.Logger) *Factory {
	return &Factory{
		logger:   logger,
		byFamily: make(map[secretbackend.Family]secretbackend.Backend),
	}
}

// ForKey returns the backend able to operate with the given key. The key's
// prefix decides the family: AWS KMS ARNs or GCP KMS resource names.
func (f *Factory) ForKey(keyID string) (secretbackend.Backend, error) {
	family := secretbackend.FamilyForKey(keyID)
	if family == secretbackend.FamilyUnknown {
		return nil, enverrors.ConfigError{
			Field:      "kms_key",
			Value:      keyID,
			Message:    "key identifier does not match any supported KMS family",
			Suggestion: "use an AWS KMS ARN (arn:aws:kms:...) or a GCP KMS resource name (projects/.../cryptoKeys/...)",
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.byFamily[family]; ok {
		return b, nil
	}

	var (
		b   secretbackend.Backend
		err error
	)
	switch family {
	case secretbackend.FamilyAWS:
		b, err = NewAWSKMS(keyID, f.logger)
	case secretbackend.FamilyGCP:
		b, err = NewGCPKMS(f.logger)
	}
	if err != nil {
		return nil, err
	}
	f.byFamily[family] = b
	return b, nil
}
