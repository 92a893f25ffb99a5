package backends

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	kmsapi "cloud.google.com/go/kms/apiv1"
	"cloud.google.com/go/kms/apiv1/kmspb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	enverrors "github.com/systmms/envars/internal/errors"
	"github.com/systmms/envars/internal/gcpauth"
	"github.com/systmms/envars/internal/logging"
	"github.com/systmms/envars/pkg/secretbackend"
)

// GCPKMSClientAPI defines the Cloud KMS operations the backend uses.
// This allows for mocking in tests.
type GCPKMSClientAPI interface {
	Encrypt(ctx context.Context, req *kmspb.EncryptRequest, opts ...gax.CallOption) (*kmspb.EncryptResponse, error)
	Decrypt(ctx context.Context, req *kmspb.DecryptRequest, opts ...gax.CallOption) (*kmspb.DecryptResponse, error)
}

// GCPKMS encrypts and decrypts values with Google Cloud KMS. The
// encryption context travels as additional authenticated data in its
// canonical JSON form, so it binds the ciphertext to its scope the same
// way AWS encryption contexts do.
type GCPKMS struct {
	client GCPKMSClientAPI
	logger *logging.Logger
}

// GCPKMSOption is a functional option for configuring the GCP backend.
type GCPKMSOption func(*GCPKMS)

// WithGCPKMSClient sets a custom Cloud KMS client (for testing).
func WithGCPKMSClient(client GCPKMSClientAPI) GCPKMSOption {
	return func(b *GCPKMS) {
		b.client = client
	}
}

// NewGCPKMS creates a Cloud KMS backend using application default
// credentials.
func NewGCPKMS(logger *logging.Logger, opts ...GCPKMSOption) (*GCPKMS, error) {
	b := &GCPKMS{logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	if b.client != nil {
		return b, nil
	}

	ctx := context.Background()
	clientOpts, err := gcpauth.ClientOptions(ctx)
	if err != nil {
		return nil, err
	}
	client, err := kmsapi.NewKeyManagementClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud KMS client: %w", err)
	}
	b.client = client
	return b, nil
}

// Name returns the backend name.
func (b *GCPKMS) Name() string { return "gcp_kms" }

// Encrypt encrypts plaintext under the key, returning base64 ciphertext.
func (b *GCPKMS) Encrypt(ctx context.Context, plaintext, keyID string, encCtx secretbackend.Context) (string, error) {
	b.logger.Debug("encrypting with Cloud KMS key %s", keyID)

	resp, err := b.client.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:                        keyID,
		Plaintext:                   []byte(plaintext),
		AdditionalAuthenticatedData: encCtx.CanonicalJSON(),
	})
	if err != nil {
		return "", gcpKMSError("encryption", keyID, err)
	}
	return base64.StdEncoding.EncodeToString(resp.Ciphertext), nil
}

// Decrypt decodes the base64 ciphertext and decrypts it. The additional
// authenticated data must match the canonical JSON of the encryption
// context used at encryption time.
func (b *GCPKMS) Decrypt(ctx context.Context, ciphertext, keyID string, encCtx secretbackend.Context) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", enverrors.UserError{
			Message:    "stored ciphertext is not valid base64",
			Details:    err.Error(),
			Suggestion: "the value may have been edited by hand; re-encrypt it",
			Err:        err,
		}
	}

	resp, err := b.client.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:                        keyID,
		Ciphertext:                  blob,
		AdditionalAuthenticatedData: encCtx.CanonicalJSON(),
	})
	if err != nil {
		return "", gcpKMSError("decryption", keyID, err)
	}
	return string(resp.Plaintext), nil
}

// gcpKMSError classifies a Cloud KMS failure by its gRPC status code.
func gcpKMSError(op, keyID string, err error) error {
	suggestion := "Check GCP credentials and Cloud KMS permissions (roles/cloudkms.cryptoKeyEncrypterDecrypter)"
	switch status.Code(err) {
	case codes.NotFound:
		suggestion = "Verify the key resource name: projects/PROJECT/locations/LOC/keyRings/RING/cryptoKeys/KEY"
	case codes.PermissionDenied:
		suggestion = "Grant roles/cloudkms.cryptoKeyEncrypterDecrypter on the key to your principal"
	case codes.InvalidArgument:
		suggestion = "The authenticated data may not match; values decrypt only in the scope they were encrypted for"
	}
	return enverrors.UserError{
		Message:    fmt.Sprintf("Cloud KMS %s failed for key %s", op, keyID),
		Details:    err.Error(),
		Suggestion: suggestion,
		Err:        err,
	}
}
