package backends

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	enverrors "github.com/systmms/envars/internal/errors"
	"github.com/systmms/envars/internal/logging"
	"github.com/systmms/envars/pkg/secretbackend"
)

// KMSClientAPI defines the AWS KMS operations the backend uses.
// This allows for mocking in tests.
type KMSClientAPI interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// AWSKMS encrypts and decrypts values with AWS KMS. Ciphertexts are
// stored as base64 so they survive YAML round-trips.
type AWSKMS struct {
	client KMSClientAPI
	logger *logging.Logger
}

// AWSKMSOption is a functional option for configuring the AWS backend.
type AWSKMSOption func(*AWSKMS)

// WithKMSClient sets a custom KMS client (for testing).
func WithKMSClient(client KMSClientAPI) AWSKMSOption {
	return func(b *AWSKMS) {
		b.client = client
	}
}

// NewAWSKMS creates an AWS KMS backend. The region is taken from the key
// ARN so callers need no separate region configuration.
func NewAWSKMS(keyID string, logger *logging.Logger, opts ...AWSKMSOption) (*AWSKMS, error) {
	b := &AWSKMS{logger: logger}
	for _, opt := range opts {
		opt(b)
	}
	if b.client != nil {
		return b, nil
	}

	var configOpts []func(*awsconfig.LoadOptions) error
	if region := regionFromARN(keyID); region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	b.client = kms.NewFromConfig(cfg)
	return b, nil
}

// regionFromARN extracts the region field of a KMS key ARN
// (arn:aws:kms:REGION:ACCOUNT:key/ID). Returns "" for bare key IDs.
func regionFromARN(keyID string) string {
	parts := strings.Split(keyID, ":")
	if len(parts) >= 4 && parts[0] == "arn" {
		return parts[3]
	}
	return ""
}

// Name returns the backend name.
func (b *AWSKMS) Name() string { return "aws_kms" }

// Encrypt encrypts plaintext under the key and encryption context,
// returning the ciphertext blob as base64.
func (b *AWSKMS) Encrypt(ctx context.Context, plaintext, keyID string, encCtx secretbackend.Context) (string, error) {
	b.logger.Debug("encrypting with AWS KMS key %s", keyID)

	out, err := b.client.Encrypt(ctx, &kms.EncryptInput{
		KeyId:             aws.String(keyID),
		Plaintext:         []byte(plaintext),
		EncryptionContext: encCtx,
	})
	if err != nil {
		return "", enverrors.UserError{
			Message:    fmt.Sprintf("AWS KMS encryption failed for key %s", keyID),
			Details:    err.Error(),
			Suggestion: kmsErrorSuggestion(err),
			Err:        err,
		}
	}
	return base64.StdEncoding.EncodeToString(out.CiphertextBlob), nil
}

// Decrypt decodes the base64 ciphertext and decrypts it. The encryption
// context must match the one supplied at encryption time byte for byte.
func (b *AWSKMS) Decrypt(ctx context.Context, ciphertext, keyID string, encCtx secretbackend.Context) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", enverrors.UserError{
			Message:    "stored ciphertext is not valid base64",
			Details:    err.Error(),
			Suggestion: "the value may have been edited by hand; re-encrypt it",
			Err:        err,
		}
	}

	out, err := b.client.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob:    blob,
		KeyId:             aws.String(keyID),
		EncryptionContext: encCtx,
	})
	if err != nil {
		return "", enverrors.UserError{
			Message:    "AWS KMS decryption failed",
			Details:    err.Error(),
			Suggestion: kmsErrorSuggestion(err),
			Err:        err,
		}
	}
	return string(out.Plaintext), nil
}

// kmsErrorSuggestion maps common KMS failures to actionable hints.
func kmsErrorSuggestion(err error) string {
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "invalidciphertext"):
		return "The encryption context may not match; values decrypt only in the scope they were encrypted for"
	case strings.Contains(errStr, "accessdenied"):
		return "Check IAM permissions: kms:Encrypt and kms:Decrypt on the configured key"
	case strings.Contains(errStr, "notfoundexception"):
		return "Verify the key ARN and that the key exists in its region"
	case strings.Contains(errStr, "disabled"):
		return "The KMS key is disabled; re-enable it or rotate to a new key"
	default:
		return "Check AWS credentials, region, and KMS key permissions"
	}
}
