package backends

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"cloud.google.com/go/kms/apiv1/kmspb"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	enverrors "github.com/systmms/envars/internal/errors"
	"github.com/systmms/envars/internal/logging"
	"github.com/systmms/envars/pkg/secretbackend"
)

const (
	awsKeyARN = "arn:aws:kms:eu-west-1:123456789012:key/abc"
	gcpKeyRes = "projects/p/locations/global/keyRings/r/cryptoKeys/k"
)

// fakeKMSClient applies a reversible transform so tests can verify the
// full encode/decode path without AWS.
type fakeKMSClient struct {
	lastEncryptCtx map[string]string
	lastDecryptCtx map[string]string
	err            error
}

func (c *fakeKMSClient) Encrypt(_ context.Context, in *kms.EncryptInput, _ ...func(*kms.Options)) (*kms.EncryptOutput, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.lastEncryptCtx = in.EncryptionContext
	return &kms.EncryptOutput{CiphertextBlob: append([]byte("ct:"), in.Plaintext...)}, nil
}

func (c *fakeKMSClient) Decrypt(_ context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.lastDecryptCtx = in.EncryptionContext
	return &kms.DecryptOutput{Plaintext: in.CiphertextBlob[3:]}, nil
}

type fakeGCPKMSClient struct {
	lastEncryptAAD []byte
	lastDecryptAAD []byte
	err            error
}

func (c *fakeGCPKMSClient) Encrypt(_ context.Context, req *kmspb.EncryptRequest, _ ...gax.CallOption) (*kmspb.EncryptResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.lastEncryptAAD = req.AdditionalAuthenticatedData
	return &kmspb.EncryptResponse{Ciphertext: append([]byte("ct:"), req.Plaintext...)}, nil
}

func (c *fakeGCPKMSClient) Decrypt(_ context.Context, req *kmspb.DecryptRequest, _ ...gax.CallOption) (*kmspb.DecryptResponse, error) {
	if c.err != nil {
		return nil, c.err
	}
	c.lastDecryptAAD = req.AdditionalAuthenticatedData
	return &kmspb.DecryptResponse{Plaintext: req.Ciphertext[3:]}, nil
}

func TestAWSKMSRoundTrip(t *testing.T) {
	client := &fakeKMSClient{}
	b, err := NewAWSKMS(awsKeyARN, logging.New(false, true), WithKMSClient(client))
	require.NoError(t, err)

	encCtx := secretbackend.NewContext("myapp", "prod", "main")
	ct, err := b.Encrypt(context.Background(), "hunter2", awsKeyARN, encCtx)
	require.NoError(t, err)

	// Stored form is base64, not raw bytes.
	_, err = base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)

	pt, err := b.Decrypt(context.Background(), ct, awsKeyARN, encCtx)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pt)
	assert.Equal(t, map[string]string(encCtx), client.lastDecryptCtx)
}

func TestAWSKMSBadBase64(t *testing.T) {
	b, err := NewAWSKMS(awsKeyARN, logging.New(false, true), WithKMSClient(&fakeKMSClient{}))
	require.NoError(t, err)

	_, err = b.Decrypt(context.Background(), "not base64!!!", awsKeyARN, secretbackend.NewContext("a", "", ""))
	var userErr enverrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "base64")
}

func TestAWSKMSServiceError(t *testing.T) {
	client := &fakeKMSClient{err: errors.New("AccessDeniedException: not authorized")}
	b, err := NewAWSKMS(awsKeyARN, logging.New(false, true), WithKMSClient(client))
	require.NoError(t, err)

	_, err = b.Encrypt(context.Background(), "x", awsKeyARN, nil)
	var userErr enverrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Suggestion, "kms:Encrypt")
}

func TestRegionFromARN(t *testing.T) {
	assert.Equal(t, "eu-west-1", regionFromARN(awsKeyARN))
	assert.Equal(t, "", regionFromARN("alias/my-key"))
}

func TestGCPKMSRoundTripUsesCanonicalAAD(t *testing.T) {
	client := &fakeGCPKMSClient{}
	b, err := NewGCPKMS(logging.New(false, true), WithGCPKMSClient(client))
	require.NoError(t, err)

	encCtx := secretbackend.NewContext("myapp", "prod", "")
	ct, err := b.Encrypt(context.Background(), "hunter2", gcpKeyRes, encCtx)
	require.NoError(t, err)
	assert.Equal(t, `{"app": "myapp", "environment": "prod"}`, string(client.lastEncryptAAD))

	pt, err := b.Decrypt(context.Background(), ct, gcpKeyRes, encCtx)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pt)
	assert.Equal(t, client.lastEncryptAAD, client.lastDecryptAAD)
}

func TestGCPKMSErrorClassification(t *testing.T) {
	client := &fakeGCPKMSClient{err: status.Error(codes.PermissionDenied, "denied")}
	b, err := NewGCPKMS(logging.New(false, true), WithGCPKMSClient(client))
	require.NoError(t, err)

	_, err = b.Encrypt(context.Background(), "x", gcpKeyRes, nil)
	var userErr enverrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Suggestion, "cryptoKeyEncrypterDecrypter")
}

func TestFactoryRejectsUnknownKeyFamily(t *testing.T) {
	f := NewFactory(logging.New(false, true))

	_, err := f.ForKey("not-a-key")
	var cfgErr enverrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "kms_key", cfgErr.Field)
}
