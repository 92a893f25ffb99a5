package cloudid

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/envars/internal/document"
	"github.com/systmms/envars/internal/logging"
)

type fakeSTSClient struct {
	account string
	err     error
}

func (c *fakeSTSClient) GetCallerIdentity(_ context.Context, _ *sts.GetCallerIdentityInput, _ ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(c.account)}, nil
}

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func detectionDocument(t *testing.T) *document.Document {
	t.Helper()
	doc := document.New("myapp", "")
	require.NoError(t, doc.AddEnvironment("prod"))
	require.NoError(t, doc.AddLocation(document.Location{Name: "aws-main", ID: "123456789012"}))
	require.NoError(t, doc.AddLocation(document.Location{Name: "gcp-main", ID: "my-project"}))
	return doc
}

func TestDefaultLocationFromGCPProject(t *testing.T) {
	d := NewDetector(logging.New(false, true),
		WithEnvLookup(envFrom(map[string]string{"GOOGLE_CLOUD_PROJECT": "my-project"})),
		WithSTSClient(&fakeSTSClient{err: errors.New("should not be called")}),
	)
	assert.Equal(t, "gcp-main", d.DefaultLocation(context.Background(), detectionDocument(t)))
}

func TestDefaultLocationFromAWSAccount(t *testing.T) {
	d := NewDetector(logging.New(false, true),
		WithEnvLookup(envFrom(nil)),
		WithSTSClient(&fakeSTSClient{account: "123456789012"}),
	)
	assert.Equal(t, "aws-main", d.DefaultLocation(context.Background(), detectionDocument(t)))
}

func TestDefaultLocationNoMatch(t *testing.T) {
	d := NewDetector(logging.New(false, true),
		WithEnvLookup(envFrom(map[string]string{"GCP_PROJECT": "other-project"})),
		WithSTSClient(&fakeSTSClient{account: "999999999999"}),
	)
	assert.Equal(t, "", d.DefaultLocation(context.Background(), detectionDocument(t)))
}

func TestDefaultLocationDetectionFailure(t *testing.T) {
	d := NewDetector(logging.New(false, true),
		WithEnvLookup(envFrom(nil)),
		WithSTSClient(&fakeSTSClient{err: errors.New("no credentials")}),
	)
	assert.Equal(t, "", d.DefaultLocation(context.Background(), detectionDocument(t)))
}

func TestGCPProjectPrecedence(t *testing.T) {
	d := NewDetector(logging.New(false, true), WithEnvLookup(envFrom(map[string]string{
		"GCLOUD_PROJECT":       "second",
		"GOOGLE_CLOUD_PROJECT": "first",
	})))
	assert.Equal(t, "first", d.GCPProject())
}
