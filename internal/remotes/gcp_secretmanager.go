package remotes

import (
	"context"
	"fmt"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/envars/internal/gcpauth"
	"github.com/systmms/envars/internal/logging"
	"github.com/systmms/envars/pkg/remotevalue"
)

// SecretManagerClientAPI defines the Secret Manager operations the
// provider uses. This allows for mocking in tests.
type SecretManagerClientAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GCPSecretManagerProvider fetches secret payloads from Google Cloud
// Secret Manager.
type GCPSecretManagerProvider struct {
	client SecretManagerClientAPI
	logger *logging.Logger
}

// GCPSecretManagerOption is a functional option for configuring the
// Secret Manager provider.
type GCPSecretManagerOption func(*GCPSecretManagerProvider)

// WithSecretManagerClient sets a custom client (for testing).
func WithSecretManagerClient(client SecretManagerClientAPI) GCPSecretManagerOption {
	return func(p *GCPSecretManagerProvider) {
		p.client = client
	}
}

// NewGCPSecretManagerProvider creates a Secret Manager provider using
// application default credentials.
func NewGCPSecretManagerProvider(logger *logging.Logger, opts ...GCPSecretManagerOption) (*GCPSecretManagerProvider, error) {
	p := &GCPSecretManagerProvider{logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	if p.client != nil {
		return p, nil
	}

	ctx := context.Background()
	clientOpts, err := gcpauth.ClientOptions(ctx)
	if err != nil {
		return nil, err
	}
	client, err := secretmanager.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	p.client = client
	return p, nil
}

// Kind returns the locator kind this provider serves.
func (p *GCPSecretManagerProvider) Kind() remotevalue.Kind { return remotevalue.SecretManager }

// Fetch accesses one secret version. Locators without an explicit
// /versions/ component read the latest version.
func (p *GCPSecretManagerProvider) Fetch(ctx context.Context, locator string) (string, error) {
	name := locator
	if !strings.Contains(name, "/versions/") {
		name += "/versions/latest"
	}
	p.logger.Debug("accessing secret version %s", name)

	resp, err := p.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return "", remotevalue.NotFoundError{Kind: p.Kind(), Locator: locator}
		case codes.PermissionDenied:
			return "", remotevalue.AccessDeniedError{Kind: p.Kind(), Locator: locator, Message: err.Error()}
		}
		return "", remotevalue.TransportError{Kind: p.Kind(), Err: err}
	}
	if resp.Payload == nil {
		return "", remotevalue.NotFoundError{Kind: p.Kind(), Locator: locator}
	}
	return string(resp.Payload.Data), nil
}
