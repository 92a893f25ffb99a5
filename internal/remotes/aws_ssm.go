package remotes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/systmms/envars/internal/logging"
	"github.com/systmms/envars/pkg/remotevalue"
)

// SSMClientAPI defines the SSM operations the provider uses.
// This allows for mocking in tests.
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMProvider fetches values from AWS Systems Manager Parameter Store.
// SecureString parameters are decrypted server-side.
type SSMProvider struct {
	client SSMClientAPI
	logger *logging.Logger
}

// SSMOption is a functional option for configuring the SSM provider.
type SSMOption func(*SSMProvider)

// WithSSMClient sets a custom SSM client (for testing).
func WithSSMClient(client SSMClientAPI) SSMOption {
	return func(p *SSMProvider) {
		p.client = client
	}
}

// NewSSMProvider creates a Parameter Store provider using the default
// AWS credential chain.
func NewSSMProvider(logger *logging.Logger, opts ...SSMOption) (*SSMProvider, error) {
	p := &SSMProvider{logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	if p.client != nil {
		return p, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	p.client = ssm.NewFromConfig(cfg)
	return p, nil
}

// Kind returns the locator kind this provider serves.
func (p *SSMProvider) Kind() remotevalue.Kind { return remotevalue.ParameterStore }

// Fetch gets one parameter by name.
func (p *SSMProvider) Fetch(ctx context.Context, locator string) (string, error) {
	p.logger.Debug("fetching SSM parameter %s", locator)

	out, err := p.client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(locator),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ParameterNotFound
		if errors.As(err, &notFound) {
			return "", remotevalue.NotFoundError{Kind: p.Kind(), Locator: locator}
		}
		if strings.Contains(err.Error(), "AccessDenied") {
			return "", remotevalue.AccessDeniedError{Kind: p.Kind(), Locator: locator, Message: err.Error()}
		}
		return "", remotevalue.TransportError{Kind: p.Kind(), Err: err}
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", remotevalue.NotFoundError{Kind: p.Kind(), Locator: locator}
	}
	return *out.Parameter.Value, nil
}
