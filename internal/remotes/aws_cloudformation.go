package remotes

import (
	"context"
	"fmt"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"

	"github.com/systmms/envars/internal/logging"
	"github.com/systmms/envars/pkg/remotevalue"
)

// CloudFormationClientAPI defines the CloudFormation operations the
// provider uses. This allows for mocking in tests.
type CloudFormationClientAPI interface {
	ListExports(ctx context.Context, params *cloudformation.ListExportsInput, optFns ...func(*cloudformation.Options)) (*cloudformation.ListExportsOutput, error)
}

// CloudFormationProvider fetches values exported by CloudFormation
// stacks. The exports API has no point lookup, so the full listing is
// paged once and cached for the life of the process.
type CloudFormationProvider struct {
	client CloudFormationClientAPI
	logger *logging.Logger

	mu      sync.Mutex
	exports map[string]string
}

// CloudFormationOption is a functional option for configuring the
// CloudFormation provider.
type CloudFormationOption func(*CloudFormationProvider)

// WithCloudFormationClient sets a custom client (for testing).
func WithCloudFormationClient(client CloudFormationClientAPI) CloudFormationOption {
	return func(p *CloudFormationProvider) {
		p.client = client
	}
}

// NewCloudFormationProvider creates a stack export provider using the
// default AWS credential chain.
func NewCloudFormationProvider(logger *logging.Logger, opts ...CloudFormationOption) (*CloudFormationProvider, error) {
	p := &CloudFormationProvider{logger: logger}
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
	p.client = cloudformation.NewFromConfig(cfg)
	return p, nil
}

// Kind returns the locator kind this provider serves.
func (p *CloudFormationProvider) Kind() remotevalue.Kind { return remotevalue.StackExport }

// Fetch looks up one export by name.
func (p *CloudFormationProvider) Fetch(ctx context.Context, locator string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.exports == nil {
		if err := p.loadExports(ctx); err != nil {
			return "", err
		}
	}
	value, ok := p.exports[locator]
	if !ok {
		return "", remotevalue.NotFoundError{Kind: p.Kind(), Locator: locator}
	}
	return value, nil
}

// loadExports pages through every stack export in the account. Caller
// holds the mutex.
func (p *CloudFormationProvider) loadExports(ctx context.Context) error {
	p.logger.Debug("listing CloudFormation exports")

	exports := make(map[string]string)
	var nextToken *string
	for {
		out, err := p.client.ListExports(ctx, &cloudformation.ListExportsInput{NextToken: nextToken})
		if err != nil {
			if strings.Contains(err.Error(), "AccessDenied") {
				return remotevalue.AccessDeniedError{Kind: p.Kind(), Message: err.Error()}
			}
			return remotevalue.TransportError{Kind: p.Kind(), Err: err}
		}
		for _, exp := range out.Exports {
			if exp.Name != nil && exp.Value != nil {
				exports[*exp.Name] = *exp.Value
			}
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}
	p.exports = exports
	return nil
}
