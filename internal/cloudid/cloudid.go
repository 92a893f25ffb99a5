// Package cloudid identifies the cloud account or project the process is
// running under, so the current location can be inferred from the
// document's location IDs instead of a flag.
package cloudid

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/systmms/envars/internal/document"
	"github.com/systmms/envars/internal/logging"
)

// STSClientAPI defines the STS operations the detector uses.
// This allows for mocking in tests.
type STSClientAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// Detector finds the ambient cloud identity.
type Detector struct {
	sts       STSClientAPI
	envLookup func(string) (string, bool)
	logger    *logging.Logger
}

// DetectorOption is a functional option for configuring the detector.
type DetectorOption func(*Detector)

// WithSTSClient sets a custom STS client (for testing).
func WithSTSClient(client STSClientAPI) DetectorOption {
	return func(d *Detector) {
		d.sts = client
	}
}

// WithEnvLookup overrides the ambient process environment (for tests).
func WithEnvLookup(fn func(string) (string, bool)) DetectorOption {
	return func(d *Detector) {
		d.envLookup = fn
	}
}

// NewDetector creates a detector. The STS client is built lazily because
// GCP-only setups never need AWS credentials.
func NewDetector(logger *logging.Logger, opts ...DetectorOption) *Detector {
	d := &Detector{envLookup: os.LookupEnv, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// gcpProjectEnvVars in precedence order.
var gcpProjectEnvVars = []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"}

// GCPProject returns the ambient GCP project ID, or "" when none is set.
func (d *Detector) GCPProject() string {
	for _, key := range gcpProjectEnvVars {
		if v, ok := d.envLookup(key); ok && v != "" {
			return v
		}
	}
	return ""
}

// AWSAccount returns the AWS account ID of the current credentials.
func (d *Detector) AWSAccount(ctx context.Context) (string, error) {
	if d.sts == nil {
		cfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to load AWS config: %w", err)
		}
		d.sts = sts.NewFromConfig(cfg)
	}
	out, err := d.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("sts:GetCallerIdentity failed: %w", err)
	}
	if out.Account == nil {
		return "", fmt.Errorf("caller identity carried no account ID")
	}
	return *out.Account, nil
}

// DefaultLocation matches the ambient cloud identity against the
// document's location IDs. The GCP project env vars are consulted first
// since they need no network call; the AWS account lookup runs only when
// that yields no match. Returns "" when nothing matches.
func (d *Detector) DefaultLocation(ctx context.Context, doc *document.Document) string {
	if len(doc.Locations) == 0 {
		return ""
	}

	if project := d.GCPProject(); project != "" {
		for _, loc := range doc.Locations {
			if loc.ID == project {
				d.logger.Debug("location %s matched GCP project %s", loc.Name, project)
				return loc.Name
			}
		}
	}

	account, err := d.AWSAccount(ctx)
	if err != nil {
		d.logger.Debug("AWS account detection failed: %v", err)
		return ""
	}
	for _, loc := range doc.Locations {
		if loc.ID == account {
			d.logger.Debug("location %s matched AWS account %s", loc.Name, account)
			return loc.Name
		}
	}
	return ""
}
