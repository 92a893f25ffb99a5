// Package gcpauth builds the client options shared by every Google Cloud
// client: optional credentials file and service account impersonation.
package gcpauth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"
)

// Environment variables consulted for credential overrides. Absent both,
// clients fall back to application default credentials.
const (
	CredentialsFileVar = "ENVARS_GCP_CREDENTIALS_FILE"
	ImpersonateVar     = "ENVARS_GCP_IMPERSONATE_SERVICE_ACCOUNT"
)

// ClientOptions returns the options every GCP client should be built
// with. Both overrides may be combined: the credentials file then acts as
// the source identity for impersonation.
func ClientOptions(ctx context.Context) ([]option.ClientOption, error) {
	var opts []option.ClientOption

	if keyPath := os.Getenv(CredentialsFileVar); keyPath != "" {
		expanded, err := expandHome(keyPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithCredentialsFile(expanded))
	}

	if principal := os.Getenv(ImpersonateVar); principal != "" {
		ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: principal,
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to impersonate %s: %w", principal, err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}

	return opts, nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", path, err)
	}
	return filepath.Join(home, path[2:]), nil
}
