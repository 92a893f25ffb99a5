package commands

import (
	"context"
	"sort"

	"github.com/systmms/envars/internal/backends"
	"github.com/systmms/envars/internal/cloudid"
	"github.com/systmms/envars/internal/config"
	"github.com/systmms/envars/internal/remotes"
	"github.com/systmms/envars/internal/resolve"
)

// newEngine wires the resolution engine with real cloud backends.
func newEngine(cfg *config.Config) *resolve.Engine {
	factory := backends.NewFactory(cfg.Logger)
	registry := remotes.NewRegistry(cfg.Logger)

	var opts []resolve.Option
	if cfg.PassthroughUnset {
		opts = append(opts, resolve.WithPassthroughUnset())
	}
	return resolve.New(cfg.Document(), factory.ForKey, registry, cfg.Logger, opts...)
}

// resolveLocation returns the location from the flag, falling back to
// matching the ambient cloud identity against the document's location
// IDs. An empty result is valid for documents without locations.
func resolveLocation(ctx context.Context, cfg *config.Config, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	doc := cfg.Document()
	if len(doc.Locations) == 0 {
		return ""
	}
	if len(doc.Locations) == 1 {
		return doc.Locations[0].Name
	}
	detector := cloudid.NewDetector(cfg.Logger)
	return detector.DefaultLocation(ctx, doc)
}

// sortedNames returns map keys in deterministic order.
func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// backendFactory builds the factory used for encrypt and rotate paths.
func backendFactory(cfg *config.Config) resolve.BackendFactory {
	return backends.NewFactory(cfg.Logger).ForKey
}
