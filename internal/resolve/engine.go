package resolve

import (
	"context"
	"os"
	"sort"

	"github.com/systmms/envars/internal/document"
	enverrors "github.com/systmms/envars/internal/errors"
	"github.com/systmms/envars/internal/logging"
	"github.com/systmms/envars/internal/template"
	"github.com/systmms/envars/pkg/remotevalue"
	"github.com/systmms/envars/pkg/secretbackend"
)

// BackendFactory returns the secret backend for a key identifier.
// Implementations cache process-wide client handles.
type BackendFactory func(keyID string) (secretbackend.Backend, error)

// ProviderRegistry hands out the remote value provider for a locator kind.
type ProviderRegistry interface {
	Provider(kind remotevalue.Kind) (remotevalue.Provider, error)
}

// Engine resolves every variable of a document for one context. It is
// stateless across calls: it holds only borrowed read-only references to
// the document snapshot and the injected backends, so concurrent calls
// for different contexts are safe.
type Engine struct {
	doc              *document.Document
	backends         BackendFactory
	remotes          ProviderRegistry
	logger           *logging.Logger
	envLookup        template.LookupFunc
	passthroughUnset bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithPassthroughUnset keeps placeholders for unset variables verbatim in
// the output instead of substituting the empty string.
func WithPassthroughUnset() Option {
	return func(e *Engine) { e.passthroughUnset = true }
}

// WithEnvLookup overrides the ambient process environment (for tests).
func WithEnvLookup(fn template.LookupFunc) Option {
	return func(e *Engine) { e.envLookup = fn }
}

// New creates an engine over a document snapshot.
func New(doc *document.Document, backends BackendFactory, remotes ProviderRegistry, logger *logging.Logger, opts ...Option) *Engine {
	e := &Engine{
		doc:       doc,
		backends:  backends,
		remotes:   remotes,
		logger:    logger,
		envLookup: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ResolveAll resolves every variable for the given context, failing as a
// unit on any cycle, decrypt failure, provider mismatch, or remote fetch
// failure. Unset variables are absent from the result.
func (e *Engine) ResolveAll(ctx context.Context, env, loc string) (map[string]string, error) {
	docCtx, err := e.doc.ResolveContext(env, loc)
	if err != nil {
		return nil, err
	}

	raw, err := e.rawValues(ctx, docCtx)
	if err != nil {
		return nil, err
	}

	rendered, err := e.render(raw)
	if err != nil {
		return nil, err
	}

	if err := e.checkProviderFamilies(rendered); err != nil {
		return nil, err
	}

	return e.fetchRemotes(ctx, rendered)
}

// rawValues picks the applicable stored value per variable and decrypts
// secrets. Decryption happens before templating: a secret's plaintext may
// itself contain references or a remote prefix, and the engine does not
// special-case that away.
func (e *Engine) rawValues(ctx context.Context, docCtx document.Context) (map[string]string, error) {
	raw := make(map[string]string)
	for _, name := range e.doc.VariableNames() {
		sv, ok := Raw(e.doc, name, docCtx)
		if !ok {
			e.logger.Debug("variable %s is unset in context %s", name, docCtx)
			continue
		}
		if sv.Secret {
			plaintext, err := e.DecryptValue(ctx, sv)
			if err != nil {
				return nil, err
			}
			raw[name] = plaintext
			continue
		}
		raw[name] = sv.Value
	}
	return raw, nil
}

// DecryptValue decrypts one stored secret with the key and encryption
// context recorded at encryption time.
func (e *Engine) DecryptValue(ctx context.Context, sv document.ScopedValue) (string, error) {
	keyID := sv.KeyID
	if keyID == "" {
		keyID = e.doc.KeyFor(sv.Scope)
	}
	if keyID == "" {
		return "", enverrors.DecryptError{
			Variable: sv.Variable,
			Err:      enverrors.ConfigError{Field: "kms_key", Message: "cannot decrypt without a kms_key in configuration"},
		}
	}

	backend, err := e.backends(keyID)
	if err != nil {
		return "", enverrors.DecryptError{Variable: sv.Variable, Err: err}
	}

	encCtx := secretbackend.NewContext(e.doc.App, sv.Scope.Environment, sv.Scope.Location)
	plaintext, err := backend.Decrypt(ctx, sv.Value, keyID, encCtx)
	if err != nil {
		return "", enverrors.DecryptError{Variable: sv.Variable, Err: err}
	}
	e.logger.Debug("decrypted %s (%s)", sv.Variable, sv.Scope)
	return plaintext, nil
}

// render expands template references in dependency order. References to
// variables unset in this context substitute as empty (or pass through
// when configured); env placeholders read the ambient environment.
func (e *Engine) render(raw map[string]string) (map[string]string, error) {
	deps := make(map[string][]string, len(raw))
	for name, value := range raw {
		var edges []string
		for _, ref := range template.Refs(value) {
			if _, ok := raw[ref]; ok {
				edges = append(edges, ref)
			}
		}
		deps[name] = edges
	}

	order, err := newReferenceGraph(deps).sortTopological()
	if err != nil {
		return nil, err
	}

	rendered := make(map[string]string, len(raw))
	lookup := func(name string) (string, bool) {
		v, ok := rendered[name]
		return v, ok
	}
	for _, name := range order {
		rendered[name] = template.Render(raw[name], lookup, e.envLookup, e.passthroughUnset)
	}
	return rendered, nil
}

// checkProviderFamilies rejects any rendered locator whose cloud family
// conflicts with the family of the document's configured key. This is a
// static consistency check; it runs before any network call.
func (e *Engine) checkProviderFamilies(rendered map[string]string) error {
	keyFamily := secretbackend.FamilyForKey(e.doc.KeyID)
	if keyFamily == secretbackend.FamilyUnknown {
		return nil
	}
	for _, name := range sortedKeys(rendered) {
		kind, _, ok := remotevalue.SplitLocator(rendered[name])
		if ok && kind.Family() != keyFamily {
			return enverrors.ProviderMismatchError{
				Variable:  name,
				Prefix:    kind.Prefix(),
				KeyFamily: string(keyFamily),
			}
		}
	}
	return nil
}

// fetchRemotes replaces rendered locator values with the plaintext
// returned by the matching provider.
func (e *Engine) fetchRemotes(ctx context.Context, rendered map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(rendered))
	for name, value := range rendered {
		kind, locator, ok := remotevalue.SplitLocator(value)
		if !ok {
			out[name] = value
			continue
		}
		provider, err := e.remotes.Provider(kind)
		if err != nil {
			return nil, enverrors.RemoteFetchError{Kind: string(kind), Locator: locator, Err: err}
		}
		e.logger.Debug("fetching %s for %s", kind, name)
		plaintext, err := provider.Fetch(ctx, locator)
		if err != nil {
			return nil, enverrors.RemoteFetchError{Kind: string(kind), Locator: locator, Err: err}
		}
		out[name] = plaintext
	}
	return out, nil
}

// CheckAllContexts runs cycle detection for every declared (environment,
// location) pair without decrypting or fetching anything. Write
// operations call it on a candidate snapshot before committing.
func CheckAllContexts(doc *document.Document) error {
	contexts := allContexts(doc)
	for _, docCtx := range contexts {
		raw := make(map[string]string)
		for _, name := range doc.VariableNames() {
			sv, ok := Raw(doc, name, docCtx)
			if !ok {
				continue
			}
			if sv.Secret {
				// Ciphertext blobs never carry template references.
				raw[name] = ""
				continue
			}
			raw[name] = sv.Value
		}

		deps := make(map[string][]string, len(raw))
		for name, value := range raw {
			var edges []string
			for _, ref := range template.Refs(value) {
				if _, ok := raw[ref]; ok {
					edges = append(edges, ref)
				}
			}
			deps[name] = edges
		}
		if _, err := newReferenceGraph(deps).sortTopological(); err != nil {
			if cycle, ok := err.(enverrors.CycleError); ok {
				return enverrors.UserError{
					Message: "circular dependency in context " + docCtx.String(),
					Err:     cycle,
				}
			}
			return err
		}
	}
	return nil
}

func allContexts(doc *document.Document) []document.Context {
	var out []document.Context
	for _, env := range doc.Environments {
		if len(doc.Locations) == 0 {
			out = append(out, document.Context{Environment: env})
			continue
		}
		for _, loc := range doc.Locations {
			out = append(out, document.Context{Environment: env, Location: loc.Name})
		}
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
