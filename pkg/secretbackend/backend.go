// Package secretbackend defines the contract between the resolution engine
// and the key-management services that encrypt and decrypt stored secrets.
//
// A Backend encrypts a plaintext under a provider-specific key plus an
// encryption context, and decrypts the resulting blob only when the exact
// same context is presented again. The engine never retries with a guessed
// context: context mismatch surfaces as the provider's authentication
// failure.
//
// Implementations must be safe for concurrent use; clients are expected to
// be process-wide handles created lazily on first use.
package secretbackend

import (
	"context"
	"sort"
	"strings"
)

// Backend encrypts and decrypts secret values under a named key.
type Backend interface {
	// Name returns the backend's stable identifier, e.g. "aws.kms".
	Name() string

	// Encrypt encrypts plaintext under keyID bound to encCtx, returning
	// a base64 ciphertext blob.
	Encrypt(ctx context.Context, plaintext, keyID string, encCtx Context) (string, error)

	// Decrypt reverses Encrypt. The context must match the one recorded
	// at encryption time byte for byte or the call fails.
	Decrypt(ctx context.Context, ciphertext, keyID string, encCtx Context) (string, error)
}

// Context is the authenticated metadata bound to a ciphertext.
type Context map[string]string

// NewContext builds the deterministic encryption context for a scoped
// value: the application name (always present, possibly empty), plus the
// environment and location names when the value is scoped to them.
func NewContext(app, env, loc string) Context {
	c := Context{"app": app}
	if env != "" {
		c["environment"] = env
	}
	if loc != "" {
		c["location"] = loc
	}
	return c
}

// CanonicalJSON renders the context as JSON with sorted keys. Backends
// whose KMS binds a single opaque AAD blob (rather than a native string
// map) use this as the blob, so encrypt and decrypt agree byte for byte.
func (c Context) CanonicalJSON() []byte {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteJSON(k))
		b.WriteString(": ")
		b.WriteString(quoteJSON(c[k]))
	}
	b.WriteByte('}')
	return []byte(b.String())
}

func quoteJSON(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Family identifies the cloud provider implied by a key identifier.
type Family string

const (
	FamilyAWS     Family = "aws"
	FamilyGCP     Family = "gcp"
	FamilyUnknown Family = ""
)

// FamilyForKey classifies a key identifier by its format: AWS KMS key ARNs
// start with "arn:aws:kms:", GCP KMS key resource names with "projects/".
func FamilyForKey(keyID string) Family {
	switch {
	case strings.HasPrefix(keyID, "arn:aws:kms:"):
		return FamilyAWS
	case strings.HasPrefix(keyID, "projects/"):
		return FamilyGCP
	default:
		return FamilyUnknown
	}
}
