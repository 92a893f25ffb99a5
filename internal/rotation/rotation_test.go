package rotation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/envars/internal/document"
	"github.com/systmms/envars/internal/logging"
	"github.com/systmms/envars/pkg/secretbackend"
)

const (
	oldKey      = "arn:aws:kms:us-east-1:1:key/old"
	newKey      = "arn:aws:kms:us-east-1:1:key/new"
	overrideKey = "arn:aws:kms:eu-west-1:1:key/override"
)

// rekeyBackend prefixes ciphertext with the key it was encrypted under so
// tests can observe which key covered each value.
type rekeyBackend struct {
	failDecrypt bool
}

func (b *rekeyBackend) Name() string { return "rekey" }

func (b *rekeyBackend) Encrypt(_ context.Context, plaintext, keyID string, _ secretbackend.Context) (string, error) {
	return keyID + "|" + plaintext, nil
}

func (b *rekeyBackend) Decrypt(_ context.Context, ciphertext, _ string, _ secretbackend.Context) (string, error) {
	if b.failDecrypt {
		return "", errors.New("kms unavailable")
	}
	i := strings.LastIndex(ciphertext, "|")
	if i < 0 {
		return "", errors.New("malformed test ciphertext")
	}
	return ciphertext[i+1:], nil
}

func rotationDocument(t *testing.T) *document.Document {
	t.Helper()
	doc := document.New("myapp", oldKey)
	require.NoError(t, doc.AddEnvironment("prod"))
	require.NoError(t, doc.AddLocation(document.Location{Name: "main", ID: "1"}))
	require.NoError(t, doc.AddLocation(document.Location{Name: "eu", ID: "2", KeyID: overrideKey}))
	require.NoError(t, doc.AddVariable(document.Variable{Name: "TOKEN"}))
	require.NoError(t, doc.AddVariable(document.Variable{Name: "HOST"}))
	require.NoError(t, doc.AddValue(document.ScopedValue{
		Variable: "TOKEN", Scope: document.ScopeFor("prod", ""),
		Value: oldKey + "|t0ken", Secret: true, KeyID: oldKey,
	}))
	require.NoError(t, doc.AddValue(document.ScopedValue{
		Variable: "TOKEN", Scope: document.ScopeFor("", "eu"),
		Value: overrideKey + "|eu-t0ken", Secret: true, KeyID: overrideKey,
	}))
	require.NoError(t, doc.AddValue(document.ScopedValue{
		Variable: "HOST", Scope: document.DefaultScope(), Value: "db.internal",
	}))
	return doc
}

func TestRotateReencryptsUnderNewKey(t *testing.T) {
	doc := rotationDocument(t)
	backend := &rekeyBackend{}
	factory := func(string) (secretbackend.Backend, error) { return backend, nil }

	next, err := Rotate(context.Background(), doc, newKey, factory, logging.New(false, true))
	require.NoError(t, err)

	assert.Equal(t, newKey, next.KeyID)
	// The source document is untouched.
	assert.Equal(t, oldKey, doc.KeyID)
	assert.Equal(t, oldKey+"|t0ken", doc.Values[0].Value)

	assert.Equal(t, newKey+"|t0ken", next.Values[0].Value)
	assert.Equal(t, newKey, next.Values[0].KeyID)

	// Location key overrides are left alone.
	assert.Equal(t, overrideKey+"|eu-t0ken", next.Values[1].Value)
	assert.Equal(t, overrideKey, next.Values[1].KeyID)

	// Plaintext values pass through unchanged.
	assert.Equal(t, "db.internal", next.Values[2].Value)
}

func TestRotateFailsAsAUnit(t *testing.T) {
	doc := rotationDocument(t)
	backend := &rekeyBackend{failDecrypt: true}
	factory := func(string) (secretbackend.Backend, error) { return backend, nil }

	_, err := Rotate(context.Background(), doc, newKey, factory, logging.New(false, true))
	require.Error(t, err)
	assert.Equal(t, oldKey+"|t0ken", doc.Values[0].Value)
}

func TestRotateRejectsUnknownKeyFamily(t *testing.T) {
	doc := rotationDocument(t)
	factory := func(string) (secretbackend.Backend, error) { return &rekeyBackend{}, nil }

	_, err := Rotate(context.Background(), doc, "not-a-key", factory, logging.New(false, true))
	require.Error(t, err)
}
