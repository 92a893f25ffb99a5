package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/envars/internal/document"
	enverrors "github.com/systmms/envars/internal/errors"
)

func TestLooksSensitive(t *testing.T) {
	assert.True(t, LooksSensitive("API_KEY"))
	assert.True(t, LooksSensitive("DB_PASSWORD"))
	assert.True(t, LooksSensitive("session_token"))
	assert.False(t, LooksSensitive("DB_HOST"))
	assert.False(t, LooksSensitive("PORT"))
}

func TestCheckAnchorsAtStart(t *testing.T) {
	v := document.Variable{Name: "PORT", Validation: "[0-9]+"}

	assert.NoError(t, Check(v, "8080"))
	// The pattern only has to match a prefix of the value.
	assert.NoError(t, Check(v, "12a"))

	// A match that starts past position zero does not count.
	err := Check(v, "a12")
	var valErr enverrors.ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "PORT", valErr.Variable)
	assert.Equal(t, "a12", valErr.Value)
}

func TestCheckPrefixPattern(t *testing.T) {
	v := document.Variable{Name: "DB_URL", Validation: "^postgres://"}

	assert.NoError(t, Check(v, "postgres://localhost/dev"))

	var valErr enverrors.ValidationError
	assert.ErrorAs(t, Check(v, "mysql://localhost/dev"), &valErr)
}

func TestCheckExplicitAnchors(t *testing.T) {
	v := document.Variable{Name: "STAGE", Validation: "^(dev|prod)$"}

	assert.NoError(t, Check(v, "prod"))

	var valErr enverrors.ValidationError
	assert.ErrorAs(t, Check(v, "production"), &valErr)
}

func TestCheckNoPattern(t *testing.T) {
	v := document.Variable{Name: "ANYTHING"}
	assert.NoError(t, Check(v, "any value at all"))
}

func TestCheckBadPattern(t *testing.T) {
	v := document.Variable{Name: "X", Validation: "["}
	err := Check(v, "value")
	var cfgErr enverrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "validation", cfgErr.Field)
}

func TestSweepCollectsAllViolations(t *testing.T) {
	doc := document.New("myapp", "")
	require.NoError(t, doc.AddEnvironment("prod"))
	require.NoError(t, doc.AddVariable(document.Variable{Name: "PORT", Validation: "[0-9]+"}))
	require.NoError(t, doc.AddVariable(document.Variable{Name: "STAGE", Validation: "dev|prod"}))
	require.NoError(t, doc.AddValue(document.ScopedValue{Variable: "PORT", Scope: document.DefaultScope(), Value: "8080"}))
	require.NoError(t, doc.AddValue(document.ScopedValue{Variable: "PORT", Scope: document.ScopeFor("prod", ""), Value: "not-a-port"}))
	require.NoError(t, doc.AddValue(document.ScopedValue{Variable: "STAGE", Scope: document.DefaultScope(), Value: "staging"}))

	errs := Sweep(doc)
	require.Len(t, errs, 2)
}

func TestSweepSkipsSecrets(t *testing.T) {
	doc := document.New("myapp", "arn:aws:kms:us-east-1:1:key/k")
	require.NoError(t, doc.AddEnvironment("prod"))
	require.NoError(t, doc.AddVariable(document.Variable{Name: "API_KEY", Validation: "[a-f0-9]{32}"}))
	require.NoError(t, doc.AddValue(document.ScopedValue{
		Variable: "API_KEY",
		Scope:    document.ScopeFor("prod", ""),
		Value:    "AQICAHciphertext",
		Secret:   true,
	}))

	assert.Empty(t, Sweep(doc))
}
