package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	enverrors "github.com/systmms/envars/internal/errors"
)

func testDocument(t *testing.T) *Document {
	t.Helper()
	doc := New("myapp", "arn:aws:kms:eu-west-1:123456789012:key/abc")
	require.NoError(t, doc.AddEnvironment("dev"))
	require.NoError(t, doc.AddEnvironment("prod"))
	require.NoError(t, doc.AddLocation(Location{Name: "main", ID: "123456789012"}))
	require.NoError(t, doc.AddLocation(Location{Name: "edge", ID: "210987654321", KeyID: "arn:aws:kms:eu-west-1:210987654321:key/edge"}))
	require.NoError(t, doc.AddVariable(Variable{Name: "DB_URL", Description: "Connection string"}))
	return doc
}

func TestAddVariableRequiresUppercase(t *testing.T) {
	doc := New("app", "")
	err := doc.AddVariable(Variable{Name: "db_url"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uppercase")
}

func TestAddVariableRejectsDuplicate(t *testing.T) {
	doc := testDocument(t)
	err := doc.AddVariable(Variable{Name: "DB_URL"})
	assert.Error(t, err)
}

func TestAddValueScopeReferenceChecks(t *testing.T) {
	doc := testDocument(t)

	err := doc.AddValue(ScopedValue{Variable: "DB_URL", Scope: Scope{Kind: ScopeEnvironment, Environment: "qa"}, Value: "x"})
	var unknownEnv enverrors.UnknownEnvironmentError
	require.ErrorAs(t, err, &unknownEnv)
	assert.Equal(t, "qa", unknownEnv.Name)

	err = doc.AddValue(ScopedValue{Variable: "DB_URL", Scope: Scope{Kind: ScopeLocation, Location: "orbit"}, Value: "x"})
	var unknownLoc enverrors.UnknownLocationError
	require.ErrorAs(t, err, &unknownLoc)

	err = doc.AddValue(ScopedValue{Variable: "NOPE", Scope: DefaultScope(), Value: "x"})
	var unknownVar enverrors.UnknownVariableError
	require.ErrorAs(t, err, &unknownVar)
}

func TestAddValueRejectsSecretAtDefaultScope(t *testing.T) {
	doc := testDocument(t)
	err := doc.AddValue(ScopedValue{Variable: "DB_URL", Scope: DefaultScope(), Value: "blob", Secret: true})
	var scopeErr enverrors.SecretScopeError
	require.ErrorAs(t, err, &scopeErr)
	assert.Equal(t, "DB_URL", scopeErr.Variable)
}

func TestAddValueRejectsSameTierDuplicate(t *testing.T) {
	doc := testDocument(t)
	scope := Scope{Kind: ScopeEnvironment, Environment: "prod"}
	require.NoError(t, doc.AddValue(ScopedValue{Variable: "DB_URL", Scope: scope, Value: "a"}))

	err := doc.AddValue(ScopedValue{Variable: "DB_URL", Scope: scope, Value: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists at scope ENVIRONMENT(prod)")

	// A different environment at the same kind is a different tier.
	require.NoError(t, doc.AddValue(ScopedValue{Variable: "DB_URL", Scope: Scope{Kind: ScopeEnvironment, Environment: "dev"}, Value: "c"}))
}

func TestRemoveEnvironment(t *testing.T) {
	doc := testDocument(t)
	require.NoError(t, doc.AddValue(ScopedValue{Variable: "DB_URL", Scope: Scope{Kind: ScopeEnvironment, Environment: "prod"}, Value: "x"}))

	// In use: the error names the binding variable.
	err := doc.RemoveEnvironment("prod")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in use by: DB_URL")
	assert.True(t, doc.HasEnvironment("prod"))

	require.NoError(t, doc.RemoveEnvironment("dev"))
	assert.False(t, doc.HasEnvironment("dev"))

	var unknownEnv enverrors.UnknownEnvironmentError
	assert.ErrorAs(t, doc.RemoveEnvironment("qa"), &unknownEnv)
}

func TestRemoveLocation(t *testing.T) {
	doc := testDocument(t)
	require.NoError(t, doc.AddValue(ScopedValue{Variable: "DB_URL", Scope: Scope{Kind: ScopeLocation, Location: "main"}, Value: "x"}))

	err := doc.RemoveLocation("main")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in use by: DB_URL")

	require.NoError(t, doc.RemoveLocation("edge"))
	_, ok := doc.LocationByName("edge")
	assert.False(t, ok)

	var unknownLoc enverrors.UnknownLocationError
	assert.ErrorAs(t, doc.RemoveLocation("orbit"), &unknownLoc)
}

func TestReplaceValueSwapsSameTier(t *testing.T) {
	doc := testDocument(t)
	scope := Scope{Kind: ScopeSpecific, Environment: "prod", Location: "main"}
	require.NoError(t, doc.AddValue(ScopedValue{Variable: "DB_URL", Scope: scope, Value: "old"}))
	require.NoError(t, doc.ReplaceValue(ScopedValue{Variable: "DB_URL", Scope: scope, Value: "new"}))

	values := doc.ValuesOf("DB_URL")
	require.Len(t, values, 1)
	assert.Equal(t, "new", values[0].Value)
}

func TestScopeValidation(t *testing.T) {
	doc := testDocument(t)

	tests := []struct {
		name  string
		scope Scope
	}{
		{"default with env", Scope{Kind: ScopeDefault, Environment: "dev"}},
		{"environment without env", Scope{Kind: ScopeEnvironment}},
		{"environment with loc", Scope{Kind: ScopeEnvironment, Environment: "dev", Location: "main"}},
		{"location without loc", Scope{Kind: ScopeLocation}},
		{"specific missing loc", Scope{Kind: ScopeSpecific, Environment: "dev"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := doc.AddValue(ScopedValue{Variable: "DB_URL", Scope: tt.scope, Value: "x"})
			assert.Error(t, err)
		})
	}
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, ScopeDefault, ScopeFor("", "").Kind)
	assert.Equal(t, ScopeEnvironment, ScopeFor("dev", "").Kind)
	assert.Equal(t, ScopeLocation, ScopeFor("", "main").Kind)
	assert.Equal(t, ScopeSpecific, ScopeFor("dev", "main").Kind)
}

func TestKeyFor(t *testing.T) {
	doc := testDocument(t)

	assert.Equal(t, doc.KeyID, doc.KeyFor(DefaultScope()))
	assert.Equal(t, doc.KeyID, doc.KeyFor(Scope{Kind: ScopeLocation, Location: "main"}))
	assert.Equal(t,
		"arn:aws:kms:eu-west-1:210987654321:key/edge",
		doc.KeyFor(Scope{Kind: ScopeSpecific, Environment: "prod", Location: "edge"}))
}

func TestCloneIsDeep(t *testing.T) {
	doc := testDocument(t)
	require.NoError(t, doc.AddValue(ScopedValue{Variable: "DB_URL", Scope: DefaultScope(), Value: "orig"}))

	clone := doc.Clone()
	clone.Variables["DB_URL"].Description = "changed"
	require.NoError(t, clone.ReplaceValue(ScopedValue{Variable: "DB_URL", Scope: DefaultScope(), Value: "changed"}))
	require.NoError(t, clone.AddEnvironment("qa"))

	assert.Equal(t, "Connection string", doc.Variables["DB_URL"].Description)
	assert.Equal(t, "orig", doc.ValuesOf("DB_URL")[0].Value)
	assert.False(t, doc.HasEnvironment("qa"))
}

func TestResolveContext(t *testing.T) {
	doc := testDocument(t)

	ctx, err := doc.ResolveContext("prod", "main")
	require.NoError(t, err)
	assert.Equal(t, "prod/main", ctx.String())

	_, err = doc.ResolveContext("qa", "main")
	var unknownEnv enverrors.UnknownEnvironmentError
	assert.ErrorAs(t, err, &unknownEnv)

	_, err = doc.ResolveContext("prod", "orbit")
	var unknownLoc enverrors.UnknownLocationError
	assert.ErrorAs(t, err, &unknownLoc)

	// Location is optional in a context.
	_, err = doc.ResolveContext("prod", "")
	assert.NoError(t, err)
}
