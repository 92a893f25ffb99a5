package secretbackend

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewContext(t *testing.T) {
	tests := []struct {
		name string
		app  string
		env  string
		loc  string
		want Context
	}{
		{"app only", "myapp", "", "", Context{"app": "myapp"}},
		{"environment scoped", "myapp", "prod", "", Context{"app": "myapp", "environment": "prod"}},
		{"location scoped", "myapp", "", "main", Context{"app": "myapp", "location": "main"}},
		{"specific", "myapp", "prod", "main", Context{"app": "myapp", "environment": "prod", "location": "main"}},
		{"empty app still present", "", "prod", "", Context{"app": "", "environment": "prod"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewContext(tt.app, tt.env, tt.loc))
		})
	}
}

func TestCanonicalJSONIsDeterministic(t *testing.T) {
	c := NewContext("myapp", "prod", "main")
	assert.Equal(t,
		`{"app": "myapp", "environment": "prod", "location": "main"}`,
		string(c.CanonicalJSON()))

	// Same context always yields the same bytes.
	assert.Equal(t, c.CanonicalJSON(), NewContext("myapp", "prod", "main").CanonicalJSON())
}

func TestCanonicalJSONEscapes(t *testing.T) {
	c := Context{`a"b`: `c\d`}
	assert.Equal(t, `{"a\"b": "c\\d"}`, string(c.CanonicalJSON()))
}

func TestFamilyForKey(t *testing.T) {
	assert.Equal(t, FamilyAWS, FamilyForKey("arn:aws:kms:eu-west-1:123456789012:key/abc"))
	assert.Equal(t, FamilyGCP, FamilyForKey("projects/p/locations/global/keyRings/r/cryptoKeys/k"))
	assert.Equal(t, FamilyUnknown, FamilyForKey("something-else"))
	assert.Equal(t, FamilyUnknown, FamilyForKey(""))
}
