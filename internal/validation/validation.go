package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/systmms/envars/internal/document"
	enverrors "github.com/systmms/envars/internal/errors"
)

// sensitiveMarkers flag variable names that usually hold credentials.
// Adding such a variable as plaintext requires an explicit override.
var sensitiveMarkers = []string{"KEY", "SECRET", "TOKEN", "PASSWORD", "CREDENTIAL"}

// LooksSensitive reports whether a variable name suggests it holds a
// credential and should be stored as a secret.
func LooksSensitive(name string) bool {
	upper := strings.ToUpper(name)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// Check validates one plaintext value against the variable's declared
// validation pattern. The pattern is anchored at the start of the value
// only; end it with $ to require a full match. Variables without a
// pattern always pass.
func Check(v document.Variable, value string) error {
	if v.Validation == "" {
		return nil
	}
	re, err := regexp.Compile(v.Validation)
	if err != nil {
		return enverrors.ConfigError{
			Field:      "validation",
			Value:      v.Validation,
			Message:    fmt.Sprintf("invalid regular expression for %s: %v", v.Name, err),
			Suggestion: "fix the validation pattern in the configuration file",
		}
	}
	loc := re.FindStringIndex(value)
	if loc == nil || loc[0] != 0 {
		return enverrors.ValidationError{
			Variable: v.Name,
			Value:    value,
			Pattern:  v.Validation,
		}
	}
	return nil
}

// Sweep checks every stored plaintext value in the document against its
// variable's validation pattern and collects all violations instead of
// stopping at the first. Secret values are skipped: their ciphertext is
// opaque, and decrypting for validation is a separate explicit step.
func Sweep(doc *document.Document) []error {
	var errs []error
	for _, name := range doc.VariableNames() {
		v := doc.Variables[name]
		if v.Validation == "" {
			continue
		}
		for _, sv := range doc.ValuesOf(name) {
			if sv.Secret {
				continue
			}
			if err := Check(*v, sv.Value); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", sv.Scope, err))
			}
		}
	}
	return errs
}
