package validation

import (
	"strings"
	"testing"
)

func TestValidScopeName_Valid(t *testing.T) {
	valids := []string{
		"a",
		"ab",
		"openid",
		"profile",
		"profile:read",
		"email:read:e2e123",
		"a_b-c.d:scope2",
		strings.Repeat("a", 64),
	}
	for _, v := range valids {
		if !ValidScopeName(v) {
			t.Fatalf("expected valid: %q", v)
		}
	}
}

func TestValidScopeName_Invalid(t *testing.T) {
	invalids := []string{
		"",               // empty
		":lead",          // starts with non-alnum
		"trail:",         // ends with non-alnum
		"bad space",      // space
		"UPPER",          // uppercase
		"semicolon;hack", // semicolon
		strings.Repeat("a", 65),
	}
	for _, v := range invalids {
		if ValidScopeName(v) {
			t.Fatalf("expected invalid: %q", v)
		}
	}
}

func TestFilterScopes(t *testing.T) {
	got := FilterScopes("openid  email BAD openid profile ;x")
	if got != "openid email profile" {
		t.Fatalf("got %q", got)
	}
	if FilterScopes("") != "" {
		t.Fatalf("empty scope should stay empty")
	}
}
