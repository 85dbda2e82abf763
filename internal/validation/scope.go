package validation

import (
	"regexp"
	"strings"
)

// Reglas de nombre de scope:
// - Minúsculas solamente.
// - Empieza y termina con [a-z0-9].
// - En el medio admite [a-z0-9:_.-].
// - Largo 1..64.
// - Sin espacios ni punto y coma.
//
// Válidos: profile, profile:read, openid, a_b-c.d:scope2
// Inválidos: ;hack, BAD, "bad space", :lead, trail:, "".
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName devuelve true si el nombre de scope cumple el patrón.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// FilterScopes deja sólo los scopes con nombre válido, preservando el orden
// y deduplicando. Los inválidos se descartan en silencio.
func FilterScopes(scope string) string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range strings.Fields(scope) {
		if !ValidScopeName(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return strings.Join(out, " ")
}
