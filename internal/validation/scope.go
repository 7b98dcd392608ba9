// Package validation contiene reglas de formato compartidas por el admin
// de clientes y la CLI.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Reglas de nombre de scope: minúsculas, empieza y termina en [a-z0-9],
// el medio admite [a-z0-9:_.-], largo 1..64. Sin espacios ni ';'.
//
// Válidos: read:documents, write:files, admin, a_b-c.d:scope2
// Inválidos: ;hack, READ, "read docs", :leader, trailer:, "", 65+ chars.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName indica si name cumple el formato de scope.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// CheckScopes retorna un error que lista todos los scopes inválidos, o nil.
func CheckScopes(scopes []string) error {
	var bad []string
	for _, s := range scopes {
		if !ValidScopeName(s) {
			bad = append(bad, fmt.Sprintf("%q", s))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("invalid scope names: %s", strings.Join(bad, ", "))
	}
	return nil
}
