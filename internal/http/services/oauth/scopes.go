package oauth

import (
	"slices"
	"strings"
)

// ParseScopes separa un scope OAuth (espacios) o una lista con comas.
// Descarta vacíos y duplicados conservando el orden.
func ParseScopes(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// GrantScopes calcula requested ∩ allowed (orden de requested); si queda
// vacío retorna allowed completo.
func GrantScopes(requested, allowed []string) []string {
	granted := make([]string, 0, len(requested))
	for _, s := range requested {
		if slices.Contains(allowed, s) && !slices.Contains(granted, s) {
			granted = append(granted, s)
		}
	}
	if len(granted) == 0 {
		return slices.Clone(allowed)
	}
	return granted
}

// HasScope reporta pertenencia.
func HasScope(granted []string, scope string) bool {
	return slices.Contains(granted, scope)
}

// HasAnyScope es true si al menos uno de required está otorgado.
func HasAnyScope(granted, required []string) bool {
	for _, s := range required {
		if slices.Contains(granted, s) {
			return true
		}
	}
	return false
}

// HasAllScopes es true si todos los required están otorgados. Lista vacía → true.
func HasAllScopes(granted, required []string) bool {
	for _, s := range required {
		if !slices.Contains(granted, s) {
			return false
		}
	}
	return true
}
