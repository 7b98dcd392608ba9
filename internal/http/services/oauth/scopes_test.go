package oauth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopePredicates(t *testing.T) {
	t.Parallel()

	granted := []string{"a"}
	assert.False(t, HasAllScopes(granted, []string{"a", "b"}))
	assert.True(t, HasAnyScope(granted, []string{"a", "b"}))
	assert.True(t, HasScope(granted, "a"))
	assert.False(t, HasScope(granted, "b"))
	assert.False(t, HasAnyScope(granted, nil))
	assert.True(t, HasAllScopes(granted, nil))
}

func TestParseScopes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"read:documents", "bogus:scope"}, ParseScopes(" read:documents  bogus:scope "))
	assert.Equal(t, []string{"a", "b"}, ParseScopes("a,b,a"))
	assert.Empty(t, ParseScopes(""))
}

func TestGrantScopes(t *testing.T) {
	t.Parallel()

	allowed := []string{"read:documents", "write:documents"}
	assert.Equal(t, []string{"read:documents"}, GrantScopes([]string{"read:documents", "bogus:scope"}, allowed))
	assert.Equal(t, allowed, GrantScopes(nil, allowed))
	assert.Equal(t, allowed, GrantScopes([]string{"bogus"}, allowed))
}
