package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidScopeName(t *testing.T) {
	valid := []string{
		"a",
		"admin",
		"read:documents",
		"write:files",
		"a_b-c.d:scope2",
		"a" + strings.Repeat("x", 62) + "b", // 64
	}
	for _, v := range valid {
		assert.True(t, ValidScopeName(v), v)
	}

	invalid := []string{
		"",
		":lead",
		"trail:",
		"read documents",
		"READ:documents",
		"semicolon;hack",
		strings.Repeat("a", 65),
	}
	for _, v := range invalid {
		assert.False(t, ValidScopeName(v), v)
	}
}

func TestCheckScopes(t *testing.T) {
	require.NoError(t, CheckScopes(nil))
	require.NoError(t, CheckScopes([]string{"read:documents", "write:documents"}))

	err := CheckScopes([]string{"read:documents", "BAD", "x;y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"BAD"`)
	assert.Contains(t, err.Error(), `"x;y"`)
	assert.NotContains(t, err.Error(), "read:documents")
}
