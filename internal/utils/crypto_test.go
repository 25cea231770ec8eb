package utils

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateClaimCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}-[A-HJ-NP-Z2-9]{4}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateClaimCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		assert.NotContains(t, code, "0")
		assert.NotContains(t, code, "O")
		assert.NotContains(t, code, "1")
		assert.NotContains(t, code, "I")
		seen[code] = true
	}
	// 32^12 codes; a hundred draws colliding would mean a broken generator.
	assert.Len(t, seen, 100)
}

func TestGenerateRandomString(t *testing.T) {
	s, err := GenerateRandomString(32)
	require.NoError(t, err)
	assert.Len(t, s, 32)
}

func TestHashStringIsDeterministic(t *testing.T) {
	assert.Equal(t, HashString("abc"), HashString("abc"))
	assert.NotEqual(t, HashString("abc"), HashString("abd"))
	assert.Len(t, HashString("abc"), 64)
}

func TestValidateSerialCode(t *testing.T) {
	valid := []string{"TLM-2026-000001", "AB1234", "GOLD-5G-000042"}
	for _, s := range valid {
		assert.NoError(t, ValidateSerialCode(s), s)
	}

	invalid := []string{
		"",
		"ABC",
		"abc-123456",
		"-ABC123456",
		"ABC123456-",
		"ABC 123456",
		"ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456",
	}
	for _, s := range invalid {
		assert.Error(t, ValidateSerialCode(s), "%q should be rejected", s)
	}
}
