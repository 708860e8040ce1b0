package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDisplayName(t *testing.T) {
	assert.NoError(t, ValidateDisplayName("Alice"))
	assert.NoError(t, ValidateDisplayName("Renée 99"))

	err := ValidateDisplayName("")
	assert.ErrorContains(t, err, "NAME_INVALID")

	err = ValidateDisplayName(strings.Repeat("x", 21))
	assert.ErrorContains(t, err, "too long")

	// Exactly at the limit is fine, even multi-byte.
	assert.NoError(t, ValidateDisplayName(strings.Repeat("é", 20)))

	err = ValidateDisplayName("bad\x00name")
	assert.ErrorContains(t, err, "unprintable")
}

func TestValidateLobbyName(t *testing.T) {
	assert.NoError(t, ValidateLobbyName("room1"))

	err := ValidateLobbyName("")
	assert.ErrorContains(t, err, "LOBBY_NAME_INVALID")

	err = ValidateLobbyName(strings.Repeat("x", 33))
	assert.ErrorContains(t, err, "too long")

	err = ValidateLobbyName("room\n1")
	assert.ErrorContains(t, err, "unprintable")
}

func TestNormalizeLobbyName(t *testing.T) {
	assert.Equal(t, "room1", NormalizeLobbyName("  room1 "))
	assert.Equal(t, "two words", NormalizeLobbyName("two words"))
	assert.Equal(t, "", NormalizeLobbyName("   "))
}
