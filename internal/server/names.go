package server

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxDisplayNameLength = 20
	maxLobbyNameLength   = 32
)

// ValidateDisplayName checks the name a player announces with SetName.
func ValidateDisplayName(name string) error {
	if name == "" {
		return errors.New("NAME_INVALID: name cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return fmt.Errorf("NAME_INVALID: name too long (max %d characters)", maxDisplayNameLength)
	}
	if !printable(name) {
		return errors.New("NAME_INVALID: name contains unprintable characters")
	}
	return nil
}

// ValidateLobbyName checks a user-chosen lobby name after normalization.
func ValidateLobbyName(name string) error {
	if name == "" {
		return errors.New("LOBBY_NAME_INVALID: lobby name cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxLobbyNameLength {
		return fmt.Errorf("LOBBY_NAME_INVALID: lobby name too long (max %d characters)", maxLobbyNameLength)
	}
	if !printable(name) {
		return errors.New("LOBBY_NAME_INVALID: lobby name contains unprintable characters")
	}
	return nil
}

// NormalizeLobbyName trims surrounding whitespace so " room1" and
// "room1" key the same lobby.
func NormalizeLobbyName(name string) string {
	return strings.TrimSpace(name)
}

func printable(s string) bool {
	for _, ch := range s {
		if !unicode.IsPrint(ch) {
			return false
		}
	}
	return true
}
