package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService  = "shimharness"
	keyringTokenKey = "bot-token"
)

var ErrTokenNotFound = errors.New("bot token not found in keyring")

// LoadToken reads the bot token stored by SaveToken.
func LoadToken() (string, error) {
	token, err := keyring.Get(keyringService, keyringTokenKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read keyring: %w", err)
	}
	return token, nil
}

// SaveToken stores the bot token in the OS keyring so it need not live in
// the environment.
func SaveToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("token is empty")
	}
	if err := keyring.Set(keyringService, keyringTokenKey, token); err != nil {
		return fmt.Errorf("failed to write keyring: %w", err)
	}
	return nil
}

func DeleteToken() error {
	err := keyring.Delete(keyringService, keyringTokenKey)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete keyring entry: %w", err)
	}
	return nil
}

func MaskSecret(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 5 {
		return "*****" + value
	}
	return "*****" + value[len(value)-5:]
}
