package credentials

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "geoharvest"

// Keyring resolves from the system keyring (Secret Service, Keychain, ...)
type Keyring struct{}

func (Keyring) Resolve(key string) (string, error) {
	v, err := keyring.Get(keyringService, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", MissingError{Key: key}
		}
		return "", fmt.Errorf("Keyring.Resolve: %w", err)
	}
	if v == "" {
		return "", MissingError{Key: key}
	}
	return v, nil
}

// Set stores a secret in the system keyring
func (Keyring) Set(key, value string) error {
	if err := keyring.Set(keyringService, key, value); err != nil {
		return fmt.Errorf("Keyring.Set: %w", err)
	}
	return nil
}

// Delete removes a secret from the system keyring
func (Keyring) Delete(key string) error {
	if err := keyring.Delete(keyringService, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("Keyring.Delete: %w", err)
	}
	return nil
}

// Keys lists the secrets the services may need
func Keys() []string {
	return []string{
		CopernicusUsername,
		CopernicusPassword,
		EarthdataToken,
		AWSAccessKeyID,
		AWSSecretAccessKey,
		FTPUsername,
		FTPPassword,
	}
}
