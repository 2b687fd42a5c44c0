package secrets

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore keeps secrets in the platform keychain (macOS Keychain,
// Secret Service on Linux, Windows Credential Manager).
type KeyringStore struct {
	service string
}

func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = DefaultServiceName
	}
	return &KeyringStore{service: service}
}

func (k *KeyringStore) Save(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	// keyring.Set overwrites an existing item.
	if err := keyring.Set(k.service, key, value); err != nil {
		return fmt.Errorf("keyring save %s: %w", key, err)
	}
	return nil
}

func (k *KeyringStore) Retrieve(key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	value, err := keyring.Get(k.service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("keyring retrieve %s: %w", key, err)
	}
	return value, true, nil
}

func (k *KeyringStore) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	err := keyring.Delete(k.service, key)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("keyring delete %s: %w", key, err)
	}
	return nil
}
