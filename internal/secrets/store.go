// Package secrets persists small credentials (the cached session id) in the
// OS keychain, a private file, or memory.
package secrets

import (
	"errors"
	"fmt"
)

// SessionKey is the key the cached session id is stored under.
const SessionKey = "discord_session_id"

// DefaultServiceName namespaces entries in the OS keychain.
const DefaultServiceName = "com.nextlevelbuilder.discordlite"

// Store is a durable key/value store for secrets. Retrieve reports a missing
// key with ok=false and a nil error; deleting a missing key succeeds.
type Store interface {
	Save(key, value string) error
	Retrieve(key string) (value string, ok bool, err error)
	Delete(key string) error
}

// ErrEmptyKey is returned when a key is empty.
var ErrEmptyKey = errors.New("secrets: empty key")

// Backend names accepted by Open.
const (
	BackendKeyring = "keyring"
	BackendFile    = "file"
	BackendMemory  = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend     string // "keyring" (default), "file" or "memory"
	ServiceName string // keychain service for the keyring backend
	Path        string // JSON file for the file backend

	// EncryptionKey, when set, seals values with AES-GCM before they reach
	// the backend. Used with the file backend.
	EncryptionKey string
}

// Open returns the Store selected by opts.
func Open(opts Options) (Store, error) {
	store, err := openBackend(opts)
	if err != nil || opts.EncryptionKey == "" {
		return store, err
	}
	return NewSealedStore(store, opts.EncryptionKey)
}

func openBackend(opts Options) (Store, error) {
	switch opts.Backend {
	case "", BackendKeyring:
		return NewKeyringStore(opts.ServiceName), nil
	case BackendFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("secrets: file backend requires a path")
		}
		return NewFileStore(opts.Path), nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("secrets: unknown backend %q", opts.Backend)
	}
}
