package secrets

import (
	"fmt"

	"github.com/nextlevelbuilder/discordlite/internal/crypto"
)

// SealedStore encrypts values before handing them to another Store.
type SealedStore struct {
	inner  Store
	sealer *crypto.Sealer
}

// NewSealedStore wraps inner with AES-GCM using key.
func NewSealedStore(inner Store, key string) (*SealedStore, error) {
	s, err := crypto.NewSealer(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}
	return &SealedStore{inner: inner, sealer: s}, nil
}

func (s *SealedStore) Save(key, value string) error {
	sealed, err := s.sealer.Seal(value)
	if err != nil {
		return fmt.Errorf("secrets: seal %s: %w", key, err)
	}
	return s.inner.Save(key, sealed)
}

func (s *SealedStore) Retrieve(key string) (string, bool, error) {
	v, ok, err := s.inner.Retrieve(key)
	if err != nil || !ok {
		return "", ok, err
	}
	plain, err := s.sealer.Open(v)
	if err != nil {
		return "", false, fmt.Errorf("secrets: open %s: %w", key, err)
	}
	return plain, true, nil
}

func (s *SealedStore) Delete(key string) error {
	return s.inner.Delete(key)
}
