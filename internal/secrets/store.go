package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrNotFound is returned by backends for unknown credential names.
var ErrNotFound = errors.New("credential not found")

// Backend stores sealed, base64-encoded credential values.
type Backend interface {
	SaveSecret(ctx context.Context, name, sealed string) error
	GetSecret(ctx context.Context, name string) (string, error)
	DeleteSecret(ctx context.Context, name string) error
	ListSecrets(ctx context.Context) ([]string, error)
}

// Store seals values before handing them to the backend.
type Store struct {
	backend Backend
	cipher  *Cipher
}

// NewStore creates a store over backend.
func NewStore(backend Backend, cipher *Cipher) *Store {
	return &Store{backend: backend, cipher: cipher}
}

// Set encrypts and stores a credential.
func (s *Store) Set(ctx context.Context, name string, value []byte) error {
	if name == "" {
		return fmt.Errorf("credential name is required")
	}
	sealed, err := s.cipher.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt credential: %w", err)
	}
	return s.backend.SaveSecret(ctx, name, base64.StdEncoding.EncodeToString(sealed))
}

// Get retrieves and decrypts a credential.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	encoded, err := s.backend.GetSecret(ctx, name)
	if err != nil {
		return nil, err
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	plaintext, err := s.cipher.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential: %w", err)
	}
	return plaintext, nil
}

// Delete removes a credential.
func (s *Store) Delete(ctx context.Context, name string) error {
	return s.backend.DeleteSecret(ctx, name)
}

// List returns the stored credential names.
func (s *Store) List(ctx context.Context) ([]string, error) {
	return s.backend.ListSecrets(ctx)
}
