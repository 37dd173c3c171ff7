// Package secure encrypts values at rest before they reach a key-value
// store, so session tokens never sit in plain text on the device.
package secure

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"

	"nutrifacts/internal/domain"
)

const (
	keySize   = 32
	nonceSize = 24
	infoLabel = "nutrifacts-kv:"
)

// Store wraps a domain.KeyValueStore with authenticated encryption. Each key
// gets its own subkey, so a ciphertext copied to another key does not open.
type Store struct {
	inner  domain.KeyValueStore
	secret []byte
}

var _ domain.KeyValueStore = (*Store)(nil)

// NewStore returns a Store encrypting with subkeys of deviceSecret.
func NewStore(inner domain.KeyValueStore, deviceSecret []byte) (*Store, error) {
	if len(deviceSecret) < keySize {
		return nil, fmt.Errorf("device secret must be at least %d bytes", keySize)
	}
	return &Store{inner: inner, secret: append([]byte(nil), deviceSecret...)}, nil
}

func (s *Store) subkey(name string) (*[keySize]byte, error) {
	h := hkdf.New(sha256.New, s.secret, nil, []byte(infoLabel+name))
	var k [keySize]byte
	if _, err := io.ReadFull(h, k[:]); err != nil {
		return nil, err
	}
	return &k, nil
}

// Get decrypts the value stored under key. A value that fails to open is
// reported as domain.ErrInvalidCredential.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	enc, ok, err := s.inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	raw, err := base64.StdEncoding.DecodeString(enc)
	if err != nil || len(raw) < nonceSize+secretbox.Overhead {
		return "", false, fmt.Errorf("%w: stored %s is corrupt", domain.ErrInvalidCredential, key)
	}
	k, err := s.subkey(key)
	if err != nil {
		return "", false, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, opened := secretbox.Open(nil, raw[nonceSize:], &nonce, k)
	if !opened {
		return "", false, fmt.Errorf("%w: stored %s cannot be decrypted", domain.ErrInvalidCredential, key)
	}
	return string(plain), true, nil
}

// Set encrypts value and stores it under key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	k, err := s.subkey(key)
	if err != nil {
		return err
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return err
	}
	sealed := secretbox.Seal(nonce[:], []byte(value), &nonce, k)
	return s.inner.Set(ctx, key, base64.StdEncoding.EncodeToString(sealed))
}

// Delete removes keys from the underlying store.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	return s.inner.Delete(ctx, keys...)
}

// LoadOrCreateKey reads the device secret at path, generating a random one
// (mode 0600) on first use.
func LoadOrCreateKey(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		if len(b) < keySize {
			return nil, fmt.Errorf("key file %s is too short", path)
		}
		return b, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	b = make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return nil, err
	}
	return b, nil
}
