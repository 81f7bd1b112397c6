// Package secrets seals credentials stored in the document store.
package secrets

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

const (
	sealedPrefix = "sealed:v1:"
	nonceSize    = 24
	keySize      = 32

	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

var (
	// ErrNoPassphrase is returned when a sealer is built without a passphrase.
	ErrNoPassphrase = errors.New("secrets: passphrase is required")
	// ErrCorrupt is returned when a sealed value cannot be opened.
	ErrCorrupt = errors.New("secrets: sealed value is corrupt or was sealed with another key")
)

// Sealer encrypts short secrets with a key derived from a passphrase.
type Sealer struct {
	key  [keySize]byte
	rand io.Reader
}

// NewSealer derives the sealing key from passphrase and salt with scrypt.
func NewSealer(passphrase, salt string) (*Sealer, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, ErrNoPassphrase
	}
	derived, err := scrypt.Key([]byte(passphrase), []byte(salt), scryptN, scryptR, scryptP, keySize)
	if err != nil {
		return nil, fmt.Errorf("secrets: derive key: %w", err)
	}
	s := &Sealer{rand: rand.Reader}
	copy(s.key[:], derived)
	return s, nil
}

// Sealed reports whether value carries the sealed prefix.
func Sealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}

// Seal encrypts plaintext. Sealing an already sealed value is a no-op.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if Sealed(plaintext) {
		return plaintext, nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(s.rand, nonce[:]); err != nil {
		return "", fmt.Errorf("secrets: read nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(box), nil
}

// Open decrypts a sealed value. Values without the sealed prefix were
// stored before sealing was enabled and are returned unchanged.
func (s *Sealer) Open(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, sealedPrefix)
	if !ok {
		return value, nil
	}
	box, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil || len(box) < nonceSize+secretbox.Overhead {
		return "", ErrCorrupt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plaintext, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrCorrupt
	}
	return string(plaintext), nil
}
