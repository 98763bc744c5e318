package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

const sealedPrefix = "enc:"

var ErrInvalidKey = errors.New("encryption key must be 32 bytes")

// Sealer encrypts short secrets (OAuth tokens) with AES-256-GCM. A nil *Sealer
// passes values through unchanged so callers need no special casing when no
// key is configured.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(key string) (*Sealer, error) {
	if len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil || plaintext == "" {
		return plaintext, nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	ciphertext := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Open reverses Seal. Values without the sealed prefix are returned as is,
// which keeps rows written before a key was configured readable.
func (s *Sealer) Open(value string) (string, error) {
	if s == nil || !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", err
	}
	nonceSize := s.aead.NonceSize()
	if len(raw) < nonceSize {
		return "", errors.New("ciphertext too short")
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
