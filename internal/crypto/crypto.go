// Package crypto seals workflow header values at rest with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// sealedPrefix marks values produced by Seal. Values without it are
// treated as plaintext written before a key was configured.
const sealedPrefix = "v1:"

// ErrMalformed is returned for sealed values that cannot be opened.
var ErrMalformed = errors.New("malformed sealed value")

// Encryptor seals and opens secrets. The zero key yields a no-op Encryptor
// that passes values through unchanged.
type Encryptor struct {
	gcm cipher.AEAD
}

// ParseKey decodes a 64-character hex key. An empty string yields nil.
func ParseKey(hexKey string) ([]byte, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}

// NewEncryptor creates an Encryptor with the given 32-byte key.
// If the key is empty, values are stored as plaintext.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) == 0 {
		return &Encryptor{}, nil
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &Encryptor{gcm: gcm}, nil
}

// Enabled reports whether a key is configured.
func (e *Encryptor) Enabled() bool { return e.gcm != nil }

// Seal encrypts plaintext into a prefixed base64 string.
func (e *Encryptor) Seal(plaintext string) (string, error) {
	if e.gcm == nil {
		return plaintext, nil
	}
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := e.gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Unprefixed values are returned
// unchanged.
func (e *Encryptor) Open(value string) (string, error) {
	if !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	if e.gcm == nil {
		return "", fmt.Errorf("%w: no encryption key configured", ErrMalformed)
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	nonceSize := e.gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: too short", ErrMalformed)
	}
	nonce, ct := data[:nonceSize], data[nonceSize:]
	plaintext, err := e.gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

// SealMap returns a copy of m with every value sealed.
func (e *Encryptor) SealMap(m map[string]string) (map[string]string, error) {
	return e.mapValues(m, e.Seal)
}

// OpenMap returns a copy of m with every value opened.
func (e *Encryptor) OpenMap(m map[string]string) (map[string]string, error) {
	return e.mapValues(m, e.Open)
}

func (e *Encryptor) mapValues(m map[string]string, fn func(string) (string, error)) (map[string]string, error) {
	if m == nil {
		return nil, nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		s, err := fn(v)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}
