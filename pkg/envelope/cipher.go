// Package envelope encrypts serialized documents and tells encrypted content
// apart from plaintext JSON in the same collection.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrDecryption is returned when a payload cannot be decrypted with the
	// configured key, either because the key differs or the data is corrupt.
	ErrDecryption = errors.New("decryption failed")
	// ErrNoKey is returned when encrypted content is found but no key is configured.
	ErrNoKey = errors.New("encrypted data found but no key provided")
)

// Payload is the wire form of encrypted content.
type Payload struct {
	Encrypted bool   `json:"encrypted"`
	Data      string `json:"data"`
	IV        string `json:"iv"`
}

// Cipher encrypts with AES-256-GCM under a key derived from a passphrase.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewCipher derives a 32 byte key from the passphrase with SHA-256.
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("encryption passphrase is required")
	}
	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("failed to create block cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

// Encrypt seals plaintext under a fresh random IV, so equal inputs never
// produce equal payloads.
func (c *Cipher) Encrypt(plaintext string) (Payload, error) {
	iv := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(c.rand, iv); err != nil {
		return Payload{}, fmt.Errorf("failed to generate iv: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	return Payload{
		Encrypted: true,
		Data:      base64.StdEncoding.EncodeToString(sealed),
		IV:        base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Decrypt opens a payload produced by Encrypt with the same passphrase.
func (c *Cipher) Decrypt(p Payload) (string, error) {
	if !p.Encrypted {
		return "", fmt.Errorf("%w: payload is not marked encrypted", ErrDecryption)
	}
	iv, err := base64.StdEncoding.DecodeString(p.IV)
	if err != nil || len(iv) != c.aead.NonceSize() {
		return "", fmt.Errorf("%w: malformed iv", ErrDecryption)
	}
	sealed, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		return "", fmt.Errorf("%w: malformed ciphertext", ErrDecryption)
	}
	plain, err := c.aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: wrong key or corrupted data", ErrDecryption)
	}
	return string(plain), nil
}
