// Package security holds the card number encryption engine, token hashing and
// password hashing.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/Dan9191/card-service/internal/apperror"
)

const (
	// KeySize is the required AES-256 key length in bytes
	KeySize = 32
	// NonceSize is the GCM nonce length in bytes
	NonceSize = 12
)

// CryptoEngine encrypts card numbers with AES-256-GCM.
// The envelope is base64(nonce || ciphertext || tag).
type CryptoEngine struct {
	aead cipher.AEAD
}

// NewCryptoEngine builds an engine from a base64 encoded 32-byte key.
// Any other key is rejected so the service refuses to start.
func NewCryptoEngine(keyBase64 string) (*CryptoEngine, error) {
	if keyBase64 == "" {
		return nil, apperror.New(apperror.KindCryptoInitialization, "encryption key is not configured")
	}
	key, err := base64.StdEncoding.DecodeString(keyBase64)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindCryptoInitialization, "encryption key is not valid base64", err)
	}
	if len(key) != KeySize {
		return nil, apperror.New(apperror.KindCryptoInitialization,
			fmt.Sprintf("invalid AES key length: %d bytes, expected %d", len(key), KeySize))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindCryptoInitialization, "failed to create cipher", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, NonceSize)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindCryptoInitialization, "failed to create GCM", err)
	}
	return &CryptoEngine{aead: aead}, nil
}

func (e *CryptoEngine) mustAEAD() cipher.AEAD {
	if e == nil || e.aead == nil {
		panic("security: CryptoEngine used before initialization")
	}
	return e.aead
}

// Encrypt seals plaintext under a fresh random nonce
func (e *CryptoEngine) Encrypt(plaintext string) (string, error) {
	aead := e.mustAEAD()

	nonce := make([]byte, NonceSize, NonceSize+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", apperror.Wrap(apperror.KindEncryption, "failed to generate nonce", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens an envelope produced by Encrypt. Malformed, truncated or
// tampered envelopes return a Decryption error and no plaintext.
func (e *CryptoEngine) Decrypt(envelope string) (string, error) {
	aead := e.mustAEAD()

	data, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", apperror.Wrap(apperror.KindDecryption, "decryption failed", err)
	}
	if len(data) < NonceSize+aead.Overhead() {
		return "", apperror.New(apperror.KindDecryption, "decryption failed")
	}

	nonce, ciphertext := data[:NonceSize], data[NonceSize:]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", apperror.Wrap(apperror.KindDecryption, "decryption failed", err)
	}
	return string(plain), nil
}
