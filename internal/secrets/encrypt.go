// Package secrets provides reversible authenticated encryption for
// sensitive payloads (bank details, identity documents) before they reach
// persistence.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keySize   = 32
	nonceSize = 12
	tagSize   = 16
	saltSize  = 16
	// OWASP-recommended floor for PBKDF2-HMAC-SHA256.
	kdfIterations = 210_000
)

// ErrDecryptionFailed covers tampering and wrong keys alike; the two are
// deliberately indistinguishable to callers.
var ErrDecryptionFailed = errors.New("secrets: déchiffrement impossible")

// Payload is one encrypted value. Salt is empty when the system key was
// used instead of a password-derived one.
type Payload struct {
	Ciphertext []byte
	IV         []byte
	AuthTag    []byte
	Salt       []byte
}

// Service encrypts with AES-256-GCM. A fresh random nonce is drawn per
// call, so equal plaintexts never produce equal ciphertexts.
type Service struct {
	masterKey []byte
}

// NewService parses the hex-encoded 32-byte system key.
func NewService(hexKey string) (*Service, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("secrets: invalid key encoding: %w", err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("secrets: key must be %d bytes, got %d", keySize, len(key))
	}
	return &Service{masterKey: key}, nil
}

// Encrypt seals plaintext. When password is non-empty the key is derived
// from it with PBKDF2-SHA256 and a fresh salt; otherwise the system key
// is used.
func (s *Service) Encrypt(plaintext []byte, password string) (Payload, error) {
	key := s.masterKey
	var salt []byte
	if password != "" {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return Payload{}, fmt.Errorf("secrets: salt: %w", err)
		}
		key = deriveKey(password, salt)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return Payload{}, err
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return Payload{}, fmt.Errorf("secrets: nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - tagSize
	return Payload{
		Ciphertext: sealed[:split],
		IV:         nonce,
		AuthTag:    sealed[split:],
		Salt:       salt,
	}, nil
}

// Decrypt opens a payload. The integrity tag is verified during
// decryption; a flipped bit anywhere in ciphertext or tag, or a wrong
// password, yields ErrDecryptionFailed rather than garbage.
func (s *Service) Decrypt(p Payload, password string) ([]byte, error) {
	key := s.masterKey
	if password != "" {
		if len(p.Salt) != saltSize {
			return nil, ErrDecryptionFailed
		}
		key = deriveKey(password, p.Salt)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	if len(p.IV) != nonceSize || len(p.AuthTag) != tagSize {
		return nil, ErrDecryptionFailed
	}
	sealed := make([]byte, 0, len(p.Ciphertext)+tagSize)
	sealed = append(sealed, p.Ciphertext...)
	sealed = append(sealed, p.AuthTag...)
	plaintext, err := gcm.Open(nil, p.IV, sealed, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, kdfIterations, keySize, sha256.New)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("secrets: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: gcm: %w", err)
	}
	return gcm, nil
}
