package broker

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KeySize is the size of the AES-256 key in bytes.
	KeySize = 32
	// PBKDF2Iterations is the number of iterations for key derivation.
	PBKDF2Iterations = 100000
)

var (
	ErrInvalidKey        = errors.New("invalid encryption key: must be at least 32 characters")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrDecryptionFailed  = errors.New("decryption failed")
)

// Encryptor encrypts session artifacts at rest.
type Encryptor struct {
	masterKey []byte
}

// NewEncryptor creates a new Encryptor with the given master secret.
// The secret should be at least 32 characters for security.
func NewEncryptor(secret string) (*Encryptor, error) {
	if len(secret) < 32 {
		return nil, ErrInvalidKey
	}
	// Use SHA-256 to normalize the key length
	hash := sha256.Sum256([]byte(secret))
	return &Encryptor{masterKey: hash[:]}, nil
}

// DeriveKey derives a unique encryption key using PBKDF2 with the identity
// label as additional salt, so identities never share a key.
func (e *Encryptor) DeriveKey(label string) []byte {
	salt := fmt.Sprintf("identity:%s", label)
	return pbkdf2.Key(e.masterKey, []byte(salt), PBKDF2Iterations, KeySize, sha256.New)
}

// Encrypt encrypts plaintext using AES-256-GCM with an identity-specific
// key. Returns the ciphertext and the nonce (IV) used for encryption.
func (e *Encryptor) Encrypt(plaintext []byte, label string) (ciphertext, nonce []byte, err error) {
	key := e.DeriveKey(label)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("creating GCM: %w", err)
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// Decrypt decrypts ciphertext using AES-256-GCM with an identity-specific
// key.
func (e *Encryptor) Decrypt(ciphertext, nonce []byte, label string) ([]byte, error) {
	if len(ciphertext) == 0 || len(nonce) == 0 {
		return nil, ErrInvalidCiphertext
	}

	key := e.DeriveKey(label)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	if len(nonce) != gcm.NonceSize() {
		return nil, ErrInvalidCiphertext
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}

	return plaintext, nil
}
