// Package secretkey implements password-at-rest encryption for account
// credentials: AES-256-GCM keyed by a key file created on first use.
package secretkey

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// KeySize is the required size for AES-256 keys (32 bytes).
	KeySize = 32
	// NonceSize is the size of the GCM nonce.
	NonceSize = 12
	// versionPrefix tags ciphertext with the key version used to produce it.
	versionPrefix = "ENC[v%d]:"
)

var (
	ErrInvalidKey        = errors.New("secretkey: key must be 32 bytes")
	ErrInvalidCiphertext = errors.New("secretkey: malformed ciphertext")
	ErrDecryptionFailed  = errors.New("secretkey: decryption failed")
)

// Encryptor performs AES-256-GCM encrypt/decrypt for one key version.
type Encryptor struct {
	key     []byte
	version int
}

// NewEncryptor builds an Encryptor from a raw 32-byte key.
func NewEncryptor(key []byte, version int) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return &Encryptor{key: key, version: version}, nil
}

// Encrypt returns "ENC[vN]:base64(nonce||ciphertext)".
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return fmt.Sprintf(versionPrefix, e.version) + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. Per spec.md §8's round-trip property, malformed
// input is returned as-is by the caller (KeyManager), not by Encryptor.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	if !strings.HasPrefix(ciphertext, "ENC[v") {
		return "", ErrInvalidCiphertext
	}
	colon := strings.Index(ciphertext, "]:")
	if colon == -1 {
		return "", ErrInvalidCiphertext
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext[colon+2:])
	if err != nil {
		return "", fmt.Errorf("base64 decode: %w", err)
	}
	if len(data) < NonceSize {
		return "", ErrInvalidCiphertext
	}
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("create gcm: %w", err)
	}
	nonce, ct := data[:NonceSize], data[NonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// ParseVersion extracts the key version from a ciphertext, or 0 if malformed.
func ParseVersion(ciphertext string) int {
	if !strings.HasPrefix(ciphertext, "ENC[v") {
		return 0
	}
	var version int
	if _, err := fmt.Sscanf(ciphertext, "ENC[v%d]:", &version); err != nil {
		return 0
	}
	return version
}

// GenerateKey returns KeySize random bytes suitable for AES-256.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}
