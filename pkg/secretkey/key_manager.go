package secretkey

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/denisbrodbeck/machineid"
)

const keyVersion = 1

// KeyManager owns the single process-bound encryption key loaded from (or
// created in) a keyfile. The keyfile is created on first use with 0600
// perms and holds the key base64-encoded (see Load). Replacing the keyfile
// leaves passwords encrypted under the old key undecryptable: Decrypt then
// returns the stored ciphertext unchanged, and KeyManager keeps no earlier
// plaintext to fall back on.
type KeyManager struct {
	mu        sync.RWMutex
	enc       *Encryptor
	path      string
	machineID string
}

// Load opens the keyfile at path, creating it (with a fresh random key) if it
// does not exist. The file's first line is the base64 key; the second line
// is a machine-id fingerprint used only to warn on keyfile portability, never
// to block loading.
func Load(path string) (*KeyManager, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create keyfile directory: %w", err)
	}

	id, _ := machineid.ID() // best-effort; empty string if unavailable

	if _, err := os.Stat(path); os.IsNotExist(err) {
		key, err := GenerateKey()
		if err != nil {
			return nil, err
		}
		if err := writeKeyfile(path, key, id); err != nil {
			return nil, err
		}
		enc, err := NewEncryptor(key, keyVersion)
		if err != nil {
			return nil, err
		}
		return &KeyManager{enc: enc, path: path, machineID: id}, nil
	}

	key, fingerprint, err := readKeyfile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyfile: %w", err)
	}
	if fingerprint != "" && id != "" && fingerprint != id {
		log.Printf("secretkey: keyfile %s was created on a different host; stored passwords may fail to decrypt", path)
	}
	enc, err := NewEncryptor(key, keyVersion)
	if err != nil {
		return nil, err
	}
	return &KeyManager{enc: enc, path: path, machineID: id}, nil
}

func writeKeyfile(path string, key []byte, fingerprint string) error {
	var b strings.Builder
	b.WriteString(base64.StdEncoding.EncodeToString(key))
	b.WriteString("\n")
	b.WriteString(fingerprint)
	b.WriteString("\n")
	return os.WriteFile(path, []byte(b.String()), 0o600)
}

func readKeyfile(path string) (key []byte, fingerprint string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, "", ErrInvalidKey
	}
	key, err = base64.StdEncoding.DecodeString(strings.TrimSpace(scanner.Text()))
	if err != nil {
		return nil, "", fmt.Errorf("decode key: %w", err)
	}
	if scanner.Scan() {
		fingerprint = strings.TrimSpace(scanner.Text())
	}
	return key, fingerprint, nil
}

// Encrypt encrypts a plaintext password for storage in the config file.
func (km *KeyManager) Encrypt(plaintext string) (string, error) {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.enc.Encrypt(plaintext)
}

// Decrypt decrypts a stored password. Per spec.md §8's round-trip property
// ("decrypt(garbage) == garbage"), any failure to parse or authenticate the
// ciphertext returns the input unchanged rather than an error, so a config
// edited by hand or a password left in plaintext (pre-encryption fallback)
// still works.
func (km *KeyManager) Decrypt(ciphertext string) string {
	km.mu.RLock()
	defer km.mu.RUnlock()

	if ParseVersion(ciphertext) != keyVersion {
		return ciphertext
	}
	plaintext, err := km.enc.Decrypt(ciphertext)
	if err != nil {
		return ciphertext
	}
	return plaintext
}
