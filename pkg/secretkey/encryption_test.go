package secretkey

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	enc, err := NewEncryptor(key, 1)
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	cases := []string{"", "hunter2", "p@ssw0rd with spaces", "你好世界"}
	for _, plaintext := range cases {
		ciphertext, err := enc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("encrypt(%q): %v", plaintext, err)
		}
		got, err := enc.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("decrypt(%q): %v", ciphertext, err)
		}
		if got != plaintext {
			t.Errorf("round trip mismatch: want %q got %q", plaintext, got)
		}
	}
}

func TestNewEncryptorRejectsWrongKeySize(t *testing.T) {
	if _, err := NewEncryptor([]byte("too-short"), 1); err != ErrInvalidKey {
		t.Fatalf("want ErrInvalidKey, got %v", err)
	}
}

func TestKeyManagerCreatesKeyfileOnFirstUse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.key")

	km, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	ciphertext, err := km.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	km2, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := km2.Decrypt(ciphertext); got != "hunter2" {
		t.Fatalf("want hunter2, got %q", got)
	}
}

func TestKeyManagerDecryptGarbageFallsBackToInput(t *testing.T) {
	dir := t.TempDir()
	km, err := Load(filepath.Join(dir, "secret.key"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	for _, garbage := range []string{"not-encrypted", "", "ENC[v1]:not-base64!!"} {
		if got := km.Decrypt(garbage); got != garbage {
			t.Errorf("decrypt(%q) = %q, want unchanged input", garbage, got)
		}
	}
}

func TestKeyManagerRotationInvalidatesOldCiphertext(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secret.key")

	km, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ciphertext, err := km.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove keyfile: %v", err)
	}

	km2, err := Load(path)
	if err != nil {
		t.Fatalf("reload after rotation: %v", err)
	}
	if got := km2.Decrypt(ciphertext); got != ciphertext {
		t.Fatalf("rotated key should fail closed to the original ciphertext, got %q", got)
	}
}
