package backup

import (
	"bytes"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte(`{"users":[{"id":1,"email":"a@example.com"}]}`)

	sealed, err := encryptSnapshot(plaintext, "passphrase")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(sealed, []byte("a@example.com")) {
		t.Error("ciphertext leaks plaintext")
	}

	opened, err := decryptSnapshot(sealed, "passphrase")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(opened, plaintext) {
		t.Error("round trip mismatch")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	sealed, err := encryptSnapshot([]byte("secret"), "right")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := decryptSnapshot(sealed, "wrong"); err == nil {
		t.Error("expected error for wrong passphrase")
	}
}

func TestDecryptTruncated(t *testing.T) {
	_, err := decryptSnapshot([]byte("short"), "pass")
	if err == nil || !strings.Contains(err.Error(), "too small") {
		t.Errorf("err = %v, want too-small error", err)
	}
}

func TestEncryptUniqueSaltAndNonce(t *testing.T) {
	a, err := encryptSnapshot([]byte("same"), "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	b, err := encryptSnapshot([]byte("same"), "pass")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same input produced identical output")
	}
}
