package secrets

import (
	"strings"
	"testing"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	t.Setenv(keyEnv, "0123456789abcdef0123456789abcdef")
	t.Setenv(prevKeyEnv, "")

	codec := NewFromEnv()
	if !codec.Ready() {
		t.Fatalf("codec not ready with key set")
	}

	ct, err := codec.Encrypt("pub_abc123")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if strings.Contains(ct, "pub_abc123") {
		t.Fatalf("ciphertext leaks plaintext: %s", ct)
	}
	pt, err := codec.Decrypt(ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if pt != "pub_abc123" {
		t.Fatalf("plaintext=%q want=pub_abc123", pt)
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	t.Setenv(keyEnv, "0123456789abcdef0123456789abcdef")
	t.Setenv(prevKeyEnv, "")
	ct, err := NewFromEnv().Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	t.Setenv(keyEnv, "fedcba9876543210fedcba9876543210")
	if _, err := NewFromEnv().Decrypt(ct); err != ErrDecrypt {
		t.Fatalf("err=%v want=ErrDecrypt", err)
	}
}

func TestDecrypt_PrevKeyRotation(t *testing.T) {
	t.Setenv(keyEnv, "0123456789abcdef0123456789abcdef")
	t.Setenv(prevKeyEnv, "")
	ct, err := NewFromEnv().Encrypt("secret")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	// New primary, old key demoted to prev: old rows still open.
	t.Setenv(keyEnv, "fedcba9876543210fedcba9876543210")
	t.Setenv(prevKeyEnv, "0123456789abcdef0123456789abcdef")
	pt, err := NewFromEnv().Decrypt(ct)
	if err != nil {
		t.Fatalf("decrypt with prev key: %v", err)
	}
	if pt != "secret" {
		t.Fatalf("plaintext=%q want=secret", pt)
	}
}

func TestDecrypt_MalformedEnvelope(t *testing.T) {
	t.Setenv(keyEnv, "0123456789abcdef0123456789abcdef")
	t.Setenv(prevKeyEnv, "")
	codec := NewFromEnv()

	for _, ct := range []string{
		"not json",
		`{"enc":"unknown-v9","nonce":"AA==","data":"AA=="}`,
		`{"enc":"aes-gcm-v1","nonce":"","data":""}`,
		`{"enc":"aes-gcm-v1","nonce":"!!","data":"AA=="}`,
	} {
		if _, err := codec.Decrypt(ct); err != ErrDecrypt {
			t.Fatalf("Decrypt(%q) err=%v want=ErrDecrypt", ct, err)
		}
	}
}

func TestEncrypt_NoKeyConfigured(t *testing.T) {
	t.Setenv(keyEnv, "")
	t.Setenv(prevKeyEnv, "")
	codec := NewFromEnv()
	if codec.Ready() {
		t.Fatalf("codec ready without key")
	}
	if _, err := codec.Encrypt("x"); err != ErrNoKey {
		t.Fatalf("err=%v want=ErrNoKey", err)
	}
	if _, err := codec.Decrypt("{}"); err != ErrNoKey {
		t.Fatalf("err=%v want=ErrNoKey", err)
	}
}
