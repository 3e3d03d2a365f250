package security

import (
	"testing"
)

func TestEncryptorRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}

	enc, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor() error = %v", err)
	}
	if !enc.IsEnabled() {
		t.Fatal("encryptor with key should be enabled")
	}

	plaintext := "refresh-token-value-1234567890"
	sealed, err := enc.Seal(plaintext)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if sealed == plaintext {
		t.Error("Seal() returned plaintext unchanged")
	}

	opened, err := enc.Open(sealed)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if opened != plaintext {
		t.Errorf("Open() = %q, want %q", opened, plaintext)
	}
}

func TestEncryptorDisabled(t *testing.T) {
	enc, err := NewEncryptor(nil)
	if err != nil {
		t.Fatalf("NewEncryptor(nil) error = %v", err)
	}
	if enc.IsEnabled() {
		t.Error("encryptor without key should be disabled")
	}

	sealed, err := enc.Seal("value")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if sealed != "value" {
		t.Errorf("disabled Seal() = %q, want passthrough", sealed)
	}
}

func TestNewEncryptorInvalidKeyLength(t *testing.T) {
	if _, err := NewEncryptor([]byte("too-short")); err == nil {
		t.Error("NewEncryptor() accepted a short key")
	}
}

func TestNewEncryptorFromSecret(t *testing.T) {
	a, err := NewEncryptorFromSecret("install-secret", "widget-1")
	if err != nil {
		t.Fatalf("NewEncryptorFromSecret() error = %v", err)
	}
	if !a.IsEnabled() {
		t.Fatal("derived encryptor should be enabled")
	}

	sealed, err := a.Seal("refresh-token")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	// Same secret + widget id derives the same key.
	same, err := NewEncryptorFromSecret("install-secret", "widget-1")
	if err != nil {
		t.Fatalf("NewEncryptorFromSecret() error = %v", err)
	}
	opened, err := same.Open(sealed)
	if err != nil {
		t.Fatalf("Open() with re-derived key error = %v", err)
	}
	if opened != "refresh-token" {
		t.Errorf("Open() = %q, want %q", opened, "refresh-token")
	}

	// A different widget id derives a different key.
	other, err := NewEncryptorFromSecret("install-secret", "widget-2")
	if err != nil {
		t.Fatalf("NewEncryptorFromSecret() error = %v", err)
	}
	if _, err := other.Open(sealed); err == nil {
		t.Error("Open() with a different widget id should fail")
	}
}

func TestEncryptorFromEmptySecretDisabled(t *testing.T) {
	enc, err := NewEncryptorFromSecret("", "widget-1")
	if err != nil {
		t.Fatalf("NewEncryptorFromSecret() error = %v", err)
	}
	if enc.IsEnabled() {
		t.Error("empty secret should disable encryption")
	}
}

func TestOpenRejectsTampered(t *testing.T) {
	key, _ := GenerateKey()
	enc, _ := NewEncryptor(key)

	sealed, err := enc.Seal("value")
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}

	tampered := "A" + sealed[1:]
	if tampered == sealed {
		tampered = "B" + sealed[1:]
	}
	if _, err := enc.Open(tampered); err == nil {
		t.Error("Open() accepted tampered ciphertext")
	}
}
