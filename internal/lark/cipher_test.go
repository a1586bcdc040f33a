package lark

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestDecryptEvent_RoundTrip(t *testing.T) {
	t.Parallel()

	plain := `{"challenge":"abc","type":"url_verification"}`
	iv := []byte("fedcba9876543210")
	encrypted, err := encryptEvent([]byte(plain), "secret-key", iv)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	got, err := decryptEvent(encrypted, "secret-key")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if string(got) != plain {
		t.Fatalf("got %q want %q", got, plain)
	}
}

func TestDecryptEvent_WrongKey(t *testing.T) {
	t.Parallel()

	iv := []byte("0000000000000000")
	encrypted, err := encryptEvent([]byte(`{"type":"url_verification"}`), "key-a", iv)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if plain, err := decryptEvent(encrypted, "key-b"); err == nil {
		// CBC with a wrong key usually breaks the padding; if padding
		// happens to validate the output still must not be the original.
		if strings.Contains(string(plain), "url_verification") {
			t.Fatalf("wrong key produced original plaintext")
		}
	}
}

func TestDecryptEvent_NotBase64(t *testing.T) {
	t.Parallel()

	if _, err := decryptEvent("%%%not-base64%%%", "key"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}

func TestDecryptEvent_TooShort(t *testing.T) {
	t.Parallel()

	short := base64.StdEncoding.EncodeToString([]byte("tiny"))
	if _, err := decryptEvent(short, "key"); err == nil {
		t.Fatal("expected error for ciphertext shorter than one block")
	}
}

func TestDecryptEvent_IVOnly(t *testing.T) {
	t.Parallel()

	ivOnly := base64.StdEncoding.EncodeToString(make([]byte, 16))
	if _, err := decryptEvent(ivOnly, "key"); err == nil {
		t.Fatal("expected error for ciphertext with no body")
	}
}
