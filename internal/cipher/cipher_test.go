package cipher

import (
	"bytes"
	"encoding/base64"
	"testing"

	apperrors "github.com/aerocristobal/label-verify/infrastructure/errors"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestNew_RejectsWrongLength(t *testing.T) {
	_, err := New([]byte("too-short"))
	if err == nil {
		t.Fatal("expected error for a non-32-byte key")
	}
	se := apperrors.GetServiceError(err)
	if se == nil || se.Code != apperrors.ErrCodeInvalidKey {
		t.Fatalf("expected ErrCodeInvalidKey, got %v", err)
	}
}

func TestNewFromBase64_RejectsMalformedEncoding(t *testing.T) {
	if _, err := NewFromBase64("not valid base64!!!"); err == nil {
		t.Fatal("expected error for malformed base64")
	}
}

func TestNewFromBase64_Success(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(testKey())
	c, err := NewFromBase64(encoded)
	if err != nil {
		t.Fatalf("NewFromBase64() error = %v", err)
	}
	if c == nil {
		t.Fatal("expected non-nil Cipher")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c, err := New(testKey())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	plaintext := []byte(`{"brand_name":"Example Vineyards"}`)
	blob, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	got, err := c.Decrypt(blob)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("Decrypt() = %q, want %q", got, plaintext)
	}
}

func TestDecrypt_TruncatedBlob(t *testing.T) {
	c, _ := New(testKey())
	_, err := c.Decrypt([]byte("short"))
	if err == nil {
		t.Fatal("expected DecryptFailed for truncated blob")
	}
	se := apperrors.GetServiceError(err)
	if se == nil || se.Code != apperrors.ErrCodeDecryptionFailed {
		t.Fatalf("expected ErrCodeDecryptionFailed, got %v", err)
	}
}

func TestDecrypt_TamperedBlob(t *testing.T) {
	c, _ := New(testKey())
	blob, _ := c.Encrypt([]byte("payload"))
	blob[len(blob)-1] ^= 0xFF

	_, err := c.Decrypt(blob)
	if err == nil {
		t.Fatal("expected DecryptFailed for tampered blob")
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	c1, _ := New(testKey())
	wrongKey := bytes.Repeat([]byte{0x24}, 32)
	c2, _ := New(wrongKey)

	blob, _ := c1.Encrypt([]byte("payload"))
	if _, err := c2.Decrypt(blob); err == nil {
		t.Fatal("expected DecryptFailed when decrypting with the wrong key")
	}
}

func TestEncrypt_EmptyPlaintext(t *testing.T) {
	c, _ := New(testKey())
	blob, err := c.Encrypt(nil)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	got, err := c.Decrypt(blob)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Decrypt() = %q, want empty", got)
	}
}
