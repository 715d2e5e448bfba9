package secrets

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"testing"
)

func testService(t *testing.T) *Service {
	t.Helper()
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	s, err := NewService(hex.EncodeToString(key))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewServiceRejectsBadKeys(t *testing.T) {
	if _, err := NewService("zz"); err == nil {
		t.Fatal("non-hex key accepted")
	}
	if _, err := NewService(hex.EncodeToString(make([]byte, 16))); err == nil {
		t.Fatal("short key accepted")
	}
	if _, err := NewService(hex.EncodeToString(make([]byte, keySize))); err != nil {
		t.Fatalf("valid key rejected: %v", err)
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	s := testService(t)

	for i := 0; i < 50; i++ {
		plaintext := make([]byte, 1+i*7)
		if _, err := rand.Read(plaintext); err != nil {
			t.Fatal(err)
		}
		payload, err := s.Encrypt(plaintext, "")
		if err != nil {
			t.Fatal(err)
		}
		if len(payload.IV) != nonceSize || len(payload.AuthTag) != tagSize {
			t.Fatalf("payload shape: iv=%d tag=%d", len(payload.IV), len(payload.AuthTag))
		}
		if payload.Salt != nil {
			t.Fatal("system-key payload must carry no salt")
		}
		got, err := s.Decrypt(payload, "")
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("round trip %d mismatch", i)
		}
	}
}

func TestEncryptPasswordDerivedKey(t *testing.T) {
	s := testService(t)
	plaintext := []byte("FR7630001007941234567890185")

	payload, err := s.Encrypt(plaintext, "phrase secrète")
	if err != nil {
		t.Fatal(err)
	}
	if len(payload.Salt) != saltSize {
		t.Fatalf("salt length = %d", len(payload.Salt))
	}

	got, err := s.Decrypt(payload, "phrase secrète")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("round trip mismatch")
	}

	if _, err := s.Decrypt(payload, "mauvaise phrase"); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("wrong password error = %v, want ErrDecryptionFailed", err)
	}
	// The system key cannot open a password-sealed payload either.
	if _, err := s.Decrypt(payload, ""); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("system key error = %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptDetectsTampering(t *testing.T) {
	s := testService(t)
	payload, err := s.Encrypt([]byte("données sensibles"), "")
	if err != nil {
		t.Fatal(err)
	}

	flip := func(b []byte, i int) []byte {
		cp := append([]byte(nil), b...)
		cp[i] ^= 0x01
		return cp
	}

	cases := map[string]Payload{
		"ciphertext first byte": {Ciphertext: flip(payload.Ciphertext, 0), IV: payload.IV, AuthTag: payload.AuthTag},
		"ciphertext last byte":  {Ciphertext: flip(payload.Ciphertext, len(payload.Ciphertext)-1), IV: payload.IV, AuthTag: payload.AuthTag},
		"auth tag bit":          {Ciphertext: payload.Ciphertext, IV: payload.IV, AuthTag: flip(payload.AuthTag, 3)},
		"nonce bit":             {Ciphertext: payload.Ciphertext, IV: flip(payload.IV, 5), AuthTag: payload.AuthTag},
	}
	for name, tampered := range cases {
		if _, err := s.Decrypt(tampered, ""); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("%s: error = %v, want ErrDecryptionFailed", name, err)
		}
	}

	if _, err := s.Decrypt(Payload{Ciphertext: payload.Ciphertext, IV: payload.IV[:4], AuthTag: payload.AuthTag}, ""); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("short nonce error = %v", err)
	}
}

func TestEncryptDistinctCiphertexts(t *testing.T) {
	s := testService(t)
	plaintext := []byte("même contenu")

	a, err := s.Encrypt(plaintext, "")
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Encrypt(plaintext, "")
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a.IV, b.IV) {
		t.Fatal("nonce reused")
	}
	if bytes.Equal(a.Ciphertext, b.Ciphertext) {
		t.Fatal("equal plaintexts produced equal ciphertexts")
	}
}

func TestDecryptWrongSystemKey(t *testing.T) {
	a := testService(t)
	b := testService(t)

	payload, err := a.Encrypt([]byte("secret"), "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Decrypt(payload, ""); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("foreign key error = %v, want ErrDecryptionFailed", err)
	}
}
