// Copyright 2026 The Slate Authors
// SPDX-License-Identifier: Apache-2.0

package sealed

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/slate-foundation/slate/lib/secret"
)

func TestGenerateKeypair(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer keypair.Close()

	if !strings.HasPrefix(keypair.PrivateKey.String(), "AGE-SECRET-KEY-1") {
		t.Error("private key missing AGE-SECRET-KEY-1 prefix")
	}
	if !strings.HasPrefix(keypair.PublicKey, "age1") {
		t.Errorf("PublicKey = %q, want prefix age1", keypair.PublicKey)
	}
}

func TestGenerateKeypairUnique(t *testing.T) {
	first, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer first.Close()
	second, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer second.Close()

	if first.PublicKey == second.PublicKey {
		t.Error("two generated keypairs have identical public keys")
	}
}

func TestEncryptDecryptSingleRecipient(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer keypair.Close()

	plaintext := []byte("ghp_sealed_token_value")
	ciphertext, err := Encrypt(plaintext, []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	// Ciphertext should be valid base64 and not the plaintext.
	if _, err := base64.StdEncoding.DecodeString(ciphertext); err != nil {
		t.Errorf("Encrypt() returned invalid base64: %v", err)
	}
	if ciphertext == string(plaintext) {
		t.Error("ciphertext equals plaintext")
	}

	decrypted, err := Decrypt(ciphertext, keypair.PrivateKey)
	if err != nil {
		t.Fatalf("Decrypt() error: %v", err)
	}
	defer decrypted.Close()
	if decrypted.String() != "ghp_sealed_token_value" {
		t.Errorf("Decrypt() = %q, want %q", decrypted.String(), "ghp_sealed_token_value")
	}
}

func TestEncryptDecryptMultipleRecipients(t *testing.T) {
	// Simulates sealing a token to the service identity plus an
	// operator escrow key.
	service, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer service.Close()
	operator, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer operator.Close()

	plaintext := []byte("ghp_shared_token")
	ciphertext, err := Encrypt(plaintext, []string{service.PublicKey, operator.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	// Both recipients decrypt independently.
	for _, keypair := range []*Keypair{service, operator} {
		decrypted, err := Decrypt(ciphertext, keypair.PrivateKey)
		if err != nil {
			t.Fatalf("Decrypt() error: %v", err)
		}
		if decrypted.String() != "ghp_shared_token" {
			t.Errorf("Decrypt() = %q, want %q", decrypted.String(), "ghp_shared_token")
		}
		decrypted.Close()
	}
}

func TestDecryptWrongKey(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer keypair.Close()
	wrong, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer wrong.Close()

	ciphertext, err := Encrypt([]byte("secret data"), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	if _, err := Decrypt(ciphertext, wrong.PrivateKey); err == nil {
		t.Error("Decrypt() with wrong key should return error")
	}
}

func TestEncryptNoRecipients(t *testing.T) {
	_, err := Encrypt([]byte("data"), nil)
	if err == nil {
		t.Fatal("Encrypt() with no recipients should return error")
	}
	if !strings.Contains(err.Error(), "at least one recipient") {
		t.Errorf("error = %v, want 'at least one recipient'", err)
	}
}

func TestEncryptInvalidRecipientKey(t *testing.T) {
	_, err := Encrypt([]byte("data"), []string{"not-a-valid-key"})
	if err == nil {
		t.Fatal("Encrypt() with invalid recipient key should return error")
	}
	if !strings.Contains(err.Error(), "parsing recipient key") {
		t.Errorf("error = %v, want 'parsing recipient key'", err)
	}
}

func TestDecryptInvalidPrivateKey(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer keypair.Close()
	ciphertext, err := Encrypt([]byte("data"), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	bogus, err := secret.NewFromBytes([]byte("not-a-valid-private-key"))
	if err != nil {
		t.Fatalf("secret.NewFromBytes() error: %v", err)
	}
	defer bogus.Close()

	_, err = Decrypt(ciphertext, bogus)
	if err == nil {
		t.Fatal("Decrypt() with invalid private key should return error")
	}
	if !strings.Contains(err.Error(), "parsing private key") {
		t.Errorf("error = %v, want 'parsing private key'", err)
	}
}

func TestDecryptInvalidBase64(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer keypair.Close()

	_, err = Decrypt("not-valid-base64!!!", keypair.PrivateKey)
	if err == nil {
		t.Fatal("Decrypt() with invalid base64 should return error")
	}
	if !strings.Contains(err.Error(), "decoding base64") {
		t.Errorf("error = %v, want 'decoding base64'", err)
	}
}

func TestDecryptCorruptedCiphertext(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer keypair.Close()

	// Valid base64, not valid age ciphertext.
	corrupted := base64.StdEncoding.EncodeToString([]byte("this is not age ciphertext"))

	if _, err := Decrypt(corrupted, keypair.PrivateKey); err == nil {
		t.Error("Decrypt() with corrupted ciphertext should return error")
	}
}

func TestRecipient(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer keypair.Close()

	derived, err := Recipient(keypair.PrivateKey)
	if err != nil {
		t.Fatalf("Recipient() error: %v", err)
	}
	if derived != keypair.PublicKey {
		t.Errorf("Recipient() = %q, want %q", derived, keypair.PublicKey)
	}
}

func TestParsePublicKey(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer keypair.Close()

	if err := ParsePublicKey(keypair.PublicKey); err != nil {
		t.Errorf("ParsePublicKey(valid) error: %v", err)
	}
	if err := ParsePublicKey("not-a-valid-key"); err == nil {
		t.Error("ParsePublicKey(invalid) should return error")
	}
	if err := ParsePublicKey(""); err == nil {
		t.Error("ParsePublicKey(empty) should return error")
	}
}

func TestParsePrivateKey(t *testing.T) {
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer keypair.Close()

	if err := ParsePrivateKey(keypair.PrivateKey); err != nil {
		t.Errorf("ParsePrivateKey(valid) error: %v", err)
	}

	bogus, err := secret.NewFromBytes([]byte("not-a-valid-key"))
	if err != nil {
		t.Fatalf("secret.NewFromBytes() error: %v", err)
	}
	defer bogus.Close()
	if err := ParsePrivateKey(bogus); err == nil {
		t.Error("ParsePrivateKey(invalid) should return error")
	}
}

func TestDecryptAcrossKeypairCopy(t *testing.T) {
	// A private key read back from an identity file must decrypt
	// ciphertext sealed to the original recipient. This simulates the
	// service restarting and reloading its identity from disk.
	keypair, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair() error: %v", err)
	}
	defer keypair.Close()

	ciphertext, err := Encrypt([]byte("persistent secret"), []string{keypair.PublicKey})
	if err != nil {
		t.Fatalf("Encrypt() error: %v", err)
	}

	// Round-trip the private key through a plain byte copy, as the
	// identity file loader does.
	reloaded, err := secret.NewFromBytes([]byte(keypair.PrivateKey.String()))
	if err != nil {
		t.Fatalf("secret.NewFromBytes() error: %v", err)
	}
	defer reloaded.Close()

	decrypted, err := Decrypt(ciphertext, reloaded)
	if err != nil {
		t.Fatalf("Decrypt() with reloaded key error: %v", err)
	}
	defer decrypted.Close()
	if decrypted.String() != "persistent secret" {
		t.Errorf("Decrypt() = %q, want %q", decrypted.String(), "persistent secret")
	}
}
