package crypto

import (
	"bytes"
	"encoding/base64"
	"testing"
)

func testKeys(t *testing.T) map[string][]byte {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, 32)
	return map[string][]byte{"v1": key}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	keys := testKeys(t)
	ct, nonce, err := Encrypt([]byte("123.456.789-09"), "v1", keys)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(ct, []byte("123")) {
		t.Fatal("ciphertext must not contain plaintext")
	}
	plain, err := Decrypt(ct, nonce, "v1", keys)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(plain) != "123.456.789-09" {
		t.Fatalf("round trip mismatch: %q", plain)
	}
}

func TestDecryptWrongKeyVersion(t *testing.T) {
	keys := testKeys(t)
	ct, nonce, err := Encrypt([]byte("data"), "v1", keys)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(ct, nonce, "v2", keys); err == nil {
		t.Fatal("expected error for unknown key version")
	}
}

func TestParseKeysEnv(t *testing.T) {
	key := bytes.Repeat([]byte{0x01}, 32)
	env := "v1:" + base64.StdEncoding.EncodeToString(key)
	keys, err := ParseKeysEnv(env)
	if err != nil {
		t.Fatalf("ParseKeysEnv: %v", err)
	}
	if !bytes.Equal(keys["v1"], key) {
		t.Fatal("parsed key mismatch")
	}
	if _, err := ParseKeysEnv("v1:dG9vc2hvcnQ="); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestNormalizeCPFAndHash(t *testing.T) {
	if got := NormalizeCPF("123.456.789-09"); got != "12345678909" {
		t.Fatalf("NormalizeCPF: %q", got)
	}
	if CPFHash("12345678909") != CPFHash(NormalizeCPF("123.456.789-09")) {
		t.Fatal("hash must be stable over normalization")
	}
	if len(CPFHash("12345678909")) != 64 {
		t.Fatal("expected hex sha256 length 64")
	}
}
