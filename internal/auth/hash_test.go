package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Admin123!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "Admin123!" {
		t.Fatal("hash must not equal plaintext")
	}
	if !CheckPassword(hash, "Admin123!") {
		t.Fatal("expected password to match")
	}
	if CheckPassword(hash, "admin123!") {
		t.Fatal("expected mismatch for wrong password")
	}
}
