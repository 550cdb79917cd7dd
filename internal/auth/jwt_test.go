package auth

import (
	"testing"
	"time"
)

func TestBuildAndParseJWT(t *testing.T) {
	secret := []byte("test-secret-min-32-chars!!")
	tok, err := BuildJWT(secret, 42, RoleProfessional, "medico@sghss.local", time.Hour)
	if err != nil {
		t.Fatalf("BuildJWT: %v", err)
	}
	claims, err := ParseJWT(secret, tok)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != 42 || claims.Role != RoleProfessional || claims.Email != "medico@sghss.local" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
}

func TestParseJWTWrongSecret(t *testing.T) {
	tok, err := BuildJWT([]byte("test-secret-min-32-chars!!"), 1, RoleAdmin, "", time.Hour)
	if err != nil {
		t.Fatalf("BuildJWT: %v", err)
	}
	if _, err := ParseJWT([]byte("another-secret-entirely-32-chars"), tok); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestParseJWTExpired(t *testing.T) {
	secret := []byte("test-secret-min-32-chars!!")
	tok, err := BuildJWT(secret, 1, RolePatient, "", -time.Minute)
	if err != nil {
		t.Fatalf("BuildJWT: %v", err)
	}
	if _, err := ParseJWT(secret, tok); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{RoleAdmin, RoleReceptionist, RoleProfessional, RolePatient} {
		if !ValidRole(role) {
			t.Errorf("role %s should be valid", role)
		}
	}
	if ValidRole("SUPER_ADMIN") || ValidRole("") {
		t.Error("unexpected role accepted")
	}
}
