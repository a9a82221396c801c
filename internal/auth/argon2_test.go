package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashSecret_Format(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("secret1")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	if !strings.HasPrefix(hash, "$argon2id$v=") {
		t.Errorf("Hash should be in PHC format, got: %s", hash)
	}

	parts := strings.Split(hash, "$")
	if len(parts) != 6 {
		t.Fatalf("Hash should have 6 parts, got: %d", len(parts))
	}
	if parts[3] != "m=65536,t=3,p=4" {
		t.Errorf("Expected m=65536,t=3,p=4, got: %s", parts[3])
	}
	if strings.Contains(hash, "secret1") {
		t.Error("Hash must not contain the plaintext secret")
	}
}

func TestHashSecret_Uniqueness(t *testing.T) {
	t.Parallel()

	hash1, err := HashSecret("same-secret")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}
	hash2, err := HashSecret("same-secret")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	if hash1 == hash2 {
		t.Error("Same secret should produce different hashes due to random salt")
	}
}

func TestVerifySecret(t *testing.T) {
	t.Parallel()

	hash, err := HashSecret("secret1")
	if err != nil {
		t.Fatalf("HashSecret failed: %v", err)
	}

	testCases := []struct {
		name      string
		candidate string
		want      bool
	}{
		{"correct", "secret1", true},
		{"wrong", "secret2", false},
		{"empty", "", false},
		{"case differs", "Secret1", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := VerifySecret(tc.candidate, hash)
			if err != nil {
				t.Fatalf("VerifySecret error: %v", err)
			}
			if got != tc.want {
				t.Errorf("VerifySecret(%q) = %v, want %v", tc.candidate, got, tc.want)
			}
		})
	}
}

func TestVerifySecret_InvalidHash(t *testing.T) {
	t.Parallel()

	invalid := []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA",
	}

	for _, h := range invalid {
		if _, err := VerifySecret("x", h); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("VerifySecret(%q) error = %v, want ErrInvalidHash", h, err)
		}
	}

	if _, err := VerifySecret("x", "$argon2id$v=18$m=65536,t=3,p=4$c2FsdA$aGFzaA"); !errors.Is(err, ErrIncompatibleVersion) {
		t.Errorf("expected ErrIncompatibleVersion, got %v", err)
	}
}
