package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPasswordProducesSaltedDigest(t *testing.T) {
	first, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	second, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password are identical, salt is not being generated")
	}
	if !strings.HasPrefix(first, "pbkdf2$sha256$") {
		t.Fatalf("hash %q missing the pbkdf2$sha256 prefix", first)
	}
}

func TestHashPasswordRejectsEmptyPassword(t *testing.T) {
	if _, err := HashPassword(""); err == nil {
		t.Fatal("HashPassword accepted an empty password")
	}
}

func TestVerifyPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-passphrase")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if err := VerifyPassword(hash, "s3cret-passphrase"); err != nil {
		t.Fatalf("VerifyPassword rejected the original password: %v", err)
	}
	if err := VerifyPassword(hash, "wrong-passphrase"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("VerifyPassword returned %v for a wrong password, want ErrInvalidCredentials", err)
	}
}

func TestVerifyPasswordRejectsMalformedDigests(t *testing.T) {
	cases := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"too few segments", "pbkdf2$sha256$120000$onlyfour"},
		{"unknown scheme", "bcrypt$sha256$120000$c2FsdA$aGFzaA"},
		{"bad iterations", "pbkdf2$sha256$zero$c2FsdA$aGFzaA"},
		{"bad salt encoding", "pbkdf2$sha256$120000$!!!$aGFzaA"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifyPassword(tc.hash, "whatever")
			if err == nil {
				t.Fatal("VerifyPassword accepted a malformed digest")
			}
			if errors.Is(err, ErrInvalidCredentials) {
				t.Fatal("malformed digest reported as a credential mismatch")
			}
		})
	}
}
