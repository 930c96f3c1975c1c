package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHash_Format(t *testing.T) {
	ps := NewPasswordServiceForTest()

	hash, err := ps.Hash("my-secret-password")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[0] != "scrypt" {
		t.Fatalf("Hash() = %q, want scrypt$N$r$p$salt$key", hash)
	}
	if strings.Contains(hash, "my-secret-password") {
		t.Error("Hash() output contains the plaintext")
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	ps := NewPasswordServiceForTest()

	h1, _ := ps.Hash("same-password")
	h2, _ := ps.Hash("same-password")

	if h1 == h2 {
		t.Error("Hash() produced identical output twice; the salt is not random")
	}
}

func TestHash_RejectsHugePasswords(t *testing.T) {
	ps := NewPasswordServiceForTest()

	if _, err := ps.Hash(strings.Repeat("x", maxPasswordBytes+1)); err == nil {
		t.Fatal("Hash() should reject passwords over the size limit")
	}
}

func TestVerify(t *testing.T) {
	ps := NewPasswordServiceForTest()
	hash, err := ps.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if err := ps.Verify(hash, "correct horse"); err != nil {
		t.Errorf("Verify() with the right password = %v", err)
	}
	if err := ps.Verify(hash, "wrong horse"); !errors.Is(err, ErrInvalidPassword) {
		t.Errorf("Verify() with the wrong password = %v, want ErrInvalidPassword", err)
	}
}

func TestVerify_HashFromStrongerService(t *testing.T) {
	// Parameters travel with the hash, so a cheap service can check a hash
	// made with production settings.
	hash, err := NewPasswordService().Hash("pw")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if err := NewPasswordServiceForTest().Verify(hash, "pw"); err != nil {
		t.Errorf("Verify() = %v", err)
	}
}

func TestVerify_MalformedHash(t *testing.T) {
	ps := NewPasswordServiceForTest()

	for _, hash := range []string{"", "plaintext", "scrypt$x$8$1$00$00", "bcrypt$1$2$3$4$5"} {
		err := ps.Verify(hash, "pw")
		if err == nil || errors.Is(err, ErrInvalidPassword) {
			t.Errorf("Verify(%q) = %v, want a format error", hash, err)
		}
	}
}
