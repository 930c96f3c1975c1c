package auth

import (
	"testing"
	"time"
)

func TestOTP_IssueAndVerify(t *testing.T) {
	s := NewOTPStore(time.Minute)

	code, err := s.Issue("Asha@Example.com")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("Issue() = %q, want six digits", code)
	}

	if s.IsVerified("asha@example.com") {
		t.Fatal("email verified before the code was checked")
	}
	if !s.Verify(" asha@example.com ", code) {
		t.Fatal("Verify() rejected the issued code")
	}
	if !s.IsVerified("ASHA@example.com") {
		t.Error("email not marked verified")
	}
	if s.Verify("asha@example.com", code) {
		t.Error("a code must only work once")
	}

	s.Consume("asha@example.com")
	if s.IsVerified("asha@example.com") {
		t.Error("Consume() left the email verified")
	}
}

func TestOTP_WrongGuessesBurnTheCode(t *testing.T) {
	s := NewOTPStore(time.Minute)
	code, _ := s.Issue("ravi@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for i := 0; i < MaxOTPAttempts; i++ {
		if s.Verify("ravi@example.com", wrong) {
			t.Fatal("wrong code accepted")
		}
	}
	if s.Verify("ravi@example.com", code) {
		t.Error("code still valid after too many wrong guesses")
	}
}

func TestOTP_Expires(t *testing.T) {
	s := NewOTPStore(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	code, _ := s.Issue("late@example.com")
	s.now = func() time.Time { return now.Add(2 * time.Minute) }

	if s.Verify("late@example.com", code) {
		t.Error("expired code accepted")
	}
}

func TestOTP_ReissueReplacesCode(t *testing.T) {
	s := NewOTPStore(time.Minute)
	first, _ := s.Issue("twice@example.com")
	second, _ := s.Issue("twice@example.com")

	if first != second && s.Verify("twice@example.com", first) {
		t.Error("the superseded code still works")
	}
	if !s.Verify("twice@example.com", second) {
		t.Error("the latest code was rejected")
	}
}

func TestRevocations(t *testing.T) {
	r := NewRevocations(time.Hour)
	if r.Revoked("abc") {
		t.Fatal("unknown session reported revoked")
	}
	r.Revoke("abc")
	if !r.Revoked("abc") {
		t.Error("revoked session not reported")
	}
	if r.Revoked("def") {
		t.Error("unrelated session reported revoked")
	}
}
