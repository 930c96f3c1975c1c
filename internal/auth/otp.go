package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	maxPendingCodes = 10_000
	// MaxOTPAttempts is how many wrong guesses burn a code.
	MaxOTPAttempts = 5
)

type otpEntry struct {
	code     string
	attempts int
	expires  time.Time
}

// OTPStore issues six-digit email verification codes and remembers which
// emails have been verified recently.
//
// A code is single use: a correct guess consumes it and marks the email
// verified for one TTL; MaxOTPAttempts wrong guesses discard it.
type OTPStore struct {
	mu       sync.Mutex
	codes    *expirable.LRU[string, otpEntry]
	verified *expirable.LRU[string, struct{}]
	ttl      time.Duration
	now      func() time.Time
}

func NewOTPStore(ttl time.Duration) *OTPStore {
	return &OTPStore{
		codes:    expirable.NewLRU[string, otpEntry](maxPendingCodes, nil, ttl),
		verified: expirable.NewLRU[string, struct{}](maxPendingCodes, nil, ttl),
		ttl:      ttl,
		now:      time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Issue creates a fresh code for email, replacing any earlier one.
func (s *OTPStore) Issue(email string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("auth: generating code: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes.Add(normalizeEmail(email), otpEntry{code: code, expires: s.now().Add(s.ttl)})
	return code, nil
}

// Verify checks code against the pending code for email.
func (s *OTPStore) Verify(email, code string) bool {
	key := normalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.codes.Get(key)
	if !ok || s.now().After(entry.expires) {
		s.codes.Remove(key)
		return false
	}

	if subtle.ConstantTimeCompare([]byte(entry.code), []byte(code)) == 1 {
		s.codes.Remove(key)
		s.verified.Add(key, struct{}{})
		return true
	}

	entry.attempts++
	if entry.attempts >= MaxOTPAttempts {
		s.codes.Remove(key)
	} else {
		s.codes.Add(key, entry)
	}
	return false
}

// IsVerified reports whether email passed Verify within the last TTL.
func (s *OTPStore) IsVerified(email string) bool {
	return s.verified.Contains(normalizeEmail(email))
}

// Consume clears the verified mark once it has been used to register.
func (s *OTPStore) Consume(email string) {
	s.verified.Remove(normalizeEmail(email))
}
