package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// Password hashes are stored as
//
//	scrypt$<N>$<r>$<p>$<hex salt>$<hex key>
//
// so the cost parameters travel with the hash and can be raised later
// without invalidating existing accounts.
const (
	defaultN  = 1 << 15
	defaultR  = 8
	defaultP  = 1
	keyLength = 64
	saltBytes = 16

	maxPasswordBytes = 256
)

var ErrInvalidPassword = errors.New("auth: invalid password")

// PasswordService hashes and verifies passwords with salted scrypt.
//
// It is a struct rather than free functions so tests can inject a cheap
// work factor.
type PasswordService struct {
	n, r, p int
}

// NewPasswordService uses N=32768, r=8, p=1.
func NewPasswordService() *PasswordService {
	return &PasswordService{n: defaultN, r: defaultR, p: defaultP}
}

// NewPasswordServiceForTest uses the smallest useful cost. Do NOT use in
// production.
func NewPasswordServiceForTest() *PasswordService {
	return &PasswordService{n: 16, r: 1, p: 1}
}

// Hash derives a key from plaintext with a fresh random salt.
func (ps *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", fmt.Errorf("auth: password must be %d bytes or fewer", maxPasswordBytes)
	}

	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generating salt: %w", err)
	}

	key, err := scrypt.Key([]byte(plaintext), salt, ps.n, ps.r, ps.p, keyLength)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return fmt.Sprintf("scrypt$%d$%d$%d$%s$%s",
		ps.n, ps.r, ps.p, hex.EncodeToString(salt), hex.EncodeToString(key)), nil
}

// Verify returns nil when plaintext matches hash and ErrInvalidPassword when
// it does not. A malformed hash is reported as a separate error.
//
// TIMING SAFETY:
// The derived keys are compared with subtle.ConstantTimeCompare, so response
// time does not reveal how many leading bytes matched.
func (ps *PasswordService) Verify(hash, plaintext string) error {
	parts := strings.Split(hash, "$")
	if len(parts) != 6 || parts[0] != "scrypt" {
		return errors.New("auth: unrecognised password hash format")
	}

	var params [3]int
	for i, s := range parts[1:4] {
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("auth: parsing hash parameters: %w", err)
		}
		params[i] = v
	}
	salt, err := hex.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("auth: decoding salt: %w", err)
	}
	want, err := hex.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("auth: decoding key: %w", err)
	}

	got, err := scrypt.Key([]byte(plaintext), salt, params[0], params[1], params[2], len(want))
	if err != nil {
		return fmt.Errorf("auth: hashing password: %w", err)
	}
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrInvalidPassword
	}
	return nil
}
