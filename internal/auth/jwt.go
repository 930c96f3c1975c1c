// Package auth provides sessions, password hashing, email verification codes
// and the HTTP middleware that turns a request into an authenticated user.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. A visitor asks for a verification code (/api/otp/send) and confirms it
//     (/api/otp/verify); the email is then marked verified for a while.
//  2. /api/register creates the account for a verified email.
//  3. /api/login checks the password and issues a signed JWT in an HttpOnly
//     "token" cookie. GitHub login (/auth/github/*) issues the same cookie.
//  4. Middleware validates the token on every request, rejects revoked
//     sessions and loads the user, so a role change applies immediately.
//  5. /api/logout revokes the session id (jti) until the token would have
//     expired anyway.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"42","jti":"cv37rs3pp9olc6atsptg","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "greenpath"

// DefaultSessionTTL is used when NewTokenService is given a zero TTL.
const DefaultSessionTTL = 24 * time.Hour

// Session is what a valid token proves: who the caller is and which login
// the token belongs to.
type Session struct {
	UserID    int64
	ID        string // jti; revoking it ends this login only
	ExpiresAt time.Time
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. The secret should be at least 32
// bytes of random data in production, e.g. JWT_SECRET=$(openssl rand -hex 32).
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is how long an issued token stays valid.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Generate signs a new session token for userID. Every call gets a fresh
// session id, so two logins of the same user can be revoked separately.
func (s *TokenService) Generate(userID int64) (string, Session, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration is Generate with a custom lifetime. Tests use it to
// mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID int64, d time.Duration) (string, Session, error) {
	now := s.now()
	session := Session{
		UserID:    userID,
		ID:        xid.New().String(),
		ExpiresAt: now.Add(d),
	}

	c := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		ID:        session.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		Issuer:    issuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, session, nil
}

// Validate parses and verifies a JWT string and returns the session it
// carries.
//
// ALGORITHM CONFUSION ATTACK:
// Without pinning the algorithm, an attacker could send a token signed with
// "none" and the library might accept it. jwt.WithValidMethods prevents this.
func (s *TokenService) Validate(tokenStr string) (Session, error) {
	var c jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&c,
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Session{}, errors.New("auth: token expired")
		}
		return Session{}, fmt.Errorf("auth: invalid token: %w", err)
	}
	if !token.Valid {
		return Session{}, errors.New("auth: invalid token claims")
	}

	userID, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return Session{}, errors.New("auth: token has no valid subject")
	}
	if c.ID == "" {
		return Session{}, errors.New("auth: token has no session id")
	}

	return Session{UserID: userID, ID: c.ID, ExpiresAt: c.ExpiresAt.Time}, nil
}
