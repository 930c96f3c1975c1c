package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

// CookieName is the HttpOnly cookie that carries the session token.
const CookieName = "token"

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so no other package can
// read or shadow the values stored under it.
type contextKey string

const (
	userKey    contextKey = "user"
	sessionKey contextKey = "session"
)

var errNoToken = errors.New("auth: no session token")

// UserLoader fetches the account a token belongs to.
// repository.Store satisfies it.
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (*model.User, error)
}

// Authenticator resolves a request to a user. The user is loaded on every
// request, so a role change or a deleted account takes effect at once.
type Authenticator struct {
	tokens  *TokenService
	revoked *Revocations
	users   UserLoader
}

func NewAuthenticator(tokens *TokenService, revoked *Revocations, users UserLoader) *Authenticator {
	return &Authenticator{tokens: tokens, revoked: revoked, users: users}
}

// Authenticate validates the request's token and loads its user. Any failure
// is an apperror.ErrUnauthorized except a store failure, which is returned
// as is.
func (a *Authenticator) Authenticate(r *http.Request) (*model.User, Session, error) {
	raw, err := tokenFromRequest(r)
	if err != nil {
		return nil, Session{}, apperror.Unauthorized("authentication required")
	}

	session, err := a.tokens.Validate(raw)
	if err != nil {
		return nil, Session{}, apperror.Unauthorized("invalid or expired session")
	}
	if a.revoked.Revoked(session.ID) {
		return nil, Session{}, apperror.Unauthorized("session has been logged out")
	}

	user, err := a.users.GetUser(r.Context(), session.UserID)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, Session{}, apperror.Unauthorized("account no longer exists")
	}
	if err != nil {
		return nil, Session{}, err
	}
	return user, session, nil
}

// RequireAuth is a middleware that enforces authentication on protected
// routes. It stores the user and session in the request context, or answers
// 401 and stops the chain.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new http.Handler that
// wraps it. Chi applies them in a chain: req → M1 → M2 → Handler → M2 → M1.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, session, err := a.Authenticate(r)
		if err != nil {
			if errors.Is(err, apperror.ErrUnauthorized) {
				writeAuthError(w, http.StatusUnauthorized, "unauthorized", err.Error())
				return
			}
			writeAuthError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user, session)))
	})
}

// OptionalAuth attaches the user when a valid session is present and lets
// anonymous requests through untouched. Used on public routes such as
// GET /api/events and /ws-api.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, session, err := a.Authenticate(r); err == nil {
			r = r.WithContext(WithUser(r.Context(), user, session))
		}
		next.ServeHTTP(w, r)
	})
}

// WithUser stores an authenticated user and session in ctx.
func WithUser(ctx context.Context, user *model.User, session Session) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, sessionKey, session)
}

// UserFromContext returns (nil, false) for anonymous requests.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

// tokenFromRequest prefers the cookie set at login and falls back to an
// "Authorization: Bearer" header for API clients.
func tokenFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok && token != "" {
			return strings.TrimSpace(token), nil
		}
	}
	return "", errNoToken
}

func writeAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `","message":"` + message + `"}`))
}
