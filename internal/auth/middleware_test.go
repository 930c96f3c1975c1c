package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/model"
)

// fakeUsers is a map-backed UserLoader. err, when set, simulates a store
// outage.
type fakeUsers struct {
	users map[int64]*model.User
	err   error
}

func (f *fakeUsers) GetUser(_ context.Context, id int64) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}

type authFixture struct {
	tokens  *TokenService
	revoked *Revocations
	users   *fakeUsers
	authn   *Authenticator
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		tokens:  newTestTokenService(t),
		revoked: NewRevocations(time.Hour),
		users: &fakeUsers{users: map[int64]*model.User{
			1: {ID: 1, Username: "asha", Role: model.RoleCustomer},
		}},
	}
	f.authn = NewAuthenticator(f.tokens, f.revoked, f.users)
	return f
}

// echoUser writes the authenticated username, or "anonymous".
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if u, ok := UserFromContext(r.Context()); ok {
		_, _ = w.Write([]byte(u.Username))
		return
	}
	_, _ = w.Write([]byte("anonymous"))
})

func TestRequireAuth(t *testing.T) {
	f := newAuthFixture(t)
	valid, session, _ := f.tokens.Generate(1)
	orphan, _, _ := f.tokens.Generate(99)
	expired, _, _ := f.tokens.GenerateWithDuration(1, -time.Minute)
	loggedOut, outSession, _ := f.tokens.Generate(1)
	f.revoked.Revoke(outSession.ID)

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantBody   string
	}{
		{"no token", func(*http.Request) {}, http.StatusUnauthorized, ""},
		{"cookie", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: valid})
		}, http.StatusOK, "asha"},
		{"bearer header", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+valid)
		}, http.StatusOK, "asha"},
		{"expired", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: expired})
		}, http.StatusUnauthorized, ""},
		{"revoked", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: loggedOut})
		}, http.StatusUnauthorized, ""},
		{"deleted account", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: CookieName, Value: orphan})
		}, http.StatusUnauthorized, ""},
		{"malformed header", func(r *http.Request) {
			r.Header.Set("Authorization", "Token "+valid)
		}, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			f.authn.RequireAuth(echoUser).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}

	_ = session
}

func TestRequireAuth_StoreFailureIs500(t *testing.T) {
	f := newAuthFixture(t)
	token, _, _ := f.tokens.Generate(1)
	f.users.err = errors.New("database is locked")

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rec := httptest.NewRecorder()
	f.authn.RequireAuth(echoUser).ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestOptionalAuth(t *testing.T) {
	f := newAuthFixture(t)
	token, _, _ := f.tokens.Generate(1)

	anon := httptest.NewRecorder()
	f.authn.OptionalAuth(echoUser).ServeHTTP(anon, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	if anon.Code != http.StatusOK || anon.Body.String() != "anonymous" {
		t.Errorf("anonymous request: %d %q", anon.Code, anon.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	authed := httptest.NewRecorder()
	f.authn.OptionalAuth(echoUser).ServeHTTP(authed, req)
	if authed.Body.String() != "asha" {
		t.Errorf("authenticated request body = %q, want asha", authed.Body.String())
	}

	bad := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	bad.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
	rec := httptest.NewRecorder()
	f.authn.OptionalAuth(echoUser).ServeHTTP(rec, bad)
	if rec.Code != http.StatusOK || rec.Body.String() != "anonymous" {
		t.Errorf("bad token should fall back to anonymous, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSessionFromContext(t *testing.T) {
	s := Session{UserID: 3, ID: "abc"}
	ctx := WithUser(context.Background(), &model.User{ID: 3}, s)

	got, ok := SessionFromContext(ctx)
	if !ok || got.ID != "abc" {
		t.Errorf("SessionFromContext() = %+v, %v", got, ok)
	}
	if _, ok := UserFromContext(context.Background()); ok {
		t.Error("empty context reported a user")
	}
}
