package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/xid"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/auth"
	"github.com/greenpath/greenpath/internal/model"
	"github.com/greenpath/greenpath/internal/service"
)

const stateCookieName = "oauth_state"

// AuthHandler manages accounts and sessions.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSendOTP / HandleVerifyOTP → prove ownership of an email address
//   - HandleRegister  → create an account for a verified email
//   - HandleLogin     → check credentials, issue the session cookie
//   - HandleLogout    → revoke the session and clear the cookie
//   - HandleMe / HandleUpdateMe → the caller's own profile
//   - HandleGitHubLogin / HandleGitHubCallback → optional GitHub sign-in
//
// DEPENDENCY CHAIN:
//   - svc    *service.AuthService   → all account rules
//   - github *auth.GitHubProvider   → OAuth code exchange (nil when disabled)
type AuthHandler struct {
	svc          *service.AuthService
	github       *auth.GitHubProvider
	sessionTTL   time.Duration
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil, in which case
// the GitHub routes are simply not mounted.
func NewAuthHandler(
	svc *service.AuthService,
	github *auth.GitHubProvider,
	sessionTTL time.Duration,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		svc:          svc,
		github:       github,
		sessionTTL:   sessionTTL,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

type otpSendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type otpVerifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type registerRequest struct {
	Username string        `json:"username" validate:"required,min=3,max=32"`
	Email    string        `json:"email" validate:"required,email"`
	Password string        `json:"password" validate:"required,min=8,max=128"`
	FullName string        `json:"fullName" validate:"max=200"`
	Phone    string        `json:"phone" validate:"max=32"`
	Address  model.Address `json:"address"`
	Role     model.Role    `json:"role" validate:"omitempty,oneof=customer dealer organization"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	FullName *string        `json:"fullName" validate:"omitempty,max=200"`
	Phone    *string        `json:"phone" validate:"omitempty,max=32"`
	Address  *model.Address `json:"address"`
	Email    *string        `json:"email" validate:"omitempty,email"`
}

// authResponse is returned by register and login. The token is also set as
// an HttpOnly cookie; API clients may send it as a Bearer header instead.
type authResponse struct {
	User      *model.User `json:"user"`
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// HandleSendOTP issues a verification code for an email address.
//
// HTTP: POST /api/otp/send
func (h *AuthHandler) HandleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpSendRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.svc.SendOTP(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "verification code sent"})
}

// HandleVerifyOTP marks an email as verified so it can register.
//
// HTTP: POST /api/otp/verify
func (h *AuthHandler) HandleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.svc.VerifyOTP(r.Context(), req.Email, req.OTP); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, message{Message: "email verified"})
}

// HandleRegister creates an account and logs it in.
//
// HTTP: POST /api/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.svc.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Phone:    req.Phone,
		Address:  req.Address,
		Role:     req.Role,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, authResponse{User: res.User, Token: res.Token, ExpiresAt: res.Session.ExpiresAt})
}

// HandleLogin establishes a session.
//
// HTTP: POST /api/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	res, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.setSessionCookie(w, res.Token)
	writeJSON(w, http.StatusOK, authResponse{User: res.User, Token: res.Token, ExpiresAt: res.Session.ExpiresAt})
}

// HandleLogout revokes the current session and clears the cookie.
//
// HTTP: POST /api/logout
//
// WHY POST AND NOT GET?
// Logout changes state. A GET could be triggered by a prefetch or an
// <img> tag on another site.
//
// The token's id is added to the revocation list, so the token stops
// working immediately even if a copy of it survives somewhere.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if session, ok := auth.SessionFromContext(r.Context()); ok {
		h.svc.Logout(r.Context(), session)
	}
	h.clearCookie(w, auth.CookieName)
	writeJSON(w, http.StatusOK, message{Message: "logged out"})
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /api/user
// Auth: Required (RequireAuth middleware puts the user in the context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Profile(r.Context(), actor(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleUpdateMe edits the caller's contact details.
//
// HTTP: PUT /api/user
func (h *AuthHandler) HandleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	u, err := h.svc.UpdateProfile(r.Context(), actor(r), service.ProfileUpdate{
		FullName: req.FullName,
		Phone:    req.Phone,
		Address:  req.Address,
		Email:    req.Email,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Find or create the linked account
//  4. Issue the session cookie
//  5. Redirect to the app home page
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch", slog.String("got", q.Get("state")))
		writeError(w, h.logger, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}
	// The state is single-use.
	h.clearCookie(w, stateCookieName)

	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	code := q.Get("code")
	if code == "" {
		writeError(w, h.logger, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}
	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "bad_gateway", Message: "authentication with GitHub failed"})
		return
	}

	// --- Step 3: Find or create the account ---
	res, err := h.svc.LoginGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	// --- Step 4 and 5: Session cookie, then back to the app ---
	h.setSessionCookie(w, res.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// setSessionCookie stores the JWT in an HttpOnly cookie.
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
