package service

// AuthService is the business logic layer for authentication. It sits between
// the HTTP handlers and the auth utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → Store (users)
//	                   ↘ TokenService (JWT), PasswordService (scrypt),
//	                     OTPStore (email codes), Revocations (logout)
//
// KEY RESPONSIBILITIES:
//   - Email verification codes: issue, deliver through a Mailer, verify
//   - Registration for verified emails, username/password login, logout
//   - The GitHub OAuth callback: find or create the user, issue a session
//   - The caller's own profile
//
// It never sets cookies or reads requests; that is the handler's job.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/greenpath/greenpath/internal/apperror"
	"github.com/greenpath/greenpath/internal/auth"
	"github.com/greenpath/greenpath/internal/model"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
	MinUsernameLength = 3
	MaxUsernameLength = 32
)

// Mailer delivers verification codes.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// LogMailer writes codes to the log instead of sending them. It is the
// default until a real delivery channel is configured.
type LogMailer struct {
	Logger *slog.Logger
}

func (m LogMailer) SendVerificationCode(_ context.Context, email, code string) error {
	m.Logger.Info("verification code issued", slog.String("email", email), slog.String("code", code))
	return nil
}

// AuthService handles the authentication business logic.
type AuthService struct {
	Deps
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	otps      *auth.OTPStore
	revoked   *auth.Revocations
	mailer    Mailer
}

func NewAuthService(
	d Deps,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	otps *auth.OTPStore,
	revoked *auth.Revocations,
	mailer Mailer,
) *AuthService {
	d = d.withDefaults()
	if mailer == nil {
		mailer = LogMailer{Logger: d.Logger}
	}
	return &AuthService{
		Deps:      d,
		tokens:    tokens,
		passwords: passwords,
		otps:      otps,
		revoked:   revoked,
		mailer:    mailer,
	}
}

// AuthResult bundles the user and the issued session so the handler can set
// the cookie and respond in one step.
type AuthResult struct {
	User    *model.User
	Token   string
	Session auth.Session
}

// SendOTP issues a fresh code for email and hands it to the mailer.
func (s *AuthService) SendOTP(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return apperror.ValidationFailed("email", "a valid email address is required")
	}
	code, err := s.otps.Issue(email)
	if err != nil {
		return err
	}
	if err := s.mailer.SendVerificationCode(ctx, email, code); err != nil {
		s.Logger.Error("failed to deliver verification code", slog.String("email", email), errAttr(err))
		return fmt.Errorf("sending verification code: %w", err)
	}
	return nil
}

func (s *AuthService) VerifyOTP(_ context.Context, email, code string) error {
	if !s.otps.Verify(email, strings.TrimSpace(code)) {
		return apperror.ValidationFailed("otp", "invalid or expired verification code")
	}
	s.Logger.Info("email verified", slog.String("email", email))
	return nil
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
	Phone    string
	Address  model.Address
	Role     model.Role
}

// Register creates an account for an email verified through VerifyOTP.
// Admin accounts cannot be self-registered.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username, err := validateUsername(in.Username)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	role := in.Role
	if role == "" {
		role = model.RoleCustomer
	}
	if !role.SelfRegistrable() {
		return nil, apperror.ValidationFailed("role", "role must be customer, dealer or organization")
	}
	if !s.otps.IsVerified(email) {
		return nil, apperror.ValidationFailed("email", "email address has not been verified")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user := &model.User{
		Username: username,
		Email:    email,
		Password: hash,
		FullName: strings.TrimSpace(in.FullName),
		Phone:    strings.TrimSpace(in.Phone),
		Address:  in.Address,
		Role:     role,
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	s.otps.Consume(email)

	s.Logger.Info("user registered",
		slog.Int64("userID", user.ID),
		slog.String("username", user.Username),
		slog.String("role", string(user.Role)),
	)
	return s.issue(user)
}

// CreateAdmin creates an administrator account. It backs cmd/create-admin,
// the only way to make the first admin; no email verification is needed
// because the operator runs it on the server itself.
func (s *AuthService) CreateAdmin(ctx context.Context, username, email, password string) (*model.User, error) {
	username, err := validateUsername(username)
	if err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user := &model.User{
		Username: username,
		Email:    email,
		Password: hash,
		Role:     model.RoleAdmin,
	}
	if err := s.Store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.Logger.Info("admin created", slog.Int64("userID", user.ID), slog.String("username", user.Username))
	return user, nil
}

// Login checks a username and password. Unknown users and wrong passwords
// produce the same error.
func (s *AuthService) Login(ctx context.Context, username, password string) (*AuthResult, error) {
	invalid := apperror.Unauthorized("invalid username or password")

	user, err := s.Store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, invalid
		}
		return nil, err
	}
	if user.Password == "" {
		return nil, invalid
	}
	if err := s.passwords.Verify(user.Password, password); err != nil {
		if errors.Is(err, auth.ErrInvalidPassword) {
			s.Logger.Warn("failed login", slog.String("username", user.Username))
			return nil, invalid
		}
		return nil, err
	}

	s.Logger.Info("user logged in", slog.Int64("userID", user.ID))
	return s.issue(user)
}

// Logout revokes the session so its token stops working before it expires.
func (s *AuthService) Logout(_ context.Context, session auth.Session) {
	s.revoked.Revoke(session.ID)
	s.Logger.Info("user logged out", slog.Int64("userID", session.UserID))
}

// LoginGitHub finds the account linked to a GitHub profile or creates one.
// New accounts are customers; the GitHub login becomes the username, with
// the GitHub id appended if that name is already taken.
func (s *AuthService) LoginGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user, err := s.Store.GetUserByGitHubID(ctx, gh.ID)
	if err == nil {
		s.Logger.Info("user authenticated via GitHub", slog.Int64("userID", user.ID))
		return s.issue(user)
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	email := strings.ToLower(gh.Email)
	if email == "" {
		email = gh.Login + "@users.noreply.github.com"
	}
	user = &model.User{
		Username: gh.Login,
		Email:    email,
		FullName: gh.Name,
		Role:     model.RoleCustomer,
		GitHubID: model.ID(gh.ID),
	}
	err = s.Store.CreateUser(ctx, user)
	var dup *apperror.AppError
	if errors.As(err, &dup) && dup.Field == "username" {
		user.Username = gh.Login + "-" + strconv.FormatInt(gh.ID, 10)
		err = s.Store.CreateUser(ctx, user)
	}
	if err != nil {
		return nil, err
	}

	s.Logger.Info("user registered via GitHub",
		slog.Int64("userID", user.ID),
		slog.String("login", gh.Login),
	)
	return s.issue(user)
}

// Profile reloads the caller so the response reflects the latest points
// and role.
func (s *AuthService) Profile(ctx context.Context, actor *model.User) (*model.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return s.Store.GetUser(ctx, actor.ID)
}

type ProfileUpdate struct {
	FullName *string
	Phone    *string
	Address  *model.Address
	Email    *string
}

// UpdateProfile edits the caller's own contact details. A new email must be
// verified first, like at registration.
func (s *AuthService) UpdateProfile(ctx context.Context, actor *model.User, upd ProfileUpdate) (*model.User, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	patch := model.UserPatch{FullName: upd.FullName, Phone: upd.Phone, Address: upd.Address}
	var newEmail string
	if upd.Email != nil {
		newEmail = strings.ToLower(strings.TrimSpace(*upd.Email))
		if newEmail != actor.Email {
			if !strings.Contains(newEmail, "@") {
				return nil, apperror.ValidationFailed("email", "a valid email address is required")
			}
			if !s.otps.IsVerified(newEmail) {
				return nil, apperror.ValidationFailed("email", "email address has not been verified")
			}
			patch.Email = &newEmail
		}
	}

	u, err := s.Store.UpdateUser(ctx, actor.ID, patch)
	if err != nil {
		return nil, err
	}
	if patch.Email != nil {
		s.otps.Consume(newEmail)
	}
	s.Logger.Info("profile updated", slog.Int64("userID", u.ID))
	return u, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, session, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %d: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token, Session: session}, nil
}

func validateUsername(name string) (string, error) {
	name = strings.TrimSpace(name)
	if n := len(name); n < MinUsernameLength || n > MaxUsernameLength {
		return "", apperror.ValidationFailed("username",
			fmt.Sprintf("username must be between %d and %d characters", MinUsernameLength, MaxUsernameLength))
	}
	for _, r := range name {
		if !(r == '_' || r == '-' || r == '.' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "", apperror.ValidationFailed("username", "username may contain letters, digits, '.', '-' and '_' only")
		}
	}
	return name, nil
}

func validatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(pw) > MaxPasswordLength {
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be %d characters or less", MaxPasswordLength))
	}
	return nil
}
