package server

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	internalauth "osapi/internal/auth"
	"osapi/internal/store"
)

const (
	tokenTypeBearer  = "Bearer"
	defaultTokenName = "auth_token"
	accessTokenBytes = 32
)

// AuthService issues, resolves, and revokes opaque bearer tokens.
type AuthService struct {
	store    store.AuthStore
	tokenTTL time.Duration
}

// RegisterForm is the raw input of a registration request.
type RegisterForm struct {
	Name                 string
	Email                string
	Password             string
	PasswordConfirmation string
}

type authLoginResult struct {
	User  *store.AuthUser
	Token string
}

// NewAuthService constructs an AuthService. A zero ttl issues tokens that
// never expire.
func NewAuthService(authStore store.AuthStore, tokenTTL time.Duration) *AuthService {
	if authStore == nil {
		return nil
	}
	if tokenTTL < 0 {
		tokenTTL = 0
	}
	return &AuthService{store: authStore, tokenTTL: tokenTTL}
}

// Register creates a user and issues its first token.
func (a *AuthService) Register(ctx context.Context, form RegisterForm, now time.Time) (*authLoginResult, error) {
	if a == nil || a.store == nil {
		return nil, internalError(msgServerError, fmt.Errorf("auth store is required"))
	}

	errs := FieldErrors{}
	name, err := internalauth.NormalizeName(form.Name)
	if err != nil {
		errs.add("name", fieldMessage("name", err))
	}
	email, err := internalauth.NormalizeEmail(form.Email)
	if err != nil {
		errs.add("email", fieldMessage("email", err))
	}
	if err := internalauth.ValidatePassword(form.Password); err != nil {
		errs.add("password", fieldMessage("password", err))
	} else if form.Password != form.PasswordConfirmation {
		errs.add("password", "The password field confirmation does not match.")
	}
	if len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	hash, err := internalauth.HashPassword(form.Password)
	if err != nil {
		return nil, internalError(msgServerError, fmt.Errorf("hash password: %w", err))
	}
	user, err := a.store.CreateUser(ctx, name, email, hash, now)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, validationFailed(FieldErrors{"email": {"The email has already been taken."}})
		}
		return nil, internalError(msgServerError, fmt.Errorf("create user: %w", err))
	}

	token, err := a.issueToken(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}
	return &authLoginResult{User: user, Token: token}, nil
}

// Login verifies credentials and issues a new token.
func (a *AuthService) Login(ctx context.Context, email, password string, now time.Time) (*authLoginResult, error) {
	if a == nil || a.store == nil {
		return nil, internalError(msgServerError, fmt.Errorf("auth store is required"))
	}

	errs := FieldErrors{}
	email = strings.TrimSpace(email)
	if email == "" {
		errs.add("email", "The email field is required.")
	}
	if password == "" {
		errs.add("password", "The password field is required.")
	}
	if len(errs) > 0 {
		return nil, validationFailed(errs)
	}

	user, err := a.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, internalError(msgServerError, fmt.Errorf("get user: %w", err))
	}
	if user == nil || !internalauth.VerifyPassword(user.PasswordHash, password) {
		return nil, invalidCredentials()
	}

	token, err := a.issueToken(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}
	return &authLoginResult{User: user, Token: token}, nil
}

// Authenticate resolves a bearer token to its user, or nil when the token is
// unknown, revoked, or expired.
func (a *AuthService) Authenticate(ctx context.Context, token string, now time.Time) (*store.AuthUser, error) {
	if a == nil || a.store == nil {
		return nil, nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	return a.store.GetUserByTokenHash(ctx, hashAccessToken(token), now)
}

// Revoke deletes the presented token.
func (a *AuthService) Revoke(ctx context.Context, token string) error {
	if a == nil || a.store == nil {
		return nil
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	_, err := a.store.RevokeAccessToken(ctx, hashAccessToken(token))
	return err
}

func (a *AuthService) issueToken(ctx context.Context, userID int64, now time.Time) (string, error) {
	token, err := generateAccessToken()
	if err != nil {
		return "", internalError(msgServerError, fmt.Errorf("generate token: %w", err))
	}
	var expiresAt *time.Time
	if a.tokenTTL > 0 {
		expires := now.Add(a.tokenTTL)
		expiresAt = &expires
	}
	if err := a.store.CreateAccessToken(ctx, userID, defaultTokenName, hashAccessToken(token), expiresAt, now); err != nil {
		return "", internalError(msgServerError, fmt.Errorf("store token: %w", err))
	}
	return token, nil
}

func fieldMessage(field string, err error) string {
	switch {
	case errors.Is(err, internalauth.ErrRequired):
		return fmt.Sprintf("The %s field is required.", field)
	case errors.Is(err, internalauth.ErrInvalidEmail):
		return fmt.Sprintf("The %s field must be a valid email address.", field)
	case errors.Is(err, internalauth.ErrTooShort):
		return fmt.Sprintf("The %s field must be at least %d characters.", field, internalauth.MinPasswordLength)
	case errors.Is(err, internalauth.ErrTooLong) && field == "password":
		return fmt.Sprintf("The %s field must not be greater than %d characters.", field, internalauth.MaxPasswordBytes)
	case errors.Is(err, internalauth.ErrTooLong):
		return fmt.Sprintf("The %s field must not be greater than %d characters.", field, internalauth.MaxNameLength)
	default:
		return fmt.Sprintf("The %s field is invalid.", field)
	}
}

func hashAccessToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func generateAccessToken() (string, error) {
	buf := make([]byte, accessTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
