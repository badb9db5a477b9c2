package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegisterForm() RegisterForm {
	return RegisterForm{
		Name:                 "Ada Lovelace",
		Email:                "Ada@Example.com",
		Password:             "correct horse",
		PasswordConfirmation: "correct horse",
	}
}

func TestAuthServiceRegisterAndAuthenticate(t *testing.T) {
	svc := NewAuthService(openTestStore(t), 0)
	ctx := context.Background()
	now := time.Now().UTC()

	result, err := svc.Register(ctx, validRegisterForm(), now)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", result.User.Email)
	assert.NotEmpty(t, result.Token)
	assert.NotContains(t, result.Token, "=", "tokens are unpadded base64url")

	user, err := svc.Authenticate(ctx, result.Token, now.Add(24*365*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, user, "tokens without ttl never expire")
	assert.Equal(t, result.User.ID, user.ID)

	unknown, err := svc.Authenticate(ctx, "not-a-token", now)
	require.NoError(t, err)
	assert.Nil(t, unknown)
}

func TestAuthServiceRegisterValidation(t *testing.T) {
	svc := NewAuthService(openTestStore(t), 0)
	ctx := context.Background()

	tests := []struct {
		name  string
		edit  func(*RegisterForm)
		field string
		want  string
	}{
		{"name required", func(f *RegisterForm) { f.Name = " " }, "name", "The name field is required."},
		{"name too long", func(f *RegisterForm) { f.Name = strings.Repeat("n", 256) }, "name", "The name field must not be greater than 255 characters."},
		{"email required", func(f *RegisterForm) { f.Email = "" }, "email", "The email field is required."},
		{"email invalid", func(f *RegisterForm) { f.Email = "nope" }, "email", "The email field must be a valid email address."},
		{"password required", func(f *RegisterForm) { f.Password = ""; f.PasswordConfirmation = "" }, "password", "The password field is required."},
		{"password short", func(f *RegisterForm) { f.Password = "short"; f.PasswordConfirmation = "short" }, "password", "The password field must be at least 8 characters."},
		{"confirmation mismatch", func(f *RegisterForm) { f.PasswordConfirmation = "something else" }, "password", "The password field confirmation does not match."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validRegisterForm()
			tt.edit(&form)
			_, err := svc.Register(ctx, form, time.Now().UTC())
			apiErr := requireAPIStatus(t, err, http.StatusUnprocessableEntity)
			assert.Equal(t, []string{tt.want}, apiErr.fields[tt.field])
		})
	}
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	svc := NewAuthService(openTestStore(t), 0)
	ctx := context.Background()

	_, err := svc.Register(ctx, validRegisterForm(), time.Now().UTC())
	require.NoError(t, err)

	form := validRegisterForm()
	form.Email = "ADA@example.com"
	_, err = svc.Register(ctx, form, time.Now().UTC())
	apiErr := requireAPIStatus(t, err, http.StatusUnprocessableEntity)
	assert.Equal(t, []string{"The email has already been taken."}, apiErr.fields["email"])
}

func TestAuthServiceLogin(t *testing.T) {
	svc := NewAuthService(openTestStore(t), 0)
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := svc.Register(ctx, validRegisterForm(), now)
	require.NoError(t, err)

	result, err := svc.Login(ctx, "ada@example.com", "correct horse", now)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	_, err = svc.Login(ctx, "ada@example.com", "wrong password", now)
	apiErr := requireAPIStatus(t, err, http.StatusUnauthorized)
	assert.Equal(t, msgBadCredentials, apiErr.message)

	_, err = svc.Login(ctx, "nobody@example.com", "correct horse", now)
	requireAPIStatus(t, err, http.StatusUnauthorized)

	_, err = svc.Login(ctx, "", "", now)
	apiErr = requireAPIStatus(t, err, http.StatusUnprocessableEntity)
	assert.Contains(t, apiErr.fields, "email")
	assert.Contains(t, apiErr.fields, "password")
}

func TestAuthServiceRevoke(t *testing.T) {
	svc := NewAuthService(openTestStore(t), 0)
	ctx := context.Background()
	now := time.Now().UTC()

	registered, err := svc.Register(ctx, validRegisterForm(), now)
	require.NoError(t, err)
	second, err := svc.Login(ctx, "ada@example.com", "correct horse", now)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, registered.Token))

	user, err := svc.Authenticate(ctx, registered.Token, now)
	require.NoError(t, err)
	assert.Nil(t, user, "revoked token must not authenticate")

	user, err = svc.Authenticate(ctx, second.Token, now)
	require.NoError(t, err)
	assert.NotNil(t, user, "other tokens stay valid")
}

func TestAuthServiceTokenTTL(t *testing.T) {
	svc := NewAuthService(openTestStore(t), time.Hour)
	ctx := context.Background()
	now := time.Now().UTC()

	result, err := svc.Register(ctx, validRegisterForm(), now)
	require.NoError(t, err)

	user, err := svc.Authenticate(ctx, result.Token, now.Add(30*time.Minute))
	require.NoError(t, err)
	assert.NotNil(t, user)

	user, err = svc.Authenticate(ctx, result.Token, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestHashAccessTokenIsStable(t *testing.T) {
	assert.Equal(t, hashAccessToken("abc"), hashAccessToken("abc"))
	assert.NotEqual(t, hashAccessToken("abc"), hashAccessToken("abd"))
	assert.Len(t, hashAccessToken("abc"), 64)
}
