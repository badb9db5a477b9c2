package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osapi/internal/api"
)

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRegisterValidation(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "taken@example.com")

	w, env := ts.do(t, jsonRequest(t, http.MethodPost, "/api/register", api.RegisterRequest{
		Email:                "not-an-email",
		Password:             "short",
		PasswordConfirmation: "short",
	}))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.False(t, env.Success)
	assert.Equal(t, "Validation error", env.Message)
	assert.Equal(t, []string{"The name field is required."}, env.Errors["name"])
	assert.Equal(t, []string{"The email field must be a valid email address."}, env.Errors["email"])
	assert.Equal(t, []string{"The password field must be at least 8 characters."}, env.Errors["password"])

	w, env = ts.do(t, jsonRequest(t, http.MethodPost, "/api/register", api.RegisterRequest{
		Name:                 "Someone",
		Email:                "valid@example.com",
		Password:             "password123",
		PasswordConfirmation: "password124",
	}))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, []string{"The password field confirmation does not match."}, env.Errors["password"])

	w, env = ts.do(t, jsonRequest(t, http.MethodPost, "/api/register", api.RegisterRequest{
		Name:                 "Someone",
		Email:                "TAKEN@example.com",
		Password:             "password123",
		PasswordConfirmation: "password123",
	}))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, []string{"The email has already been taken."}, env.Errors["email"])
}

func TestRegisterAcceptsFormEncodedBody(t *testing.T) {
	ts := newTestServer(t)
	form := url.Values{
		"name":                  {"Form User"},
		"email":                 {"form@example.com"},
		"password":              {"password123"},
		"password_confirmation": {"password123"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w, env := ts.do(t, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "User registered successfully", env.Message)

	var data api.AuthTokenResponse
	decodeData(t, env, &data)
	assert.Equal(t, "Bearer", data.TokenType)
	assert.Equal(t, "form@example.com", data.User.Email)
}

func TestLoginLogoutCurrentUser(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "flow@example.com")

	w, env := ts.do(t, jsonRequest(t, http.MethodPost, "/api/login", api.LoginRequest{
		Email:    "flow@example.com",
		Password: "password123",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Login successful", env.Message)
	var login api.AuthTokenResponse
	decodeData(t, env, &login)
	require.NotEmpty(t, login.AccessToken)

	w, env = ts.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/user", nil), login.AccessToken))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var user api.User
	decodeData(t, env, &user)
	assert.Equal(t, "flow@example.com", user.Email)

	w, env = ts.do(t, authed(httptest.NewRequest(http.MethodPost, "/api/logout", nil), login.AccessToken))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Logout successful", env.Message)

	w, env = ts.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/user", nil), login.AccessToken))
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthenticated.", env.Message)
}

func TestLoginInvalidCredentials(t *testing.T) {
	ts := newTestServer(t)
	ts.register(t, "creds@example.com")

	for name, body := range map[string]api.LoginRequest{
		"wrong password": {Email: "creds@example.com", Password: "wrong-password"},
		"unknown email":  {Email: "nobody@example.com", Password: "password123"},
	} {
		t.Run(name, func(t *testing.T) {
			w, env := ts.do(t, jsonRequest(t, http.MethodPost, "/api/login", body))
			require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
			assert.Equal(t, "Invalid credentials", env.Message)
		})
	}

	w, env := ts.do(t, jsonRequest(t, http.MethodPost, "/api/login", api.LoginRequest{}))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []string{"The email field is required."}, env.Errors["email"])
	assert.Equal(t, []string{"The password field is required."}, env.Errors["password"])
}

func TestLogoutRevokesOnlyPresentedToken(t *testing.T) {
	ts := newTestServer(t)
	first := ts.register(t, "multi@example.com")

	w, env := ts.do(t, jsonRequest(t, http.MethodPost, "/api/login", api.LoginRequest{
		Email:    "multi@example.com",
		Password: "password123",
	}))
	require.Equal(t, http.StatusOK, w.Code)
	var second api.AuthTokenResponse
	decodeData(t, env, &second)

	w, _ = ts.do(t, authed(httptest.NewRequest(http.MethodPost, "/api/logout", nil), first))
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/user", nil), second.AccessToken))
	assert.Equal(t, http.StatusOK, w.Code)
}
