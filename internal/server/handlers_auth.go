package server

import (
	"net/http"
	"time"

	"osapi/internal/api"
	"osapi/internal/store"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	form, err := parseRequestForm(w, r, defaultJSONMaxBody, defaultJSONMaxBody)
	if err != nil {
		s.writeErrorReq(w, r, bodyError(err))
		return
	}

	result, err := s.auth.Register(r.Context(), RegisterForm{
		Name:                 form.value("name"),
		Email:                form.value("email"),
		Password:             form.value("password"),
		PasswordConfirmation: form.value("password_confirmation"),
	}, time.Now().UTC())
	if err != nil {
		s.writeErrorReq(w, r, err)
		return
	}

	s.log().Info("user registered", "user_id", result.User.ID)
	s.writeSuccess(w, http.StatusCreated, "User registered successfully", tokenResponse(result))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form, err := parseRequestForm(w, r, defaultJSONMaxBody, defaultJSONMaxBody)
	if err != nil {
		s.writeErrorReq(w, r, bodyError(err))
		return
	}

	result, err := s.auth.Login(r.Context(), form.value("email"), form.value("password"), time.Now().UTC())
	if err != nil {
		s.writeErrorReq(w, r, err)
		return
	}

	s.writeSuccess(w, http.StatusOK, "Login successful", tokenResponse(result))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok {
		s.writeErrorReq(w, r, unauthenticated())
		return
	}
	if err := s.auth.Revoke(r.Context(), principal.Token); err != nil {
		s.writeErrorReq(w, r, internalError(msgServerError, err))
		return
	}
	s.writeSuccess(w, http.StatusOK, "Logout successful", nil)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok {
		s.writeErrorReq(w, r, unauthenticated())
		return
	}
	s.writeSuccess(w, http.StatusOK, "User profile retrieved successfully", apiUser(principal.User))
}

func tokenResponse(result *authLoginResult) api.AuthTokenResponse {
	return api.AuthTokenResponse{
		User:        apiUser(result.User),
		AccessToken: result.Token,
		TokenType:   tokenTypeBearer,
	}
}

func apiUser(user *store.AuthUser) api.User {
	if user == nil {
		return api.User{}
	}
	return api.User{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
