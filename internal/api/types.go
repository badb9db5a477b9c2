package api

import (
	"time"

	"osapi/internal/models"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    any                 `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Error   string              `json:"error,omitempty"`
}

// SentencePage is one page of sentences in length-aware paginator form.
type SentencePage struct {
	CurrentPage  int               `json:"current_page"`
	Data         []models.Sentence `json:"data"`
	FirstPageURL string            `json:"first_page_url"`
	From         *int              `json:"from"`
	LastPage     int               `json:"last_page"`
	LastPageURL  string            `json:"last_page_url"`
	NextPageURL  *string           `json:"next_page_url"`
	Path         string            `json:"path"`
	PerPage      int               `json:"per_page"`
	PrevPageURL  *string           `json:"prev_page_url"`
	To           *int              `json:"to"`
	Total        int               `json:"total"`
}

// SentenceInput carries the fields of a create or update request.
// Description nil leaves the field out of the request entirely.
type SentenceInput struct {
	Sentence    string
	Description *string
	ImageName   string
	ImageData   []byte
}

// RegisterRequest defines the payload for POST /api/register.
type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// LoginRequest defines the payload for POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// User is the public view of a registered user.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AuthTokenResponse is returned by register and login.
type AuthTokenResponse struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// SentenceResponse is a single sentence as returned by the API.
type SentenceResponse = models.Sentence
