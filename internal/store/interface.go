package store

import (
	"context"
	"time"

	"osapi/internal/models"
)

// SentenceFields holds the writable columns of a sentence row.
type SentenceFields struct {
	Sentence    string
	Description *string
	Image       string
}

// SentencePage is one page of sentences plus the total row count.
type SentencePage struct {
	Items []models.Sentence
	Total int
}

// SentenceStore abstracts sentence record storage. Missing ids are reported as
// nil records or false, never as errors.
type SentenceStore interface {
	CreateSentence(ctx context.Context, fields SentenceFields) (*models.Sentence, error)
	GetSentence(ctx context.Context, id int64) (*models.Sentence, error)
	ListSentences(ctx context.Context, perPage, page int) (SentencePage, error)
	UpdateSentence(ctx context.Context, id int64, fields SentenceFields) (*models.Sentence, error)
	DeleteSentence(ctx context.Context, id int64) (bool, error)
	ListSentenceImagePaths(ctx context.Context) ([]string, error)
}

// AuthStore abstracts user and access token storage.
type AuthStore interface {
	CreateUser(ctx context.Context, name, email, passwordHash string, now time.Time) (*AuthUser, error)
	GetUserByEmail(ctx context.Context, email string) (*AuthUser, error)
	GetUserByID(ctx context.Context, id int64) (*AuthUser, error)
	CreateAccessToken(ctx context.Context, userID int64, name, tokenHash string, expiresAt *time.Time, now time.Time) error
	GetUserByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*AuthUser, error)
	RevokeAccessToken(ctx context.Context, tokenHash string) (bool, error)
}

var (
	_ SentenceStore = (*Store)(nil)
	_ AuthStore     = (*Store)(nil)
)
