package models

import (
	"strings"
	"time"
)

// Sentence is one object sentence record with its attached image.
type Sentence struct {
	ID          int64     `json:"id" db:"id"`
	Sentence    string    `json:"sentence" db:"sentence"`
	Description *string   `json:"description" db:"description"`
	Image       string    `json:"image" db:"image"`
	ImageURL    string    `json:"image_url" db:"-"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// WithImageURL returns a copy of s with ImageURL resolved against baseURL.
func (s Sentence) WithImageURL(baseURL string) Sentence {
	s.ImageURL = ResolveImageURL(baseURL, s.Image)
	return s
}

// ResolveImageURL joins a public base URL and a relative blob path.
func ResolveImageURL(baseURL, imagePath string) string {
	imagePath = strings.TrimLeft(strings.TrimSpace(imagePath), "/")
	if imagePath == "" {
		return ""
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return "/" + imagePath
	}
	return baseURL + "/" + imagePath
}
