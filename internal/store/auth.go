package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrEmailTaken reports a registration against an email that already exists.
var ErrEmailTaken = errors.New("email has already been taken")

// AuthUser is one registered API user.
type AuthUser struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type authUserRow struct {
	ID           int64  `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    string `db:"created_at"`
	UpdatedAt    string `db:"updated_at"`
}

const authUserColumns = "u.id, u.name, u.email, u.password_hash, u.created_at, u.updated_at"

// CreateUser inserts one user. Duplicate emails return ErrEmailTaken.
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string, now time.Time) (*AuthUser, error) {
	name = strings.TrimSpace(name)
	email = normalizeAuthEmail(email)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, fmt.Errorf("password hash is required")
	}

	var row authUserRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO users (name, email, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id, name, email, password_hash, created_at, updated_at
	`, name, email, passwordHash, dbFormatTime(now), dbFormatTime(now))
	if err != nil {
		if isUniqueConstraint(err, "users.email") {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return row.toUser()
}

// GetUserByEmail returns a user by normalized email, or nil when missing.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*AuthUser, error) {
	email = normalizeAuthEmail(email)
	if email == "" {
		return nil, nil
	}
	return s.getUser(ctx, `
		SELECT `+authUserColumns+`
		FROM users u
		WHERE u.email = ?
		LIMIT 1
	`, email)
}

// GetUserByID returns a user by id, or nil when missing.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*AuthUser, error) {
	if id <= 0 {
		return nil, nil
	}
	return s.getUser(ctx, `
		SELECT `+authUserColumns+`
		FROM users u
		WHERE u.id = ?
		LIMIT 1
	`, id)
}

// CreateAccessToken stores the hash of a newly issued bearer token.
func (s *Store) CreateAccessToken(ctx context.Context, userID int64, name, tokenHash string, expiresAt *time.Time, now time.Time) error {
	tokenHash = strings.TrimSpace(tokenHash)
	if userID <= 0 {
		return fmt.Errorf("user id is required")
	}
	if tokenHash == "" {
		return fmt.Errorf("token hash is required")
	}

	tokenID, err := generateAuthID("at")
	if err != nil {
		return err
	}

	var expires any
	if expiresAt != nil {
		expires = dbFormatTime(*expiresAt)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO access_tokens (id, user_id, name, token_hash, last_used_at, expires_at, created_at)
		VALUES (?, ?, ?, ?, NULL, ?, ?)
	`, tokenID, userID, strings.TrimSpace(name), tokenHash, expires, dbFormatTime(now))
	return err
}

// GetUserByTokenHash returns the owner of an unexpired token and records its use.
func (s *Store) GetUserByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*AuthUser, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return nil, nil
	}

	user, err := s.getUser(ctx, `
		SELECT `+authUserColumns+`
		FROM access_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = ?
		  AND (t.expires_at IS NULL OR t.expires_at > ?)
		LIMIT 1
	`, tokenHash, dbFormatTime(now))
	if err != nil || user == nil {
		return user, err
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE access_tokens SET last_used_at = ? WHERE token_hash = ?
	`, dbFormatTime(now), tokenHash); err != nil {
		return nil, err
	}
	return user, nil
}

// RevokeAccessToken deletes one token by hash. It reports whether a token was removed.
func (s *Store) RevokeAccessToken(ctx context.Context, tokenHash string) (bool, error) {
	tokenHash = strings.TrimSpace(tokenHash)
	if tokenHash == "" {
		return false, nil
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM access_tokens WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) getUser(ctx context.Context, query string, args ...any) (*AuthUser, error) {
	var row authUserRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toUser()
}

func (r authUserRow) toUser() (*AuthUser, error) {
	createdAt, err := dbParseTime(r.CreatedAt)
	if err != nil {
		return nil, err
	}
	updatedAt, err := dbParseTime(r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &AuthUser{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}, nil
}

func normalizeAuthEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func isUniqueConstraint(err error, column string) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}

func generateAuthID(prefix string) (string, error) {
	id, err := randomHex(10)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s", prefix, id), nil
}

func randomHex(numBytes int) (string, error) {
	if numBytes <= 0 {
		return "", fmt.Errorf("numBytes must be > 0")
	}
	buf := make([]byte, numBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
