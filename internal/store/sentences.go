package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"osapi/internal/models"
)

const sentenceTable = "object_sentences"

var sentenceColumns = []string{"id", "sentence", "description", "image", "created_at", "updated_at"}

var sentenceReturning = "RETURNING " + strings.Join(sentenceColumns, ", ")

type sentenceRow struct {
	ID          int64          `db:"id"`
	Sentence    string         `db:"sentence"`
	Description sql.NullString `db:"description"`
	Image       string         `db:"image"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
}

func (r sentenceRow) toModel() (models.Sentence, error) {
	createdAt, err := dbParseTime(r.CreatedAt)
	if err != nil {
		return models.Sentence{}, err
	}
	updatedAt, err := dbParseTime(r.UpdatedAt)
	if err != nil {
		return models.Sentence{}, err
	}
	out := models.Sentence{
		ID:        r.ID,
		Sentence:  r.Sentence,
		Image:     r.Image,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
	if r.Description.Valid {
		description := r.Description.String
		out.Description = &description
	}
	return out, nil
}

// CreateSentence inserts one sentence row and returns the stored record.
func (s *Store) CreateSentence(ctx context.Context, fields SentenceFields) (*models.Sentence, error) {
	now := dbFormatTime(time.Now())
	query, args, err := sq.Insert(sentenceTable).
		Columns("sentence", "description", "image", "created_at", "updated_at").
		Values(fields.Sentence, nullableString(fields.Description), fields.Image, now, now).
		Suffix(sentenceReturning).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row sentenceRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, fmt.Errorf("insert sentence: %w", err)
	}
	created, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetSentence returns one sentence by id, or nil when it does not exist.
func (s *Store) GetSentence(ctx context.Context, id int64) (*models.Sentence, error) {
	query, args, err := sq.Select(sentenceColumns...).
		From(sentenceTable).
		Where(sq.Eq{"id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row sentenceRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	found, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &found, nil
}

// ListSentences returns one page of sentences in insertion order.
func (s *Store) ListSentences(ctx context.Context, perPage, page int) (SentencePage, error) {
	var out SentencePage
	if perPage <= 0 {
		return out, fmt.Errorf("per page must be > 0")
	}
	if page < 1 {
		page = 1
	}

	countQuery, countArgs, err := sq.Select("COUNT(*)").From(sentenceTable).ToSql()
	if err != nil {
		return out, err
	}
	if err := s.db.GetContext(ctx, &out.Total, countQuery, countArgs...); err != nil {
		return out, err
	}

	query, args, err := sq.Select(sentenceColumns...).
		From(sentenceTable).
		OrderBy("id ASC").
		Limit(uint64(perPage)).
		Offset(uint64((page - 1) * perPage)).
		ToSql()
	if err != nil {
		return out, err
	}

	var rows []sentenceRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return out, err
	}
	out.Items = make([]models.Sentence, 0, len(rows))
	for _, row := range rows {
		item, err := row.toModel()
		if err != nil {
			return out, err
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}

// UpdateSentence overwrites the writable columns of one row and returns the
// stored record, or nil when the id does not exist.
func (s *Store) UpdateSentence(ctx context.Context, id int64, fields SentenceFields) (*models.Sentence, error) {
	query, args, err := sq.Update(sentenceTable).
		SetMap(map[string]any{
			"sentence":    fields.Sentence,
			"description": nullableString(fields.Description),
			"image":       fields.Image,
			"updated_at":  dbFormatTime(time.Now()),
		}).
		Where(sq.Eq{"id": id}).
		Suffix(sentenceReturning).
		ToSql()
	if err != nil {
		return nil, err
	}

	var row sentenceRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update sentence %d: %w", id, err)
	}
	updated, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteSentence removes one row. It reports false when the id does not exist.
func (s *Store) DeleteSentence(ctx context.Context, id int64) (bool, error) {
	query, args, err := sq.Delete(sentenceTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, err
	}
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete sentence %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ListSentenceImagePaths returns the image path of every stored sentence.
func (s *Store) ListSentenceImagePaths(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("image").From(sentenceTable).OrderBy("id ASC").ToSql()
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0)
	if err := s.db.SelectContext(ctx, &paths, query, args...); err != nil {
		return nil, err
	}
	return paths, nil
}

func nullableString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
