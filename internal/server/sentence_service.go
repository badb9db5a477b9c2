package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.uber.org/multierr"

	"osapi/internal/api"
	"osapi/internal/blobstore"
	"osapi/internal/config"
	"osapi/internal/models"
	"osapi/internal/store"
)

// SentenceService keeps sentence records and their image blobs in step.
// No lock spans the two stores; partial failures are compensated and
// anything that cannot be undone is logged and counted.
type SentenceService struct {
	store     store.SentenceStore
	blobs     blobstore.BlobStore
	policy    UploadPolicy
	publicURL string
	perPage   int
	logger    *slog.Logger
	metrics   *serverMetrics
}

// ReconcileResult reports one reconciliation run.
type ReconcileResult struct {
	BlobCount       int      `json:"blob_count"`
	RecordCount     int      `json:"record_count"`
	OrphanedBlobs   []string `json:"orphaned_blobs"`
	DanglingRecords []string `json:"dangling_records"`
	DeletedCount    int      `json:"deleted_count"`
	FailedCount     int      `json:"failed_count"`
	DryRun          bool     `json:"dry_run"`
}

// NewSentenceService constructs a SentenceService.
func NewSentenceService(sentenceStore store.SentenceStore, blobs blobstore.BlobStore, policy UploadPolicy, publicURL string, logger *slog.Logger) *SentenceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SentenceService{
		store:     sentenceStore,
		blobs:     blobs,
		policy:    policy.normalized(),
		publicURL: publicURL,
		perPage:   config.DefaultSentencePerPage,
		logger:    logger,
	}
}

// List returns one page of sentences. path is the collection URL used to
// build the page links.
func (s *SentenceService) List(ctx context.Context, page int, path string) (api.SentencePage, error) {
	if page < 1 {
		page = 1
	}
	result, err := s.store.ListSentences(ctx, s.perPage, page)
	if err != nil {
		return api.SentencePage{}, internalError(msgRetrieveFailed, fmt.Errorf("list sentences: %w", err))
	}
	items := make([]models.Sentence, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, s.present(item))
	}
	return buildSentencePage(items, result.Total, s.perPage, page, path), nil
}

// Show returns one sentence.
func (s *SentenceService) Show(ctx context.Context, id int64) (models.Sentence, error) {
	found, err := s.store.GetSentence(ctx, id)
	if err != nil {
		return models.Sentence{}, internalError(msgRetrieveFailed, fmt.Errorf("get sentence %d: %w", id, err))
	}
	if found == nil {
		return models.Sentence{}, notFound()
	}
	return s.present(*found), nil
}

// Create validates form, stores its image, then inserts the record.
func (s *SentenceService) Create(ctx context.Context, form SentenceForm) (models.Sentence, error) {
	var zero models.Sentence

	payload, fieldErrs := s.policy.validateSentenceForm(form, true)
	if fieldErrs != nil {
		return zero, validationFailed(fieldErrs)
	}

	imagePath, err := s.blobs.Save(ctx, bytes.NewReader(payload.image.data), payload.image.ext)
	if err != nil {
		return zero, internalError(msgCreateFailed, fmt.Errorf("save image: %w", err))
	}

	created, err := s.store.CreateSentence(ctx, store.SentenceFields{
		Sentence:    payload.sentence,
		Description: payload.description,
		Image:       imagePath,
	})
	if err != nil {
		err = fmt.Errorf("create sentence: %w", err)
		return zero, internalError(msgCreateFailed, multierr.Append(err, s.discardBlob(ctx, "create", imagePath)))
	}
	s.log().Debug("sentence created", "id", created.ID, "image", created.Image)
	return s.present(*created), nil
}

// Update replaces the writable fields of one sentence. A new image is stored
// before the record points at it; the old image is removed only afterwards.
func (s *SentenceService) Update(ctx context.Context, id int64, form SentenceForm) (models.Sentence, error) {
	var zero models.Sentence

	current, err := s.store.GetSentence(ctx, id)
	if err != nil {
		return zero, internalError(msgUpdateFailed, fmt.Errorf("get sentence %d: %w", id, err))
	}
	if current == nil {
		return zero, notFound()
	}

	payload, fieldErrs := s.policy.validateSentenceForm(form, false)
	if fieldErrs != nil {
		return zero, validationFailed(fieldErrs)
	}

	fields := store.SentenceFields{
		Sentence:    payload.sentence,
		Description: current.Description,
		Image:       current.Image,
	}
	if payload.descriptionSet {
		fields.Description = payload.description
	}

	var newPath string
	if payload.image != nil {
		newPath, err = s.blobs.Save(ctx, bytes.NewReader(payload.image.data), payload.image.ext)
		if err != nil {
			return zero, internalError(msgUpdateFailed, fmt.Errorf("save image: %w", err))
		}
		fields.Image = newPath
	}

	updated, err := s.store.UpdateSentence(ctx, id, fields)
	if err != nil || updated == nil {
		var discardErr error
		if newPath != "" {
			discardErr = s.discardBlob(ctx, "update", newPath)
		}
		if err != nil {
			err = fmt.Errorf("update sentence %d: %w", id, err)
			return zero, internalError(msgUpdateFailed, multierr.Append(err, discardErr))
		}
		return zero, notFound()
	}

	if newPath != "" && current.Image != "" && current.Image != newPath {
		s.removeReplacedBlob(ctx, updated.ID, current.Image)
	}
	s.log().Debug("sentence updated", "id", updated.ID, "image", updated.Image)
	return s.present(*updated), nil
}

// Delete removes the image and then the record.
func (s *SentenceService) Delete(ctx context.Context, id int64) error {
	current, err := s.store.GetSentence(ctx, id)
	if err != nil {
		return internalError(msgDeleteFailed, fmt.Errorf("get sentence %d: %w", id, err))
	}
	if current == nil {
		return notFound()
	}

	if current.Image != "" {
		exists, err := s.blobs.Exists(ctx, current.Image)
		if err != nil && !errors.Is(err, blobstore.ErrInvalidPath) {
			return internalError(msgDeleteFailed, fmt.Errorf("stat image %s: %w", current.Image, err))
		}
		if exists {
			if err := s.blobs.Delete(ctx, current.Image); err != nil {
				return internalError(msgDeleteFailed, fmt.Errorf("delete image %s: %w", current.Image, err))
			}
		}
	}

	deleted, err := s.store.DeleteSentence(ctx, id)
	if err != nil {
		s.metrics.integrityFault("dangling_record")
		s.log().Error("dangling record", "id", id, "path", current.Image, "error", err)
		return integrityFault(msgDeleteFailed, fmt.Errorf("delete sentence %d: %w", id, err))
	}
	if !deleted {
		return notFound()
	}
	s.log().Debug("sentence deleted", "id", id, "image", current.Image)
	return nil
}

// Reconcile compares stored blobs with the image paths records point at.
// With apply, orphaned blobs are deleted; dangling records are only reported.
func (s *SentenceService) Reconcile(ctx context.Context, apply bool) (ReconcileResult, error) {
	result := ReconcileResult{
		OrphanedBlobs:   []string{},
		DanglingRecords: []string{},
		DryRun:          !apply,
	}

	blobs, err := s.blobs.List(ctx)
	if err != nil {
		return result, fmt.Errorf("list blobs: %w", err)
	}
	referenced, err := s.store.ListSentenceImagePaths(ctx)
	if err != nil {
		return result, fmt.Errorf("list image paths: %w", err)
	}
	result.BlobCount = len(blobs)
	result.RecordCount = len(referenced)

	stored := make(map[string]struct{}, len(blobs))
	for _, path := range blobs {
		stored[path] = struct{}{}
	}
	inUse := make(map[string]struct{}, len(referenced))
	for _, path := range referenced {
		inUse[path] = struct{}{}
		if _, ok := stored[path]; !ok {
			result.DanglingRecords = append(result.DanglingRecords, path)
		}
	}
	for _, path := range blobs {
		if _, ok := inUse[path]; !ok {
			result.OrphanedBlobs = append(result.OrphanedBlobs, path)
		}
	}

	if !apply {
		return result, nil
	}
	for _, path := range result.OrphanedBlobs {
		if err := s.blobs.Delete(ctx, path); err != nil {
			result.FailedCount++
			s.log().Warn("reconcile delete failed", "path", path, "error", err)
			continue
		}
		result.DeletedCount++
	}
	return result, nil
}

// discardBlob undoes a Save whose record write did not happen. The request
// context may already be canceled, so cancellation is detached.
func (s *SentenceService) discardBlob(ctx context.Context, operation, path string) error {
	err := s.blobs.Delete(context.WithoutCancel(ctx), path)
	s.metrics.compensation(operation, err == nil)
	if err != nil {
		s.metrics.integrityFault("orphaned_blob")
		s.log().Error("orphaned blob", "operation", operation, "path", path, "error", err)
		return fmt.Errorf("discard image %s: %w", path, err)
	}
	return nil
}

func (s *SentenceService) removeReplacedBlob(ctx context.Context, id int64, path string) {
	ctx = context.WithoutCancel(ctx)
	exists, err := s.blobs.Exists(ctx, path)
	if err == nil && !exists {
		return
	}
	if err == nil {
		err = s.blobs.Delete(ctx, path)
	}
	if err != nil {
		s.metrics.integrityFault("orphaned_blob")
		s.log().Error("orphaned blob", "operation", "update", "id", id, "path", path, "error", err)
	}
}

func (s *SentenceService) present(record models.Sentence) models.Sentence {
	return record.WithImageURL(s.publicURL)
}

func (s *SentenceService) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
