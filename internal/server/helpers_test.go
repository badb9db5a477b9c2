package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"osapi/internal/blobstore"
	"osapi/internal/models"
	"osapi/internal/store"
)

var (
	pngBytes  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	jpegBytes = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	gifBytes  = []byte("GIF89a\x01\x00\x01\x00\x80\x00\x00\xff\xff\xff\x00\x00\x00!")
	textBytes = []byte("definitely not an image")

	errInjected = errors.New("injected failure")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func openTestBlobs(t *testing.T) *blobstore.LocalDir {
	t.Helper()
	blobs, err := blobstore.NewLocalDir(t.TempDir())
	require.NoError(t, err)
	return blobs
}

// faultyStore wraps the real store and fails selected writes.
type faultyStore struct {
	*store.Store

	mu        sync.Mutex
	createErr error
	updateErr error
	deleteErr error
	// vanishOnUpdate reports the record as gone when UpdateSentence runs.
	vanishOnUpdate bool
}

func (f *faultyStore) CreateSentence(ctx context.Context, fields store.SentenceFields) (*models.Sentence, error) {
	f.mu.Lock()
	err := f.createErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.Store.CreateSentence(ctx, fields)
}

func (f *faultyStore) UpdateSentence(ctx context.Context, id int64, fields store.SentenceFields) (*models.Sentence, error) {
	f.mu.Lock()
	err, vanish := f.updateErr, f.vanishOnUpdate
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if vanish {
		return nil, nil
	}
	return f.Store.UpdateSentence(ctx, id, fields)
}

func (f *faultyStore) DeleteSentence(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	err := f.deleteErr
	f.mu.Unlock()
	if err != nil {
		return false, err
	}
	return f.Store.DeleteSentence(ctx, id)
}

// faultyBlobs wraps a real blob store and fails selected operations.
type faultyBlobs struct {
	*blobstore.LocalDir

	mu        sync.Mutex
	saveErr   error
	deleteErr error
	deleted   []string
}

func (f *faultyBlobs) Save(ctx context.Context, r io.Reader, ext string) (string, error) {
	f.mu.Lock()
	err := f.saveErr
	f.mu.Unlock()
	if err != nil {
		return "", err
	}
	return f.LocalDir.Save(ctx, r, ext)
}

func (f *faultyBlobs) Delete(ctx context.Context, path string) error {
	f.mu.Lock()
	err := f.deleteErr
	f.deleted = append(f.deleted, path)
	f.mu.Unlock()
	if err != nil {
		return err
	}
	return f.LocalDir.Delete(ctx, path)
}

func (f *faultyBlobs) deleteCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

type serviceFixture struct {
	store   *faultyStore
	blobs   *faultyBlobs
	service *SentenceService
	metrics *serverMetrics
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	st := &faultyStore{Store: openTestStore(t)}
	blobs := &faultyBlobs{LocalDir: openTestBlobs(t)}
	svc := NewSentenceService(st, blobs, DefaultUploadPolicy(), "http://img.test", discardLogger())
	svc.metrics = newServerMetrics()
	return &serviceFixture{store: st, blobs: blobs, service: svc, metrics: svc.metrics}
}

func (f *serviceFixture) blobExists(t *testing.T, path string) bool {
	t.Helper()
	exists, err := f.blobs.Exists(context.Background(), path)
	require.NoError(t, err)
	return exists
}

func (f *serviceFixture) blobCount(t *testing.T) int {
	t.Helper()
	listed, err := f.blobs.List(context.Background())
	require.NoError(t, err)
	return len(listed)
}

func sentenceForm(sentence string, image []byte) SentenceForm {
	form := SentenceForm{Sentence: sentence}
	if image != nil {
		form.Image = &ImageUpload{Filename: "photo.png", Data: image}
	}
	return form
}

func strPtr(s string) *string {
	return &s
}

func requireAPIStatus(t *testing.T, err error, status int) apiError {
	t.Helper()
	require.Error(t, err)
	var apiErr apiError
	require.True(t, errors.As(err, &apiErr), "expected apiError, got %T: %v", err, err)
	require.Equal(t, status, apiErr.status)
	return apiErr
}
