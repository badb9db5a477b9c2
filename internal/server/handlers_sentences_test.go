package server

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"osapi/internal/api"
	"osapi/internal/models"
)

func (ts *testServer) createSentence(t *testing.T, token, sentence string) models.Sentence {
	t.Helper()
	req := multipartRequest(t, http.MethodPost, "/api/object-sentences",
		map[string]string{"sentence": sentence},
		multipartFile{field: "image", filename: "cat.png", data: pngBytes},
	)
	w, env := ts.do(t, authed(req, token))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Sentence
	decodeData(t, env, &created)
	return created
}

func TestSentenceRoutesRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/object-sentences"},
		{http.MethodPost, "/api/object-sentences"},
		{http.MethodGet, "/api/object-sentences/1"},
		{http.MethodPost, "/api/object-sentences/1"},
		{http.MethodDelete, "/api/object-sentences/1"},
		{http.MethodGet, "/api/user"},
		{http.MethodPost, "/api/logout"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w, env := ts.do(t, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, api.Envelope{Success: false, Message: "Unauthenticated."}, env)
		})
	}
}

func TestCreateSentenceScenario(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "create@example.com")

	req := multipartRequest(t, http.MethodPost, "/api/object-sentences",
		map[string]string{"sentence": "A cat", "description": "sits on a mat"},
		multipartFile{field: "image", filename: "cat.jpg", data: jpegBytes},
	)
	w, env := ts.do(t, authed(req, token))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.True(t, env.Success)
	assert.Equal(t, "Data created successfully", env.Message)

	var created models.Sentence
	decodeData(t, env, &created)
	assert.Equal(t, "A cat", created.Sentence)
	require.NotNil(t, created.Description)
	assert.Equal(t, "sits on a mat", *created.Description)
	assert.True(t, strings.HasPrefix(created.Image, "uploads/category/"), created.Image)
	assert.Equal(t, "http://img.test/"+created.Image, created.ImageURL)

	exists, err := ts.blobs.Exists(req.Context(), created.Image)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCreateSentenceMissingImage(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "missing@example.com")

	req := multipartRequest(t, http.MethodPost, "/api/object-sentences", map[string]string{"sentence": "A cat"})
	w, env := ts.do(t, authed(req, token))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "Validation error", env.Message)
	assert.Equal(t, []string{"The image field is required."}, env.Errors["image"])
	assert.NotContains(t, env.Errors, "sentence")
}

func TestCreateSentenceRejectsNonImage(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "nonimage@example.com")

	req := multipartRequest(t, http.MethodPost, "/api/object-sentences",
		map[string]string{"sentence": "A cat"},
		multipartFile{field: "image", filename: "cat.png", data: textBytes},
	)
	w, env := ts.do(t, authed(req, token))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Errors["image"], "The image field must be an image.")
	assert.Zero(t, countBlobs(t, ts))
}

func TestCreateSentenceImageTooLarge(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.ConfigureUploadPolicy(UploadPolicy{MaxBytes: 64})
	token := ts.register(t, "large@example.com")

	data := append(append([]byte(nil), pngBytes...), bytes.Repeat([]byte{1}, 256)...)
	req := multipartRequest(t, http.MethodPost, "/api/object-sentences",
		map[string]string{"sentence": "A cat"},
		multipartFile{field: "image", filename: "cat.png", data: data},
	)
	w, env := ts.do(t, authed(req, token))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []string{"The image field must not be greater than 64 B."}, env.Errors["image"])
}

func TestCreateSentenceStoreFailure(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "failure@example.com")
	ts.store.createErr = errInjected

	req := multipartRequest(t, http.MethodPost, "/api/object-sentences",
		map[string]string{"sentence": "A cat"},
		multipartFile{field: "image", filename: "cat.png", data: pngBytes},
	)
	w, env := ts.do(t, authed(req, token))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to create data", env.Message)
	assert.Contains(t, env.Error, errInjected.Error())
	assert.Zero(t, countBlobs(t, ts))

	metrics := httptest.NewRecorder()
	ts.handler.ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metrics.Body.String(), `osapi_blob_compensations_total{operation="create",outcome="deleted"} 1`)
}

func TestShowSentence(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "show@example.com")
	created := ts.createSentence(t, token, "A cat")

	w, env := ts.do(t, authed(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/object-sentences/%d", created.ID), nil), token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Data retrieved successfully", env.Message)
	var shown models.Sentence
	decodeData(t, env, &shown)
	assert.Equal(t, created.ID, shown.ID)
	assert.Equal(t, created.Image, shown.Image)
}

func TestShowSentenceNotFound(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "notfound@example.com")

	for _, id := range []string{"999", "abc", "0", "-4"} {
		w, env := ts.do(t, authed(httptest.NewRequest(http.MethodGet, "/api/object-sentences/"+id, nil), token))
		assert.Equal(t, http.StatusNotFound, w.Code, id)
		assert.Equal(t, api.Envelope{Success: false, Message: "Data not found"}, env, id)
	}
}

func TestUpdateSentenceClearsDescription(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "update@example.com")

	req := multipartRequest(t, http.MethodPost, "/api/object-sentences",
		map[string]string{"sentence": "A cat", "description": "fluffy"},
		multipartFile{field: "image", filename: "cat.png", data: pngBytes},
	)
	w, env := ts.do(t, authed(req, token))
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Sentence
	decodeData(t, env, &created)

	req = multipartRequest(t, http.MethodPost, fmt.Sprintf("/api/object-sentences/%d", created.ID),
		map[string]string{"sentence": "A cat", "description": ""},
	)
	w, env = ts.do(t, authed(req, token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Data updated successfully", env.Message)

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, data, "description")
	assert.Nil(t, data["description"], "description should serialize as null")
	assert.Equal(t, created.Image, data["image"])
}

func TestUpdateSentenceWithJSONBody(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "json@example.com")
	created := ts.createSentence(t, token, "A cat")

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/object-sentences/%d", created.ID),
		strings.NewReader(`{"sentence":"A tabby","description":null}`))
	req.Header.Set("Content-Type", "application/json")
	w, env := ts.do(t, authed(req, token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Sentence
	decodeData(t, env, &updated)
	assert.Equal(t, "A tabby", updated.Sentence)
	assert.Nil(t, updated.Description)

	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/object-sentences/%d", created.ID),
		strings.NewReader(`{"sentence":42}`))
	req.Header.Set("Content-Type", "application/json")
	w, env = ts.do(t, authed(req, token))
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []string{"The sentence field must be a string."}, env.Errors["sentence"])
}

func TestUpdateSentenceReplacesImage(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "replace@example.com")
	created := ts.createSentence(t, token, "A cat")

	req := multipartRequest(t, http.MethodPost, fmt.Sprintf("/api/object-sentences/%d", created.ID),
		map[string]string{"sentence": "A bird"},
		multipartFile{field: "image", filename: "bird.gif", data: gifBytes},
	)
	w, env := ts.do(t, authed(req, token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Sentence
	decodeData(t, env, &updated)

	assert.True(t, strings.HasSuffix(updated.Image, ".gif"))
	oldExists, err := ts.blobs.Exists(req.Context(), created.Image)
	require.NoError(t, err)
	assert.False(t, oldExists)
	assert.Equal(t, 1, countBlobs(t, ts))
}

func TestUpdateSentenceMissingRecordAndValidation(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "updatemissing@example.com")

	req := multipartRequest(t, http.MethodPost, "/api/object-sentences/999", map[string]string{"sentence": "A cat"})
	w, env := ts.do(t, authed(req, token))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Data not found", env.Message)

	created := ts.createSentence(t, token, "A cat")
	req = multipartRequest(t, http.MethodPost, fmt.Sprintf("/api/object-sentences/%d", created.ID), map[string]string{"sentence": " "})
	w, env = ts.do(t, authed(req, token))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, []string{"The sentence field is required."}, env.Errors["sentence"])
}

func TestDeleteSentenceTwice(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "delete@example.com")
	created := ts.createSentence(t, token, "A cat")
	path := fmt.Sprintf("/api/object-sentences/%d", created.ID)

	w, env := ts.do(t, authed(httptest.NewRequest(http.MethodDelete, path, nil), token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, api.Envelope{Success: true, Message: "Data deleted successfully"}, env)
	assert.Zero(t, countBlobs(t, ts))

	w, env = ts.do(t, authed(httptest.NewRequest(http.MethodDelete, path, nil), token))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Data not found", env.Message)

	w, _ = ts.do(t, authed(httptest.NewRequest(http.MethodGet, path, nil), token))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteSentenceIntegrityFault(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "dangling@example.com")
	created := ts.createSentence(t, token, "A cat")
	ts.store.deleteErr = errInjected

	w, env := ts.do(t, authed(httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/object-sentences/%d", created.ID), nil), token))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to delete data", env.Message)

	metrics := httptest.NewRecorder()
	ts.handler.ServeHTTP(metrics, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, metrics.Body.String(), `osapi_integrity_faults_total{kind="dangling_record"} 1`)
}

func TestListSentencesPaginator(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "list@example.com")
	for i := 1; i <= 11; i++ {
		ts.createSentence(t, token, fmt.Sprintf("sentence %d", i))
	}

	req := httptest.NewRequest(http.MethodGet, "http://api.test/api/object-sentences?page=2", nil)
	w, env := ts.do(t, authed(req, token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Data retrieved successfully", env.Message)

	var page api.SentencePage
	decodeData(t, env, &page)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 11, page.Total)
	assert.Equal(t, 10, page.PerPage)
	assert.Equal(t, 2, page.LastPage)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "sentence 11", page.Data[0].Sentence)
	assert.Equal(t, "http://api.test/api/object-sentences", page.Path)
	assert.Equal(t, "http://api.test/api/object-sentences?page=1", page.FirstPageURL)
	require.NotNil(t, page.PrevPageURL)
	assert.Nil(t, page.NextPageURL)

	req = httptest.NewRequest(http.MethodGet, "/api/object-sentences?page=banana", nil)
	_, env = ts.do(t, authed(req, token))
	decodeData(t, env, &page)
	assert.Equal(t, 1, page.CurrentPage)
	assert.Len(t, page.Data, 10)
}

func TestServeUploadedImage(t *testing.T) {
	ts := newTestServer(t)
	token := ts.register(t, "uploads@example.com")
	created := ts.createSentence(t, token, "A cat")

	imageURL, err := url.Parse(created.ImageURL)
	require.NoError(t, err)
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, imageURL.Path, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Equal(t, pngBytes, body)

	w2, env := ts.do(t, httptest.NewRequest(http.MethodGet, "/uploads/category/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, w2.Code)
	assert.False(t, env.Success)
}

func countBlobs(t *testing.T, ts *testServer) int {
	t.Helper()
	listed, err := ts.blobs.List(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	require.NoError(t, err)
	return len(listed)
}
