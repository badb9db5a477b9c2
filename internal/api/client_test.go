package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, env Envelope) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(env))
}

func TestClientSendsBearerTokenAndDecodesData(t *testing.T) {
	t.Setenv(apiTokenEnvKey, "env-token")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer env-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/object-sentences/7", r.URL.Path)
		writeEnvelope(t, w, http.StatusOK, Envelope{
			Success: true,
			Message: "Data retrieved successfully",
			Data:    map[string]any{"id": 7, "sentence": "A cat", "image": "uploads/category/a.jpg"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL + "/")
	got, err := client.GetSentence(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "A cat", got.Sentence)
	assert.Nil(t, got.Description)
}

func TestClientCreateSentenceSendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		assert.Equal(t, "A dog", r.FormValue("sentence"))
		_, hasDescription := r.MultipartForm.Value["description"]
		assert.False(t, hasDescription)

		file, header, err := r.FormFile("image")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		assert.NoError(t, err)
		assert.Equal(t, "dog.png", header.Filename)
		assert.Equal(t, []byte("png-bytes"), data)

		writeEnvelope(t, w, http.StatusCreated, Envelope{
			Success: true,
			Message: "Data created successfully",
			Data:    map[string]any{"id": 1, "sentence": "A dog", "image": "uploads/category/x.png"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	created, err := client.CreateSentence(context.Background(), SentenceInput{
		Sentence:  "A dog",
		ImageName: "dog.png",
		ImageData: []byte("png-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "uploads/category/x.png", created.Image)
}

func TestClientUpdateSentenceSendsEmptyDescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		values, ok := r.MultipartForm.Value["description"]
		assert.True(t, ok)
		assert.Equal(t, []string{""}, values)
		_, hasImage := r.MultipartForm.File["image"]
		assert.False(t, hasImage)
		writeEnvelope(t, w, http.StatusOK, Envelope{Success: true, Message: "Data updated successfully", Data: map[string]any{"id": 3}})
	}))
	defer srv.Close()

	empty := ""
	_, err := NewClient(srv.URL).UpdateSentence(context.Background(), 3, SentenceInput{Sentence: "s", Description: &empty})
	require.NoError(t, err)
}

func TestClientDecodesValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(t, w, http.StatusUnprocessableEntity, Envelope{
			Message: "Validation error",
			Errors:  map[string][]string{"image": {"The image field is required."}},
		})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).CreateSentence(context.Background(), SentenceInput{Sentence: "x"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.Status)
	assert.Equal(t, []string{"The image field is required."}, apiErr.Errors["image"])
	assert.Equal(t, "Validation error (image: The image field is required.)", apiErr.Error())
}

func TestClientDecodesNonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Ping(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "502")
}

func TestClientLoginAndListSentences(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login":
			var req LoginRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "ada@example.com", req.Email)
			writeEnvelope(t, w, http.StatusOK, Envelope{Success: true, Message: "Login successful", Data: AuthTokenResponse{
				User:        User{ID: 1, Email: req.Email},
				AccessToken: "fresh",
				TokenType:   "Bearer",
			}})
		case "/api/object-sentences":
			assert.Equal(t, "Bearer fresh", r.Header.Get("Authorization"))
			assert.Equal(t, "2", r.URL.Query().Get("page"))
			writeEnvelope(t, w, http.StatusOK, Envelope{Success: true, Message: "Data retrieved successfully", Data: SentencePage{CurrentPage: 2, PerPage: 10, Total: 11, LastPage: 2}})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Setenv(apiTokenEnvKey, "")
	client := NewClient(srv.URL)
	login, err := client.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", login.TokenType)

	client.SetToken(login.AccessToken)
	page, err := client.ListSentences(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 11, page.Total)
}
