package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "OSAPI_HTTP_TIMEOUT"
	apiTokenEnvKey     = "OSAPI_API_TOKEN"

	sentencesPath = "/api/object-sentences"
)

// Client is a simple HTTP client for the object sentence API.
type Client struct {
	baseURL   string
	http      *http.Client
	authToken string
}

// NewClient creates a new API client. The bearer token defaults to OSAPI_API_TOKEN.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: httpTimeoutFromEnv()},
		authToken: strings.TrimSpace(os.Getenv(apiTokenEnvKey)),
	}
}

// SetToken replaces the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.authToken = strings.TrimSpace(token)
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return nil
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (AuthTokenResponse, error) {
	var resp AuthTokenResponse
	_, err := c.doJSON(ctx, http.MethodPost, "/api/register", req, &resp)
	return resp, err
}

func (c *Client) Login(ctx context.Context, req LoginRequest) (AuthTokenResponse, error) {
	var resp AuthTokenResponse
	_, err := c.doJSON(ctx, http.MethodPost, "/api/login", req, &resp)
	return resp, err
}

func (c *Client) Logout(ctx context.Context) (string, error) {
	return c.doJSON(ctx, http.MethodPost, "/api/logout", nil, nil)
}

func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	var resp User
	_, err := c.doJSON(ctx, http.MethodGet, "/api/user", nil, &resp)
	return resp, err
}

func (c *Client) ListSentences(ctx context.Context, page int) (SentencePage, error) {
	var resp SentencePage
	path := sentencesPath
	if page > 0 {
		path += "?" + url.Values{"page": {strconv.Itoa(page)}}.Encode()
	}
	_, err := c.doJSON(ctx, http.MethodGet, path, nil, &resp)
	return resp, err
}

func (c *Client) GetSentence(ctx context.Context, id int64) (SentenceResponse, error) {
	var resp SentenceResponse
	_, err := c.doJSON(ctx, http.MethodGet, sentencePath(id), nil, &resp)
	return resp, err
}

func (c *Client) CreateSentence(ctx context.Context, in SentenceInput) (SentenceResponse, error) {
	var resp SentenceResponse
	err := c.doMultipart(ctx, sentencesPath, in, &resp)
	return resp, err
}

func (c *Client) UpdateSentence(ctx context.Context, id int64, in SentenceInput) (SentenceResponse, error) {
	var resp SentenceResponse
	err := c.doMultipart(ctx, sentencePath(id), in, &resp)
	return resp, err
}

// DeleteSentence removes one sentence and returns the server message.
func (c *Client) DeleteSentence(ctx context.Context, id int64) (string, error) {
	return c.doJSON(ctx, http.MethodDelete, sentencePath(id), nil, nil)
}

func sentencePath(id int64) string {
	return sentencesPath + "/" + strconv.FormatInt(id, 10)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) (string, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return "", err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return "", err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) doMultipart(ctx context.Context, path string, in SentenceInput, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("sentence", in.Sentence); err != nil {
		return err
	}
	if in.Description != nil {
		if err := writer.WriteField("description", *in.Description); err != nil {
			return err
		}
	}
	if in.ImageData != nil {
		name := in.ImageName
		if name == "" {
			name = "image"
		}
		part, err := writer.CreateFormFile("image", name)
		if err != nil {
			return err
		}
		if _, err := part.Write(in.ImageData); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	_, err = c.do(req, out)
	return err
}

type rawEnvelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Errors  map[string][]string `json:"errors"`
	Error   string              `json:"error"`
}

func (c *Client) do(req *http.Request, out any) (string, error) {
	req.Header.Set("Accept", "application/json")
	c.setAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}

	var env rawEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out == nil || len(env.Data) == 0 {
		return env.Message, nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return env.Message, fmt.Errorf("decode response data: %w", err)
	}
	return env.Message, nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var env rawEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err == nil {
		apiErr.Message = env.Message
		apiErr.Errors = env.Errors
		apiErr.Detail = env.Error
	}
	if apiErr.Message == "" {
		apiErr.Message = fmt.Sprintf("api error: %s", resp.Status)
	}
	return apiErr
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.authToken == "" || req == nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.authToken)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
