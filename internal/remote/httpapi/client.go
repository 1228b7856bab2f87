package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/marquee/internal/domain"
)

const (
	defaultTimeout = 60 * time.Second
	maxRetries     = 3
	baseRetryDelay = 500 * time.Millisecond

	// PrincipalHeader carries the caller's identity
	PrincipalHeader = "X-Principal"

	// ChunkOffsetHeader carries the byte offset of an uploaded chunk
	ChunkOffsetHeader = "X-Chunk-Offset"
)

// Client is the HTTP/JSON remote catalog gateway
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryDelay time.Duration
	logger     *slog.Logger
}

// NewClient creates a new catalog API client. A zero timeout takes the default.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retryDelay: baseRetryDelay,
		logger:     logger,
	}
}

// request describes one API call
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        []byte
	contentType string
	header      http.Header
}

// doRequest performs an API request carrying the caller's principal.
// Only GETs are retried, with exponential backoff on 5xx server errors;
// mutations are never resent.
func (c *Client) doRequest(ctx context.Context, r request) ([]byte, int, error) {
	reqURL := r.path
	if !strings.HasPrefix(reqURL, "http://") && !strings.HasPrefix(reqURL, "https://") {
		reqURL = c.baseURL + r.path
	}
	if len(r.query) > 0 {
		reqURL = fmt.Sprintf("%s?%s", reqURL, r.query.Encode())
	}

	retries := 0
	if r.method == http.MethodGet {
		retries = maxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}

		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // 500ms, 1s, 2s
			c.logger.Debug("retrying request", "op", r.op, "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			}
		}

		var body io.Reader
		if r.body != nil {
			body = bytes.NewReader(r.body)
		}
		req, err := http.NewRequestWithContext(ctx, r.method, reqURL, body)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if r.contentType != "" {
			req.Header.Set("Content-Type", r.contentType)
		}
		for k, vs := range r.header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		if p, ok := domain.PrincipalFromContext(ctx); ok {
			req.Header.Set(PrincipalHeader, string(p))
		}

		c.logger.Debug("catalog request", "op", r.op, "method", r.method, "url", reqURL, "attempt", attempt)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, ctx.Err()
			}
			c.logger.Error("catalog request failed", "op", r.op, "error", err)
			return nil, 0, fmt.Errorf("%s: %w", r.op, domain.ErrServerOffline)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read response: %w", err)
		}

		if resp.StatusCode >= 500 && resp.StatusCode < 600 {
			lastErr = fmt.Errorf("%s: server error: %d - %s", r.op, resp.StatusCode, string(respBody))
			c.logger.Warn("catalog server error",
				"op", r.op,
				"status", resp.StatusCode,
				"attempt", attempt,
				"maxRetries", retries,
			)
			continue
		}

		if err := statusError(r.op, resp.StatusCode, respBody); err != nil {
			c.logger.Warn("catalog request rejected", "op", r.op, "status", resp.StatusCode, "error", err)
			return nil, resp.StatusCode, err
		}
		return respBody, resp.StatusCode, nil
	}

	c.logger.Error("catalog request failed after retries", "op", r.op, "error", lastErr, "url", reqURL)
	return nil, 0, lastErr
}

// statusError maps non-2xx statuses onto the domain error taxonomy
func statusError(op string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	var er ErrorResponse
	_ = json.Unmarshal(body, &er)

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		var reason error = domain.ErrUnauthorized
		if er.Message != "" {
			reason = fmt.Errorf("%w: %s", domain.ErrUnauthorized, er.Message)
		}
		return &domain.AuthorizationError{Op: op, Err: reason}
	case http.StatusNotFound:
		return fmt.Errorf("%s: %w", op, domain.ErrTitleNotFound)
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		msg := er.Message
		if msg == "" {
			msg = http.StatusText(status)
		}
		verr := &domain.ValidationError{Field: er.Field, Reason: msg}
		if status == http.StatusRequestEntityTooLarge {
			verr.Err = domain.ErrFileTooLarge
		}
		return verr
	default:
		return fmt.Errorf("%s: unexpected status code: %d", op, status)
	}
}

func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, dest any) (int, error) {
	body, status, err := c.doRequest(ctx, request{op: op, method: http.MethodGet, path: path, query: query})
	if err != nil {
		return status, err
	}
	if status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return http.StatusNoContent, nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return status, fmt.Errorf("failed to parse response: %w", err)
	}
	return status, nil
}

func (c *Client) sendJSON(ctx context.Context, op, method, path string, payload, dest any) error {
	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}
	body, _, err := c.doRequest(ctx, request{op: op, method: method, path: path, body: data, contentType: "application/json"})
	if err != nil {
		return err
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// === Titles ===

func (c *Client) ListTitles(ctx context.Context) ([]domain.Title, error) {
	var dtos []TitleDTO
	if _, err := c.getJSON(ctx, "listTitles", "/titles", nil, &dtos); err != nil {
		return nil, err
	}
	return MapTitles(dtos, c.baseURL), nil
}

func (c *Client) ListTitlesByType(ctx context.Context, t domain.TitleType) ([]domain.Title, error) {
	q := url.Values{}
	q.Set("type", string(t))
	var dtos []TitleDTO
	if _, err := c.getJSON(ctx, "listTitlesByType", "/titles", q, &dtos); err != nil {
		return nil, err
	}
	return MapTitles(dtos, c.baseURL), nil
}

func (c *Client) SearchTitles(ctx context.Context, text string) ([]domain.Title, error) {
	q := url.Values{}
	q.Set("q", text)
	var dtos []TitleDTO
	if _, err := c.getJSON(ctx, "searchTitles", "/titles/search", q, &dtos); err != nil {
		return nil, err
	}
	return MapTitles(dtos, c.baseURL), nil
}

func (c *Client) GetTitle(ctx context.Context, id domain.TitleID) (*domain.Title, error) {
	var dto TitleDTO
	status, err := c.getJSON(ctx, "getTitle", "/titles/"+id.String(), nil, &dto)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, fmt.Errorf("getTitle: %w", domain.ErrTitleNotFound)
	}
	t := MapTitle(dto, c.baseURL)
	return &t, nil
}

func (c *Client) AddTitle(ctx context.Context, input domain.TitleInput) (domain.TitleID, error) {
	dto, err := MapTitleInput(input)
	if err != nil {
		return 0, err
	}
	var resp IDResponse
	if err := c.sendJSON(ctx, "addTitle", http.MethodPost, "/titles", dto, &resp); err != nil {
		return 0, err
	}
	return domain.TitleID(resp.ID), nil
}

func (c *Client) UpdateTitle(ctx context.Context, id domain.TitleID, input domain.TitleInput) error {
	dto, err := MapTitleInput(input)
	if err != nil {
		return err
	}
	return c.sendJSON(ctx, "updateTitle", http.MethodPut, "/titles/"+id.String(), dto, nil)
}

func (c *Client) DeleteTitle(ctx context.Context, id domain.TitleID) error {
	return c.sendJSON(ctx, "deleteTitle", http.MethodDelete, "/titles/"+id.String(), nil, nil)
}

// === Ratings ===

func (c *Client) GetRatings(ctx context.Context, id domain.TitleID) (*domain.Rating, error) {
	var dto *RatingDTO
	status, err := c.getJSON(ctx, "getRatings", "/titles/"+id.String()+"/ratings", nil, &dto)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || dto == nil {
		return nil, nil
	}
	return &domain.Rating{AverageRating: dto.AverageRating, RatingCount: dto.RatingCount}, nil
}

func (c *Client) RateTitle(ctx context.Context, id domain.TitleID, rating int) error {
	return c.sendJSON(ctx, "rateTitle", http.MethodPost, "/titles/"+id.String()+"/ratings", RateRequest{Rating: rating}, nil)
}

// === Profile & role ===

func (c *Client) GetMyProfile(ctx context.Context) (*domain.UserProfile, error) {
	var dto *ProfileDTO
	status, err := c.getJSON(ctx, "getMyProfile", "/me/profile", nil, &dto)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent || dto == nil {
		return nil, nil
	}
	return &domain.UserProfile{Name: dto.Name}, nil
}

func (c *Client) SaveMyProfile(ctx context.Context, profile domain.UserProfile) error {
	return c.sendJSON(ctx, "saveMyProfile", http.MethodPut, "/me/profile", ProfileDTO{Name: profile.Name}, nil)
}

func (c *Client) GetMyRole(ctx context.Context) (domain.Role, error) {
	var resp RoleResponse
	if _, err := c.getJSON(ctx, "getMyRole", "/me/role", nil, &resp); err != nil {
		return domain.RoleGuest, err
	}
	return domain.ParseRole(resp.Role), nil
}

// === Blobs ===

func (c *Client) BeginUpload(ctx context.Context, size int64, contentType string) (string, error) {
	var resp BeginUploadResponse
	req := BeginUploadRequest{Size: size, ContentType: contentType}
	if err := c.sendJSON(ctx, "beginUpload", http.MethodPost, "/uploads", req, &resp); err != nil {
		return "", err
	}
	if resp.UploadID == "" {
		return "", errors.New("beginUpload: empty upload id")
	}
	return resp.UploadID, nil
}

func (c *Client) UploadChunk(ctx context.Context, uploadID string, index int, offset int64, data []byte) error {
	header := http.Header{}
	header.Set(ChunkOffsetHeader, strconv.FormatInt(offset, 10))
	path := fmt.Sprintf("/uploads/%s/chunks/%d", url.PathEscape(uploadID), index)
	_, _, err := c.doRequest(ctx, request{
		op:          "uploadChunk",
		method:      http.MethodPut,
		path:        path,
		body:        data,
		contentType: "application/octet-stream",
		header:      header,
	})
	return err
}

func (c *Client) CompleteUpload(ctx context.Context, uploadID string) (string, error) {
	var resp CompleteUploadResponse
	path := fmt.Sprintf("/uploads/%s/complete", url.PathEscape(uploadID))
	if err := c.sendJSON(ctx, "completeUpload", http.MethodPost, path, nil, &resp); err != nil {
		return "", err
	}
	return resolveURL(c.baseURL, resp.URL), nil
}

func (c *Client) AbortUpload(ctx context.Context, uploadID string) error {
	return c.sendJSON(ctx, "abortUpload", http.MethodDelete, "/uploads/"+url.PathEscape(uploadID), nil, nil)
}

// FetchBlob downloads a stored asset
func (c *Client) FetchBlob(ctx context.Context, blobURL string) ([]byte, error) {
	body, _, err := c.doRequest(ctx, request{op: "fetchBlob", method: http.MethodGet, path: resolveURL(c.baseURL, blobURL)})
	return body, err
}
