// Package remote is a ProgressStore backed by an HTTP document service.
// Documents live at {baseURL}/progress/{userID}; GET reads one and PUT
// replaces it. The caller's bearer token travels in the request context.
package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/studyquest/backend/internal/auth"
	"github.com/studyquest/backend/internal/progress"
	"github.com/studyquest/backend/internal/store"
)

// Store talks to the remote document service.
type Store struct {
	baseURL string
	client  *http.Client
}

// New creates a Store targeting baseURL (e.g. "https://db.example.com/v1").
func New(baseURL string) *Store {
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Store) Fetch(ctx context.Context, userID string) (*progress.Snapshot, error) {
	req, err := s.newRequest(ctx, http.MethodGet, userID, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("GET progress: reading body: %w", err)
	}
	if err := statusError(http.MethodGet, resp.StatusCode, body); err != nil {
		return nil, err
	}
	return store.Decode(body)
}

func (s *Store) Persist(ctx context.Context, userID string, snap *progress.Snapshot) error {
	data, err := store.Encode(snap)
	if err != nil {
		return err
	}
	req, err := s.newRequest(ctx, http.MethodPut, userID, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return statusError(http.MethodPut, resp.StatusCode, body)
}

func (s *Store) newRequest(ctx context.Context, method, userID string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+"/progress/"+url.PathEscape(userID), body)
	if err != nil {
		return nil, err
	}
	if tok, ok := auth.TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	return req, nil
}

func statusError(method string, code int, body []byte) error {
	switch {
	case code < 300:
		return nil
	case code == http.StatusNotFound:
		return store.ErrNotFound
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", progress.ErrInvalidSnapshot, strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("%s progress: %d %s", method, code, strings.TrimSpace(string(body)))
	}
}
