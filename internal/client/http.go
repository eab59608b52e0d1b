// Package client is the HTTP client studyctl uses to talk to the progress
// API.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/studyquest/backend/internal/session"
	"github.com/studyquest/backend/internal/ws"
)

// HTTPClient makes REST calls with the user's bearer token.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a client targeting the given base URL (e.g. "http://127.0.0.1:8080").
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// OpenSession sends POST /api/session. Reopening with the same token
// returns the existing session.
func (c *HTTPClient) OpenSession(userID string) (*session.Info, error) {
	var out session.Info
	if err := c.post("/api/session", ws.OpenSessionRequest{UserID: userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CloseSession sends DELETE /api/session.
func (c *HTTPClient) CloseSession() error {
	return c.do(http.MethodDelete, "/api/session", nil, nil)
}

// Progress fetches /api/progress.
func (c *HTTPClient) Progress() (*ws.ProgressResponse, error) {
	var out ws.ProgressResponse
	if err := c.do(http.MethodGet, "/api/progress", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddPoints sends POST /api/points.
func (c *HTTPClient) AddPoints(amount int) (*ws.MutationResponse, error) {
	return c.mutate("/api/points", ws.PointsRequest{Amount: amount})
}

// StudySession sends POST /api/study-session.
func (c *HTTPClient) StudySession(minutes int, completed bool) (*ws.MutationResponse, error) {
	return c.mutate("/api/study-session", ws.StudySessionRequest{Minutes: minutes, Completed: completed})
}

// StudyTime sends POST /api/study-time.
func (c *HTTPClient) StudyTime(minutes int) (*ws.MutationResponse, error) {
	return c.mutate("/api/study-time", ws.StudyTimeRequest{Minutes: minutes})
}

// Quiz sends POST /api/quiz.
func (c *HTTPClient) Quiz(correct, wrong, revealed int) (*ws.MutationResponse, error) {
	return c.mutate("/api/quiz", ws.QuizRequest{Correct: correct, Wrong: wrong, Revealed: revealed})
}

// BuyPowerUp sends POST /api/powerups/{id}/buy.
func (c *HTTPClient) BuyPowerUp(id string) (*ws.MutationResponse, error) {
	return c.mutate("/api/powerups/"+url.PathEscape(id)+"/buy", nil)
}

// Push sends POST /api/sync/push.
func (c *HTTPClient) Push() (*ws.MutationResponse, error) {
	return c.mutate("/api/sync/push", nil)
}

// Pull sends POST /api/sync/pull.
func (c *HTTPClient) Pull() (*ws.MutationResponse, error) {
	return c.mutate("/api/sync/pull", nil)
}

func (c *HTTPClient) mutate(path string, body interface{}) (*ws.MutationResponse, error) {
	var out ws.MutationResponse
	if err := c.post(path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) post(path string, body, out interface{}) error {
	return c.do(http.MethodPost, path, body, out)
}

func (c *HTTPClient) do(method, path string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *HTTPClient) setAuth(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
