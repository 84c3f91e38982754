// Package apiclient is the authenticated HTTP client for the practice
// backend's resource endpoints. It attaches the session's local token,
// fails fast when there is none, and invalidates the session when the
// backend stops honoring the token.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgellow/vetfront/internal/ioutil"
	"github.com/dgellow/vetfront/internal/log"
	"github.com/dgellow/vetfront/internal/session"
	"github.com/dgellow/vetfront/internal/urlutil"
)

var (
	// ErrAuthRequired means the session holds no token; no request was sent
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthExpired means the backend rejected the token; the session
	// has been invalidated
	ErrAuthExpired = errors.New("authentication expired")

	// ErrNotFound means the backend has no such resource
	ErrNotFound = errors.New("resource not found")
)

// Client issues authenticated requests against the practice backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   *session.Manager
}

// New creates a backend API client
func New(baseURL string, timeout time.Duration, sessions *session.Manager) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		sessions:   sessions,
	}
}

// Do sends an authenticated request. body is JSON-marshaled when non-nil;
// a 2xx response is decoded into out when out is non-nil.
//
// A missing token fails with ErrAuthRequired before any network traffic.
// A 401 invalidates the whole session and fails with ErrAuthExpired; the
// request is never retried since the backend has no refresh mechanism.
func (c *Client) Do(ctx context.Context, sessionID, method, path string, body, out interface{}) error {
	handle := c.sessions.Handle(sessionID)

	token, err := handle.LocalToken(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return ErrAuthRequired
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlutil.MustJoinPath(c.baseURL, path), reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out != nil && resp.StatusCode != http.StatusNoContent {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return fmt.Errorf("decoding response from %s: %w", path, err)
			}
		}
		return nil

	case resp.StatusCode == http.StatusUnauthorized:
		log.LogInfoWithFields("apiclient", "Backend rejected session token, invalidating session", map[string]interface{}{
			"session_id": sessionID,
			"path":       path,
		})
		if err := handle.Invalidate(ctx, session.ReasonTokenRejected); err != nil {
			return err
		}
		return ErrAuthExpired

	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound

	default:
		return fmt.Errorf("backend returned %d for %s %s: %s",
			resp.StatusCode, method, path, ioutil.ReadLimited(resp.Body, 1024))
	}
}

// Get is shorthand for an authenticated GET
func (c *Client) Get(ctx context.Context, sessionID, path string, out interface{}) error {
	return c.Do(ctx, sessionID, http.MethodGet, path, nil, out)
}

// Post is shorthand for an authenticated POST
func (c *Client) Post(ctx context.Context, sessionID, path string, body, out interface{}) error {
	return c.Do(ctx, sessionID, http.MethodPost, path, body, out)
}

// Put is shorthand for an authenticated PUT
func (c *Client) Put(ctx context.Context, sessionID, path string, body, out interface{}) error {
	return c.Do(ctx, sessionID, http.MethodPut, path, body, out)
}

// Delete is shorthand for an authenticated DELETE
func (c *Client) Delete(ctx context.Context, sessionID, path string) error {
	return c.Do(ctx, sessionID, http.MethodDelete, path, nil, nil)
}
