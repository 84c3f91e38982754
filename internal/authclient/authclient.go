// Package authclient talks to the practice backend's own auth endpoints:
// register, login, and the /me profile check. Tokens it obtains are stored
// as the session's local credential.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dgellow/vetfront/internal/emailutil"
	"github.com/dgellow/vetfront/internal/ioutil"
	"github.com/dgellow/vetfront/internal/log"
	"github.com/dgellow/vetfront/internal/session"
	"github.com/dgellow/vetfront/internal/urlutil"
)

var (
	// ErrInvalidCredentials means the backend rejected the email/password
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrEmailTaken means registration failed because the email is in use
	ErrEmailTaken = errors.New("email already registered")
)

// Service authenticates against the practice backend
type Service struct {
	baseURL    string
	httpClient *http.Client
	sessions   *session.Manager

	// Deduplicates concurrent /me checks per session
	group singleflight.Group
}

// NewService creates an auth client for the given backend
func NewService(baseURL string, timeout time.Duration, sessions *session.Manager) *Service {
	return &Service{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		sessions:   sessions,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type authResponse struct {
	Token string          `json:"token"`
	User  session.Profile `json:"user"`
}

// Register creates a backend account and logs the session in with the
// returned token
func (s *Service) Register(ctx context.Context, sessionID, email, password, name string) (*session.Profile, error) {
	resp, err := s.postCredentials(ctx, "/register", credentialsRequest{
		Email:    email,
		Password: password,
		Name:     name,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
	case http.StatusConflict:
		return nil, ErrEmailTaken
	default:
		return nil, fmt.Errorf("registration failed: backend returned %d: %s",
			resp.StatusCode, ioutil.ReadLimited(resp.Body, 1024))
	}

	user, err := s.storeAuthResponse(ctx, sessionID, resp)
	if err != nil {
		return nil, err
	}
	log.LogInfoWithFields("authclient", "User registered", map[string]interface{}{
		"session_id":   sessionID,
		"email_domain": emailutil.ExtractDomain(email),
	})
	return user, nil
}

// Login exchanges credentials for a backend token and stores it as the
// session's local credential
func (s *Service) Login(ctx context.Context, sessionID, email, password string) (*session.Profile, error) {
	resp, err := s.postCredentials(ctx, "/login", credentialsRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidCredentials
	default:
		return nil, fmt.Errorf("login failed: backend returned %d: %s",
			resp.StatusCode, ioutil.ReadLimited(resp.Body, 1024))
	}

	return s.storeAuthResponse(ctx, sessionID, resp)
}

// Logout drops the session's local credential. The backend has no logout
// endpoint; its tokens simply stop being presented.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Handle(sessionID).ClearLocal(ctx)
}

// CurrentUser validates the session's local token against /me.
//
// Outcomes are deliberately asymmetric:
//   - no stored token: (nil, nil) without any network call
//   - backend says 401: token is dead, session is invalidated, (nil, nil)
//   - transport or 5xx error: token might still be good, session is kept
//     and the error is returned
//   - success: profile cache is refreshed
//
// Concurrent calls for the same session share one backend request.
func (s *Service) CurrentUser(ctx context.Context, sessionID string) (*session.Profile, error) {
	handle := s.sessions.Handle(sessionID)

	token, err := handle.LocalToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}

	result, err, _ := s.group.Do(sessionID, func() (interface{}, error) {
		return s.fetchCurrentUser(ctx, handle, token)
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, nil
	}
	return result.(*session.Profile), nil
}

func (s *Service) fetchCurrentUser(ctx context.Context, handle session.Handle, token string) (*session.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlutil.MustJoinPath(s.baseURL, "/me"), nil)
	if err != nil {
		return nil, fmt.Errorf("creating /me request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checking current user: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// /me answers with the same {token, user} envelope as /login
		var auth authResponse
		if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
			return nil, fmt.Errorf("decoding /me response: %w", err)
		}
		user := auth.User
		if err := handle.SetUser(ctx, &user); err != nil {
			log.LogWarnWithFields("authclient", "Failed to refresh cached profile", map[string]interface{}{
				"session_id": handle.SessionID(),
				"error":      err.Error(),
			})
		}
		return &user, nil

	case resp.StatusCode == http.StatusUnauthorized:
		log.LogInfoWithFields("authclient", "Stored token rejected by backend, clearing session", map[string]interface{}{
			"session_id": handle.SessionID(),
		})
		if err := handle.Invalidate(ctx, session.ReasonTokenRejected); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("checking current user: backend returned %d", resp.StatusCode)
	}
}

// AuthToken returns the session's local token, or "" if none is stored
func (s *Service) AuthToken(ctx context.Context, sessionID string) (string, error) {
	return s.sessions.Handle(sessionID).LocalToken(ctx)
}

func (s *Service) postCredentials(ctx context.Context, path string, body credentialsRequest) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlutil.MustJoinPath(s.baseURL, path), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling backend %s: %w", path, err)
	}
	return resp, nil
}

func (s *Service) storeAuthResponse(ctx context.Context, sessionID string, resp *http.Response) (*session.Profile, error) {
	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return nil, fmt.Errorf("decoding auth response: %w", err)
	}
	if auth.Token == "" {
		return nil, fmt.Errorf("backend returned empty token")
	}

	if err := s.sessions.Handle(sessionID).SetLocal(ctx, auth.Token, &auth.User); err != nil {
		return nil, err
	}
	return &auth.User, nil
}
