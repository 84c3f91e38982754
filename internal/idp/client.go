// Package idp implements the redirect-based login flow against a hosted
// identity provider. The provider returns tokens in the redirect fragment
// (implicit flow); this package persists them, validates them against the
// userinfo endpoint, and tracks a per-session flow status.
package idp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"golang.org/x/oauth2"

	"github.com/dgellow/vetfront/internal/config"
	"github.com/dgellow/vetfront/internal/log"
	"github.com/dgellow/vetfront/internal/session"
)

// Status is the lifecycle state of a session's provider flow
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusInitializing  Status = "initializing"
	StatusAuthenticated Status = "authenticated"
	StatusAnonymous     Status = "anonymous"
	StatusError         Status = "error"
)

var errUnauthorized = errors.New("provider rejected token")

// Client drives the provider flow for all sessions
type Client struct {
	oauth        oauth2.Config
	responseType string
	audience     string
	userInfoURL  string
	logoutURL    string
	sessions     *session.Manager

	mu       sync.RWMutex
	statuses map[string]Status
}

// Option customizes a Client
type Option func(*Client)

// WithUserInfoURL overrides the userinfo endpoint derived from the domain
func WithUserInfoURL(url string) Option {
	return func(c *Client) {
		c.userInfoURL = url
	}
}

// NewClient creates a provider client from config
func NewClient(cfg *config.ProviderConfig, sessions *session.Manager, opts ...Option) *Client {
	base := "https://" + cfg.Domain
	c := &Client{
		oauth: oauth2.Config{
			ClientID:     string(cfg.ClientID),
			ClientSecret: string(cfg.ClientSecret),
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/authorize",
				TokenURL: base + "/oauth/token",
			},
		},
		responseType: cfg.ResponseType,
		audience:     cfg.Audience,
		userInfoURL:  base + "/userinfo",
		logoutURL:    base + "/v2/logout",
		sessions:     sessions,
		statuses:     make(map[string]Status),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Status returns the session's flow status. Sessions never seen report
// StatusUninitialized.
func (c *Client) Status(sessionID string) Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if s, ok := c.statuses[sessionID]; ok {
		return s
	}
	return StatusUninitialized
}

func (c *Client) setStatus(sessionID string, s Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses[sessionID] = s
}

// Init performs the silent session check: if the session holds provider
// tokens, validate them against userinfo.
//
//   - no stored tokens: StatusAnonymous, no network call
//   - userinfo 401/403: tokens are dead, clear them, StatusAnonymous
//   - transport or 5xx error: tokens kept, StatusError, error returned
//   - success: profile cache refreshed, StatusAuthenticated
func (c *Client) Init(ctx context.Context, sessionID string) (Status, error) {
	c.setStatus(sessionID, StatusInitializing)
	handle := c.sessions.Handle(sessionID)

	pair, err := handle.ProviderTokens(ctx)
	if err != nil {
		c.setStatus(sessionID, StatusError)
		return StatusError, err
	}
	if pair == nil {
		c.setStatus(sessionID, StatusAnonymous)
		return StatusAnonymous, nil
	}

	profile, err := c.fetchUserInfo(ctx, pair.AccessToken)
	if errors.Is(err, errUnauthorized) {
		log.LogInfoWithFields("idp", "Stored provider tokens rejected, clearing them", map[string]interface{}{
			"session_id": sessionID,
		})
		if clearErr := handle.ClearProvider(ctx); clearErr != nil {
			c.setStatus(sessionID, StatusError)
			return StatusError, clearErr
		}
		c.setStatus(sessionID, StatusAnonymous)
		return StatusAnonymous, nil
	}
	if err != nil {
		// Could be a network blip; keep the tokens for the next check
		c.setStatus(sessionID, StatusError)
		return StatusError, err
	}

	if err := handle.SetUser(ctx, profile); err != nil {
		log.LogWarnWithFields("idp", "Failed to refresh cached profile", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
	}
	c.setStatus(sessionID, StatusAuthenticated)
	return StatusAuthenticated, nil
}

// LoginURL builds the provider's authorization URL for the implicit flow.
// state is the signed anti-forgery token, nonce binds the issued ID token
// to this request.
func (c *Client) LoginURL(state, nonce string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("response_type", c.responseType),
		oauth2.SetAuthURLParam("nonce", nonce),
	}
	if c.audience != "" {
		opts = append(opts, oauth2.SetAuthURLParam("audience", c.audience))
	}
	return c.oauth.AuthCodeURL(state, opts...)
}

// CompleteLogin persists the token pair delivered by the provider redirect
// and validates it against userinfo. The two steps are atomic: if the
// validation fails the stored pair is rolled back, so the session never
// keeps tokens that were dead on arrival.
func (c *Client) CompleteLogin(ctx context.Context, sessionID string, pair session.TokenPair) (*session.Profile, error) {
	handle := c.sessions.Handle(sessionID)

	if err := handle.SetProvider(ctx, pair); err != nil {
		return nil, err
	}

	profile, err := c.fetchUserInfo(ctx, pair.AccessToken)
	if err != nil {
		if rbErr := handle.ClearProvider(ctx); rbErr != nil {
			log.LogErrorWithFields("idp", "Failed to roll back rejected tokens", map[string]interface{}{
				"session_id": sessionID,
				"error":      rbErr.Error(),
			})
		}
		c.setStatus(sessionID, StatusAnonymous)
		return nil, fmt.Errorf("validating provider tokens: %w", err)
	}

	// userinfo responses can be sparse; fill gaps from the ID token claims
	if pair.IDToken != "" && (profile.Name == "" || profile.Picture == "") {
		if claims, claimsErr := ProfileFromIDToken(pair.IDToken); claimsErr == nil {
			if profile.Name == "" {
				profile.Name = claims.Name
			}
			if profile.Picture == "" {
				profile.Picture = claims.Picture
			}
		}
	}

	if err := handle.SetUser(ctx, profile); err != nil {
		return nil, err
	}
	c.setStatus(sessionID, StatusAuthenticated)
	return profile, nil
}

// Logout clears the session's provider state optimistically and returns
// the hosted logout URL to redirect the browser to. A failed or abandoned
// hosted logout is reconciled by the next Init.
func (c *Client) Logout(ctx context.Context, sessionID, returnTo string) (string, error) {
	handle := c.sessions.Handle(sessionID)
	if err := handle.ClearProvider(ctx); err != nil {
		return "", err
	}
	if err := handle.ClearLocal(ctx); err != nil {
		return "", err
	}
	c.setStatus(sessionID, StatusAnonymous)

	params := url.Values{}
	params.Set("client_id", c.oauth.ClientID)
	if returnTo != "" {
		params.Set("returnTo", returnTo)
	}
	return c.logoutURL + "?" + params.Encode(), nil
}

// Profile fetches a fresh profile from userinfo. Unlike Init, a failure
// here never clears the session; callers fall back to the cached profile.
func (c *Client) Profile(ctx context.Context, sessionID string) (*session.Profile, error) {
	pair, err := c.sessions.Handle(sessionID).ProviderTokens(ctx)
	if err != nil {
		return nil, err
	}
	if pair == nil {
		return nil, nil
	}
	return c.fetchUserInfo(ctx, pair.AccessToken)
}

func (c *Client) fetchUserInfo(ctx context.Context, accessToken string) (*session.Profile, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating userinfo request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching userinfo: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errUnauthorized
	default:
		return nil, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var info struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}

	return &session.Profile{
		ID:      info.Sub,
		Email:   info.Email,
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}
