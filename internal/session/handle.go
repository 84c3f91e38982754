package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgellow/vetfront/internal/storage"
)

// Handle reads and writes one session's auth state. It is a cheap value,
// not a resource; create one per request.
type Handle struct {
	m         *Manager
	sessionID string
}

// SessionID returns the session this handle is bound to
func (h Handle) SessionID() string {
	return h.sessionID
}

// SetLocal stores a backend-issued token and profile, replacing any
// provider credential so the session holds exactly one identity.
func (h Handle) SetLocal(ctx context.Context, token string, user *Profile) error {
	if token == "" {
		return fmt.Errorf("auth token cannot be empty")
	}
	if err := h.m.store.Set(ctx, h.sessionID, KeyAuthToken, token); err != nil {
		return fmt.Errorf("storing auth token: %w", err)
	}
	if user != nil {
		if err := h.SetUser(ctx, user); err != nil {
			return err
		}
	}
	return h.m.store.Delete(ctx, h.sessionID, KeyAccessToken, KeyIDToken)
}

// LocalToken returns the backend-issued token, or "" if the session has none
func (h Handle) LocalToken(ctx context.Context) (string, error) {
	token, err := h.m.store.Get(ctx, h.sessionID, KeyAuthToken)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading auth token: %w", err)
	}
	return token, nil
}

// SetProvider stores an identity-provider token pair, replacing any
// local credential.
func (h Handle) SetProvider(ctx context.Context, pair TokenPair) error {
	if pair.AccessToken == "" {
		return fmt.Errorf("access token cannot be empty")
	}
	if err := h.m.store.Set(ctx, h.sessionID, KeyAccessToken, pair.AccessToken); err != nil {
		return fmt.Errorf("storing access token: %w", err)
	}
	if pair.IDToken != "" {
		if err := h.m.store.Set(ctx, h.sessionID, KeyIDToken, pair.IDToken); err != nil {
			return fmt.Errorf("storing id token: %w", err)
		}
	}
	return h.m.store.Delete(ctx, h.sessionID, KeyAuthToken)
}

// ProviderTokens returns the identity-provider token pair, or nil if the
// session has none
func (h Handle) ProviderTokens(ctx context.Context) (*TokenPair, error) {
	access, err := h.m.store.Get(ctx, h.sessionID, KeyAccessToken)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading access token: %w", err)
	}

	pair := &TokenPair{AccessToken: access}
	idToken, err := h.m.store.Get(ctx, h.sessionID, KeyIDToken)
	if err == nil {
		pair.IDToken = idToken
	} else if !errors.Is(err, storage.ErrKeyNotFound) {
		return nil, fmt.Errorf("reading id token: %w", err)
	}
	return pair, nil
}

// SetUser caches the user profile
func (h Handle) SetUser(ctx context.Context, user *Profile) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshaling user profile: %w", err)
	}
	if err := h.m.store.Set(ctx, h.sessionID, KeyUser, string(data)); err != nil {
		return fmt.Errorf("storing user profile: %w", err)
	}
	return nil
}

// User returns the cached user profile, or nil if none is stored
func (h Handle) User(ctx context.Context) (*Profile, error) {
	data, err := h.m.store.Get(ctx, h.sessionID, KeyUser)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading user profile: %w", err)
	}

	var user Profile
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		return nil, fmt.Errorf("unmarshaling user profile: %w", err)
	}
	return &user, nil
}

// ClearLocal removes the backend credential and the cached profile
func (h Handle) ClearLocal(ctx context.Context) error {
	return h.m.store.Delete(ctx, h.sessionID, KeyAuthToken, KeyUser)
}

// ClearProvider removes the identity-provider credential, keeping the
// cached profile for stale display until the next successful check.
func (h Handle) ClearProvider(ctx context.Context) error {
	return h.m.store.Delete(ctx, h.sessionID, KeyAccessToken, KeyIDToken)
}

// ClearAll wipes every credential and cached value for the session
func (h Handle) ClearAll(ctx context.Context) error {
	return h.m.store.Clear(ctx, h.sessionID)
}

// Invalidate clears the session's credentials because a backend rejected
// them, and broadcasts the event to subscribers. Used when a 401 proves
// the stored token is no longer honored.
func (h Handle) Invalidate(ctx context.Context, reason InvalidationReason) error {
	err := h.m.store.Delete(ctx, h.sessionID,
		KeyAuthToken, KeyUser, KeyAccessToken, KeyIDToken, KeyLegacyProviderUser)
	if err != nil {
		return fmt.Errorf("clearing invalidated session: %w", err)
	}
	h.m.notify(Invalidation{SessionID: h.sessionID, Reason: reason})
	return nil
}

// Resolve returns the session's current auth state as a tagged value.
// A local credential wins over a leftover provider credential; the setters
// keep the two mutually exclusive so the precedence only matters for
// state written by older deployments.
func (h Handle) Resolve(ctx context.Context) (Current, error) {
	token, err := h.LocalToken(ctx)
	if err != nil {
		return Current{}, err
	}
	user, err := h.User(ctx)
	if err != nil {
		return Current{}, err
	}

	if token != "" {
		return Current{Kind: KindLocal, AuthToken: token, User: user}, nil
	}

	pair, err := h.ProviderTokens(ctx)
	if err != nil {
		return Current{}, err
	}
	if pair != nil {
		return Current{Kind: KindProvider, Tokens: pair, User: user}, nil
	}

	return Current{Kind: KindNone}, nil
}
