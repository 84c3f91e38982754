// Package session owns authentication state for browser sessions. A session
// holds at most one active credential at a time: a token issued by the
// practice backend ("local") or a token pair issued by the hosted identity
// provider ("provider"). Consumers read the resolved state through Handle
// and learn about forced invalidations through Manager.Subscribe.
package session

import "time"

// Persisted key names. These are the stable storage schema; renaming one
// logs out every active session.
const (
	KeyAuthToken   = "auth_token"
	KeyUser        = "user"
	KeyAccessToken = "access_token"
	KeyIDToken     = "id_token"

	// KeyLegacyProviderUser is a profile cache written by older deployments.
	// It is never read, only cleared alongside the rest of the auth state.
	KeyLegacyProviderUser = "auth0_user"
)

// Kind tags which credential a session currently holds
type Kind string

const (
	KindNone     Kind = "none"
	KindLocal    Kind = "local"
	KindProvider Kind = "provider"
)

// Profile is the user identity attached to a session
type Profile struct {
	ID        string    `json:"id,omitempty"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// TokenPair is the credential issued by the identity provider
type TokenPair struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

// Current is the resolved authentication state of a session. Exactly one
// of the credential fields is populated, matching Kind.
type Current struct {
	Kind      Kind
	AuthToken string     // set when Kind == KindLocal
	Tokens    *TokenPair // set when Kind == KindProvider
	User      *Profile   // cached profile, may be nil even when authenticated
}

// InvalidationReason explains why a session was forcibly logged out
type InvalidationReason string

const (
	ReasonTokenRejected InvalidationReason = "token_rejected"
)

// Invalidation is broadcast to subscribers when a session's credentials
// are cleared without the user asking for it
type Invalidation struct {
	SessionID string
	Reason    InvalidationReason
}
