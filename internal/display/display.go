// Package display derives presentation-ready identity values from session
// state. Every function here is total: any combination of missing inputs
// yields a usable value, never an error.
package display

import "github.com/dgellow/vetfront/internal/session"

// Fallback values when profile data is missing
const (
	GuestName       = "Guest"
	PlaceholderName = "Authenticated User"
)

// ResolveUser picks the best available profile for display: a live fetch
// wins over the cache, the cache wins over nothing. providerActive covers
// the window where tokens are valid but no profile fetch has succeeded
// yet; a placeholder keeps the UI from claiming the user is logged out.
func ResolveUser(live, cached *session.Profile, providerActive bool) *session.Profile {
	if live != nil {
		return live
	}
	if cached != nil {
		return cached
	}
	if providerActive {
		return &session.Profile{Name: PlaceholderName}
	}
	return nil
}

// DisplayName returns what the UI should call the user
func DisplayName(user *session.Profile) string {
	if user == nil {
		return GuestName
	}
	if user.Name != "" {
		return user.Name
	}
	if user.Email != "" {
		return user.Email
	}
	return GuestName
}

// Initial returns a single-character avatar fallback
func Initial(user *session.Profile) string {
	name := DisplayName(user)
	for _, r := range name {
		return string(r)
	}
	return "?"
}
