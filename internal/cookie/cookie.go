// Package cookie manages the browser session cookie. The cookie value is
// the session ID, encrypted so storage keys are never exposed to clients.
package cookie

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/vetfront/internal/crypto"
	"github.com/dgellow/vetfront/internal/envutil"
)

const (
	// Name of the session cookie
	Name = "vet_session"

	// MaxAge keeps sessions alive for 30 days of inactivity
	MaxAge = 30 * 24 * time.Hour
)

// Codec encrypts and decrypts session cookie values
type Codec struct {
	encryptor crypto.Encryptor
}

// NewCodec creates a cookie codec with the given encryptor
func NewCodec(encryptor crypto.Encryptor) *Codec {
	return &Codec{encryptor: encryptor}
}

// Set writes the session cookie on the response
func (c *Codec) Set(w http.ResponseWriter, sessionID string) error {
	value, err := c.encryptor.Encrypt(sessionID)
	if err != nil {
		return fmt.Errorf("encrypting session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     Name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Get reads and decrypts the session ID from the request. Returns "" when
// the cookie is absent or undecryptable; a garbage cookie is treated the
// same as no cookie.
func (c *Codec) Get(r *http.Request) string {
	ck, err := r.Cookie(Name)
	if err != nil {
		return ""
	}
	sessionID, err := c.encryptor.Decrypt(ck.Value)
	if err != nil {
		return ""
	}
	return sessionID
}

// Clear expires the session cookie
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !envutil.IsDev(),
		SameSite: http.SameSiteLaxMode,
	})
}
