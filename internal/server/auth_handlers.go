package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgellow/vetfront/internal/authclient"
	"github.com/dgellow/vetfront/internal/display"
	"github.com/dgellow/vetfront/internal/emailutil"
	jsonwriter "github.com/dgellow/vetfront/internal/json"
	"github.com/dgellow/vetfront/internal/log"
	"github.com/dgellow/vetfront/internal/session"
)

// AuthHandler serves the local (backend credential) auth endpoints
type AuthHandler struct {
	auth     *authclient.Service
	sessions *session.Manager
}

// NewAuthHandler creates the local auth handler
func NewAuthHandler(auth *authclient.Service, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions}
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type userResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *session.Profile `json:"user,omitempty"`
	DisplayName   string           `json:"display_name"`
}

func newUserResponse(user *session.Profile) userResponse {
	return userResponse{
		Authenticated: user != nil,
		User:          user,
		DisplayName:   display.DisplayName(user),
	}
}

// HandleRegister handles POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid request body")
		return
	}
	if body.Email == "" || body.Password == "" {
		jsonwriter.WriteBadRequest(w, "Email and password are required")
		return
	}

	sid := SessionIDFromContext(r.Context())
	user, err := h.auth.Register(r.Context(), sid, emailutil.Normalize(body.Email), body.Password, body.Name)
	if errors.Is(err, authclient.ErrEmailTaken) {
		jsonwriter.WriteError(w, http.StatusConflict, "conflict", "Email already registered")
		return
	}
	if err != nil {
		log.LogErrorWithFields("auth", "Registration failed", map[string]any{
			"session_id": sid,
			"error":      err.Error(),
		})
		jsonwriter.WriteServiceUnavailable(w, "Registration is temporarily unavailable")
		return
	}

	_ = jsonwriter.WriteResponse(w, http.StatusCreated, newUserResponse(user))
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid request body")
		return
	}
	if body.Email == "" || body.Password == "" {
		jsonwriter.WriteBadRequest(w, "Email and password are required")
		return
	}

	sid := SessionIDFromContext(r.Context())
	user, err := h.auth.Login(r.Context(), sid, emailutil.Normalize(body.Email), body.Password)
	if errors.Is(err, authclient.ErrInvalidCredentials) {
		jsonwriter.WriteUnauthorized(w, "Invalid email or password")
		return
	}
	if err != nil {
		log.LogErrorWithFields("auth", "Login failed", map[string]any{
			"session_id": sid,
			"error":      err.Error(),
		})
		jsonwriter.WriteServiceUnavailable(w, "Login is temporarily unavailable")
		return
	}

	_ = jsonwriter.Write(w, newUserResponse(user))
}

// HandleLogout handles POST /api/auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	if err := h.auth.Logout(r.Context(), sid); err != nil {
		log.LogErrorWithFields("auth", "Logout failed", map[string]any{
			"session_id": sid,
			"error":      err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Logout failed")
		return
	}
	_ = jsonwriter.Write(w, newUserResponse(nil))
}

// HandleMe handles GET /api/auth/me. It answers the question "who is
// logged in right now", falling back to the cached profile when the
// backend cannot be reached.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())

	user, err := h.auth.CurrentUser(r.Context(), sid)
	if err != nil {
		// Backend unreachable: the session may still be valid, answer
		// from the cache rather than logging the user out
		cached, cacheErr := h.sessions.Handle(sid).User(r.Context())
		if cacheErr != nil || cached == nil {
			log.LogWarnWithFields("auth", "Current-user check failed with no cached profile", map[string]any{
				"session_id": sid,
				"error":      err.Error(),
			})
			jsonwriter.WriteServiceUnavailable(w, "Cannot verify session right now")
			return
		}
		_ = jsonwriter.Write(w, newUserResponse(cached))
		return
	}

	_ = jsonwriter.Write(w, newUserResponse(user))
}
