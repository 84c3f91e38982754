package server

import (
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"github.com/dgellow/vetfront/internal/crypto"
	"github.com/dgellow/vetfront/internal/idp"
	jsonwriter "github.com/dgellow/vetfront/internal/json"
	"github.com/dgellow/vetfront/internal/log"
	"github.com/dgellow/vetfront/internal/session"
	"github.com/dgellow/vetfront/internal/urlutil"
)

// authorizationState is the signed payload round-tripped through the
// provider's state parameter
type authorizationState struct {
	Nonce     string `json:"nonce"`
	ReturnURL string `json:"return_url,omitempty"`
}

// ProviderHandler serves the redirect-based provider login flow
type ProviderHandler struct {
	idp         *idp.Client
	stateSigner *crypto.TokenSigner
	baseURL     string
}

// NewProviderHandler creates the provider flow handler
func NewProviderHandler(client *idp.Client, stateSigner *crypto.TokenSigner, baseURL string) *ProviderHandler {
	return &ProviderHandler{idp: client, stateSigner: stateSigner, baseURL: baseURL}
}

// safeReturnURL restricts post-login redirects to same-site paths
func safeReturnURL(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") {
		return "/"
	}
	return raw
}

// HandleLogin handles GET /auth/provider/login. Redirects the browser to
// the provider's authorization page.
func (h *ProviderHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	nonce, err := crypto.GenerateSecureToken()
	if err != nil {
		log.LogError("Failed to generate state nonce: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to start login")
		return
	}

	state, err := h.stateSigner.Sign(authorizationState{
		Nonce:     nonce,
		ReturnURL: safeReturnURL(r.URL.Query().Get("return_to")),
	})
	if err != nil {
		log.LogError("Failed to sign authorization state: %v", err)
		jsonwriter.WriteInternalServerError(w, "Failed to start login")
		return
	}

	http.Redirect(w, r, h.idp.LoginURL(state, nonce), http.StatusFound)
}

// callbackPage lifts the token fragment out of the URL and hands it to the
// complete endpoint. Fragments never reach the server on their own, so
// this hop through the browser is unavoidable with the implicit flow.
var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><title>Signing in…</title></head>
<body>
<p>Signing in…</p>
<script>
(function () {
  var params = new URLSearchParams(window.location.hash.substring(1));
  var state = params.get("state");
  var accessToken = params.get("access_token");
  if (!state || !accessToken) {
    window.location.replace("/");
    return;
  }
  fetch({{.CompleteURL}}, {
    method: "POST",
    headers: {"Content-Type": "application/json"},
    credentials: "same-origin",
    body: JSON.stringify({
      state: state,
      access_token: accessToken,
      id_token: params.get("id_token") || ""
    })
  }).then(function (resp) {
    return resp.ok ? resp.json() : {return_url: "/"};
  }).then(function (body) {
    window.location.replace(body.return_url || "/");
  }).catch(function () {
    window.location.replace("/");
  });
})();
</script>
</body>
</html>
`))

// HandleCallback handles GET /auth/provider/callback, the redirect target
// registered with the provider
func (h *ProviderHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	err := callbackPage.Execute(w, map[string]string{
		"CompleteURL": urlutil.MustJoinPath(h.baseURL, "/auth/provider/complete"),
	})
	if err != nil {
		log.LogError("Failed to render callback page: %v", err)
	}
}

type completeBody struct {
	State       string `json:"state"`
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
}

// HandleComplete handles POST /auth/provider/complete. Verifies the state
// token and finishes the login atomically.
func (h *ProviderHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	var body completeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid request body")
		return
	}
	if body.State == "" || body.AccessToken == "" {
		jsonwriter.WriteBadRequest(w, "Missing state or access token")
		return
	}

	var state authorizationState
	if err := h.stateSigner.Verify(body.State, &state); err != nil {
		log.LogWarnWithFields("provider", "Rejected callback with invalid state", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteUnauthorized(w, "Invalid or expired login state")
		return
	}

	sid := SessionIDFromContext(r.Context())
	profile, err := h.idp.CompleteLogin(r.Context(), sid, session.TokenPair{
		AccessToken: body.AccessToken,
		IDToken:     body.IDToken,
	})
	if err != nil {
		log.LogErrorWithFields("provider", "Provider login failed", map[string]any{
			"session_id": sid,
			"error":      err.Error(),
		})
		jsonwriter.WriteUnauthorized(w, "Provider rejected the login")
		return
	}

	_ = jsonwriter.Write(w, map[string]any{
		"return_url": safeReturnURL(state.ReturnURL),
		"user":       profile,
	})
}

// HandleStatus handles GET /api/auth/provider/status
func (h *ProviderHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())
	_ = jsonwriter.Write(w, map[string]string{
		"status": string(h.idp.Status(sid)),
	})
}

// HandleInit handles POST /api/auth/provider/init, the silent session
// check run when the UI loads
func (h *ProviderHandler) HandleInit(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())

	status, err := h.idp.Init(r.Context(), sid)
	if err != nil {
		log.LogWarnWithFields("provider", "Silent session check failed", map[string]any{
			"session_id": sid,
			"error":      err.Error(),
		})
	}
	// Status is always reportable, even when the check errored
	_ = jsonwriter.Write(w, map[string]string{
		"status": string(status),
	})
}

// NewProviderUnavailableHandler answers on the provider routes when no
// identity provider is configured, so the UI gets a clear signal instead
// of a 404.
func NewProviderUnavailableHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jsonwriter.WriteServiceUnavailable(w, "Identity provider login is not available")
	}
}

// HandleLogout handles POST /auth/provider/logout. Clears local state
// immediately and tells the UI where to send the browser for the hosted
// logout.
func (h *ProviderHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sid := SessionIDFromContext(r.Context())

	logoutURL, err := h.idp.Logout(r.Context(), sid, h.baseURL)
	if err != nil {
		log.LogErrorWithFields("provider", "Logout failed", map[string]any{
			"session_id": sid,
			"error":      err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Logout failed")
		return
	}

	_ = jsonwriter.Write(w, map[string]string{
		"logout_url": logoutURL,
	})
}
