package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/vetfront/internal/config"
	"github.com/dgellow/vetfront/internal/crypto"
	"github.com/dgellow/vetfront/internal/idp"
	"github.com/dgellow/vetfront/internal/session"
	"github.com/dgellow/vetfront/internal/storage"
)

type providerTestEnv struct {
	handler  *ProviderHandler
	signer   *crypto.TokenSigner
	sessions *session.Manager
}

func newProviderTestEnv(t *testing.T, userinfo http.Handler) *providerTestEnv {
	t.Helper()
	srv := httptest.NewServer(userinfo)
	t.Cleanup(srv.Close)

	sessions := session.NewManager(storage.NewMemoryStore())
	t.Cleanup(sessions.Close)

	client := idp.NewClient(&config.ProviderConfig{
		Domain:       "vet.eu.auth0.com",
		ClientID:     "client-123",
		RedirectURI:  "https://vet.example.com/auth/provider/callback",
		ResponseType: "token id_token",
		Scopes:       []string{"openid", "profile", "email"},
	}, sessions, idp.WithUserInfoURL(srv.URL+"/userinfo"))

	signer := crypto.NewTokenSigner([]byte("fedcba9876543210fedcba9876543210"), 10*time.Minute)
	return &providerTestEnv{
		handler:  NewProviderHandler(client, &signer, "https://vet.example.com"),
		signer:   &signer,
		sessions: sessions,
	}
}

func TestHandleProviderLoginRedirect(t *testing.T) {
	env := newProviderTestEnv(t, http.NotFoundHandler())

	req := withSID(httptest.NewRequest(http.MethodGet, "/auth/provider/login?return_to=/pets", nil), "sess-1")
	rec := httptest.NewRecorder()
	env.handler.HandleLogin(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "vet.eu.auth0.com", location.Host)
	assert.Equal(t, "/authorize", location.Path)

	q := location.Query()
	assert.Equal(t, "token id_token", q.Get("response_type"))
	assert.NotEmpty(t, q.Get("nonce"))

	// The state must verify and carry the return URL
	var state authorizationState
	require.NoError(t, env.signer.Verify(q.Get("state"), &state))
	assert.Equal(t, "/pets", state.ReturnURL)
	assert.NotEmpty(t, state.Nonce)
}

func TestHandleProviderLoginRejectsAbsoluteReturnURL(t *testing.T) {
	env := newProviderTestEnv(t, http.NotFoundHandler())

	req := withSID(httptest.NewRequest(http.MethodGet,
		"/auth/provider/login?return_to=https://evil.example.com/", nil), "sess-1")
	rec := httptest.NewRecorder()
	env.handler.HandleLogin(rec, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)

	var state authorizationState
	require.NoError(t, env.signer.Verify(location.Query().Get("state"), &state))
	assert.Equal(t, "/", state.ReturnURL)
}

func TestHandleProviderCallbackServesBridgePage(t *testing.T) {
	env := newProviderTestEnv(t, http.NotFoundHandler())

	req := withSID(httptest.NewRequest(http.MethodGet, "/auth/provider/callback", nil), "sess-1")
	rec := httptest.NewRecorder()
	env.handler.HandleCallback(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "location.hash")
	assert.Contains(t, rec.Body.String(), "/auth/provider/complete")
}

func TestHandleProviderComplete(t *testing.T) {
	env := newProviderTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{
			"sub": "provider|u-1", "email": "vet@clinic.example", "name": "Dr. Vet",
		})
	}))

	state, err := env.signer.Sign(authorizationState{Nonce: "n", ReturnURL: "/pets"})
	require.NoError(t, err)

	payload, _ := json.Marshal(map[string]string{
		"state":        state,
		"access_token": "at-1",
		"id_token":     "",
	})
	req := withSID(httptest.NewRequest(http.MethodPost, "/auth/provider/complete",
		strings.NewReader(string(payload))), "sess-1")
	rec := httptest.NewRecorder()
	env.handler.HandleComplete(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "/pets", body["return_url"])

	current, err := env.sessions.Handle("sess-1").Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, session.KindProvider, current.Kind)
	require.NotNil(t, current.User)
	assert.Equal(t, "vet@clinic.example", current.User.Email)
}

func TestHandleProviderCompleteInvalidState(t *testing.T) {
	env := newProviderTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("userinfo must not be called with a bad state")
	}))

	payload := `{"state":"forged","access_token":"at-1","id_token":""}`
	req := withSID(httptest.NewRequest(http.MethodPost, "/auth/provider/complete",
		strings.NewReader(payload)), "sess-1")
	rec := httptest.NewRecorder()
	env.handler.HandleComplete(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleProviderCompleteRejectedTokens(t *testing.T) {
	env := newProviderTestEnv(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	state, err := env.signer.Sign(authorizationState{Nonce: "n"})
	require.NoError(t, err)

	payload, _ := json.Marshal(map[string]string{"state": state, "access_token": "dead"})
	req := withSID(httptest.NewRequest(http.MethodPost, "/auth/provider/complete",
		strings.NewReader(string(payload))), "sess-1")
	rec := httptest.NewRecorder()
	env.handler.HandleComplete(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Rejected tokens must not linger
	pair, err := env.sessions.Handle("sess-1").ProviderTokens(context.Background())
	require.NoError(t, err)
	assert.Nil(t, pair)
}

func TestHandleProviderStatusAndInit(t *testing.T) {
	env := newProviderTestEnv(t, http.NotFoundHandler())

	req := withSID(httptest.NewRequest(http.MethodGet, "/api/auth/provider/status", nil), "sess-1")
	rec := httptest.NewRecorder()
	env.handler.HandleStatus(rec, req)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(idp.StatusUninitialized), body["status"])

	// Init on an empty session settles to anonymous
	req = withSID(httptest.NewRequest(http.MethodPost, "/api/auth/provider/init", nil), "sess-1")
	rec = httptest.NewRecorder()
	env.handler.HandleInit(rec, req)

	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, string(idp.StatusAnonymous), body["status"])
}

func TestHandleProviderLogout(t *testing.T) {
	env := newProviderTestEnv(t, http.NotFoundHandler())
	ctx := context.Background()

	require.NoError(t, env.sessions.Handle("sess-1").SetProvider(ctx, session.TokenPair{AccessToken: "at"}))

	req := withSID(httptest.NewRequest(http.MethodPost, "/auth/provider/logout", nil), "sess-1")
	rec := httptest.NewRecorder()
	env.handler.HandleLogout(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	logoutURL, err := url.Parse(body["logout_url"])
	require.NoError(t, err)
	assert.Equal(t, "/v2/logout", logoutURL.Path)
	assert.Equal(t, "https://vet.example.com", logoutURL.Query().Get("returnTo"))

	pair, err := env.sessions.Handle("sess-1").ProviderTokens(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)
}
