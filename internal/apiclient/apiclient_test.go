package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/vetfront/internal/session"
	"github.com/dgellow/vetfront/internal/storage"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.Manager) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	sessions := session.NewManager(storage.NewMemoryStore())
	t.Cleanup(sessions.Close)
	return New(srv.URL, 5*time.Second, sessions), sessions
}

func TestDoWithoutTokenFailsFast(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))

	err := c.Get(context.Background(), "sess-1", "/pets", nil)
	assert.ErrorIs(t, err, ErrAuthRequired)
	assert.Equal(t, int32(0), calls.Load())
}

func TestDoAttachesBearerToken(t *testing.T) {
	c, sessions := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	ctx := context.Background()

	require.NoError(t, sessions.Handle("sess-1").SetLocal(ctx, "tok-1", nil))

	var out map[string]string
	require.NoError(t, c.Get(ctx, "sess-1", "/pets", &out))
	assert.Equal(t, "ok", out["status"])
}

func TestDoUnauthorizedInvalidatesSessionOnce(t *testing.T) {
	c, sessions := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	ctx := context.Background()

	events, cancel := sessions.Subscribe()
	defer cancel()

	require.NoError(t, sessions.Handle("sess-1").SetLocal(ctx, "dead-tok", &session.Profile{Email: "vet@clinic.example"}))

	err := c.Get(ctx, "sess-1", "/pets", nil)
	assert.ErrorIs(t, err, ErrAuthExpired)

	current, err := sessions.Handle("sess-1").Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.KindNone, current.Kind)

	select {
	case ev := <-events:
		assert.Equal(t, session.ReasonTokenRejected, ev.Reason)
	case <-time.After(time.Second):
		t.Fatal("expected invalidation event")
	}

	// Follow-up requests fail fast without another invalidation
	err = c.Get(ctx, "sess-1", "/pets", nil)
	assert.ErrorIs(t, err, ErrAuthRequired)
	select {
	case ev := <-events:
		t.Fatalf("unexpected second invalidation: %+v", ev)
	default:
	}
}

func TestDoNotFound(t *testing.T) {
	c, sessions := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	ctx := context.Background()

	require.NoError(t, sessions.Handle("sess-1").SetLocal(ctx, "tok", nil))
	err := c.Get(ctx, "sess-1", "/pets/nope", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDoServerErrorKeepsToken(t *testing.T) {
	c, sessions := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	ctx := context.Background()

	require.NoError(t, sessions.Handle("sess-1").SetLocal(ctx, "tok", nil))

	err := c.Get(ctx, "sess-1", "/pets", nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAuthExpired)

	token, err := sessions.Handle("sess-1").LocalToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
}

func TestDoPostSendsJSONBody(t *testing.T) {
	c, sessions := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Rex", body["name"])
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "pet-1", "name": "Rex"})
	}))
	ctx := context.Background()

	require.NoError(t, sessions.Handle("sess-1").SetLocal(ctx, "tok", nil))

	var out map[string]string
	require.NoError(t, c.Post(ctx, "sess-1", "/pets", map[string]string{"name": "Rex"}, &out))
	assert.Equal(t, "pet-1", out["id"])
}

func TestDoContextCancellation(t *testing.T) {
	started := make(chan struct{})
	c, sessions := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-r.Context().Done()
	}))

	require.NoError(t, sessions.Handle("sess-1").SetLocal(context.Background(), "tok", nil))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	err := c.Get(ctx, "sess-1", "/pets", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
