package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgellow/vetfront/internal/apiclient"
	"github.com/dgellow/vetfront/internal/practice"
	"github.com/dgellow/vetfront/internal/session"
	"github.com/dgellow/vetfront/internal/storage"
)

func newPracticeTestHandler(t *testing.T, backend http.Handler, loggedIn bool) *PracticeHandler {
	t.Helper()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	sessions := session.NewManager(storage.NewMemoryStore())
	t.Cleanup(sessions.Close)
	if loggedIn {
		require.NoError(t, sessions.Handle("sess-1").SetLocal(context.Background(), "tok", nil))
	}

	return NewPracticeHandler(practice.NewService(apiclient.New(srv.URL, 5*time.Second, sessions)))
}

func TestHandleListPetsRequiresLogin(t *testing.T) {
	h := newPracticeTestHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend must not be called without a token")
	}), false)

	req := withSID(httptest.NewRequest(http.MethodGet, "/api/pets", nil), "sess-1")
	rec := httptest.NewRecorder()
	h.HandleListPets(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandleListPetsEmptyListIsNotNull(t *testing.T) {
	h := newPracticeTestHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`null`))
	}), true)

	req := withSID(httptest.NewRequest(http.MethodGet, "/api/pets", nil), "sess-1")
	rec := httptest.NewRecorder()
	h.HandleListPets(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestHandleCreatePet(t *testing.T) {
	h := newPracticeTestHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var pet practice.Pet
		require.NoError(t, json.NewDecoder(r.Body).Decode(&pet))
		pet.ID = "pet-1"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(pet)
	}), true)

	req := withSID(httptest.NewRequest(http.MethodPost, "/api/pets",
		strings.NewReader(`{"name":"Rex","species":"dog"}`)), "sess-1")
	rec := httptest.NewRecorder()
	h.HandleCreatePet(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var pet practice.Pet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pet))
	assert.Equal(t, "pet-1", pet.ID)
}

func TestHandleCreatePetRequiresName(t *testing.T) {
	h := newPracticeTestHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend must not be called for an invalid body")
	}), true)

	req := withSID(httptest.NewRequest(http.MethodPost, "/api/pets",
		strings.NewReader(`{"species":"dog"}`)), "sess-1")
	rec := httptest.NewRecorder()
	h.HandleCreatePet(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetPetNotFound(t *testing.T) {
	h := newPracticeTestHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}), true)

	req := withSID(httptest.NewRequest(http.MethodGet, "/api/pets/nope", nil), "sess-1")
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	h.HandleGetPet(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleSessionExpiredDuringRequest(t *testing.T) {
	h := newPracticeTestHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}), true)

	req := withSID(httptest.NewRequest(http.MethodGet, "/api/pets", nil), "sess-1")
	rec := httptest.NewRecorder()
	h.HandleListPets(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "session_expired", body["error"])
}

func TestHandleBackendDownIsBadGateway(t *testing.T) {
	h := newPracticeTestHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "db down", http.StatusInternalServerError)
	}), true)

	req := withSID(httptest.NewRequest(http.MethodGet, "/api/clinics", nil), "sess-1")
	rec := httptest.NewRecorder()
	h.HandleListClinics(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleTranscribeRecording(t *testing.T) {
	h := newPracticeTestHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/recordings/rec-1/transcribe", r.URL.Path)
		json.NewEncoder(w).Encode(practice.CallRecording{ID: "rec-1", TranscriptionStatus: practice.TranscriptionPending})
	}), true)

	req := withSID(httptest.NewRequest(http.MethodPost, "/api/recordings/rec-1/transcribe", nil), "sess-1")
	req.SetPathValue("id", "rec-1")
	rec := httptest.NewRecorder()
	h.HandleTranscribeRecording(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var out practice.CallRecording
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, practice.TranscriptionPending, out.TranscriptionStatus)
}

func TestHandleDeleteClinic(t *testing.T) {
	h := newPracticeTestHandler(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/clinics/cl-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}), true)

	req := withSID(httptest.NewRequest(http.MethodDelete, "/api/clinics/cl-1", nil), "sess-1")
	req.SetPathValue("id", "cl-1")
	rec := httptest.NewRecorder()
	h.HandleDeleteClinic(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
