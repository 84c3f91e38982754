package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgellow/vetfront/internal/apiclient"
	jsonwriter "github.com/dgellow/vetfront/internal/json"
	"github.com/dgellow/vetfront/internal/log"
	"github.com/dgellow/vetfront/internal/practice"
)

// PracticeHandler bridges the browser API to the backend resource endpoints
type PracticeHandler struct {
	svc *practice.Service
}

// NewPracticeHandler creates the practice resource handler
func NewPracticeHandler(svc *practice.Service) *PracticeHandler {
	return &PracticeHandler{svc: svc}
}

// writeBackendError maps service errors to browser-facing responses
func writeBackendError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apiclient.ErrAuthRequired):
		jsonwriter.WriteUnauthorized(w, "Login required")
	case errors.Is(err, apiclient.ErrAuthExpired):
		jsonwriter.WriteError(w, http.StatusUnauthorized, "session_expired", "Your session has expired, please log in again")
	case errors.Is(err, apiclient.ErrNotFound):
		jsonwriter.WriteNotFound(w, "Not found")
	default:
		log.LogError("Backend request failed: %v", err)
		jsonwriter.WriteError(w, http.StatusBadGateway, "backend_error", "The practice backend is unavailable")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// HandleListPets handles GET /api/pets
func (h *PracticeHandler) HandleListPets(w http.ResponseWriter, r *http.Request) {
	pets, err := h.svc.ListPets(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	if pets == nil {
		pets = []practice.Pet{}
	}
	_ = jsonwriter.Write(w, pets)
}

// HandleGetPet handles GET /api/pets/{id}
func (h *PracticeHandler) HandleGetPet(w http.ResponseWriter, r *http.Request) {
	pet, err := h.svc.GetPet(r.Context(), SessionIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	_ = jsonwriter.Write(w, pet)
}

// HandleCreatePet handles POST /api/pets
func (h *PracticeHandler) HandleCreatePet(w http.ResponseWriter, r *http.Request) {
	var pet practice.Pet
	if !decodeBody(w, r, &pet) {
		return
	}
	if pet.Name == "" {
		jsonwriter.WriteBadRequest(w, "Pet name is required")
		return
	}

	created, err := h.svc.CreatePet(r.Context(), SessionIDFromContext(r.Context()), pet)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	_ = jsonwriter.WriteResponse(w, http.StatusCreated, created)
}

// HandleUpdatePet handles PUT /api/pets/{id}
func (h *PracticeHandler) HandleUpdatePet(w http.ResponseWriter, r *http.Request) {
	var pet practice.Pet
	if !decodeBody(w, r, &pet) {
		return
	}

	updated, err := h.svc.UpdatePet(r.Context(), SessionIDFromContext(r.Context()), r.PathValue("id"), pet)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	_ = jsonwriter.Write(w, updated)
}

// HandleDeletePet handles DELETE /api/pets/{id}
func (h *PracticeHandler) HandleDeletePet(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePet(r.Context(), SessionIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListClinics handles GET /api/clinics
func (h *PracticeHandler) HandleListClinics(w http.ResponseWriter, r *http.Request) {
	clinics, err := h.svc.ListClinics(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	if clinics == nil {
		clinics = []practice.Clinic{}
	}
	_ = jsonwriter.Write(w, clinics)
}

// HandleGetClinic handles GET /api/clinics/{id}
func (h *PracticeHandler) HandleGetClinic(w http.ResponseWriter, r *http.Request) {
	clinic, err := h.svc.GetClinic(r.Context(), SessionIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	_ = jsonwriter.Write(w, clinic)
}

// HandleCreateClinic handles POST /api/clinics
func (h *PracticeHandler) HandleCreateClinic(w http.ResponseWriter, r *http.Request) {
	var clinic practice.Clinic
	if !decodeBody(w, r, &clinic) {
		return
	}
	if clinic.Name == "" {
		jsonwriter.WriteBadRequest(w, "Clinic name is required")
		return
	}

	created, err := h.svc.CreateClinic(r.Context(), SessionIDFromContext(r.Context()), clinic)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	_ = jsonwriter.WriteResponse(w, http.StatusCreated, created)
}

// HandleUpdateClinic handles PUT /api/clinics/{id}
func (h *PracticeHandler) HandleUpdateClinic(w http.ResponseWriter, r *http.Request) {
	var clinic practice.Clinic
	if !decodeBody(w, r, &clinic) {
		return
	}

	updated, err := h.svc.UpdateClinic(r.Context(), SessionIDFromContext(r.Context()), r.PathValue("id"), clinic)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	_ = jsonwriter.Write(w, updated)
}

// HandleDeleteClinic handles DELETE /api/clinics/{id}
func (h *PracticeHandler) HandleDeleteClinic(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteClinic(r.Context(), SessionIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleListRecordings handles GET /api/recordings
func (h *PracticeHandler) HandleListRecordings(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.ListRecordings(r.Context(), SessionIDFromContext(r.Context()))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	if recs == nil {
		recs = []practice.CallRecording{}
	}
	_ = jsonwriter.Write(w, recs)
}

// HandleGetRecording handles GET /api/recordings/{id}
func (h *PracticeHandler) HandleGetRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.GetRecording(r.Context(), SessionIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	_ = jsonwriter.Write(w, rec)
}

// HandleDeleteRecording handles DELETE /api/recordings/{id}
func (h *PracticeHandler) HandleDeleteRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteRecording(r.Context(), SessionIDFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeBackendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleTranscribeRecording handles POST /api/recordings/{id}/transcribe
func (h *PracticeHandler) HandleTranscribeRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.RequestTranscription(r.Context(), SessionIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeBackendError(w, err)
		return
	}
	_ = jsonwriter.WriteResponse(w, http.StatusAccepted, rec)
}

// HandleUpdateTranscript handles PUT /api/recordings/{id}/transcript
func (h *PracticeHandler) HandleUpdateTranscript(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Transcript string `json:"transcript"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	rec, err := h.svc.UpdateTranscript(r.Context(), SessionIDFromContext(r.Context()), r.PathValue("id"), body.Transcript)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	_ = jsonwriter.Write(w, rec)
}
