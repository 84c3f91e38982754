// Package practice wraps the practice backend's resource endpoints: pets,
// clinics, and call recordings.
package practice

import (
	"context"
	"fmt"
	"time"

	"github.com/dgellow/vetfront/internal/apiclient"
)

// Pet is an animal registered with the practice
type Pet struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Species   string    `json:"species,omitempty"`
	Breed     string    `json:"breed,omitempty"`
	BirthDate string    `json:"birth_date,omitempty"`
	OwnerName string    `json:"owner_name,omitempty"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Clinic is a veterinary clinic location
type Clinic struct {
	ID        string    `json:"id,omitempty"`
	Name      string    `json:"name"`
	Address   string    `json:"address,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// CallRecording is a recorded client call, optionally transcribed
type CallRecording struct {
	ID                  string    `json:"id,omitempty"`
	Title               string    `json:"title,omitempty"`
	AudioURL            string    `json:"audio_url,omitempty"`
	DurationSeconds     int       `json:"duration_seconds,omitempty"`
	Transcript          string    `json:"transcript,omitempty"`
	TranscriptionStatus string    `json:"transcription_status,omitempty"`
	RecordedAt          time.Time `json:"recorded_at,omitempty"`
	CreatedAt           time.Time `json:"created_at,omitempty"`
}

// Transcription states reported by the backend
const (
	TranscriptionNone       = "none"
	TranscriptionPending    = "pending"
	TranscriptionProcessing = "processing"
	TranscriptionDone       = "done"
	TranscriptionFailed     = "failed"
)

// Service exposes the backend's resource operations for one deployment
type Service struct {
	api *apiclient.Client
}

// NewService creates a practice service over the given API client
func NewService(api *apiclient.Client) *Service {
	return &Service{api: api}
}

func resourcePath(collection, id string) string {
	return fmt.Sprintf("/%s/%s", collection, id)
}

// ListPets returns all pets visible to the session's user
func (s *Service) ListPets(ctx context.Context, sessionID string) ([]Pet, error) {
	var pets []Pet
	if err := s.api.Get(ctx, sessionID, "/pets", &pets); err != nil {
		return nil, err
	}
	return pets, nil
}

// GetPet fetches a single pet
func (s *Service) GetPet(ctx context.Context, sessionID, id string) (*Pet, error) {
	var pet Pet
	if err := s.api.Get(ctx, sessionID, resourcePath("pets", id), &pet); err != nil {
		return nil, err
	}
	return &pet, nil
}

// CreatePet registers a new pet
func (s *Service) CreatePet(ctx context.Context, sessionID string, pet Pet) (*Pet, error) {
	var created Pet
	if err := s.api.Post(ctx, sessionID, "/pets", pet, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdatePet replaces a pet's editable fields
func (s *Service) UpdatePet(ctx context.Context, sessionID, id string, pet Pet) (*Pet, error) {
	var updated Pet
	if err := s.api.Put(ctx, sessionID, resourcePath("pets", id), pet, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeletePet removes a pet
func (s *Service) DeletePet(ctx context.Context, sessionID, id string) error {
	return s.api.Delete(ctx, sessionID, resourcePath("pets", id))
}

// ListClinics returns all clinics
func (s *Service) ListClinics(ctx context.Context, sessionID string) ([]Clinic, error) {
	var clinics []Clinic
	if err := s.api.Get(ctx, sessionID, "/clinics", &clinics); err != nil {
		return nil, err
	}
	return clinics, nil
}

// GetClinic fetches a single clinic
func (s *Service) GetClinic(ctx context.Context, sessionID, id string) (*Clinic, error) {
	var clinic Clinic
	if err := s.api.Get(ctx, sessionID, resourcePath("clinics", id), &clinic); err != nil {
		return nil, err
	}
	return &clinic, nil
}

// CreateClinic adds a clinic
func (s *Service) CreateClinic(ctx context.Context, sessionID string, clinic Clinic) (*Clinic, error) {
	var created Clinic
	if err := s.api.Post(ctx, sessionID, "/clinics", clinic, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateClinic replaces a clinic's editable fields
func (s *Service) UpdateClinic(ctx context.Context, sessionID, id string, clinic Clinic) (*Clinic, error) {
	var updated Clinic
	if err := s.api.Put(ctx, sessionID, resourcePath("clinics", id), clinic, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteClinic removes a clinic
func (s *Service) DeleteClinic(ctx context.Context, sessionID, id string) error {
	return s.api.Delete(ctx, sessionID, resourcePath("clinics", id))
}

// ListRecordings returns all call recordings
func (s *Service) ListRecordings(ctx context.Context, sessionID string) ([]CallRecording, error) {
	var recs []CallRecording
	if err := s.api.Get(ctx, sessionID, "/recordings", &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// GetRecording fetches a single recording
func (s *Service) GetRecording(ctx context.Context, sessionID, id string) (*CallRecording, error) {
	var rec CallRecording
	if err := s.api.Get(ctx, sessionID, resourcePath("recordings", id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// DeleteRecording removes a recording
func (s *Service) DeleteRecording(ctx context.Context, sessionID, id string) error {
	return s.api.Delete(ctx, sessionID, resourcePath("recordings", id))
}

// RequestTranscription asks the backend to transcribe a recording. The
// backend processes asynchronously; poll GetRecording for the result.
func (s *Service) RequestTranscription(ctx context.Context, sessionID, id string) (*CallRecording, error) {
	var rec CallRecording
	if err := s.api.Post(ctx, sessionID, resourcePath("recordings", id)+"/transcribe", nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpdateTranscript saves a manually corrected transcript
func (s *Service) UpdateTranscript(ctx context.Context, sessionID, id, transcript string) (*CallRecording, error) {
	var rec CallRecording
	body := map[string]string{"transcript": transcript}
	if err := s.api.Put(ctx, sessionID, resourcePath("recordings", id)+"/transcript", body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
