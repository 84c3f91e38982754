package server

import (
	"encoding/json"
	"net/http"

	jsonwriter "github.com/dgellow/vetfront/internal/json"
	"github.com/dgellow/vetfront/internal/log"
)

// AdminHandler serves the operational endpoints behind basic auth
type AdminHandler struct{}

// NewAdminHandler creates the admin handler
func NewAdminHandler() *AdminHandler {
	return &AdminHandler{}
}

// HandleGetLogging handles GET /admin/logging
func (h *AdminHandler) HandleGetLogging(w http.ResponseWriter, r *http.Request) {
	_ = jsonwriter.Write(w, map[string]string{
		"level": log.GetLogLevel(),
	})
}

// HandleSetLogging handles PUT /admin/logging. Changes the log level at
// runtime without a restart.
func (h *AdminHandler) HandleSetLogging(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Level string `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonwriter.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := log.SetLogLevel(body.Level); err != nil {
		jsonwriter.WriteBadRequest(w, err.Error())
		return
	}

	_ = jsonwriter.Write(w, map[string]string{
		"level": log.GetLogLevel(),
	})
}
