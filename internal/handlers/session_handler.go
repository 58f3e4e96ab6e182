package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"dcr-backend/internal/models"
	"dcr-backend/internal/services"
	"dcr-backend/pkg/utils"

	"github.com/gorilla/mux"
)

// SessionHandler exposes the report editing session over HTTP. One session
// per project; the session serializes its own state transitions.
type SessionHandler struct {
	Manager *services.SessionManager
}

func NewSessionHandler(manager *services.SessionManager) *SessionHandler {
	return &SessionHandler{Manager: manager}
}

// GetSnapshot handles GET /api/sessions/{project}
func (h *SessionHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]
	session := h.Manager.Get(project)

	utils.JSON(w, http.StatusOK, map[string]interface{}{
		"report":      session.Snapshot(),
		"report_date": session.CurrentDateKey(),
	})
}

// SetDate handles POST /api/sessions/{project}/date
func (h *SessionHandler) SetDate(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	var req models.SetDateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session := h.Manager.Get(project)
	if err := session.SetReportDate(r.Context(), req.Date); err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			http.Error(w, verr.Reason, http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	utils.JSON(w, http.StatusOK, session.Snapshot())
}

// UpdateFields handles PUT /api/sessions/{project}
func (h *SessionHandler) UpdateFields(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]

	var req models.UpdateFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session := h.Manager.Get(project)
	if err := session.UpdateFields(&req); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	utils.JSON(w, http.StatusOK, session.Snapshot())
}

// SaveDraft handles POST /api/sessions/{project}/save
// Explicit save never fails the request; store errors surface as a
// notification on the websocket stream.
func (h *SessionHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]
	session := h.Manager.Get(project)
	session.SaveDraft(r.Context(), false)
	w.WriteHeader(http.StatusNoContent)
}

// Submit handles POST /api/sessions/{project}/submit
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]
	session := h.Manager.Get(project)

	if err := session.Submit(r.Context()); err != nil {
		var verr *services.ValidationError
		var rerr *services.RemoteError
		switch {
		case errors.As(err, &verr):
			http.Error(w, verr.Reason, http.StatusUnprocessableEntity)
		case errors.Is(err, services.ErrSubmissionInFlight):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.As(err, &rerr):
			http.Error(w, rerr.Error(), http.StatusBadGateway)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	utils.JSON(w, http.StatusOK, map[string]string{"status": "submitted"})
}

// Clear handles POST /api/sessions/{project}/clear
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]
	session := h.Manager.Get(project)

	if err := session.Clear(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	utils.JSON(w, http.StatusOK, session.Snapshot())
}

// CloseSession handles DELETE /api/sessions/{project}
func (h *SessionHandler) CloseSession(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]
	h.Manager.Close(project)
	w.WriteHeader(http.StatusNoContent)
}
