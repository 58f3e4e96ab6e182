package http

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dcr-backend/internal/handlers"
	"dcr-backend/internal/notify"
)

func NewRouter(
	sessionHandler *handlers.SessionHandler,
	exportHandler *handlers.ExportHandler,
	healthHandler *handlers.HealthHandler,
	hub *notify.Hub,
) *mux.Router {
	r := mux.NewRouter()

	// Editing sessions
	sessionsAPI := r.PathPrefix("/api/sessions").Subrouter()
	sessionsAPI.HandleFunc("/{project}", sessionHandler.GetSnapshot).Methods("GET")
	sessionsAPI.HandleFunc("/{project}", sessionHandler.UpdateFields).Methods("PUT")
	sessionsAPI.HandleFunc("/{project}", sessionHandler.CloseSession).Methods("DELETE")
	sessionsAPI.HandleFunc("/{project}/date", sessionHandler.SetDate).Methods("POST")
	sessionsAPI.HandleFunc("/{project}/save", sessionHandler.SaveDraft).Methods("POST")
	sessionsAPI.HandleFunc("/{project}/submit", sessionHandler.Submit).Methods("POST")
	sessionsAPI.HandleFunc("/{project}/clear", sessionHandler.Clear).Methods("POST")

	// Stored report exports
	reportsAPI := r.PathPrefix("/api/reports").Subrouter()
	reportsAPI.HandleFunc("/{project}/zip", exportHandler.DownloadZip).Methods("GET")
	reportsAPI.HandleFunc("/{project}/{date}/pdf", exportHandler.DownloadPDF).Methods("GET")
	reportsAPI.HandleFunc("/{project}/{date}/csv", exportHandler.DownloadCSV).Methods("GET")

	// Notifications stream
	r.HandleFunc("/ws/notifications", hub.ServeWS)

	// Health and metrics
	r.HandleFunc("/health", healthHandler.BasicHealth).Methods("GET")
	r.HandleFunc("/health/ready", healthHandler.ReadinessHealth).Methods("GET")
	r.HandleFunc("/health/detailed", healthHandler.DetailedHealth).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return r
}
