package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"dcr-backend/internal/repositories"
	"dcr-backend/internal/services"
	"dcr-backend/internal/timeutil"

	"github.com/gorilla/mux"
)

// ExportHandler serves PDF/CSV downloads of stored reports and ZIP bundles of
// submitted reports over a date range.
type ExportHandler struct {
	reports  *repositories.ReportRepository
	exporter *services.ExportService
}

func NewExportHandler(reports *repositories.ReportRepository, exporter *services.ExportService) *ExportHandler {
	return &ExportHandler{reports: reports, exporter: exporter}
}

// DownloadPDF handles GET /api/reports/{project}/{date}/pdf
func (h *ExportHandler) DownloadPDF(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	project, dateKey := vars["project"], vars["date"]
	if _, err := timeutil.ParseDayKey(dateKey); err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	report, err := h.reports.Get(r.Context(), project, dateKey)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			http.Error(w, "Report not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load report", http.StatusInternalServerError)
		return
	}

	pdfData, err := h.exporter.GeneratePDF(&report.Data)
	if err != nil {
		http.Error(w, "Failed to generate PDF", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("daily_report_%s.pdf", dateKey)
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Write(pdfData)
}

// DownloadCSV handles GET /api/reports/{project}/{date}/csv
func (h *ExportHandler) DownloadCSV(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	project, dateKey := vars["project"], vars["date"]
	if _, err := timeutil.ParseDayKey(dateKey); err != nil {
		http.Error(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	report, err := h.reports.Get(r.Context(), project, dateKey)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			http.Error(w, "Report not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to load report", http.StatusInternalServerError)
		return
	}

	csvData, err := h.exporter.GenerateCSV(&report.Data)
	if err != nil {
		http.Error(w, "Failed to generate CSV", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("daily_report_%s.csv", dateKey)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Write(csvData)
}

// DownloadZip handles GET /api/reports/{project}/zip?from=YYYY-MM-DD&to=YYYY-MM-DD
// Bundles one PDF per submitted report in the range.
func (h *ExportHandler) DownloadZip(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]
	fromKey := r.URL.Query().Get("from")
	toKey := r.URL.Query().Get("to")

	if _, err := timeutil.ParseDayKey(fromKey); err != nil {
		http.Error(w, "Invalid from date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if _, err := timeutil.ParseDayKey(toKey); err != nil {
		http.Error(w, "Invalid to date, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	reports, err := h.reports.ListSubmittedRange(r.Context(), project, fromKey, toKey)
	if err != nil {
		http.Error(w, "Failed to load reports", http.StatusInternalServerError)
		return
	}
	if len(reports) == 0 {
		http.Error(w, "No submitted reports in range", http.StatusNotFound)
		return
	}

	zipData, err := h.exporter.GenerateZip(reports)
	if err != nil {
		http.Error(w, "Failed to generate ZIP", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("daily_reports_%s_%s.zip", fromKey, toKey)
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Write(zipData)
}
