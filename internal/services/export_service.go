package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"time"

	"dcr-backend/internal/archive"
	"dcr-backend/internal/models"
	"dcr-backend/internal/timeutil"

	"github.com/jung-kurt/gofpdf/v2"
)

// ExportService renders finalized report snapshots as PDF, CSV and ZIP
// bundles, and archives the PDF to object storage when configured. It only
// ever sees data that already passed validation and cleaning.
type ExportService struct {
	Uploader *archive.Uploader // nil disables archiving
}

func NewExportService(uploader *archive.Uploader) *ExportService {
	return &ExportService{Uploader: uploader}
}

// Dispatch receives the finalized snapshot after a successful submission.
// Rendering or archiving failures are logged, never propagated back into the
// submission flow.
func (s *ExportService) Dispatch(ctx context.Context, data *models.ReportData, reportDate time.Time) {
	pdfData, err := s.GeneratePDF(data)
	if err != nil {
		log.Printf("[Export] PDF render failed for %s/%s: %v", data.ProjectName, data.ReportDate, err)
		return
	}

	if s.Uploader == nil {
		return
	}
	dateKey := timeutil.DayKey(reportDate)
	name := fmt.Sprintf("daily_report_%s.pdf", dateKey)
	if err := s.Uploader.Put(ctx, data.ProjectName, dateKey, name, "application/pdf", pdfData); err != nil {
		log.Printf("[Export] Archive upload failed for %s/%s: %v", data.ProjectName, dateKey, err)
	}
}

// GeneratePDF renders one report as an A4 PDF.
func (s *ExportService) GeneratePDF(data *models.ReportData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Daily Construction Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Generated: %s", timeutil.Now().Format("02-Jan-2006 03:04 PM")), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	// Project Info Box
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Project Information", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, fmt.Sprintf("Project: %s", data.ProjectName), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Date: %s", data.ReportDate), "RB", 1, "L", false, 0, "")
	weather := data.Weather
	if data.WeatherPeriod != "" {
		weather = fmt.Sprintf("%s (%s)", data.Weather, data.WeatherPeriod)
	}
	pdf.CellFormat(95, 7, fmt.Sprintf("Weather: %s", weather), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Temperature: %s", data.Temperature), "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	// Activity sections
	s.writeTextSection(pdf, "Today's Activity", data.ActivityToday)
	s.writeTextSection(pdf, "Work Plan for Next Day", data.WorkPlanNextDay)

	// Resource tables
	s.writeResourceTable(pdf, "Management Team", data.ManagementTeam)
	s.writeResourceTable(pdf, "Working Team", data.WorkingTeam)
	s.writeResourceTable(pdf, "Materials", data.Materials)
	s.writeResourceTable(pdf, "Machinery", data.Machinery)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *ExportService) writeTextSection(pdf *gofpdf.Fpdf, title, body string) {
	pdf.SetFont("Arial", "B", 12)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(190, 8, title, "1", 1, "L", true, 0, "")
	pdf.SetFont("Arial", "", 10)
	if body == "" {
		body = "-"
	}
	pdf.MultiCell(190, 6, body, "1", "L", false)
	pdf.Ln(4)
}

func (s *ExportService) writeResourceTable(pdf *gofpdf.Fpdf, title string, rows []models.ResourceRow) {
	pdf.SetFont("Arial", "B", 12)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(190, 8, title, "1", 1, "L", true, 0, "")

	if len(rows) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.CellFormat(190, 6, "None", "1", 1, "C", false, 0, "")
		pdf.Ln(4)
		return
	}

	// Table header
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(85, 7, "Description", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Unit", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Previous", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Today", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 7, "Accumulated", "1", 1, "C", true, 0, "")

	// Table rows
	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		desc := row.Description
		if len(desc) > 45 {
			desc = desc[:42] + "..."
		}
		pdf.CellFormat(85, 6, desc, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, row.Unit, "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, formatCount(row.Prev), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, formatCount(row.Today), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, formatCount(row.Accumulated), "1", 1, "R", false, 0, "")
	}
	pdf.Ln(4)
}

// formatCount prints whole counts without a decimal tail
func formatCount(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}

// GenerateCSV renders one report as CSV, one section per resource table.
func (s *ExportService) GenerateCSV(data *models.ReportData) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{"Project", data.ProjectName})
	w.Write([]string{"Date", data.ReportDate})
	w.Write([]string{"Weather", data.Weather})
	w.Write([]string{"Weather Period", data.WeatherPeriod})
	w.Write([]string{"Temperature", data.Temperature})
	w.Write([]string{"Activity Today", data.ActivityToday})
	w.Write([]string{"Work Plan Next Day", data.WorkPlanNextDay})
	w.Write([]string{})

	sections := []struct {
		title string
		rows  []models.ResourceRow
	}{
		{"Management Team", data.ManagementTeam},
		{"Working Team", data.WorkingTeam},
		{"Materials", data.Materials},
		{"Machinery", data.Machinery},
	}

	for _, section := range sections {
		w.Write([]string{section.title})
		w.Write([]string{"Description", "Unit", "Previous", "Today", "Accumulated"})
		for _, row := range section.rows {
			w.Write([]string{
				row.Description,
				row.Unit,
				formatCount(row.Prev),
				formatCount(row.Today),
				formatCount(row.Accumulated),
			})
		}
		w.Write([]string{})
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GenerateZip bundles one PDF per report into a single ZIP download.
func (s *ExportService) GenerateZip(reports []*models.Report) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, report := range reports {
		pdfData, err := s.GeneratePDF(&report.Data)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", report.Data.ReportDate, err)
		}
		f, err := zw.Create(fmt.Sprintf("daily_report_%s.pdf", report.Data.ReportDate))
		if err != nil {
			return nil, err
		}
		if _, err := f.Write(pdfData); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
