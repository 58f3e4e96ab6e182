// Package ledger holds the pure transforms applied to resource row
// collections: the carry-forward of accumulated totals into the next day and
// the submission-time empty-row cleaner.
package ledger

import "dcr-backend/internal/models"

// CarryForward maps each row's accumulated total into the next day's starting
// total. Row identity and order are preserved and no row is ever dropped; the
// cleaner below is a separate concern applied only at submission time.
func CarryForward(rows []models.ResourceRow) []models.ResourceRow {
	if rows == nil {
		return nil
	}
	out := make([]models.ResourceRow, len(rows))
	for i, r := range rows {
		out[i] = models.ResourceRow{
			ID:          r.ID,
			Description: r.Description,
			Unit:        r.Unit,
			Prev:        r.Accumulated,
			Today:       0,
			Accumulated: r.Accumulated,
		}
	}
	return out
}

// Clean drops rows with an empty description and all-zero counters.
// Order of the surviving rows is preserved.
func Clean(rows []models.ResourceRow) []models.ResourceRow {
	if rows == nil {
		return nil
	}
	out := make([]models.ResourceRow, 0, len(rows))
	for _, r := range rows {
		if r.IsEmpty() {
			continue
		}
		out = append(out, r)
	}
	return out
}

// CarryForwardReport builds the next day's starting snapshot from an outgoing
// one: resource totals roll forward, free-text activity fields and weather
// reset. ProjectName travels with the report.
func CarryForwardReport(outgoing *models.ReportData, nextDateKey string) *models.ReportData {
	return &models.ReportData{
		ProjectName:    outgoing.ProjectName,
		ReportDate:     nextDateKey,
		ManagementTeam: CarryForward(outgoing.ManagementTeam),
		WorkingTeam:    CarryForward(outgoing.WorkingTeam),
		Materials:      CarryForward(outgoing.Materials),
		Machinery:      CarryForward(outgoing.Machinery),
	}
}
