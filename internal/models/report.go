package models

import "time"

// ResourceRow is one line item in a resource table (people, materials or machinery).
// Accumulated is expected to equal Prev + Today once the user has filled the row in,
// but that is the user's responsibility; the server never recomputes it.
type ResourceRow struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Unit        string  `json:"unit,omitempty"`
	Prev        float64 `json:"prev"`
	Today       float64 `json:"today"`
	Accumulated float64 `json:"accumulated"`
}

// IsEmpty reports whether the row carries no information at all.
// Empty rows are dropped at submission time, never during carry-forward.
func (r ResourceRow) IsEmpty() bool {
	return r.Description == "" && r.Prev == 0 && r.Today == 0 && r.Accumulated == 0
}

// ReportData is the full snapshot of one day's report.
type ReportData struct {
	ProjectName     string        `json:"project_name"`
	ReportDate      string        `json:"report_date"` // YYYY-MM-DD
	Weather         string        `json:"weather"`
	WeatherPeriod   string        `json:"weather_period"`
	Temperature     string        `json:"temperature"`
	ActivityToday   string        `json:"activity_today"`
	WorkPlanNextDay string        `json:"work_plan_next_day"`
	ManagementTeam  []ResourceRow `json:"management_team"`
	WorkingTeam     []ResourceRow `json:"working_team"`
	Materials       []ResourceRow `json:"materials"`
	Machinery       []ResourceRow `json:"machinery"`
}

// Clone returns a deep copy. The session hands copies across its boundary so
// stores and callers can never alias its working copy.
func (d *ReportData) Clone() *ReportData {
	c := *d
	c.ManagementTeam = cloneRows(d.ManagementTeam)
	c.WorkingTeam = cloneRows(d.WorkingTeam)
	c.Materials = cloneRows(d.Materials)
	c.Machinery = cloneRows(d.Machinery)
	return &c
}

func cloneRows(rows []ResourceRow) []ResourceRow {
	if rows == nil {
		return nil
	}
	out := make([]ResourceRow, len(rows))
	copy(out, rows)
	return out
}

// Report is the server-of-record representation of a daily report.
type Report struct {
	ID          int        `json:"id"`
	Data        ReportData `json:"data"`
	Status      string     `json:"status"` // 'saved' or 'submitted'
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// UpdateFieldsRequest carries form edits from the UI into the session's
// in-memory working copy. Resource collections are replaced wholesale.
type UpdateFieldsRequest struct {
	Weather         *string        `json:"weather,omitempty"`
	WeatherPeriod   *string        `json:"weather_period,omitempty"`
	Temperature     *string        `json:"temperature,omitempty"`
	ActivityToday   *string        `json:"activity_today,omitempty"`
	WorkPlanNextDay *string        `json:"work_plan_next_day,omitempty"`
	ManagementTeam  *[]ResourceRow `json:"management_team,omitempty"`
	WorkingTeam     *[]ResourceRow `json:"working_team,omitempty"`
	Materials       *[]ResourceRow `json:"materials,omitempty"`
	Machinery       *[]ResourceRow `json:"machinery,omitempty"`
}

// SetDateRequest selects the report date for a session.
type SetDateRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
}
