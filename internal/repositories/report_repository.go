package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dcr-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound marks a missing report. The session treats it the same as any
// other remote failure on load (fall back to the local draft) but callers that
// care can distinguish it.
var ErrNotFound = errors.New("report not found")

// ReportRepository is the server of record for daily reports, keyed by
// (project_name, report_date). Resource collections are stored as JSONB.
type ReportRepository struct {
	DB *pgxpool.Pool
}

func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{DB: db}
}

// Load returns the stored snapshot for a project and day, ErrNotFound on miss.
func (r *ReportRepository) Load(ctx context.Context, project, dateKey string) (*models.ReportData, error) {
	report, err := r.Get(ctx, project, dateKey)
	if err != nil {
		return nil, err
	}
	return &report.Data, nil
}

// Get returns the full report row including submission metadata.
func (r *ReportRepository) Get(ctx context.Context, project, dateKey string) (*models.Report, error) {
	row := r.DB.QueryRow(ctx,
		`SELECT id, project_name, to_char(report_date, 'YYYY-MM-DD'),
		        weather, weather_period, temperature, activity_today, work_plan_next_day,
		        management_team, working_team, materials, machinery,
		        status, submitted_at, created_at, updated_at
		 FROM daily_reports
		 WHERE project_name=$1 AND report_date=$2::date`, project, dateKey)

	report, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return report, err
}

// Save upserts the snapshot for (project, date). A submitted report stays
// submitted; saving again just refreshes its contents.
func (r *ReportRepository) Save(ctx context.Context, data *models.ReportData) error {
	management, working, materials, machinery, err := marshalRows(data)
	if err != nil {
		return err
	}

	_, err = r.DB.Exec(ctx,
		`INSERT INTO daily_reports(project_name, report_date, weather, weather_period, temperature,
		                           activity_today, work_plan_next_day,
		                           management_team, working_team, materials, machinery)
		 VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (project_name, report_date) DO UPDATE SET
		     weather=EXCLUDED.weather,
		     weather_period=EXCLUDED.weather_period,
		     temperature=EXCLUDED.temperature,
		     activity_today=EXCLUDED.activity_today,
		     work_plan_next_day=EXCLUDED.work_plan_next_day,
		     management_team=EXCLUDED.management_team,
		     working_team=EXCLUDED.working_team,
		     materials=EXCLUDED.materials,
		     machinery=EXCLUDED.machinery,
		     updated_at=NOW()`,
		data.ProjectName, data.ReportDate, data.Weather, data.WeatherPeriod, data.Temperature,
		data.ActivityToday, data.WorkPlanNextDay,
		management, working, materials, machinery)
	return err
}

// Submit marks the report for (project, date) as submitted.
// The snapshot must have been saved first; Submit never creates rows.
func (r *ReportRepository) Submit(ctx context.Context, project, dateKey string) error {
	tag, err := r.DB.Exec(ctx,
		`UPDATE daily_reports
		 SET status='submitted', submitted_at=NOW(), updated_at=NOW()
		 WHERE project_name=$1 AND report_date=$2::date`, project, dateKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSubmittedRange returns submitted reports for a project between two day
// keys inclusive, oldest first.
func (r *ReportRepository) ListSubmittedRange(ctx context.Context, project, fromKey, toKey string) ([]*models.Report, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT id, project_name, to_char(report_date, 'YYYY-MM-DD'),
		        weather, weather_period, temperature, activity_today, work_plan_next_day,
		        management_team, working_team, materials, machinery,
		        status, submitted_at, created_at, updated_at
		 FROM daily_reports
		 WHERE project_name=$1 AND status='submitted'
		   AND report_date BETWEEN $2::date AND $3::date
		 ORDER BY report_date ASC`, project, fromKey, toKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*models.Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, rows.Err()
}

func marshalRows(data *models.ReportData) (management, working, materials, machinery []byte, err error) {
	if management, err = json.Marshal(emptyToSlice(data.ManagementTeam)); err != nil {
		return
	}
	if working, err = json.Marshal(emptyToSlice(data.WorkingTeam)); err != nil {
		return
	}
	if materials, err = json.Marshal(emptyToSlice(data.Materials)); err != nil {
		return
	}
	machinery, err = json.Marshal(emptyToSlice(data.Machinery))
	return
}

// emptyToSlice keeps JSONB columns as '[]' instead of 'null'
func emptyToSlice(rows []models.ResourceRow) []models.ResourceRow {
	if rows == nil {
		return []models.ResourceRow{}
	}
	return rows
}

func scanReport(row pgx.Row) (*models.Report, error) {
	var report models.Report
	var management, working, materials, machinery []byte
	err := row.Scan(&report.ID, &report.Data.ProjectName, &report.Data.ReportDate,
		&report.Data.Weather, &report.Data.WeatherPeriod, &report.Data.Temperature,
		&report.Data.ActivityToday, &report.Data.WorkPlanNextDay,
		&management, &working, &materials, &machinery,
		&report.Status, &report.SubmittedAt, &report.CreatedAt, &report.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(management, &report.Data.ManagementTeam); err != nil {
		return nil, fmt.Errorf("decode management_team: %w", err)
	}
	if err := json.Unmarshal(working, &report.Data.WorkingTeam); err != nil {
		return nil, fmt.Errorf("decode working_team: %w", err)
	}
	if err := json.Unmarshal(materials, &report.Data.Materials); err != nil {
		return nil, fmt.Errorf("decode materials: %w", err)
	}
	if err := json.Unmarshal(machinery, &report.Data.Machinery); err != nil {
		return nil, fmt.Errorf("decode machinery: %w", err)
	}
	return &report, nil
}
