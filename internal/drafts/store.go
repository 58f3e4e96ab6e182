// Package drafts implements the local draft store: date-keyed persistence of
// unsaved report snapshots. It is a passive cache in front of the report
// repository; last write wins and a missing key is not an error.
package drafts

import (
	"context"

	"dcr-backend/internal/models"
)

// Store is the draft store contract the report session writes through.
// Load returns (nil, false) on a missing key; Save overwrites silently.
type Store interface {
	Save(ctx context.Context, project, dateKey string, data *models.ReportData) error
	Load(ctx context.Context, project, dateKey string) (*models.ReportData, bool)
	Remove(ctx context.Context, project, dateKey string) error
}
