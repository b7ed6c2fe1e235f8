package repositories

import (
	"context"

	"github.com/casevault/citeline/internal/domain/entities"
)

// ProjectionRepository defines the interface for persisting build runs and
// their resulting timeline entries.
type ProjectionRepository interface {
	// SaveRun records one build invocation and its final entries.
	SaveRun(ctx context.Context, caseID string, projection *entities.Projection) (string, error)

	// GetRunEntries returns the entries persisted for a run.
	GetRunEntries(ctx context.Context, runID string) ([]entities.Entry, error)
}
