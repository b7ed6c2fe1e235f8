package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"

	"github.com/casevault/citeline/internal/domain/entities"
	"github.com/casevault/citeline/internal/domain/repositories"
	"github.com/casevault/citeline/internal/infrastructure/clients/postgres"
	apperrors "github.com/casevault/citeline/pkg/errors"
)

var runNamespace = uuid.MustParse("a4d2fb91-8e07-4b6a-b3c5-2f9d61e80c47")

// ProjectionAdapter implements projection run persistence in Postgres.
type ProjectionAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewProjectionAdapter creates a new projection adapter.
func NewProjectionAdapter(client *postgres.Client) repositories.ProjectionRepository {
	return &ProjectionAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// SaveRun inserts one run row plus one row per final entry. The run id is
// derived from the case id and generation timestamp so re-saving the same
// projection is idempotent.
func (a *ProjectionAdapter) SaveRun(ctx context.Context, caseID string, projection *entities.Projection) (string, error) {
	if projection == nil {
		return "", apperrors.NewInternalError("projection is nil", fmt.Errorf("projection is nil"))
	}

	runID := uuid.NewSHA1(runNamespace, []byte(caseID+"|"+projection.GeneratedAt.UTC().Format("2006-01-02T15:04:05Z"))).String()

	stopReasons := make([]string, 0, len(projection.Audits))
	for _, audit := range projection.Audits {
		stopReasons = append(stopReasons, audit.PatientLabel+":"+audit.StoppingReason)
	}

	runRecord := goqu.Record{
		"id":           runID,
		"case_id":      caseID,
		"generated_at": projection.GeneratedAt,
		"entry_count":  len(projection.Entries),
		"skip_count":   len(projection.Skips),
		"stop_reasons": strings.Join(stopReasons, ","),
	}
	query, args, err := a.db.Insert("chronology_runs").Rows(runRecord).ToSQL()
	if err != nil {
		return "", apperrors.NewInternalError("failed to build run insert query", err)
	}

	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return "", apperrors.NewInternalError("failed to begin run transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return "", apperrors.NewInternalError("failed to insert run", err)
	}

	for position, entry := range projection.Entries {
		record := goqu.Record{
			"run_id":           runID,
			"position":         position,
			"entry_id":         entry.EntryID,
			"date_display":     entry.DateDisplay,
			"provider_display": entry.ProviderDisplay,
			"event_type":       entry.EventTypeDisplay,
			"patient_label":    entry.PatientLabel,
			"facts":            strings.Join(entry.Facts, "\n"),
			"citation_display": entry.CitationDisplay,
			"score":            entry.Score,
		}
		query, args, err := a.db.Insert("chronology_entries").Rows(record).ToSQL()
		if err != nil {
			return "", apperrors.NewInternalError("failed to build entry insert query", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return "", apperrors.NewInternalError("failed to insert entry", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", apperrors.NewInternalError("failed to commit run", err)
	}
	return runID, nil
}

// GetRunEntries returns the persisted entries of a run in stored order.
func (a *ProjectionAdapter) GetRunEntries(ctx context.Context, runID string) ([]entities.Entry, error) {
	query, args, err := a.db.From("chronology_entries").
		Select("entry_id", "date_display", "provider_display", "event_type", "patient_label", "facts", "citation_display", "score").
		Where(goqu.Ex{"run_id": runID}).
		Order(goqu.I("position").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build entries query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query run entries", err)
	}
	defer rows.Close()

	var entries []entities.Entry
	for rows.Next() {
		var entry entities.Entry
		var facts string
		if err := rows.Scan(&entry.EntryID, &entry.DateDisplay, &entry.ProviderDisplay,
			&entry.EventTypeDisplay, &entry.PatientLabel, &facts,
			&entry.CitationDisplay, &entry.Score); err != nil {
			return nil, apperrors.NewInternalError("failed to scan run entry", err)
		}
		if facts != "" {
			entry.Facts = strings.Split(facts, "\n")
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate run entries", err)
	}
	if len(entries) == 0 {
		return nil, apperrors.NewNotFoundError("run not found: " + runID)
	}
	return entries, nil
}
