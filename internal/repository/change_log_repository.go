package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/portfolio-ingest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type changeLogRepository struct {
	pool *pgxpool.Pool
}

// NewChangeLogRepository wires a change log repository backed by pgxpool.
func NewChangeLogRepository(pool *pgxpool.Pool) ChangeLogRepository {
	return &changeLogRepository{pool: pool}
}

func (r *changeLogRepository) ListByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.ChangeLogEntry, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("change log repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT previous_version_id, change_type, field_name, old_value, new_value, legacy_id, project_name
		 FROM change_logs
		 WHERE version_id = $1
		 ORDER BY position`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list change log: %w", err)
	}
	defer rows.Close()

	entries := []domain.ChangeLogEntry{}
	for rows.Next() {
		var (
			entry      domain.ChangeLogEntry
			previousID pgtype.UUID
			changeType string
		)
		if scanErr := rows.Scan(
			&previousID,
			&changeType,
			&entry.FieldName,
			&entry.OldValue,
			&entry.NewValue,
			&entry.LegacyID,
			&entry.ProjectName,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan change log entry: %w", scanErr)
		}

		entry.ChangeType = domain.ChangeType(changeType)
		entry.VersionID = versionID
		if previousID.Valid {
			id := uuid.UUID(previousID.Bytes)
			entry.PreviousVersionID = &id
		}
		entries = append(entries, entry)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate change log: %w", rowsErr)
	}

	return entries, nil
}
