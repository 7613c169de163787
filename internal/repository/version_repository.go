package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/portfolio-ingest/internal/db"
	"github.com/rpattn/portfolio-ingest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type versionRepository struct {
	conn *db.Connection
}

// NewVersionRepository wires a version repository backed by pgxpool.
func NewVersionRepository(conn *db.Connection) VersionRepository {
	return &versionRepository{conn: conn}
}

const versionColumns = `id, dataset, file_name, uploaded_at, total_rows, status, completed_at`

func (r *versionRepository) Create(ctx context.Context, version domain.Version) (domain.Version, error) {
	if version.ID == uuid.Nil {
		version.ID = uuid.New()
	}
	if version.Status == "" {
		version.Status = domain.VersionPending
	}

	row := r.conn.Pool.QueryRow(
		ctx,
		`INSERT INTO versions (id, dataset, file_name, uploaded_at, total_rows, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+versionColumns,
		version.ID,
		version.Dataset,
		version.FileName,
		version.UploadedAt,
		version.TotalRows,
		string(version.Status),
	)

	created, err := scanVersion(row)
	if err != nil {
		return domain.Version{}, fmt.Errorf("failed to create version: %w", err)
	}
	return created, nil
}

func (r *versionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.VersionStatus) error {
	tag, err := r.conn.Pool.Exec(
		ctx,
		`UPDATE versions SET status = $3 WHERE id = $1 AND status = $2`,
		id,
		string(from),
		string(to),
	)
	if err != nil {
		return fmt.Errorf("failed to update version status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: version %s is not %s", ErrVersionStateConflict, id, from)
	}
	return nil
}

func (r *versionRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Version, error) {
	row := r.conn.Pool.QueryRow(ctx, `SELECT `+versionColumns+` FROM versions WHERE id = $1`, id)
	version, err := scanVersion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Version{}, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return domain.Version{}, fmt.Errorf("failed to get version: %w", err)
	}
	return version, nil
}

func (r *versionRepository) LatestCompleted(ctx context.Context, dataset string) (domain.Version, error) {
	row := r.conn.Pool.QueryRow(
		ctx,
		`SELECT `+versionColumns+`
		 FROM versions
		 WHERE dataset = $1 AND status = 'completed'
		 ORDER BY completed_at DESC, uploaded_at DESC
		 LIMIT 1`,
		dataset,
	)
	version, err := scanVersion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Version{}, fmt.Errorf("no completed version for %q: %w", dataset, ErrNotFound)
	}
	if err != nil {
		return domain.Version{}, fmt.Errorf("failed to get latest version: %w", err)
	}
	return version, nil
}

func (r *versionRepository) List(ctx context.Context, dataset string, limit int, offset int) ([]domain.Version, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.conn.Pool.Query(
		ctx,
		`SELECT `+versionColumns+`
		 FROM versions
		 WHERE dataset = $1
		 ORDER BY uploaded_at DESC
		 LIMIT $2 OFFSET $3`,
		dataset,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	defer rows.Close()

	versions := []domain.Version{}
	for rows.Next() {
		version, scanErr := scanVersion(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan version: %w", scanErr)
		}
		versions = append(versions, version)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate versions: %w", rowsErr)
	}
	return versions, nil
}

func (r *versionRepository) Commit(ctx context.Context, commit VersionCommit) error {
	versionID := commit.Version.ID

	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if len(commit.Projects) > 0 {
			_, err := tx.CopyFrom(
				ctx,
				pgx.Identifier{"projects"},
				[]string{"version_id", "position", "identity_key", "legacy_id", "project_name", "is_draft", "record"},
				pgx.CopyFromSlice(len(commit.Projects), func(i int) ([]any, error) {
					project := commit.Projects[i]
					payload, err := json.Marshal(project.Record)
					if err != nil {
						return nil, fmt.Errorf("failed to encode project %s: %w", project.IdentityKey, err)
					}
					return []any{
						versionID,
						project.Position,
						project.IdentityKey,
						project.Record.LegacyID,
						project.Record.ProjectName,
						project.Record.IsDraftIncomplete,
						payload,
					}, nil
				}),
			)
			if err != nil {
				return fmt.Errorf("failed to store projects: %w", err)
			}
		}

		if len(commit.Changes) > 0 {
			_, err := tx.CopyFrom(
				ctx,
				pgx.Identifier{"change_logs"},
				[]string{"version_id", "previous_version_id", "position", "change_type", "field_name", "old_value", "new_value", "legacy_id", "project_name"},
				pgx.CopyFromSlice(len(commit.Changes), func(i int) ([]any, error) {
					entry := commit.Changes[i]
					return []any{
						versionID,
						entry.PreviousVersionID,
						i,
						string(entry.ChangeType),
						entry.FieldName,
						entry.OldValue,
						entry.NewValue,
						entry.LegacyID,
						entry.ProjectName,
					}, nil
				}),
			)
			if err != nil {
				return fmt.Errorf("failed to store change log: %w", err)
			}
		}

		snapshot, err := json.Marshal(commit.KPIs)
		if err != nil {
			return fmt.Errorf("failed to encode kpi snapshot: %w", err)
		}
		if _, err := tx.Exec(
			ctx,
			`INSERT INTO kpi_snapshots (version_id, snapshot) VALUES ($1, $2)`,
			versionID,
			snapshot,
		); err != nil {
			return fmt.Errorf("failed to store kpi snapshot: %w", err)
		}

		if len(commit.Warnings) > 0 {
			_, err := tx.CopyFrom(
				ctx,
				pgx.Identifier{"ingestion_logs"},
				[]string{"version_id", "position", "row_number", "kind", "message"},
				pgx.CopyFromSlice(len(commit.Warnings), func(i int) ([]any, error) {
					entry := commit.Warnings[i]
					return []any{versionID, entry.Position, entry.RowNumber, string(entry.Kind), entry.Message}, nil
				}),
			)
			if err != nil {
				return fmt.Errorf("failed to store ingestion logs: %w", err)
			}
		}

		tag, err := tx.Exec(
			ctx,
			`UPDATE versions
			 SET status = 'completed', total_rows = $2, completed_at = $3
			 WHERE id = $1 AND status = 'processing'`,
			versionID,
			commit.Version.TotalRows,
			time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("failed to complete version: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: version %s is not processing", ErrVersionStateConflict, versionID)
		}
		return nil
	})
}

func scanVersion(row pgx.Row) (domain.Version, error) {
	var (
		version     domain.Version
		status      string
		uploadedAt  pgtype.Timestamptz
		completedAt pgtype.Timestamptz
	)
	if err := row.Scan(
		&version.ID,
		&version.Dataset,
		&version.FileName,
		&uploadedAt,
		&version.TotalRows,
		&status,
		&completedAt,
	); err != nil {
		return domain.Version{}, err
	}

	version.Status = domain.VersionStatusFrom(status)
	if uploadedAt.Valid {
		version.UploadedAt = uploadedAt.Time
	}
	if completedAt.Valid {
		t := completedAt.Time
		version.CompletedAt = &t
	}
	return version, nil
}
