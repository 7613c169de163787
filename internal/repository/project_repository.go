package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rpattn/portfolio-ingest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type projectRepository struct {
	pool *pgxpool.Pool
}

// NewProjectRepository wires a project repository backed by pgxpool.
func NewProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &projectRepository{pool: pool}
}

// ListByVersion returns the records of a version in their stored order.
func (r *projectRepository) ListByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.StoredProject, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("project repository not initialized")
	}

	rows, err := r.pool.Query(
		ctx,
		`SELECT position, identity_key, record
		 FROM projects
		 WHERE version_id = $1
		 ORDER BY position`,
		versionID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []domain.StoredProject{}
	for rows.Next() {
		var (
			project domain.StoredProject
			payload []byte
		)
		if scanErr := rows.Scan(&project.Position, &project.IdentityKey, &payload); scanErr != nil {
			return nil, fmt.Errorf("failed to scan project: %w", scanErr)
		}
		if err := json.Unmarshal(payload, &project.Record); err != nil {
			return nil, fmt.Errorf("failed to decode project %s: %w", project.IdentityKey, err)
		}
		project.VersionID = versionID
		projects = append(projects, project)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", rowsErr)
	}

	return projects, nil
}
