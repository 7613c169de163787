package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rpattn/portfolio-ingest/internal/kpi"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type kpiSnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewKPISnapshotRepository wires a KPI snapshot repository backed by pgxpool.
func NewKPISnapshotRepository(pool *pgxpool.Pool) KPISnapshotRepository {
	return &kpiSnapshotRepository{pool: pool}
}

func (r *kpiSnapshotRepository) GetByVersion(ctx context.Context, versionID uuid.UUID) (kpi.Snapshot, error) {
	if r.pool == nil {
		return kpi.Snapshot{}, fmt.Errorf("kpi snapshot repository not initialized")
	}

	var payload []byte
	err := r.pool.QueryRow(
		ctx,
		`SELECT snapshot FROM kpi_snapshots WHERE version_id = $1`,
		versionID,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return kpi.Snapshot{}, fmt.Errorf("kpi snapshot for %s: %w", versionID, ErrNotFound)
	}
	if err != nil {
		return kpi.Snapshot{}, fmt.Errorf("failed to get kpi snapshot: %w", err)
	}

	var snapshot kpi.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return kpi.Snapshot{}, fmt.Errorf("failed to decode kpi snapshot: %w", err)
	}
	return snapshot, nil
}
