package repository

import (
	"context"
	"errors"

	"github.com/rpattn/portfolio-ingest/internal/domain"
	"github.com/rpattn/portfolio-ingest/internal/kpi"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrVersionStateConflict is returned when a version is not in the status a transition expects.
	ErrVersionStateConflict = errors.New("version status conflict")
)

// VersionCommit is everything persisted when an ingestion run completes.
type VersionCommit struct {
	Version  domain.Version
	Projects []domain.StoredProject
	Changes  []domain.ChangeLogEntry
	KPIs     kpi.Snapshot
	Warnings []domain.IngestionLogEntry
}

// VersionRepository defines the lifecycle operations of ingestion versions
type VersionRepository interface {
	Create(ctx context.Context, version domain.Version) (domain.Version, error)
	// UpdateStatus moves a version from one status to another; it fails with
	// ErrVersionStateConflict when the current status differs from `from`.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.VersionStatus) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Version, error)
	LatestCompleted(ctx context.Context, dataset string) (domain.Version, error)
	List(ctx context.Context, dataset string, limit int, offset int) ([]domain.Version, error)
	// Commit stores the run output and marks the version completed atomically.
	Commit(ctx context.Context, commit VersionCommit) error
}

// ProjectRepository reads the project records stored for a version
type ProjectRepository interface {
	ListByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.StoredProject, error)
}

// ChangeLogRepository reads the change log stored for a version
type ChangeLogRepository interface {
	ListByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.ChangeLogEntry, error)
}

// KPISnapshotRepository reads the KPI snapshot stored for a version
type KPISnapshotRepository interface {
	GetByVersion(ctx context.Context, versionID uuid.UUID) (kpi.Snapshot, error)
}

// IngestionLogRepository reads row warnings stored for a version.
type IngestionLogRepository interface {
	List(ctx context.Context, versionID uuid.UUID, limit int, offset int) ([]domain.IngestionLogEntry, error)
}
