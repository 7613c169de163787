package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpattn/portfolio-ingest/internal/cache"
	"github.com/rpattn/portfolio-ingest/internal/domain"
	"github.com/rpattn/portfolio-ingest/internal/kpi"
	"github.com/rpattn/portfolio-ingest/internal/metrics"
	"github.com/rpattn/portfolio-ingest/internal/repository"
	"github.com/rpattn/portfolio-ingest/internal/versioning"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrDatasetRequired is returned when a request names no dataset.
	ErrDatasetRequired = errors.New("dataset is required")
	// ErrPreviousNotCommitted is returned when the requested diff base never completed.
	ErrPreviousNotCommitted = errors.New("previous version is not completed")
)

// KPICache stores snapshots of completed versions.
type KPICache interface {
	Get(ctx context.Context, versionID uuid.UUID) (kpi.Snapshot, error)
	Set(ctx context.Context, versionID uuid.UUID, snapshot kpi.Snapshot) error
}

// Repositories groups the stores the service reads and writes.
type Repositories struct {
	Versions  repository.VersionRepository
	Projects  repository.ProjectRepository
	Changes   repository.ChangeLogRepository
	Snapshots repository.KPISnapshotRepository
	Logs      repository.IngestionLogRepository
}

// Service runs uploads through parsing, diffing and KPI aggregation and
// commits each run as a version.
type Service struct {
	parser  *Parser
	repos   Repositories
	kpiOpts kpi.Options
	cache   KPICache
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a new ingestion service.
func NewService(parser *Parser, repos Repositories, kpiOpts kpi.Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		parser:  parser,
		repos:   repos,
		kpiOpts: kpiOpts,
		logger:  logger,
		now:     time.Now,
	}
}

// WithCache enables the KPI snapshot cache.
func (s *Service) WithCache(c KPICache) *Service {
	s.cache = c
	return s
}

// Request describes the ingestion input.
type Request struct {
	Dataset  string
	FileName string
	Data     io.Reader
	// PreviousVersionID pins the diff base; nil uses the latest completed
	// version of the dataset.
	PreviousVersionID *uuid.UUID
}

// Result is the structured outcome of one upload.
type Result struct {
	RunResult
	Version   domain.Version          `json:"version"`
	Changes   domain.ChangeSummary    `json:"changes"`
	ChangeLog []domain.ChangeLogEntry `json:"changeLog"`
	KPIs      kpi.Snapshot            `json:"kpis"`
}

// Ingest parses the upload and commits it as a new version of the dataset.
// Content problems surface as warnings; errors are returned only for
// unreadable containers and storage failures, in which case the version is
// marked failed.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	started := s.now()
	dataset := strings.TrimSpace(req.Dataset)
	if dataset == "" {
		return Result{}, ErrDatasetRequired
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read upload: %w", err)
	}

	logger := s.logger.With(zap.String("dataset", dataset), zap.String("file", req.FileName))

	previous, err := s.previousVersion(ctx, dataset, req.PreviousVersionID)
	if err != nil {
		return Result{}, err
	}

	version, err := s.repos.Versions.Create(ctx, domain.NewVersion(dataset, req.FileName, started))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create version: %w", err)
	}
	logger = logger.With(zap.Stringer("version", version.ID))

	if err := s.repos.Versions.UpdateStatus(ctx, version.ID, domain.VersionPending, domain.VersionProcessing); err != nil {
		s.fail(ctx, logger, version.ID, domain.VersionPending, started)
		return Result{}, fmt.Errorf("failed to start processing: %w", err)
	}
	version.Status = domain.VersionProcessing

	run, err := s.parser.Parse(req.FileName, payload)
	if err != nil {
		s.fail(ctx, logger, version.ID, domain.VersionProcessing, started)
		return Result{}, fmt.Errorf("failed to parse %s: %w", req.FileName, err)
	}
	version.TotalRows = run.TotalRows
	for _, warning := range run.Warnings {
		logger.Debug("row warning", zap.Int("row", warning.Row), zap.String("kind", string(warning.Kind)), zap.String("message", warning.Message))
	}
	metrics.AddRowOutcomes(run.Created, run.Drafts, run.Discarded)

	result := Result{RunResult: run, ChangeLog: []domain.ChangeLogEntry{}}

	// A run without records never becomes a diff base; committing it would
	// report every stored project as deleted.
	if len(run.Projects) == 0 {
		s.fail(ctx, logger, version.ID, domain.VersionProcessing, started)
		version.Status = domain.VersionFailed
		result.Version = version
		result.KPIs = kpi.Aggregate(nil, started, s.kpiOpts)
		logger.Warn("upload produced no projects", zap.Int("warnings", len(run.Warnings)))
		return result, nil
	}

	var (
		previousProjects []domain.StoredProject
		previousID       *uuid.UUID
	)
	if previous != nil {
		previousID = &previous.ID
		previousProjects, err = s.repos.Projects.ListByVersion(ctx, previous.ID)
		if err != nil {
			s.fail(ctx, logger, version.ID, domain.VersionProcessing, started)
			return Result{}, fmt.Errorf("failed to load previous version: %w", err)
		}
	}

	matches := versioning.Resolve(run.Projects, previousProjects)
	changeLog, summary := versioning.Diff(version.ID, previousID, matches, previousProjects)
	snapshot := kpi.Aggregate(run.Projects, started, s.kpiOpts)

	warnings := make([]domain.IngestionLogEntry, len(run.Warnings))
	for idx, warning := range run.Warnings {
		warnings[idx] = domain.NewIngestionLogEntry(version.ID, idx, warning)
	}

	commit := repository.VersionCommit{
		Version:  version,
		Projects: versioning.StoredProjects(version, matches),
		Changes:  changeLog,
		KPIs:     snapshot,
		Warnings: warnings,
	}
	if err := s.repos.Versions.Commit(ctx, commit); err != nil {
		s.fail(ctx, logger, version.ID, domain.VersionProcessing, started)
		return Result{}, fmt.Errorf("failed to commit version: %w", err)
	}

	completedAt := s.now().UTC()
	version.Status = domain.VersionCompleted
	version.CompletedAt = &completedAt

	s.cacheSnapshot(ctx, logger, version.ID, snapshot)

	duration := s.now().Sub(started)
	metrics.RecordIngestion(string(domain.VersionCompleted), duration)
	metrics.AddChanges(summary.Added, summary.Modified, summary.Deleted)
	logger.Info("ingestion completed",
		zap.Int("projects", len(run.Projects)),
		zap.Int("drafts", run.Drafts),
		zap.Int("discarded", run.Discarded),
		zap.Int("added", summary.Added),
		zap.Int("modified", summary.Modified),
		zap.Int("deleted", summary.Deleted),
		zap.Duration("duration", duration),
	)

	result.Version = version
	result.Changes = summary
	result.ChangeLog = changeLog
	result.KPIs = snapshot
	return result, nil
}

func (s *Service) previousVersion(ctx context.Context, dataset string, pinned *uuid.UUID) (*domain.Version, error) {
	if pinned != nil {
		version, err := s.repos.Versions.GetByID(ctx, *pinned)
		if err != nil {
			return nil, fmt.Errorf("failed to load previous version: %w", err)
		}
		if !version.IsCommitted() {
			return nil, fmt.Errorf("%w: %s is %s", ErrPreviousNotCommitted, version.ID, version.Status)
		}
		if version.Dataset != dataset {
			return nil, fmt.Errorf("previous version %s belongs to dataset %q", version.ID, version.Dataset)
		}
		return &version, nil
	}

	version, err := s.repos.Versions.LatestCompleted(ctx, dataset)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load previous version: %w", err)
	}
	return &version, nil
}

// fail marks the version failed. It runs detached from ctx so a cancelled
// request still leaves a terminal status behind.
func (s *Service) fail(ctx context.Context, logger *zap.Logger, id uuid.UUID, from domain.VersionStatus, started time.Time) {
	metrics.RecordIngestion(string(domain.VersionFailed), s.now().Sub(started))
	if err := s.repos.Versions.UpdateStatus(context.WithoutCancel(ctx), id, from, domain.VersionFailed); err != nil {
		logger.Error("failed to mark version failed", zap.Error(err))
	}
}

func (s *Service) cacheSnapshot(ctx context.Context, logger *zap.Logger, id uuid.UUID, snapshot kpi.Snapshot) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, id, snapshot); err != nil {
		logger.Warn("failed to cache kpis", zap.Error(err))
	}
}

// Versions lists the versions of a dataset, newest first.
func (s *Service) Versions(ctx context.Context, dataset string, limit, offset int) ([]domain.Version, error) {
	if strings.TrimSpace(dataset) == "" {
		return nil, ErrDatasetRequired
	}
	return s.repos.Versions.List(ctx, strings.TrimSpace(dataset), limit, offset)
}

// ChangeLog returns the stored change log of a version.
func (s *Service) ChangeLog(ctx context.Context, versionID uuid.UUID) ([]domain.ChangeLogEntry, error) {
	if _, err := s.repos.Versions.GetByID(ctx, versionID); err != nil {
		return nil, err
	}
	return s.repos.Changes.ListByVersion(ctx, versionID)
}

// Projects returns the stored records of a version in sheet order.
func (s *Service) Projects(ctx context.Context, versionID uuid.UUID) ([]domain.StoredProject, error) {
	return s.repos.Projects.ListByVersion(ctx, versionID)
}

// Warnings returns the row warnings stored for a version.
func (s *Service) Warnings(ctx context.Context, versionID uuid.UUID, limit, offset int) ([]domain.IngestionLogEntry, error) {
	return s.repos.Logs.List(ctx, versionID, limit, offset)
}

// LatestKPIs returns the KPI snapshot of the latest completed version of a
// dataset, served from the cache when possible.
func (s *Service) LatestKPIs(ctx context.Context, dataset string) (domain.Version, kpi.Snapshot, error) {
	dataset = strings.TrimSpace(dataset)
	if dataset == "" {
		return domain.Version{}, kpi.Snapshot{}, ErrDatasetRequired
	}

	version, err := s.repos.Versions.LatestCompleted(ctx, dataset)
	if err != nil {
		return domain.Version{}, kpi.Snapshot{}, err
	}

	if s.cache != nil {
		snapshot, err := s.cache.Get(ctx, version.ID)
		switch {
		case err == nil:
			metrics.IncrementKPICache("hit")
			return version, snapshot, nil
		case errors.Is(err, cache.ErrMiss):
			metrics.IncrementKPICache("miss")
		default:
			metrics.IncrementKPICache("error")
			s.logger.Warn("kpi cache lookup failed", zap.Error(err))
		}
	}

	snapshot, err := s.repos.Snapshots.GetByVersion(ctx, version.ID)
	if err != nil {
		return domain.Version{}, kpi.Snapshot{}, err
	}
	s.cacheSnapshot(ctx, s.logger, version.ID, snapshot)
	return version, snapshot, nil
}
