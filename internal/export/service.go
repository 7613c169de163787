// Package export renders a stored version back into a spreadsheet-shaped
// CSV whose headers the ingestion parser recognises, so an export can be
// edited and uploaded again as the next version.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/portfolio-ingest/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrVersionNotCompleted is returned when exporting a version that has no committed projects.
var ErrVersionNotCompleted = errors.New("version is not completed")

// VersionSource looks up versions.
type VersionSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (domain.Version, error)
}

// ProjectSource lists the stored projects of a version.
type ProjectSource interface {
	ListByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.StoredProject, error)
}

type column struct {
	header string
	value  func(r domain.ParsedProjectRecord) string
}

var columns = []column{
	{"ID Power Steering", func(r domain.ParsedProjectRecord) string {
		if r.LegacyIDSynthetic {
			return ""
		}
		return r.LegacyID
	}},
	{"Nombre del proyecto", func(r domain.ParsedProjectRecord) string {
		if r.RequiresName {
			return ""
		}
		return r.ProjectName
	}},
	{"Descripción", func(r domain.ParsedProjectRecord) string { return r.Description }},
	{"Departamento", func(r domain.ParsedProjectRecord) string { return r.DepartmentName }},
	{"Líder", func(r domain.ParsedProjectRecord) string { return r.Leader }},
	{"Sponsor", func(r domain.ParsedProjectRecord) string { return r.Sponsor }},
	{"Analista BP", func(r domain.ParsedProjectRecord) string { return r.BPAnalyst }},
	{"Estado", func(r domain.ParsedProjectRecord) string { return r.Status }},
	{"Status y siguientes pasos", func(r domain.ParsedProjectRecord) string { return r.StatusText }},
	{"Prioridad", func(r domain.ParsedProjectRecord) string { return r.Priority }},
	{"Categoría", func(r domain.ParsedProjectRecord) string { return r.Category }},
	{"Región", func(r domain.ParsedProjectRecord) string { return r.Region }},
	{"Objetivo", func(r domain.ParsedProjectRecord) string { return r.Objective }},
	{"Alcance", func(r domain.ParsedProjectRecord) string { return r.ScopeIn }},
	{"Fuera de alcance", func(r domain.ParsedProjectRecord) string { return r.ScopeOut }},
	{"Tipo de impacto", func(r domain.ParsedProjectRecord) string { return strings.Join(r.ImpactType, ", ") }},
	{"KPIs", func(r domain.ParsedProjectRecord) string { return r.KPIs }},
	{"Beneficios", func(r domain.ParsedProjectRecord) string { return r.Benefits }},
	{"Riesgos", func(r domain.ParsedProjectRecord) string { return r.Risks }},
	{"Comentarios", func(r domain.ParsedProjectRecord) string { return r.Comments }},
	{"% Avance", func(r domain.ParsedProjectRecord) string { return strconv.Itoa(r.PercentComplete) + "%" }},
	{"Presupuesto", func(r domain.ParsedProjectRecord) string { return formatValue(r.Budget) }},
	{"Valor", func(r domain.ParsedProjectRecord) string { return formatValue(r.TotalValue) }},
	{"Fecha de inicio", func(r domain.ParsedProjectRecord) string { return formatDate(r.StartDate) }},
	{"Fecha estimada de fin", func(r domain.ParsedProjectRecord) string { return formatDate(r.EndDateEstimated) }},
	{"Fecha real de fin", func(r domain.ParsedProjectRecord) string { return formatDate(r.EndDateActual) }},
	{"Fecha de registro", func(r domain.ParsedProjectRecord) string { return formatDate(r.RegistrationDate) }},
}

// Service builds version exports.
type Service struct {
	versions VersionSource
	projects ProjectSource
	logger   *zap.Logger
}

// NewService creates an export service.
func NewService(versions VersionSource, projects ProjectSource, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{versions: versions, projects: projects, logger: logger}
}

// Export is a loaded version ready to be written.
type Export struct {
	Version  domain.Version
	Projects []domain.StoredProject
	FileName string
}

// Prepare loads a completed version and its projects.
func (s *Service) Prepare(ctx context.Context, versionID uuid.UUID) (Export, error) {
	version, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return Export{}, err
	}
	if version.Status != domain.VersionCompleted {
		return Export{}, fmt.Errorf("%w: %s is %s", ErrVersionNotCompleted, versionID, version.Status)
	}

	projects, err := s.projects.ListByVersion(ctx, versionID)
	if err != nil {
		return Export{}, fmt.Errorf("failed to load projects: %w", err)
	}

	return Export{
		Version:  version,
		Projects: projects,
		FileName: fileName(version),
	}, nil
}

// WriteCSV writes the export and returns the number of bytes written.
// Extra attributes become trailing columns in name order.
func (s *Service) WriteCSV(w io.Writer, export Export) (int64, error) {
	buffered := bufio.NewWriter(w)
	counter := &countingWriter{writer: buffered}
	writer := csv.NewWriter(counter)

	extras := extraHeaders(export.Projects)
	header := make([]string, 0, len(columns)+len(extras))
	for _, col := range columns {
		header = append(header, col.header)
	}
	header = append(header, extras...)
	if err := writer.Write(header); err != nil {
		return counter.count, fmt.Errorf("failed to write header: %w", err)
	}

	for _, project := range export.Projects {
		row := make([]string, 0, len(header))
		for _, col := range columns {
			row = append(row, col.value(project.Record))
		}
		for _, key := range extras {
			row = append(row, formatValue(project.Record.ExtraFields[key]))
		}
		if err := writer.Write(row); err != nil {
			return counter.count, fmt.Errorf("failed to write project %s: %w", project.IdentityKey, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return counter.count, fmt.Errorf("failed to flush csv: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return counter.count, fmt.Errorf("failed to flush output: %w", err)
	}

	s.logger.Info("version exported",
		zap.String("version_id", export.Version.ID.String()),
		zap.Int("projects", len(export.Projects)),
		zap.Int64("bytes", counter.count),
	)
	return counter.count, nil
}

func extraHeaders(projects []domain.StoredProject) []string {
	known := make(map[string]struct{}, len(columns))
	for _, col := range columns {
		known[strings.ToLower(col.header)] = struct{}{}
	}

	seen := map[string]struct{}{}
	for _, project := range projects {
		for key := range project.Record.ExtraFields {
			if _, clash := known[strings.ToLower(key)]; clash {
				continue
			}
			seen[key] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for key := range seen {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

func fileName(version domain.Version) string {
	return fmt.Sprintf("%s_%s.csv", sanitizeFileComponent(version.Dataset), version.UploadedAt.UTC().Format("20060102-150405"))
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "portfolio"
	}
	return result
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}

func formatDate(d domain.DateValue) string {
	switch {
	case d.Date != nil:
		return d.ISO()
	case d.TBD:
		return "TBD"
	default:
		return d.Original
	}
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case *decimal.Decimal:
		if v == nil {
			return ""
		}
		return v.String()
	case fmt.Stringer:
		return v.String()
	case time.Time:
		return v.UTC().Format(domain.DateLayout)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
