package export

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rpattn/portfolio-ingest/internal/domain"
	"github.com/rpattn/portfolio-ingest/internal/ingestion"
	"github.com/rpattn/portfolio-ingest/internal/repository"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
)

const upload = `ID,Proyecto,Estado,Prioridad,Fecha Fin,Presupuesto,% Avance,Tipo de impacto,Campo libre
P-1,Portal,En curso,Alta,30/06/2024,1500,1%,"Ahorro, Cliente",nota
,CRM,Detenido,Media,TBD,,0.5,,
P-3,ERP,Cerrado,Urgente,31/02/2024,250000,,,otra
`

type stubVersions struct {
	versions map[uuid.UUID]domain.Version
}

func (s stubVersions) GetByID(_ context.Context, id uuid.UUID) (domain.Version, error) {
	version, ok := s.versions[id]
	if !ok {
		return domain.Version{}, fmt.Errorf("version %s: %w", id, repository.ErrNotFound)
	}
	return version, nil
}

type stubProjects struct {
	projects map[uuid.UUID][]domain.StoredProject
}

func (s stubProjects) ListByVersion(_ context.Context, versionID uuid.UUID) ([]domain.StoredProject, error) {
	return s.projects[versionID], nil
}

func parseUpload(t *testing.T, fileName string, content []byte) []domain.ParsedProjectRecord {
	t.Helper()
	result, err := ingestion.NewParser(ingestion.DefaultOptions()).Parse(fileName, content)
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	return result.Projects
}

func newFixture(t *testing.T, status domain.VersionStatus) (*Service, domain.Version, []domain.ParsedProjectRecord) {
	t.Helper()
	records := parseUpload(t, "v1.csv", []byte(upload))
	if len(records) != 3 {
		t.Fatalf("expected 3 parsed records, got %d", len(records))
	}

	version := domain.Version{
		ID:         uuid.New(),
		Dataset:    "Portafolio TI",
		FileName:   "v1.csv",
		UploadedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Status:     status,
	}
	stored := make([]domain.StoredProject, len(records))
	for idx, record := range records {
		stored[idx] = domain.StoredProject{VersionID: version.ID, Position: idx, IdentityKey: record.LegacyID, Record: record}
	}

	service := NewService(
		stubVersions{versions: map[uuid.UUID]domain.Version{version.ID: version}},
		stubProjects{projects: map[uuid.UUID][]domain.StoredProject{version.ID: stored}},
		nil,
	)
	return service, version, records
}

func TestExportRoundTripsThroughParser(t *testing.T) {
	service, version, records := newFixture(t, domain.VersionCompleted)

	export, err := service.Prepare(context.Background(), version.ID)
	if err != nil {
		t.Fatalf("prepare returned error: %v", err)
	}
	if export.FileName != "portafolio-ti_20240301-093000.csv" {
		t.Fatalf("unexpected file name %q", export.FileName)
	}

	var buf bytes.Buffer
	written, err := service.WriteCSV(&buf, export)
	if err != nil {
		t.Fatalf("write returned error: %v", err)
	}
	if written != int64(buf.Len()) {
		t.Fatalf("expected %d bytes reported, got %d", buf.Len(), written)
	}

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if !strings.HasSuffix(header, ",Campo libre") {
		t.Fatalf("expected extra column at the end, got %q", header)
	}

	if records[0].PercentComplete != 1 || records[1].PercentComplete != 50 {
		t.Fatalf("unexpected parsed percentages %d and %d", records[0].PercentComplete, records[1].PercentComplete)
	}

	reparsed := parseUpload(t, export.FileName, buf.Bytes())
	if diff := cmp.Diff(records, reparsed, cmpopts.IgnoreFields(domain.DateValue{}, "Original")); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPrepareRejectsUncommittedVersion(t *testing.T) {
	service, version, _ := newFixture(t, domain.VersionFailed)

	if _, err := service.Prepare(context.Background(), version.ID); err == nil {
		t.Fatalf("expected failed version to be rejected")
	}
}

func TestHTTPHandlerDownload(t *testing.T) {
	service, version, _ := newFixture(t, domain.VersionCompleted)
	handler := NewHTTPHandler(service, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/exports/versions/"+version.ID.String(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "portafolio-ti_20240301-093000.csv") {
		t.Fatalf("unexpected content disposition %q", got)
	}
	if !strings.HasPrefix(rec.Body.String(), "ID Power Steering,") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}

	cases := map[string]int{
		"/api/exports/versions/not-a-uuid":          http.StatusBadRequest,
		"/api/exports/versions/" + uuid.NewString(): http.StatusNotFound,
	}
	for path, want := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Errorf("%s: expected %d, got %d", path, want, rec.Code)
		}
	}
}
