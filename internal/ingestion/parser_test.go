package ingestion

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rpattn/portfolio-ingest/internal/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes rows into a single-sheet xlsx; nil rows stay empty.
func buildWorkbook(t *testing.T, sheet string, rows [][]any) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("failed to rename sheet: %v", err)
		}
	}
	for idx, row := range rows {
		if row == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			t.Fatalf("failed to build cell name: %v", err)
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			t.Fatalf("failed to write row %d: %v", idx+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}
	return buf.Bytes()
}

func portfolioRows() [][]any {
	return [][]any{
		{"Reporte de Portafolio"},
		{"Actualizado al", "2024-03-01"},
		nil,
		{"ID", "Proyecto", "Estado", "Prioridad", "Fecha Fin", "% Avance", "Campo Extra"},
		{"P-1", "Portal", "En curso", "Alta", time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), 0.5, "x"},
		{"P-2", "", "Detenido", "Media", "05/03/2024", "75%", ""},
		nil,
		{"P-3", "Migración", "Cerrado", "Baja", "TBD", 1, ""},
		{"P-4", "Piloto", "En curso", "Urgente", "31/02/2024", "", ""},
	}
}

func TestParseEndToEndHeaderBelowTitleRows(t *testing.T) {
	payload := buildWorkbook(t, "Proyectos", portfolioRows())

	result, err := NewParser(DefaultOptions()).Parse("cartera.xlsx", payload)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if result.SheetName != "Proyectos" {
		t.Fatalf("unexpected sheet %q", result.SheetName)
	}
	if result.HeaderRowIndex != 3 {
		t.Fatalf("expected header at index 3, got %d", result.HeaderRowIndex)
	}
	if result.TotalRows != 5 {
		t.Fatalf("expected 5 rows below the header, got %d", result.TotalRows)
	}
	if len(result.Projects) != 4 {
		t.Fatalf("expected 4 records, got %d", len(result.Projects))
	}
	if result.Created != 3 || result.Drafts != 1 || result.Discarded != 0 {
		t.Fatalf("unexpected counters created=%d drafts=%d discarded=%d", result.Created, result.Drafts, result.Discarded)
	}
	if result.Created+result.Drafts != len(result.Projects) {
		t.Fatalf("counters do not add up to the record count")
	}

	first := result.Projects[0]
	if first.RowNumber != 5 || first.EndDateEstimated.ISO() != "2024-06-30" || first.PercentComplete != 50 {
		t.Fatalf("unexpected first record %+v", first)
	}
	if first.ExtraFields["Campo Extra"] != "x" {
		t.Fatalf("expected extra column value, got %+v", first.ExtraFields)
	}

	second := result.Projects[1]
	if second.ProjectName != "Portal" || !second.NameInherited {
		t.Fatalf("expected P-2 to inherit Portal, got %+v", second)
	}
	if second.EndDateEstimated.ISO() != "2024-03-05" || second.PercentComplete != 75 {
		t.Fatalf("unexpected second record dates/percent %+v", second)
	}

	third := result.Projects[2]
	if !third.EndDateEstimated.TBD || third.PercentComplete != 100 {
		t.Fatalf("unexpected third record %+v", third)
	}

	draft := result.Projects[3]
	if !draft.IsDraftIncomplete || !draft.HasInvalidDate || !draft.HasUnmappedCatalogValue {
		t.Fatalf("expected P-4 to be a draft, got %+v", draft)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected two warnings for P-4, got %+v", result.Warnings)
	}
	if diffCols := result.ColumnsUnmapped; len(diffCols) != 1 || diffCols[0] != "Campo Extra" {
		t.Fatalf("unexpected unmapped columns %v", diffCols)
	}
}

func TestParseUsesAutoFilterRow(t *testing.T) {
	rows := [][]any{
		{"ID", "Proyecto", "Estado", "Líder", "Área"},
		{"nota", "de", "cabecera"},
		{"Código", "Iniciativa", "Situación", "Responsable", "Gerencia"},
		{"A-1", "CRM", "En curso", "Luis", "Ventas"},
	}
	f := excelize.NewFile()
	defer f.Close()
	for idx, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, idx+1)
		values := row
		if err := f.SetSheetRow("Sheet1", cell, &values); err != nil {
			t.Fatalf("failed to write row: %v", err)
		}
	}
	if err := f.AutoFilter("Sheet1", "A3:E4", nil); err != nil {
		t.Fatalf("failed to add auto filter: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}

	result, err := NewParser(DefaultOptions()).Parse("filtrado.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.HeaderRowIndex != 2 {
		t.Fatalf("expected auto-filter header at index 2, got %d", result.HeaderRowIndex)
	}
	if len(result.Projects) != 1 || result.Projects[0].LegacyID != "A-1" || result.Projects[0].DepartmentName != "Ventas" {
		t.Fatalf("unexpected records %+v", result.Projects)
	}
}

func TestParsePrefersNamedSheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	if _, err := f.NewSheet("Portafolio 2024"); err != nil {
		t.Fatalf("failed to add sheet: %v", err)
	}
	_ = f.SetSheetRow("Sheet1", "A1", &[]any{"Instrucciones"})
	_ = f.SetSheetRow("Portafolio 2024", "A1", &[]any{"ID", "Proyecto", "Estado"})
	_ = f.SetSheetRow("Portafolio 2024", "A2", &[]any{"Z-1", "ERP", "Cerrado"})
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("failed to write workbook: %v", err)
	}

	result, err := NewParser(DefaultOptions()).Parse("libro.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if result.SheetName != "Portafolio 2024" || len(result.Projects) != 1 {
		t.Fatalf("expected the portfolio sheet, got %q with %d records", result.SheetName, len(result.Projects))
	}
}

func TestParseCSV(t *testing.T) {
	data := "\xEF\xBB\xBFID,Proyecto,Estado,Fecha Inicio\nC-1,Intranet,En curso,01/02/2024\nC-2,,Detenido,\n"

	result, err := NewParser(DefaultOptions()).Parse("proyectos.csv", []byte(data))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(result.Projects) != 2 {
		t.Fatalf("expected 2 records, got %d", len(result.Projects))
	}
	if result.Projects[0].StartDate.ISO() != "2024-02-01" {
		t.Fatalf("unexpected start date %q", result.Projects[0].StartDate.ISO())
	}
	if result.Projects[1].ProjectName != "Intranet" {
		t.Fatalf("expected forward-filled name, got %q", result.Projects[1].ProjectName)
	}
}

func TestParseKeepsEveryColumnValue(t *testing.T) {
	data := "Nombre,Dato,Dato,Dato (2)\nAlpha,10,20,30,40\n"

	result, err := NewParser(DefaultOptions()).Parse("datos.csv", []byte(data))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(result.Projects) != 1 {
		t.Fatalf("expected 1 record, got %d", len(result.Projects))
	}

	want := map[string]any{"Dato": "10", "Dato (2)": "20", "Dato (2) (2)": "30", "Columna 5": "40"}
	if diff := cmp.Diff(want, result.Projects[0].ExtraFields); diff != "" {
		t.Fatalf("unexpected extra fields (-want +got):\n%s", diff)
	}
}

func TestParseXLS(t *testing.T) {
	payload, err := os.ReadFile(filepath.Join("testdata", "portafolio.xls"))
	if err != nil {
		t.Fatalf("failed to read fixture: %v", err)
	}

	result, err := NewParser(DefaultOptions()).Parse("portafolio.xls", payload)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	if result.SheetName != "Proyectos" {
		t.Fatalf("expected the Proyectos sheet over Notas, got %q", result.SheetName)
	}
	if result.HeaderRowIndex != 2 {
		t.Fatalf("expected header below the title and the missing row, got %d", result.HeaderRowIndex)
	}
	if len(result.Projects) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(result.Projects), result.Warnings)
	}

	first := result.Projects[0]
	if first.LegacyID != "P-1" || first.ProjectName != "Migración ERP" || first.RowNumber != 4 {
		t.Fatalf("unexpected first record %+v", first)
	}
	if first.EndDateEstimated.ISO() != "2024-06-30" {
		t.Fatalf("expected serial date cell to resolve, got %+v", first.EndDateEstimated)
	}
	if first.Budget == nil || first.Budget.String() != "1500" {
		t.Fatalf("unexpected budget %v", first.Budget)
	}
	if !result.Projects[1].EndDateEstimated.TBD {
		t.Fatalf("expected TBD end date, got %+v", result.Projects[1].EndDateEstimated)
	}
}

func TestParseRunLevelWarnings(t *testing.T) {
	parser := NewParser(DefaultOptions())

	empty, err := parser.Parse("vacio.xlsx", nil)
	if err != nil {
		t.Fatalf("empty payload should not error: %v", err)
	}
	if len(empty.Projects) != 0 || len(empty.Warnings) != 1 {
		t.Fatalf("expected one warning for empty file, got %+v", empty.Warnings)
	}

	headerOnly, err := parser.Parse("solo.csv", []byte("ID,Proyecto,Estado\n"))
	if err != nil {
		t.Fatalf("header-only file should not error: %v", err)
	}
	if len(headerOnly.Projects) != 0 || len(headerOnly.Warnings) == 0 {
		t.Fatalf("expected a no-data warning, got %+v", headerOnly)
	}
	if headerOnly.Warnings[0].Row != 0 {
		t.Fatalf("run-level warnings carry row 0, got %d", headerOnly.Warnings[0].Row)
	}
}

func TestParseRowCap(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxRows = 3
	data := "ID,Proyecto\nA,Uno\nB,Dos\nC,Tres\nD,Cuatro\n"

	result, err := NewParser(opts).Parse("grande.csv", []byte(data))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(result.Projects) != 2 {
		t.Fatalf("expected 2 records under the cap, got %d", len(result.Projects))
	}
	last := result.Warnings[len(result.Warnings)-1]
	if last.Kind != domain.WarningRowUnreadable {
		t.Fatalf("expected truncation warning, got %+v", last)
	}
}

func TestParseRejectsUnknownFormat(t *testing.T) {
	_, err := NewParser(DefaultOptions()).Parse("notas.txt", []byte("hola"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}

	_, err = NewParser(DefaultOptions()).Parse("roto.xlsx", []byte("PK\x03\x04garbage"))
	if !errors.Is(err, ErrUnreadableWorkbook) {
		t.Fatalf("expected ErrUnreadableWorkbook, got %v", err)
	}
}
