package ingestion

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMapColumnsResolvesIdentityAndDictionary(t *testing.T) {
	headers := []string{"ID Power Steering", "Nombre del Proyecto", "Descripción", "Estado", "Fecha Inicio", "Campo Raro", "Título"}

	columns := MapColumns(headers)

	want := map[string]string{
		"ID Power Steering":   "legacyId",
		"Nombre del Proyecto": "projectName",
		"Descripción":         "description",
		"Estado":              "status",
		"Fecha Inicio":        "startDate",
		"Título":              "projectName",
	}
	if diff := cmp.Diff(want, columns.Mapped()); diff != "" {
		t.Fatalf("unexpected mapping (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Campo Raro"}, columns.Extras()); diff != "" {
		t.Fatalf("unexpected extras (-want +got):\n%s", diff)
	}
	if fallback, ok := columns.NameFallback(); !ok || fallback != "Título" {
		t.Fatalf("expected Título as name fallback, got %q", fallback)
	}
}

func TestMapColumnsExactBeatsPartial(t *testing.T) {
	columns := MapColumns([]string{"Nombre Iniciativa Anterior", "Iniciativa"})

	header, ok := columns.Header(FieldProjectName)
	if !ok || header != "Iniciativa" {
		t.Fatalf("expected exact header to win, got %q", header)
	}
	if diff := cmp.Diff([]string{"Nombre Iniciativa Anterior"}, columns.Extras()); diff != "" {
		t.Fatalf("unexpected extras (-want +got):\n%s", diff)
	}
}

func TestMapColumnsAggressiveAndPartialPasses(t *testing.T) {
	columns := MapColumns([]string{"ID Power Steering (PS)", "Nombre de la Iniciatíva"})

	if header, _ := columns.Header(FieldProjectName); header != "Nombre de la Iniciatíva" {
		t.Fatalf("expected diacritic-insensitive name match, got %q", header)
	}
	if header, _ := columns.Header(FieldLegacyID); header != "ID Power Steering (PS)" {
		t.Fatalf("expected partial legacy id match, got %q", header)
	}
}

func TestMapColumnsDuplicateFieldGoesToExtras(t *testing.T) {
	columns := MapColumns([]string{"Proyecto", "Estado", "Status"})

	if header, _ := columns.Header(FieldStatus); header != "Estado" {
		t.Fatalf("expected first status column to be mapped, got %q", header)
	}
	if diff := cmp.Diff([]string{"Status"}, columns.Extras()); diff != "" {
		t.Fatalf("unexpected extras (-want +got):\n%s", diff)
	}
}

func TestUniqueHeaders(t *testing.T) {
	got := uniqueHeaders([]string{" Proyecto ", "", "Proyecto", "proyecto", "Líder  del   proyecto"})
	want := []string{"Proyecto", "Columna 2", "Proyecto (2)", "proyecto (3)", "Líder del proyecto"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected headers (-want +got):\n%s", diff)
	}

	got = uniqueHeaders([]string{"Nombre", "Dato", "Dato", "Dato (2)", "", "Columna 5"})
	want = []string{"Nombre", "Dato", "Dato (2)", "Dato (2) (2)", "Columna 5", "Columna 5 (2)"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("suffixed headers collide with literal ones (-want +got):\n%s", diff)
	}
}

func TestNormalizeAggressive(t *testing.T) {
	if got := normalizeAggressive("  Dirección   Técnica "); got != "DIRECCION TECNICA" {
		t.Fatalf("unexpected normalisation %q", got)
	}
}
