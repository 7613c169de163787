package ingestion

import (
	"fmt"
	"strings"
)

// Field is a canonical project attribute a header can map to.
type Field string

const (
	FieldProjectName      Field = "projectName"
	FieldLegacyID         Field = "legacyId"
	FieldDescription      Field = "description"
	FieldDepartment       Field = "departmentName"
	FieldLeader           Field = "leader"
	FieldSponsor          Field = "sponsor"
	FieldBPAnalyst        Field = "bpAnalyst"
	FieldStatus           Field = "status"
	FieldStatusText       Field = "statusText"
	FieldPriority         Field = "priority"
	FieldCategory         Field = "category"
	FieldRegion           Field = "region"
	FieldObjective        Field = "objective"
	FieldScopeIn          Field = "scopeIn"
	FieldScopeOut         Field = "scopeOut"
	FieldImpactType       Field = "impactType"
	FieldKPIs             Field = "kpis"
	FieldComments         Field = "comments"
	FieldBenefits         Field = "benefits"
	FieldRisks            Field = "risks"
	FieldPercentComplete  Field = "percentComplete"
	FieldBudget           Field = "budget"
	FieldTotalValue       Field = "totalValue"
	FieldStartDate        Field = "startDate"
	FieldEndDateEstimated Field = "endDateEstimated"
	FieldEndDateActual    Field = "endDateActual"
	FieldRegistrationDate Field = "registrationDate"
)

// priorityField holds the ordered candidate lists of an identity-critical field.
type priorityField struct {
	field    Field
	exact    []string
	partials []string
}

var priorityFields = []priorityField{
	{
		field: FieldProjectName,
		exact: []string{
			"iniciativa",
			"nombre de la iniciativa",
			"nombre del proyecto",
			"nombre proyecto",
			"proyecto",
			"project name",
			"project",
			"nombre",
			"name",
		},
		partials: []string{"iniciativa", "proyecto", "project", "nombre"},
	},
	{
		field: FieldLegacyID,
		exact: []string{
			"id power steering",
			"id ps",
			"legacy id",
			"id legado",
			"id proyecto",
			"project id",
			"código",
			"codigo",
			"card id devops",
			"id",
		},
		partials: []string{"power steering", "id ps", "codigo", "legacy", "card id"},
	},
}

// headerDictionary maps basic-normalised header synonyms to fields.
var headerDictionary = buildDictionary(map[Field][]string{
	FieldProjectName: {"titulo", "título", "title", "nombre corto", "project title"},
	FieldDescription: {
		"descripcion", "descripción", "description", "descripción del proyecto",
		"descripcion del proyecto", "problema", "planteamiento",
		"planteamiento del problema", "problem statement",
	},
	FieldDepartment: {
		"departamento", "department", "area", "área", "gerencia", "dirección",
		"direccion", "departamento responsable",
	},
	FieldLeader: {
		"lider", "líder", "leader", "responsable", "líder del proyecto",
		"lider del proyecto", "project manager", "pm",
	},
	FieldSponsor:    {"sponsor", "patrocinador", "dueño", "dueno", "owner", "dueño del proceso"},
	FieldBPAnalyst:  {"analista", "analista bp", "bp analyst", "bp_analyst", "analyst"},
	FieldStatus:     {"estado", "status", "estatus", "situación", "situacion", "project status"},
	FieldStatusText: {
		"status y siguientes pasos", "estatus y siguientes pasos", "status / next steps",
		"status/next steps", "status y próximos pasos", "estatus / próximos pasos",
		"avance y próximos pasos", "comentarios de avance", "s/n", "seguimiento",
	},
	FieldPriority:   {"prioridad", "priority"},
	FieldCategory:   {"categoria", "categoría", "category", "tipo de proyecto"},
	FieldRegion:     {"region", "región", "zona"},
	FieldObjective:  {"objetivo", "objetivos", "objective", "goal"},
	FieldScopeIn:    {"alcance", "scope", "scope in", "dentro alcance", "dentro de alcance"},
	FieldScopeOut:   {"fuera alcance", "fuera de alcance", "scope out"},
	FieldImpactType: {"tipo impacto", "tipo de impacto", "impact type", "impacto"},
	FieldKPIs:       {"kpi", "kpis", "indicadores"},
	FieldComments:   {"comentarios", "comments", "notas", "notes", "observaciones"},
	FieldBenefits:   {"beneficios", "benefits"},
	FieldRisks:      {"riesgos", "risks"},
	FieldPercentComplete: {
		"% avance", "porcentaje", "porcentaje de avance", "percent complete", "avance",
		"% completado", "% complete", "progreso", "progress",
	},
	FieldBudget:     {"total esfuerzo", "esfuerzo", "effort", "presupuesto", "budget", "costo", "cost"},
	FieldTotalValue: {"total valor", "valor", "value"},
	FieldStartDate: {
		"fecha inicio", "fecha de inicio", "fecha_inicio", "start date", "inicio", "start",
	},
	FieldEndDateEstimated: {
		"fecha fin", "fecha de fin", "fecha_fin", "end date", "fin", "fecha estimada",
		"fecha fin estimada", "fecha estimada de fin", "fecha compromiso", "due date",
		"estimated end date",
	},
	FieldEndDateActual: {
		"fecha fin real", "fecha real", "fecha real de fin", "fecha de cierre",
		"fecha cierre", "actual end date", "closed date",
	},
	FieldRegistrationDate: {
		"fecha registro", "fecha de registro", "fecha alta", "registration date",
		"created date", "fecha de creación", "fecha creacion",
	},
})

// knownHeaders is the vocabulary used to recognise a header row.
var knownHeaders = buildKnownHeaders()

func buildDictionary(synonyms map[Field][]string) map[string]Field {
	dict := make(map[string]Field)
	for field, words := range synonyms {
		for _, word := range words {
			dict[normalizeHeader(word)] = field
		}
	}
	return dict
}

func buildKnownHeaders() map[string]struct{} {
	known := make(map[string]struct{}, len(headerDictionary)*2)
	for key := range headerDictionary {
		known[normalizeAggressive(key)] = struct{}{}
	}
	for _, pf := range priorityFields {
		for _, candidate := range pf.exact {
			known[normalizeAggressive(candidate)] = struct{}{}
		}
	}
	return known
}

// isKnownHeader reports whether a cell reads like a recognised column header.
func isKnownHeader(cell string) bool {
	_, ok := knownHeaders[normalizeAggressive(cell)]
	return ok
}

// ColumnMap resolves canonical fields to the headers of one workbook.
// It is built once per upload and never mutated afterwards.
type ColumnMap struct {
	fields       map[Field]string
	nameFallback string
	extras       []string
}

// Header returns the header mapped to a field.
func (m ColumnMap) Header(field Field) (string, bool) {
	header, ok := m.fields[field]
	return header, ok
}

// NameFallback returns a dictionary-mapped name header used when the
// priority-resolved name column is empty.
func (m ColumnMap) NameFallback() (string, bool) {
	return m.nameFallback, m.nameFallback != ""
}

// Extras lists headers kept verbatim as extra attributes, in column order.
func (m ColumnMap) Extras() []string {
	out := make([]string, len(m.extras))
	copy(out, m.extras)
	return out
}

// Mapped returns header to field name pairs for reporting.
func (m ColumnMap) Mapped() map[string]string {
	out := make(map[string]string, len(m.fields)+1)
	for field, header := range m.fields {
		out[header] = string(field)
	}
	if m.nameFallback != "" {
		out[m.nameFallback] = string(FieldProjectName)
	}
	return out
}

// MapColumns builds the column map for a header row. Identity fields are
// resolved through three passes (exact, aggressive, partial) shared by both
// fields so a partial match never steals another field's exact match.
func MapColumns(headers []string) ColumnMap {
	m := ColumnMap{fields: make(map[Field]string)}
	claimed := make(map[string]bool, len(headers))

	passes := []func(pf priorityField) (string, bool){
		func(pf priorityField) (string, bool) {
			return matchCandidates(pf.exact, headers, claimed, normalizeHeader, equalMatch)
		},
		func(pf priorityField) (string, bool) {
			return matchCandidates(pf.exact, headers, claimed, normalizeAggressive, equalMatch)
		},
		func(pf priorityField) (string, bool) {
			return matchCandidates(pf.partials, headers, claimed, normalizeAggressive, containsMatch)
		},
	}
	for _, pass := range passes {
		for _, pf := range priorityFields {
			if _, done := m.fields[pf.field]; done {
				continue
			}
			if header, ok := pass(pf); ok {
				m.fields[pf.field] = header
				claimed[header] = true
			}
		}
	}

	for _, header := range headers {
		if claimed[header] {
			continue
		}
		field, ok := headerDictionary[normalizeHeader(header)]
		switch {
		case !ok:
			m.extras = append(m.extras, header)
		case field == FieldProjectName:
			if _, resolved := m.fields[FieldProjectName]; !resolved {
				m.fields[FieldProjectName] = header
			} else if m.nameFallback == "" {
				m.nameFallback = header
			} else {
				m.extras = append(m.extras, header)
			}
		default:
			if _, taken := m.fields[field]; taken {
				m.extras = append(m.extras, header)
				continue
			}
			m.fields[field] = header
		}
	}

	return m
}

func matchCandidates(
	candidates []string,
	headers []string,
	claimed map[string]bool,
	normalize func(string) string,
	match func(header, candidate string) bool,
) (string, bool) {
	for _, candidate := range candidates {
		want := normalize(candidate)
		for _, header := range headers {
			if claimed[header] {
				continue
			}
			have := normalize(header)
			if have == "" {
				continue
			}
			if match(have, want) {
				return header, true
			}
		}
	}
	return "", false
}

func equalMatch(header, candidate string) bool {
	return header == candidate
}

// containsMatch checks containment in either direction. Very short headers
// are only matched when they contain the candidate.
func containsMatch(header, candidate string) bool {
	if strings.Contains(header, candidate) {
		return true
	}
	return len([]rune(header)) >= 3 && strings.Contains(candidate, header)
}

// uniqueHeaders trims header cells, names blank ones after their column and
// suffixes repeats so every column keeps its own key. A suffixed name is
// also checked against headers already emitted, including literal ones
// such as "Dato (2)".
func uniqueHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	used := make(map[string]bool, len(raw))
	suffixes := make(map[string]int, len(raw))

	for idx, value := range raw {
		base := strings.Join(strings.Fields(value), " ")
		if base == "" {
			base = fmt.Sprintf("Columna %d", idx+1)
		}

		key := normalizeHeader(base)
		name := base
		count := suffixes[key]
		for used[normalizeHeader(name)] {
			count++
			name = fmt.Sprintf("%s (%d)", base, count+1)
		}
		suffixes[key] = count
		used[normalizeHeader(name)] = true

		headers[idx] = name
	}

	return headers
}
