package ingestion

import (
	"fmt"

	"github.com/rpattn/portfolio-ingest/internal/domain"
)

// RawRow is one sheet row aligned with the header row. Number is the
// 1-based row number as shown by the spreadsheet application.
type RawRow struct {
	Number int
	Values []any
}

// IsEmpty reports whether every cell of the row is blank.
func (r RawRow) IsEmpty() bool {
	for _, value := range r.Values {
		if !isEmptyValue(value) {
			return false
		}
	}
	return true
}

// ForwardFill carries the last directly resolved project name down the
// sheet to emulate merged name cells. It is a value: each parse step
// receives the current state and returns the next one.
type ForwardFill struct {
	name string
}

// Name returns the inheritable project name, if any.
func (f ForwardFill) Name() (string, bool) {
	return f.name, f.name != ""
}

// With returns the state after a row resolved its own name.
func (f ForwardFill) With(name string) ForwardFill {
	return ForwardFill{name: name}
}

// RowOutcome describes what happened to one row.
type RowOutcome int

const (
	RowSkipped RowOutcome = iota
	RowComplete
	RowDraft
	RowDiscarded
)

func (o RowOutcome) String() string {
	switch o {
	case RowComplete:
		return "complete"
	case RowDraft:
		return "draft"
	case RowDiscarded:
		return "discarded"
	default:
		return "skipped"
	}
}

// RowResult is the outcome of parsing one row.
type RowResult struct {
	Outcome  RowOutcome
	Record   *domain.ParsedProjectRecord
	Warnings []domain.RowWarning
}

// RowValidator can reject a parsed record; a returned error discards the row.
type RowValidator func(record *domain.ParsedProjectRecord) error

// RowParser turns raw rows into project records using one column map.
type RowParser struct {
	columns    ColumnMap
	index      map[string]int
	extras     []string
	monthFirst bool
	priorities map[string]struct{}
	validate   RowValidator
}

// NewRowParser prepares a row parser for the given headers.
func NewRowParser(headers []string, columns ColumnMap, opts Options) *RowParser {
	index := make(map[string]int, len(headers))
	for idx, header := range headers {
		index[header] = idx
	}

	var priorities map[string]struct{}
	if len(opts.Priorities) > 0 {
		priorities = make(map[string]struct{}, len(opts.Priorities))
		for _, p := range opts.Priorities {
			priorities[normalizeAggressive(p)] = struct{}{}
		}
	}

	return &RowParser{
		columns:    columns,
		index:      index,
		extras:     columns.Extras(),
		monthFirst: opts.MonthFirst,
		priorities: priorities,
		validate:   opts.Validator,
	}
}

// Parse converts one row. Wholly empty rows are skipped without touching
// the forward-fill state. A panic or validator error discards only this row.
func (p *RowParser) Parse(row RawRow, state ForwardFill) (result RowResult, next ForwardFill) {
	if row.IsEmpty() {
		return RowResult{Outcome: RowSkipped}, state
	}

	defer func() {
		if r := recover(); r != nil {
			result = discardedRow(row.Number, fmt.Errorf("panic: %v", r))
			next = state
		}
	}()

	record, warnings, next, err := p.parseRow(row, state)
	if err != nil {
		return discardedRow(row.Number, err), state
	}

	outcome := RowComplete
	if record.IsDraftIncomplete {
		outcome = RowDraft
	}
	return RowResult{Outcome: outcome, Record: record, Warnings: warnings}, next
}

func discardedRow(rowNumber int, err error) RowResult {
	return RowResult{
		Outcome: RowDiscarded,
		Warnings: []domain.RowWarning{{
			Row:     rowNumber,
			Kind:    domain.WarningRowUnreadable,
			Message: fmt.Sprintf("Fila %d: no se pudo leer la fila y fue descartada (%v)", rowNumber, err),
		}},
	}
}

func (p *RowParser) value(row RawRow, header string) any {
	idx, ok := p.index[header]
	if !ok || idx >= len(row.Values) {
		return nil
	}
	return row.Values[idx]
}

func (p *RowParser) fieldValue(row RawRow, field Field) (any, bool) {
	header, ok := p.columns.Header(field)
	if !ok {
		return nil, false
	}
	return p.value(row, header), true
}

func (p *RowParser) fieldText(row RawRow, field Field) string {
	value, _ := p.fieldValue(row, field)
	return cellText(value)
}

func (p *RowParser) parseRow(row RawRow, state ForwardFill) (*domain.ParsedProjectRecord, []domain.RowWarning, ForwardFill, error) {
	record := &domain.ParsedProjectRecord{
		RowNumber:   row.Number,
		ExtraFields: map[string]any{},
	}
	var warnings []domain.RowWarning
	softError := false

	name := p.fieldText(row, FieldProjectName)
	if name == "" {
		if header, ok := p.columns.NameFallback(); ok {
			name = cellText(p.value(row, header))
		}
	}

	record.LegacyID = p.fieldText(row, FieldLegacyID)

	textFields := []struct {
		field Field
		dst   *string
	}{
		{FieldDescription, &record.Description},
		{FieldDepartment, &record.DepartmentName},
		{FieldLeader, &record.Leader},
		{FieldSponsor, &record.Sponsor},
		{FieldBPAnalyst, &record.BPAnalyst},
		{FieldStatus, &record.Status},
		{FieldPriority, &record.Priority},
		{FieldCategory, &record.Category},
		{FieldRegion, &record.Region},
		{FieldObjective, &record.Objective},
		{FieldScopeIn, &record.ScopeIn},
		{FieldScopeOut, &record.ScopeOut},
		{FieldKPIs, &record.KPIs},
		{FieldComments, &record.Comments},
		{FieldBenefits, &record.Benefits},
		{FieldRisks, &record.Risks},
	}
	for _, tf := range textFields {
		*tf.dst = p.fieldText(row, tf.field)
	}

	if impact := p.fieldText(row, FieldImpactType); impact != "" {
		record.ImpactType = splitList(impact)
	}
	if value, ok := p.fieldValue(row, FieldBudget); ok {
		record.Budget = CoerceDecimal(value)
	}
	if value, ok := p.fieldValue(row, FieldTotalValue); ok {
		record.TotalValue = CoerceDecimal(value)
	}
	if value, ok := p.fieldValue(row, FieldPercentComplete); ok {
		record.PercentComplete = CoercePercent(value)
	}

	split := SplitStatusNextSteps(p.fieldText(row, FieldStatusText))
	record.StatusText = split.Raw
	record.ParsedStatus = split.Status
	record.ParsedNextSteps = split.NextSteps

	dateFields := []struct {
		field Field
		dst   *domain.DateValue
	}{
		{FieldStartDate, &record.StartDate},
		{FieldEndDateEstimated, &record.EndDateEstimated},
		{FieldEndDateActual, &record.EndDateActual},
		{FieldRegistrationDate, &record.RegistrationDate},
	}
	for _, df := range dateFields {
		value, ok := p.fieldValue(row, df.field)
		if !ok {
			continue
		}
		*df.dst = CoerceDate(value, p.monthFirst)
		if df.dst.Invalid {
			header, _ := p.columns.Header(df.field)
			record.HasInvalidDate = true
			softError = true
			warnings = append(warnings, domain.RowWarning{
				Row:     row.Number,
				Kind:    domain.WarningInvalidDate,
				Message: fmt.Sprintf("Fila %d: la fecha %q de la columna %q no es válida", row.Number, df.dst.Original, header),
			})
		}
	}

	if record.Priority != "" && p.priorities != nil {
		if _, known := p.priorities[normalizeAggressive(record.Priority)]; !known {
			record.HasUnmappedCatalogValue = true
			softError = true
			warnings = append(warnings, domain.RowWarning{
				Row:     row.Number,
				Kind:    domain.WarningUnknownCatalog,
				Message: fmt.Sprintf("Fila %d: la prioridad %q no pertenece al catálogo", row.Number, record.Priority),
			})
		}
	}

	for _, header := range p.extras {
		value := p.value(row, header)
		if isEmptyValue(value) {
			continue
		}
		record.ExtraFields[header] = value
	}

	next := state
	switch inherited, ok := state.Name(); {
	case name != "":
		record.ProjectName = name
		next = state.With(name)
	case ok:
		record.ProjectName = inherited
		record.NameInherited = true
	default:
		record.ProjectName = fmt.Sprintf("Proyecto sin nombre (fila %d)", row.Number)
		record.RequiresName = true
		softError = true
		warnings = append(warnings, domain.RowWarning{
			Row:     row.Number,
			Kind:    domain.WarningMissingProjectName,
			Message: fmt.Sprintf("Fila %d: sin nombre de proyecto; se creó como borrador", row.Number),
		})
	}

	if record.LegacyID == "" {
		record.LegacyID = fmt.Sprintf("ROW-%d", row.Number)
		record.LegacyIDSynthetic = true
	}

	record.IsDraftIncomplete = softError

	if p.validate != nil {
		if err := p.validate(record); err != nil {
			return nil, nil, state, err
		}
	}

	return record, warnings, next, nil
}
