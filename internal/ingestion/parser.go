package ingestion

import (
	"fmt"

	"github.com/rpattn/portfolio-ingest/internal/domain"
)

// Options tunes workbook parsing.
type Options struct {
	// SheetNames lists preferred sheet names in priority order.
	SheetNames []string
	// HeaderScanRows bounds how far down the header row is searched.
	HeaderScanRows int
	// MonthFirst reads ambiguous D/M/Y dates as M/D/Y.
	MonthFirst bool
	// Priorities is the priority catalog. Empty disables the check.
	Priorities []string
	// MaxRows caps the sheet rows read; 0 means no cap.
	MaxRows int
	// UnzipSizeLimit bounds the decompressed size of xlsx parts.
	UnzipSizeLimit int64
	// Validator optionally rejects parsed records.
	Validator RowValidator
}

// DefaultOptions mirrors the source locale of the dashboard workbooks.
func DefaultOptions() Options {
	return Options{
		SheetNames:     []string{"Proyectos", "Portafolio", "Iniciativas", "Projects", "Portfolio"},
		HeaderScanRows: defaultHeaderScanRows,
		Priorities:     []string{"Alta", "Media", "Baja", "Crítica", "High", "Medium", "Low", "Critical"},
		MaxRows:        50000,
	}
}

// RunResult is the outcome of parsing one workbook.
type RunResult struct {
	Projects        []domain.ParsedProjectRecord `json:"projects"`
	Warnings        []domain.RowWarning          `json:"advertencias"`
	TotalRows       int                          `json:"totalRows"`
	Created         int                          `json:"proyectosCreados"`
	Drafts          int                          `json:"proyectosBorradorIncompleto"`
	Discarded       int                          `json:"filasDescartadas"`
	SheetName       string                       `json:"sheetName"`
	HeaderRowIndex  int                          `json:"headerRowIndex"`
	ColumnsMapped   map[string]string            `json:"columnsMapped"`
	ColumnsUnmapped []string                     `json:"columnsUnmapped"`
}

func newRunResult() RunResult {
	return RunResult{
		Projects:        []domain.ParsedProjectRecord{},
		Warnings:        []domain.RowWarning{},
		ColumnsMapped:   map[string]string{},
		ColumnsUnmapped: []string{},
	}
}

func (r *RunResult) warn(kind domain.WarningKind, format string, args ...any) {
	r.Warnings = append(r.Warnings, domain.RowWarning{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

// Parser converts workbook buffers into project records. It holds no
// per-run state, so one Parser may serve concurrent uploads.
type Parser struct {
	opts Options
}

// NewParser creates a parser.
func NewParser(opts Options) *Parser {
	if opts.HeaderScanRows <= 0 {
		opts.HeaderScanRows = defaultHeaderScanRows
	}
	return &Parser{opts: opts}
}

// Parse reads the workbook and parses every row below the detected header.
// Problems with the content are reported as warnings; only unsupported or
// unreadable containers return an error.
func (p *Parser) Parse(fileName string, payload []byte) (RunResult, error) {
	result := newRunResult()

	if len(payload) == 0 {
		result.warn(domain.WarningRowEmpty, "El archivo está vacío")
		return result, nil
	}

	sheet, err := readSheet(fileName, payload, p.opts)
	if err != nil {
		return result, err
	}
	if sheet.name == "" {
		result.warn(domain.WarningRowEmpty, "El libro no contiene ninguna hoja")
		return result, nil
	}
	result.SheetName = sheet.name

	if len(sheet.rows) == 0 {
		result.warn(domain.WarningRowEmpty, "La hoja %q no contiene filas", sheet.name)
		return result, nil
	}

	location := LocateHeaderRow(sheet.rows, sheet.autoFilterRow, p.opts.HeaderScanRows)
	result.HeaderRowIndex = location.RowIndex

	columns := MapColumns(location.Headers)
	result.ColumnsMapped = columns.Mapped()
	result.ColumnsUnmapped = columns.Extras()
	if _, ok := columns.Header(FieldProjectName); !ok {
		result.warn(domain.WarningMissingProjectName,
			"No se detectó la columna de nombre de proyecto en la fila %d", location.RowIndex+1)
	}

	rows := p.rawRows(sheet.rows, location)
	p.parseRows(&result, rows, NewRowParser(location.Headers, columns, p.opts))

	if sheet.truncated {
		result.warn(domain.WarningRowUnreadable,
			"Se alcanzó el límite de %d filas; las filas restantes no se procesaron", p.opts.MaxRows)
	}

	return result, nil
}

func (p *Parser) rawRows(grid [][]string, location HeaderLocation) []RawRow {
	start := location.RowIndex + 1
	if start >= len(grid) {
		return nil
	}

	rows := make([]RawRow, 0, len(grid)-start)
	for idx := start; idx < len(grid); idx++ {
		values := make([]any, len(location.Headers))
		for col := range values {
			if col < len(grid[idx]) {
				values[col] = grid[idx][col]
			}
		}
		rows = append(rows, RawRow{Number: idx + 1, Values: values})
	}
	return rows
}

// parseRows threads the forward-fill state through the rows in sheet order.
func (p *Parser) parseRows(result *RunResult, rows []RawRow, parser *RowParser) {
	result.TotalRows = len(rows)
	if len(rows) == 0 {
		result.warn(domain.WarningRowEmpty, "La hoja no contiene filas de datos debajo del encabezado")
		return
	}

	state := ForwardFill{}
	nonEmpty := 0
	for _, row := range rows {
		var outcome RowResult
		outcome, state = parser.Parse(row, state)
		result.Warnings = append(result.Warnings, outcome.Warnings...)

		switch outcome.Outcome {
		case RowSkipped:
			continue
		case RowComplete:
			result.Created++
		case RowDraft:
			result.Drafts++
		case RowDiscarded:
			result.Discarded++
		}
		nonEmpty++
		if outcome.Record != nil {
			result.Projects = append(result.Projects, *outcome.Record)
		}
	}

	if nonEmpty > 0 && len(result.Projects) == 0 {
		result.warn(domain.WarningRowUnreadable,
			"Se encontraron %d filas con datos pero no se generó ningún proyecto; revise la fila de encabezado", nonEmpty)
	}
}
