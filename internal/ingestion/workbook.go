package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")
	// ErrUnreadableWorkbook is returned when the container cannot be opened.
	ErrUnreadableWorkbook = errors.New("unreadable workbook")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
	zipMagic      = []byte{0x50, 0x4B, 0x03, 0x04}
	oleMagic      = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

const (
	filterDatabaseName = "_xlnm._FilterDatabase"
	xmlSizeLimit       = 16 << 20
)

type fileFormat string

const (
	formatXLSX fileFormat = "xlsx"
	formatXLS  fileFormat = "xls"
	formatCSV  fileFormat = "csv"
)

// sheetData is the raw grid of the selected sheet.
type sheetData struct {
	name          string
	rows          [][]string
	autoFilterRow int
	truncated     bool
}

func detectFormat(fileName string, payload []byte) (fileFormat, error) {
	switch {
	case bytes.HasPrefix(payload, zipMagic):
		return formatXLSX, nil
	case bytes.HasPrefix(payload, oleMagic):
		return formatXLS, nil
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return formatCSV, nil
	case ".xlsx", ".xlsm":
		return formatXLSX, nil
	case ".xls":
		return formatXLS, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// readSheet opens the workbook and loads the sheet chosen by name priority.
// A workbook without sheets yields a sheetData with an empty name.
func readSheet(fileName string, payload []byte, opts Options) (sheetData, error) {
	format, err := detectFormat(fileName, payload)
	if err != nil {
		return sheetData{}, err
	}

	switch format {
	case formatXLSX:
		return readXLSX(payload, opts)
	case formatXLS:
		return readXLS(payload, opts)
	default:
		return readCSV(fileName, payload, opts)
	}
}

func readXLSX(payload []byte, opts Options) (sheetData, error) {
	openOpts := excelize.Options{}
	if opts.UnzipSizeLimit > 0 {
		openOpts.UnzipSizeLimit = opts.UnzipSizeLimit
		if opts.UnzipSizeLimit < xmlSizeLimit {
			openOpts.UnzipXMLSizeLimit = opts.UnzipSizeLimit
		}
	}

	f, err := excelize.OpenReader(bytes.NewReader(payload), openOpts)
	if err != nil {
		return sheetData{}, fmt.Errorf("%w: failed to open xlsx: %v", ErrUnreadableWorkbook, err)
	}
	defer func() { _ = f.Close() }()

	name := selectSheet(f.GetSheetList(), opts.SheetNames)
	if name == "" {
		return sheetData{autoFilterRow: -1}, nil
	}

	data := sheetData{name: name, autoFilterRow: autoFilterHeaderRow(f.GetDefinedName(), name)}

	rows, err := f.Rows(name)
	if err != nil {
		return sheetData{}, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		if opts.MaxRows > 0 && len(data.rows) >= opts.MaxRows {
			data.truncated = true
			break
		}
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return sheetData{}, fmt.Errorf("failed to read row %d from xlsx: %w", len(data.rows)+1, err)
		}
		data.rows = append(data.rows, cols)
	}
	if err := rows.Error(); err != nil {
		return sheetData{}, fmt.Errorf("failed to iterate xlsx rows: %w", err)
	}

	data.rows = trimTrailingEmptyRows(data.rows)
	return data, nil
}

func readXLS(payload []byte, opts Options) (sheetData, error) {
	wb, err := xls.OpenReader(bytes.NewReader(payload), "utf-8")
	if err != nil {
		return sheetData{}, fmt.Errorf("%w: failed to open xls: %v", ErrUnreadableWorkbook, err)
	}
	if wb == nil {
		return sheetData{}, fmt.Errorf("%w: xls has no workbook stream", ErrUnreadableWorkbook)
	}

	names := make([]string, 0, wb.NumSheets())
	for i := 0; i < wb.NumSheets(); i++ {
		if sheet := wb.GetSheet(i); sheet != nil {
			names = append(names, sheet.Name)
		}
	}

	name := selectSheet(names, opts.SheetNames)
	if name == "" {
		return sheetData{autoFilterRow: -1}, nil
	}

	data := sheetData{name: name, autoFilterRow: -1}
	for i := 0; i < wb.NumSheets(); i++ {
		sheet := wb.GetSheet(i)
		if sheet == nil || sheet.Name != name {
			continue
		}
		for r := 0; r <= int(sheet.MaxRow); r++ {
			if opts.MaxRows > 0 && len(data.rows) >= opts.MaxRows {
				data.truncated = true
				break
			}
			row := xlsRow(sheet, r)
			if row == nil {
				data.rows = append(data.rows, nil)
				continue
			}
			cells := make([]string, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells[c] = row.Col(c)
			}
			data.rows = append(data.rows, cells)
		}
		break
	}

	data.rows = trimTrailingEmptyRows(data.rows)
	return data, nil
}

// xlsRow returns nil for a row the sheet never defined; the library
// dereferences missing rows.
func xlsRow(sheet *xls.WorkSheet, idx int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(idx)
}

func readCSV(fileName string, payload []byte, opts Options) (sheetData, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	data := sheetData{
		name:          strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)),
		autoFilterRow: -1,
	}
	for {
		if opts.MaxRows > 0 && len(data.rows) >= opts.MaxRows {
			data.truncated = true
			break
		}
		record, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sheetData{}, fmt.Errorf("failed to read csv: %w", err)
		}
		data.rows = append(data.rows, record)
	}

	data.rows = trimTrailingEmptyRows(data.rows)
	return data, nil
}

// selectSheet prefers the first candidate whose normalised name equals a
// sheet name, then one contained in a sheet name, then the first sheet.
func selectSheet(names []string, preferred []string) string {
	if len(names) == 0 {
		return ""
	}

	normalized := make([]string, len(names))
	for i, name := range names {
		normalized[i] = normalizeAggressive(name)
	}

	for _, candidate := range preferred {
		want := normalizeAggressive(candidate)
		for i, name := range normalized {
			if name == want {
				return names[i]
			}
		}
	}
	for _, candidate := range preferred {
		want := normalizeAggressive(candidate)
		if want == "" {
			continue
		}
		for i, name := range normalized {
			if strings.Contains(name, want) {
				return names[i]
			}
		}
	}

	return names[0]
}

// autoFilterHeaderRow returns the 0-based first row of the sheet's
// auto-filter range, or -1 when the sheet has none.
func autoFilterHeaderRow(names []excelize.DefinedName, sheet string) int {
	for _, dn := range names {
		if dn.Name != filterDatabaseName {
			continue
		}
		refSheet, ref := splitRangeRef(dn.RefersTo)
		if dn.Scope != sheet && refSheet != sheet {
			continue
		}
		if row := rangeFirstRow(ref); row >= 0 {
			return row
		}
	}
	return -1
}

func splitRangeRef(refersTo string) (string, string) {
	refersTo = strings.TrimPrefix(strings.TrimSpace(refersTo), "=")
	idx := strings.LastIndex(refersTo, "!")
	if idx < 0 {
		return "", refersTo
	}
	sheet := strings.Trim(refersTo[:idx], "'")
	sheet = strings.ReplaceAll(sheet, "''", "'")
	return sheet, refersTo[idx+1:]
}

func rangeFirstRow(ref string) int {
	first := strings.Split(ref, ":")[0]
	first = strings.ReplaceAll(first, "$", "")
	if first == "" {
		return -1
	}
	_, row, err := excelize.CellNameToCoordinates(first)
	if err != nil {
		return -1
	}
	return row - 1
}

func trimTrailingEmptyRows(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && isBlankRow(rows[end-1]) {
		end--
	}
	return rows[:end]
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
