package ingestion

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	defaultHeaderScanRows = 20
	headerBonus           = 10
	minKnownHeaders       = 3
	minTextCells          = 5
)

var (
	autoGeneratedHeader = regexp.MustCompile(`(?i)^(__EMPTY(_\d+)?|Column\s*\d+|Columna\s*\d+|Unnamed:?\s*\d+)$`)
	isoDateShape        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// HeaderLocation is the outcome of header row detection.
type HeaderLocation struct {
	RowIndex       int
	Headers        []string
	FromAutoFilter bool
}

// LocateHeaderRow finds the header row of a sheet grid. An auto-filter row
// (autoFilterRow >= 0) is trusted unconditionally; otherwise the first
// scanRows rows are scored and the first row earning the bonus wins.
// The headers span the widest row of the grid, so data to the right of
// the last titled column still gets a generated header.
func LocateHeaderRow(rows [][]string, autoFilterRow, scanRows int) HeaderLocation {
	if len(rows) == 0 {
		return HeaderLocation{}
	}
	width := gridWidth(rows)

	if autoFilterRow >= 0 && autoFilterRow < len(rows) {
		return HeaderLocation{
			RowIndex:       autoFilterRow,
			Headers:        uniqueHeaders(padRow(rows[autoFilterRow], width)),
			FromAutoFilter: true,
		}
	}

	if scanRows <= 0 {
		scanRows = defaultHeaderScanRows
	}
	last := len(rows) - 1
	if last > scanRows {
		last = scanRows
	}

	bestIdx, bestScore := 0, 0
	for idx := 0; idx <= last; idx++ {
		score, bonus := scoreHeaderRow(rows[idx])
		if bonus {
			bestIdx = idx
			break
		}
		if score > bestScore {
			bestIdx, bestScore = idx, score
		}
	}

	return HeaderLocation{RowIndex: bestIdx, Headers: uniqueHeaders(padRow(rows[bestIdx], width))}
}

func gridWidth(rows [][]string) int {
	width := 0
	for _, row := range rows {
		if len(row) > width {
			width = len(row)
		}
	}
	return width
}

func padRow(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	padded := make([]string, width)
	copy(padded, row)
	return padded
}

// scoreHeaderRow returns the row score and whether it earned the bonus.
func scoreHeaderRow(row []string) (int, bool) {
	textCells, known := 0, 0
	for _, cell := range row {
		if !isTextLooking(cell) {
			continue
		}
		textCells++
		if isKnownHeader(cell) {
			known++
		}
	}

	score := 2 * textCells
	bonus := known >= minKnownHeaders || textCells >= minTextCells
	if bonus {
		score += headerBonus
	}
	return score, bonus
}

func isTextLooking(cell string) bool {
	cell = strings.TrimSpace(cell)
	if cell == "" || autoGeneratedHeader.MatchString(cell) {
		return false
	}
	if _, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return false
	}
	return !isoDateShape.MatchString(cell)
}
