package ingestion

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rpattn/portfolio-ingest/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// maxDateSerial is 9999-12-31 in the 1900 date system.
const maxDateSerial = 2958465

var (
	isoDatePrefix = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)
	numericDate   = regexp.MustCompile(`^(\d{1,2})[/.\-](\d{1,2})[/.\-](\d{4}|\d{2})(?:\s+\d{1,2}:\d{2}(?::\d{2})?)?$`)
	nonNumeric    = regexp.MustCompile(`[^\d.,\-]`)

	tbdMarkers = map[string]struct{}{
		"TBD":              {},
		"TBC":              {},
		"POR DEFINIR":      {},
		"A DEFINIR":        {},
		"POR CONFIRMAR":    {},
		"TO BE DEFINED":    {},
		"TO BE DETERMINED": {},
	}
)

// CoerceDate converts a raw cell into a date. Numeric values are read as
// spreadsheet serials; D/M/Y strings are day-first unless monthFirst is set.
// Unrecognised input is flagged invalid with its text preserved.
func CoerceDate(value any, monthFirst bool) domain.DateValue {
	switch typed := value.(type) {
	case nil:
		return domain.DateValue{}
	case time.Time:
		d := dateOnly(typed)
		return domain.DateValue{Date: &d, Original: typed.Format(domain.DateLayout)}
	case float64:
		return serialDate(typed, cellText(value))
	case int:
		return serialDate(float64(typed), cellText(value))
	case int64:
		return serialDate(float64(typed), cellText(value))
	}

	text := cellText(value)
	if text == "" {
		return domain.DateValue{}
	}
	if isTBD(text) {
		return domain.DateValue{TBD: true, Original: text}
	}
	if serial, err := strconv.ParseFloat(text, 64); err == nil {
		return serialDate(serial, text)
	}

	if m := isoDatePrefix.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if d, ok := buildDate(year, month, day); ok {
			return domain.DateValue{Date: &d, Original: text}
		}
		return domain.DateValue{Original: text, Invalid: true}
	}

	if m := numericDate.FindStringSubmatch(text); m != nil {
		first, _ := strconv.Atoi(m[1])
		second, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			if year >= 50 {
				year += 1900
			} else {
				year += 2000
			}
		}
		day, month := first, second
		if monthFirst {
			day, month = second, first
		}
		if d, ok := buildDate(year, month, day); ok {
			return domain.DateValue{Date: &d, Original: text}
		}
	}

	return domain.DateValue{Original: text, Invalid: true}
}

func serialDate(serial float64, original string) domain.DateValue {
	if serial <= 0 || serial > maxDateSerial || math.IsNaN(serial) {
		return domain.DateValue{Original: original, Invalid: true}
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return domain.DateValue{Original: original, Invalid: true}
	}
	d := dateOnly(t)
	return domain.DateValue{Date: &d, Original: original}
}

func buildDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isTBD(text string) bool {
	_, ok := tbdMarkers[normalizeAggressive(text)]
	return ok
}

// CoercePercent converts a raw cell into a 0-100 completion percentage.
// Fractions in [0,1] are scaled, a trailing % is taken literally, and
// anything unparseable yields 0.
func CoercePercent(value any) int {
	switch typed := value.(type) {
	case nil:
		return 0
	case float64:
		return scalePercent(typed)
	case int:
		return scalePercent(float64(typed))
	case int64:
		return scalePercent(float64(typed))
	}

	text := strings.ReplaceAll(cellText(value), " ", "")
	if text == "" {
		return 0
	}

	if strings.HasSuffix(text, "%") {
		number, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSuffix(text, "%"), ",", "."), 64)
		if err != nil || math.IsNaN(number) {
			return 0
		}
		return clampPercent(number)
	}

	number, err := strconv.ParseFloat(strings.ReplaceAll(text, ",", "."), 64)
	if err != nil {
		return 0
	}
	return scalePercent(number)
}

func scalePercent(number float64) int {
	if math.IsNaN(number) {
		return 0
	}
	if number >= 0 && number <= 1 {
		number *= 100
	}
	return clampPercent(number)
}

func clampPercent(number float64) int {
	if number < 0 {
		return 0
	}
	if number > 100 {
		return 100
	}
	return int(math.Round(number))
}

// StatusSplit is the result of splitting a combined status/next-steps cell.
type StatusSplit struct {
	Raw       string
	Status    *string
	NextSteps *string
}

type marker struct {
	start int // position of the marker letter
	end   int // position right after the colon
}

// SplitStatusNextSteps separates "S:" and "N:" sections of a free text
// cell. Whichever marker comes first owns the text up to the other marker.
// Without markers the text is kept raw and both sections stay nil.
func SplitStatusNextSteps(text string) StatusSplit {
	text = strings.TrimSpace(text)
	split := StatusSplit{Raw: text}
	if text == "" {
		return split
	}

	var status, next *marker
	prev := rune(0)
	for i, r := range text {
		wordStart := prev == 0 || !(unicode.IsLetter(prev) || unicode.IsDigit(prev))
		prev = r
		if !wordStart {
			continue
		}
		letter := unicode.ToUpper(r)
		if letter != 'S' && letter != 'N' {
			continue
		}
		end, ok := markerEnd(text, i+utf8.RuneLen(r))
		if !ok {
			continue
		}
		m := &marker{start: i, end: end}
		if letter == 'S' && status == nil {
			status = m
		}
		if letter == 'N' && next == nil {
			next = m
		}
	}

	split.Status = markerSection(text, status, next)
	split.NextSteps = markerSection(text, next, status)
	return split
}

// markerEnd skips blanks after a marker letter and returns the position
// after a half- or full-width colon.
func markerEnd(text string, pos int) (int, bool) {
	for pos < len(text) {
		r, size := utf8.DecodeRuneInString(text[pos:])
		switch {
		case r == ' ' || r == '\t':
			pos += size
		case r == ':' || r == '：':
			return pos + size, true
		default:
			return 0, false
		}
	}
	return 0, false
}

func markerSection(text string, own, other *marker) *string {
	if own == nil {
		return nil
	}
	end := len(text)
	if other != nil && other.start > own.start {
		end = other.start
	}
	section := strings.TrimSpace(text[own.end:end])
	if section == "" {
		return nil
	}
	return &section
}

// CoerceDecimal extracts a number from a cell that may carry currency
// symbols, thousands separators or a decimal comma.
func CoerceDecimal(value any) *decimal.Decimal {
	switch typed := value.(type) {
	case nil:
		return nil
	case float64:
		d := decimal.NewFromFloat(typed)
		return &d
	case int:
		d := decimal.NewFromInt(int64(typed))
		return &d
	case int64:
		d := decimal.NewFromInt(typed)
		return &d
	}

	cleaned := nonNumeric.ReplaceAllString(cellText(value), "")
	if cleaned == "" || strings.Trim(cleaned, ".,-") == "" {
		return nil
	}

	lastDot := strings.LastIndex(cleaned, ".")
	lastComma := strings.LastIndex(cleaned, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			cleaned = strings.ReplaceAll(cleaned, ".", "")
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(cleaned, ",") == 1 && len(cleaned)-lastComma-1 <= 2 {
			cleaned = strings.Replace(cleaned, ",", ".", 1)
		} else {
			cleaned = strings.ReplaceAll(cleaned, ",", "")
		}
	case strings.Count(cleaned, ".") > 1:
		cleaned = strings.ReplaceAll(cleaned, ".", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return nil
	}
	return &d
}

// splitList splits a multi-valued cell on commas and semicolons.
func splitList(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
