package ingestion

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// normalizeHeader case-folds, trims and collapses inner whitespace.
func normalizeHeader(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

// normalizeAggressive uppercases, strips diacritics and collapses whitespace.
func normalizeAggressive(value string) string {
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripper, value)
	if err != nil {
		stripped = value
	}
	return strings.Join(strings.Fields(strings.ToUpper(stripped)), " ")
}

// cellText renders a raw cell value as trimmed text.
func cellText(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	case int:
		return strconv.Itoa(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case bool:
		return strconv.FormatBool(typed)
	case time.Time:
		return typed.Format("2006-01-02")
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", typed))
	}
}

func isEmptyValue(value any) bool {
	return cellText(value) == ""
}
