package versioning

import (
	"strconv"
	"strings"

	"github.com/rpattn/portfolio-ingest/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type trackedField struct {
	name  string
	value func(r domain.ParsedProjectRecord) string
}

// trackedFields is the fixed list of business fields compared between versions.
var trackedFields = []trackedField{
	{"projectName", func(r domain.ParsedProjectRecord) string { return r.ProjectName }},
	{"description", func(r domain.ParsedProjectRecord) string { return r.Description }},
	{"departmentName", func(r domain.ParsedProjectRecord) string { return r.DepartmentName }},
	{"leader", func(r domain.ParsedProjectRecord) string { return r.Leader }},
	{"sponsor", func(r domain.ParsedProjectRecord) string { return r.Sponsor }},
	{"bpAnalyst", func(r domain.ParsedProjectRecord) string { return r.BPAnalyst }},
	{"status", func(r domain.ParsedProjectRecord) string { return r.Status }},
	{"priority", func(r domain.ParsedProjectRecord) string { return r.Priority }},
	{"category", func(r domain.ParsedProjectRecord) string { return r.Category }},
	{"region", func(r domain.ParsedProjectRecord) string { return r.Region }},
	{"percentComplete", func(r domain.ParsedProjectRecord) string { return strconv.Itoa(r.PercentComplete) }},
	{"budget", func(r domain.ParsedProjectRecord) string { return decimalText(r.Budget) }},
	{"totalValue", func(r domain.ParsedProjectRecord) string { return decimalText(r.TotalValue) }},
	{"statusText", func(r domain.ParsedProjectRecord) string { return r.StatusText }},
	{"parsedStatus", func(r domain.ParsedProjectRecord) string { return pointerText(r.ParsedStatus) }},
	{"parsedNextSteps", func(r domain.ParsedProjectRecord) string { return pointerText(r.ParsedNextSteps) }},
	{"startDate", func(r domain.ParsedProjectRecord) string { return dateText(r.StartDate) }},
	{"endDateEstimated", func(r domain.ParsedProjectRecord) string { return dateText(r.EndDateEstimated) }},
	{"endDateActual", func(r domain.ParsedProjectRecord) string { return dateText(r.EndDateActual) }},
	{"registrationDate", func(r domain.ParsedProjectRecord) string { return dateText(r.RegistrationDate) }},
}

// TrackedFieldNames lists the compared fields in comparison order.
func TrackedFieldNames() []string {
	names := make([]string, len(trackedFields))
	for i, f := range trackedFields {
		names[i] = f.name
	}
	return names
}

// Diff builds the change log for a version. Added and modified entries
// follow the new record order; deleted entries follow the previous store
// order. The same inputs always produce the same entries.
func Diff(versionID uuid.UUID, previousVersionID *uuid.UUID, matches []Match, previous []domain.StoredProject) ([]domain.ChangeLogEntry, domain.ChangeSummary) {
	entries := []domain.ChangeLogEntry{}
	var summary domain.ChangeSummary

	newKeys := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		newKeys[match.Key] = struct{}{}

		if match.Previous == nil {
			entries = append(entries, domain.ChangeLogEntry{
				ChangeType:        domain.ChangeAdded,
				NewValue:          stringPtr(match.Record.ProjectName),
				LegacyID:          match.Record.LegacyID,
				ProjectName:       match.Record.ProjectName,
				VersionID:         versionID,
				PreviousVersionID: previousVersionID,
			})
			summary.Added++
			continue
		}

		changed := false
		for _, field := range trackedFields {
			oldValue := normalizeValue(field.value(match.Previous.Record))
			newValue := normalizeValue(field.value(match.Record))
			if oldValue == newValue {
				continue
			}
			changed = true
			entries = append(entries, domain.ChangeLogEntry{
				ChangeType:        domain.ChangeModified,
				FieldName:         stringPtr(field.name),
				OldValue:          nullable(oldValue),
				NewValue:          nullable(newValue),
				LegacyID:          match.Record.LegacyID,
				ProjectName:       match.Record.ProjectName,
				VersionID:         versionID,
				PreviousVersionID: previousVersionID,
			})
		}
		if changed {
			summary.Modified++
		}
	}

	for _, prev := range previous {
		if _, ok := newKeys[prev.IdentityKey]; ok {
			continue
		}
		entries = append(entries, domain.ChangeLogEntry{
			ChangeType:        domain.ChangeDeleted,
			OldValue:          stringPtr(prev.Record.ProjectName),
			LegacyID:          prev.Record.LegacyID,
			ProjectName:       prev.Record.ProjectName,
			VersionID:         versionID,
			PreviousVersionID: previousVersionID,
		})
		summary.Deleted++
	}

	return entries, summary
}

// normalizeValue trims text, treats blank as null and canonicalises
// numbers so 1.50 and 1.5 compare equal.
func normalizeValue(raw string) string {
	value := strings.TrimSpace(raw)
	if value == "" {
		return ""
	}
	if d, err := decimal.NewFromString(value); err == nil {
		return d.String()
	}
	return value
}

func decimalText(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}

func pointerText(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func dateText(d domain.DateValue) string {
	switch {
	case d.Date != nil:
		return d.ISO()
	case d.TBD:
		return "TBD"
	default:
		return d.Original
	}
}

func stringPtr(s string) *string {
	return &s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
