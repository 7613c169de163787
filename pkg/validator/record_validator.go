package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rpattn/portfolio-ingest/internal/domain"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationError `json:"errors"`
}

// RecordValidator checks the structural invariants a parsed record must
// satisfy before it can be stored. Data quality problems, long text
// included, are not its concern; those surface as draft flags and warnings.
type RecordValidator struct{}

// NewRecordValidator creates a record validator.
func NewRecordValidator() *RecordValidator {
	return &RecordValidator{}
}

type dateField struct {
	name  string
	value func(r *domain.ParsedProjectRecord) domain.DateValue
}

var dateFields = []dateField{
	{"startDate", func(r *domain.ParsedProjectRecord) domain.DateValue { return r.StartDate }},
	{"endDateEstimated", func(r *domain.ParsedProjectRecord) domain.DateValue { return r.EndDateEstimated }},
	{"endDateActual", func(r *domain.ParsedProjectRecord) domain.DateValue { return r.EndDateActual }},
	{"registrationDate", func(r *domain.ParsedProjectRecord) domain.DateValue { return r.RegistrationDate }},
}

// Validate checks a record and reports every violation found, in a fixed
// order.
func (v *RecordValidator) Validate(record *domain.ParsedProjectRecord) ValidationResult {
	result := ValidationResult{IsValid: true, Errors: []ValidationError{}}
	fail := func(field, message string, value any) {
		result.IsValid = false
		result.Errors = append(result.Errors, ValidationError{Field: field, Message: message, Value: value})
	}

	if strings.TrimSpace(record.ProjectName) == "" {
		fail("projectName", "required field 'projectName' is missing", nil)
	}
	if strings.TrimSpace(record.LegacyID) == "" {
		fail("legacyId", "required field 'legacyId' is missing", nil)
	}
	if record.PercentComplete < 0 || record.PercentComplete > 100 {
		fail("percentComplete", "must be between 0 and 100", record.PercentComplete)
	}

	for _, field := range dateFields {
		date := field.value(record)
		if date.Date != nil && (date.TBD || date.Invalid) {
			fail(field.name, "date cannot be both resolved and unresolved", date.Original)
		}
	}

	keys := make([]string, 0, len(record.ExtraFields))
	for key := range record.ExtraFields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, err := json.Marshal(record.ExtraFields[key]); err != nil {
			fail("extraFields."+key, fmt.Sprintf("value cannot be stored: %v", err), nil)
		}
	}

	return result
}

// RowValidator adapts the validator to the row parser hook: any violation
// discards the row.
func (v *RecordValidator) RowValidator() func(record *domain.ParsedProjectRecord) error {
	return func(record *domain.ParsedProjectRecord) error {
		result := v.Validate(record)
		if result.IsValid {
			return nil
		}
		errs := make([]error, len(result.Errors))
		for idx, validationErr := range result.Errors {
			errs[idx] = validationErr
		}
		return errors.Join(errs...)
	}
}
