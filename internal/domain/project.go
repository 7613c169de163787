package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the canonical textual form of a calendar date.
const DateLayout = "2006-01-02"

// DateValue holds a coerced spreadsheet date together with its source text.
type DateValue struct {
	Date     *time.Time `json:"date"`
	Original string     `json:"original,omitempty"`
	TBD      bool       `json:"tbd"`
	Invalid  bool       `json:"invalid,omitempty"`
}

// ISO returns the date as YYYY-MM-DD, or an empty string when unset.
func (d DateValue) ISO() string {
	if d.Date == nil {
		return ""
	}
	return d.Date.Format(DateLayout)
}

// IsZero reports whether no date, TBD marker or source text is present.
func (d DateValue) IsZero() bool {
	return d.Date == nil && !d.TBD && d.Original == ""
}

// ParsedProjectRecord is the canonical output of one spreadsheet row.
type ParsedProjectRecord struct {
	RowNumber         int    `json:"rowNumber"`
	LegacyID          string `json:"legacyId"`
	LegacyIDSynthetic bool   `json:"legacyIdSynthetic"`
	ProjectName       string `json:"projectName"`
	NameInherited     bool   `json:"nameInherited,omitempty"`

	Description    string           `json:"description,omitempty"`
	DepartmentName string           `json:"departmentName,omitempty"`
	Leader         string           `json:"leader,omitempty"`
	Sponsor        string           `json:"sponsor,omitempty"`
	BPAnalyst      string           `json:"bpAnalyst,omitempty"`
	Status         string           `json:"status,omitempty"`
	Priority       string           `json:"priority,omitempty"`
	Category       string           `json:"category,omitempty"`
	Region         string           `json:"region,omitempty"`
	Objective      string           `json:"objective,omitempty"`
	ScopeIn        string           `json:"scopeIn,omitempty"`
	ScopeOut       string           `json:"scopeOut,omitempty"`
	Benefits       string           `json:"benefits,omitempty"`
	Risks          string           `json:"risks,omitempty"`
	Comments       string           `json:"comments,omitempty"`
	KPIs           string           `json:"kpis,omitempty"`
	ImpactType     []string         `json:"impactType,omitempty"`
	Budget         *decimal.Decimal `json:"budget,omitempty"`
	TotalValue     *decimal.Decimal `json:"totalValue,omitempty"`

	PercentComplete int `json:"percentComplete"`

	StatusText      string  `json:"statusText,omitempty"`
	ParsedStatus    *string `json:"parsedStatus"`
	ParsedNextSteps *string `json:"parsedNextSteps"`

	StartDate        DateValue `json:"startDate"`
	EndDateEstimated DateValue `json:"endDateEstimated"`
	EndDateActual    DateValue `json:"endDateActual"`
	RegistrationDate DateValue `json:"registrationDate"`

	ExtraFields map[string]any `json:"extraFields"`

	IsDraftIncomplete       bool `json:"isDraftIncomplete"`
	RequiresName            bool `json:"requiresName"`
	HasInvalidDate          bool `json:"hasInvalidDate"`
	HasUnmappedCatalogValue bool `json:"hasUnmappedCatalogValue"`
}

// WarningKind classifies a row level warning.
type WarningKind string

const (
	WarningRowEmpty           WarningKind = "row_empty"
	WarningRowUnreadable      WarningKind = "row_unreadable"
	WarningMissingProjectName WarningKind = "missing_project_name"
	WarningInvalidDate        WarningKind = "invalid_date"
	WarningUnknownCatalog     WarningKind = "unknown_catalog_value"
)

// RowWarning describes a data quality issue for one row. Row 0 marks a
// run level warning that is not tied to a specific row.
type RowWarning struct {
	Row     int         `json:"fila"`
	Kind    WarningKind `json:"tipo"`
	Message string      `json:"mensaje"`
}

// StoredProject is a record as persisted for a version, keyed for identity matching.
type StoredProject struct {
	VersionID   uuid.UUID           `json:"versionId"`
	Position    int                 `json:"position"`
	IdentityKey string              `json:"identityKey"`
	Record      ParsedProjectRecord `json:"record"`
}
