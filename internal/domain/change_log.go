package domain

import "github.com/google/uuid"

// ChangeType distinguishes change log entries.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// ChangeLogEntry records one difference between two versions.
type ChangeLogEntry struct {
	ChangeType        ChangeType `json:"changeType"`
	FieldName         *string    `json:"fieldName,omitempty"`
	OldValue          *string    `json:"oldValue,omitempty"`
	NewValue          *string    `json:"newValue,omitempty"`
	LegacyID          string     `json:"legacyId"`
	ProjectName       string     `json:"projectName"`
	VersionID         uuid.UUID  `json:"versionId"`
	PreviousVersionID *uuid.UUID `json:"previousVersionId,omitempty"`
}

// ChangeSummary counts change log entries by type. Modified counts records,
// not fields.
type ChangeSummary struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Deleted  int `json:"deleted"`
}

// IsEmpty reports whether no changes were detected.
func (s ChangeSummary) IsEmpty() bool {
	return s.Added == 0 && s.Modified == 0 && s.Deleted == 0
}
