package domain

import (
	"time"

	"github.com/google/uuid"
)

// IngestionLogEntry persists a row warning raised while ingesting a version.
type IngestionLogEntry struct {
	ID        uuid.UUID   `json:"id"`
	VersionID uuid.UUID   `json:"versionId"`
	Position  int         `json:"position"`
	RowNumber *int        `json:"rowNumber,omitempty"`
	Kind      WarningKind `json:"kind"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"createdAt"`
}

// NewIngestionLogEntry converts a row warning into a log entry for a version.
// Position is the warning's index in the run and fixes the listing order.
func NewIngestionLogEntry(versionID uuid.UUID, position int, warning RowWarning) IngestionLogEntry {
	entry := IngestionLogEntry{
		VersionID: versionID,
		Position:  position,
		Kind:      warning.Kind,
		Message:   warning.Message,
	}
	if warning.Row > 0 {
		row := warning.Row
		entry.RowNumber = &row
	}
	return entry
}
