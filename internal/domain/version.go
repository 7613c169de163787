package domain

import (
	"time"

	"github.com/google/uuid"
)

// VersionStatus tracks the lifecycle of one ingestion run.
type VersionStatus string

const (
	VersionPending    VersionStatus = "pending"
	VersionProcessing VersionStatus = "processing"
	VersionCompleted  VersionStatus = "completed"
	VersionFailed     VersionStatus = "failed"
)

// VersionStatusFrom maps a stored status string back to a VersionStatus.
func VersionStatusFrom(s string) VersionStatus {
	switch s {
	case "processing":
		return VersionProcessing
	case "completed":
		return VersionCompleted
	case "failed":
		return VersionFailed
	}
	return VersionPending
}

// Version is the immutable marker of one ingestion run.
type Version struct {
	ID          uuid.UUID     `json:"id"`
	Dataset     string        `json:"dataset"`
	FileName    string        `json:"fileName"`
	UploadedAt  time.Time     `json:"uploadedAt"`
	TotalRows   int           `json:"totalRows"`
	Status      VersionStatus `json:"status"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
}

// NewVersion prepares a pending version for an upload.
func NewVersion(dataset, fileName string, uploadedAt time.Time) Version {
	return Version{
		ID:         uuid.New(),
		Dataset:    dataset,
		FileName:   fileName,
		UploadedAt: uploadedAt.UTC(),
		Status:     VersionPending,
	}
}

// IsCommitted reports whether the version can serve as a diff base.
func (v Version) IsCommitted() bool {
	return v.Status == VersionCompleted
}
