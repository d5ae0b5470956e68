package models

import (
	"time"

	"github.com/google/uuid"
)

type PostingStatus string

const (
	PostingStatusPosted PostingStatus = "POSTED"
	PostingStatusFailed PostingStatus = "FAILED"
)

// ExternalJobPosting records a downstream publish of a completed job to an
// external job board. Failures here never affect the job's own status.
type ExternalJobPosting struct {
	ID         uuid.UUID     `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TenantID   uuid.UUID     `gorm:"type:uuid;not null;index" json:"tenant_id"`
	JobID      uuid.UUID     `gorm:"type:uuid;not null;index" json:"job_id"`
	Provider   string        `gorm:"type:text;not null" json:"provider"`
	ExternalID *string       `gorm:"type:text" json:"external_id,omitempty"`
	Status     PostingStatus `gorm:"not null" json:"status"`
	Error      *string       `gorm:"type:text" json:"error,omitempty"`
	PostedAt   time.Time     `gorm:"default:CURRENT_TIMESTAMP" json:"posted_at"`
}

func (ExternalJobPosting) TableName() string {
	return "external_job_postings"
}
