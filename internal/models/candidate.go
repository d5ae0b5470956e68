package models

import (
	"time"

	"github.com/google/uuid"
)

type CandidateStatus string

// Candidate processing lifecycle:
//
//	UPLOADED -> PROCESSING -> PARSED -> PROCESSING -> SCORED
//	                  \__________________________/-> FAILED
const (
	CandidateStatusUploaded   CandidateStatus = "UPLOADED"
	CandidateStatusProcessing CandidateStatus = "PROCESSING"
	CandidateStatusParsed     CandidateStatus = "PARSED"
	CandidateStatusScored     CandidateStatus = "SCORED"
	CandidateStatusFailed     CandidateStatus = "FAILED"
)

// IsTerminal reports whether no further automatic transition may occur.
// PARSED is not terminal: the scoring stage is chained right after it.
func (s CandidateStatus) IsTerminal() bool {
	return s == CandidateStatusScored || s == CandidateStatusFailed
}

// Candidate is one uploaded resume for a job. Contact fields are nullable so
// blind screening stays possible; extraction may fill them later.
type Candidate struct {
	ID               uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TenantID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	JobID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"job_id"`
	FirstName        *string         `gorm:"type:text" json:"first_name,omitempty"`
	LastName         *string         `gorm:"type:text" json:"last_name,omitempty"`
	Email            *string         `gorm:"type:text" json:"email,omitempty"`
	Phone            *string         `gorm:"type:text" json:"phone,omitempty"`
	Location         *string         `gorm:"type:text" json:"location,omitempty"`
	LinkedinURL      *string         `gorm:"type:text" json:"linkedin_url,omitempty"`
	GithubURL        *string         `gorm:"type:text" json:"github_url,omitempty"`
	PortfolioURL     *string         `gorm:"type:text" json:"portfolio_url,omitempty"`
	FileRef          string          `gorm:"type:text;not null" json:"file_ref"`
	OriginalFilename string          `gorm:"type:text;not null" json:"original_filename"`
	ResumeText       *string         `gorm:"type:text" json:"resume_text,omitempty"`
	Status           CandidateStatus `gorm:"not null;default:'UPLOADED';index" json:"status"`
	ErrorMessage     *string         `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt        time.Time       `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Candidate) TableName() string {
	return "candidates"
}
