package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// Job is a job posting owned by a tenant. The pipeline only ever moves it
// forward: PENDING -> PROCESSING -> COMPLETED, or into FAILED.
type Job struct {
	ID                        uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TenantID                  uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Title                     string     `gorm:"type:text;not null" json:"title"`
	Description               string     `gorm:"type:text;not null" json:"description"`
	Location                  *string    `gorm:"type:text" json:"location,omitempty"`
	WorkAuthorizationRequired bool       `gorm:"default:false" json:"work_authorization_required"`
	Status                    JobStatus  `gorm:"not null;default:'PENDING';index" json:"status"`
	ErrorMessage              *string    `gorm:"type:text" json:"error_message,omitempty"`
	Config                    *JobConfig `gorm:"type:jsonb" json:"config,omitempty"`
	CreatedAt                 time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt                 time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}

// JobCategory is one weighted entry of a job's skill taxonomy.
type JobCategory struct {
	CategoryID         string   `json:"category_id"`
	Name               string   `json:"name"`
	Importance         int      `json:"importance"`
	Description        string   `json:"description"`
	ExamplesOfEvidence []string `json:"examples_of_evidence"`
}

// JobConfig is the AI-generated scoring configuration attached to a job.
// It is written once per successful generation run and only replaced by a
// full regeneration.
type JobConfig struct {
	JobID                     *uuid.UUID     `json:"job_id,omitempty"`
	Title                     string         `json:"title"`
	SeniorityLevel            string         `json:"seniority_level"`
	RoleSummary               string         `json:"role_summary"`
	CoreResponsibilities      []string       `json:"core_responsibilities"`
	Categories                []JobCategory  `json:"categories"`
	DesiredBackgroundPatterns map[string]any `json:"desired_background_patterns"`
	EducationPreferences      map[string]any `json:"education_preferences"`
}

func (c JobConfig) Value() (driver.Value, error) {
	return json.Marshal(c)
}

func (c *JobConfig) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported type for JobConfig: %T", value)
	}
}
