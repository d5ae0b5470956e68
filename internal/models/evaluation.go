package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CategoryScore is the AI's grade for one taxonomy category, stored verbatim.
// The headline match score is never AI-reported; it is computed from these.
type CategoryScore struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

type CategoryScores map[string]CategoryScore

func (s CategoryScores) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *CategoryScores) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported type for CategoryScores: %T", value)
	}
}

type StringList []string

func (l StringList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *StringList) Scan(value interface{}) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported type for StringList: %T", value)
	}
}

// Evaluation is the scoring result for one candidate. Exactly one row exists
// per candidate; re-scoring replaces it in place.
type Evaluation struct {
	ID             uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TenantID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	CandidateID    uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"candidate_id"`
	MatchScore     float64        `gorm:"not null;index" json:"match_score"`
	CategoryScores CategoryScores `gorm:"type:jsonb;not null" json:"category_scores"`
	Summary        string         `gorm:"type:text;not null" json:"summary"`
	Pros           StringList     `gorm:"type:jsonb" json:"pros"`
	Cons           StringList     `gorm:"type:jsonb" json:"cons"`
	CreatedAt      time.Time      `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}
