package models

import (
	"time"

	"github.com/google/uuid"
)

type SubscriptionPlan string

const (
	PlanFree          SubscriptionPlan = "free"
	PlanStarter       SubscriptionPlan = "starter"
	PlanSmallBusiness SubscriptionPlan = "small_business"
	PlanProfessional  SubscriptionPlan = "professional"
	PlanEnterprise    SubscriptionPlan = "enterprise"
)

// Subscription is the billing-owned usage record the quota gate consumes.
// Plan tiers and limits come from the external billing integration; the
// pipeline only reads the ceiling and increments the counter.
type Subscription struct {
	ID                      uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TenantID                uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"tenant_id"`
	Plan                    SubscriptionPlan `gorm:"not null;default:'free'" json:"plan"`
	MonthlyCandidateLimit   int              `gorm:"not null" json:"monthly_candidate_limit"`
	CandidatesUsedThisMonth int              `gorm:"not null;default:0" json:"candidates_used_this_month"`
	CurrentPeriodStart      *time.Time       `json:"current_period_start,omitempty"`
	CurrentPeriodEnd        *time.Time       `json:"current_period_end,omitempty"`
	CreatedAt               time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt               time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

// RemainingCandidates returns how many uploads the tenant has left this month.
func (s *Subscription) RemainingCandidates() int {
	remaining := s.MonthlyCandidateLimit - s.CandidatesUsedThisMonth
	if remaining < 0 {
		return 0
	}
	return remaining
}
