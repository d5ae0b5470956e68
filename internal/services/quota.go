package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"starscreen/screening/internal/models"
)

// QuotaGate is the admission control in front of candidate processing. The
// usage counter lives on the billing-owned subscription record; this gate
// only reads the ceiling and increments the counter.
type QuotaGate interface {
	// AdmitCandidate consumes one unit of the tenant's monthly quota and
	// creates the candidate record in the same transaction. A rejected
	// admission returns ErrQuotaExceeded and leaves no trace.
	AdmitCandidate(ctx context.Context, candidate *models.Candidate) error

	// ReleaseOne hands one unit back, used to compensate when enqueueing
	// fails after admission.
	ReleaseOne(ctx context.Context, tenantID uuid.UUID) error

	// ResetMonthlyUsage zeroes every tenant's counter and rolls the billing
	// period forward. Invoked by the monthly scheduler.
	ResetMonthlyUsage(ctx context.Context) error
}

type quotaGate struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewQuotaGate(db *gorm.DB, logger *zap.Logger) QuotaGate {
	return &quotaGate{db: db, logger: logger}
}

func (q *quotaGate) AdmitCandidate(ctx context.Context, candidate *models.Candidate) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional increment: succeeds only below the ceiling, so two
		// concurrent uploads can never both take the last unit.
		res := tx.Model(&models.Subscription{}).
			Where("tenant_id = ? AND candidates_used_this_month < monthly_candidate_limit", candidate.TenantID).
			UpdateColumn("candidates_used_this_month", gorm.Expr("candidates_used_this_month + 1"))

		if res.Error != nil {
			return fmt.Errorf("failed to consume quota: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrQuotaExceeded
		}

		if err := tx.Create(candidate).Error; err != nil {
			return fmt.Errorf("failed to create candidate: %w", err)
		}
		return nil
	})
}

func (q *quotaGate) ReleaseOne(ctx context.Context, tenantID uuid.UUID) error {
	res := q.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("tenant_id = ? AND candidates_used_this_month > 0", tenantID).
		UpdateColumn("candidates_used_this_month", gorm.Expr("candidates_used_this_month - 1"))
	if res.Error != nil {
		return fmt.Errorf("failed to release quota: %w", res.Error)
	}
	return nil
}

func (q *quotaGate) ResetMonthlyUsage(ctx context.Context) error {
	now := time.Now()
	nextMonth := now.AddDate(0, 1, 0)

	res := q.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("1 = 1").
		Updates(map[string]interface{}{
			"candidates_used_this_month": 0,
			"current_period_start":       now,
			"current_period_end":         nextMonth,
			"updated_at":                 now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to reset monthly usage: %w", res.Error)
	}

	q.logger.Info("monthly candidate usage reset", zap.Int64("subscriptions", res.RowsAffected))
	return nil
}
