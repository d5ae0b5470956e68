package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"starscreen/screening/internal/models"
)

type SubscriptionRepository interface {
	Create(subscription *models.Subscription) error
	FindByTenantID(tenantID uuid.UUID) (*models.Subscription, error)
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(subscription *models.Subscription) error {
	if err := r.db.Create(subscription).Error; err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepository) FindByTenantID(tenantID uuid.UUID) (*models.Subscription, error) {
	var subscription models.Subscription
	if err := r.db.Where("tenant_id = ?", tenantID).First(&subscription).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subscription not found")
		}
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return &subscription, nil
}
