package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"starscreen/screening/internal/models"
)

type JobRepository interface {
	Create(job *models.Job) error
	FindByID(id uuid.UUID) (*models.Job, error)
	MarkProcessing(id uuid.UUID) error
	CompleteWithConfig(id uuid.UUID, config *models.JobConfig) error
	MarkFailed(id uuid.UUID, errorMsg string) error
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(job *models.Job) error {
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *jobRepository) FindByID(id uuid.UUID) (*models.Job, error) {
	var job models.Job
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job not found")
		}
		return nil, fmt.Errorf("failed to find job: %w", err)
	}
	return &job, nil
}

// MarkProcessing moves the job into PROCESSING and clears any stale error
// from a previous run.
func (r *jobRepository) MarkProcessing(id uuid.UUID) error {
	return r.updateJob(id, map[string]interface{}{
		"status":        models.JobStatusProcessing,
		"error_message": nil,
		"updated_at":    time.Now(),
	})
}

// CompleteWithConfig persists the generated config and the COMPLETED status
// as a single write.
func (r *jobRepository) CompleteWithConfig(id uuid.UUID, config *models.JobConfig) error {
	return r.updateJob(id, map[string]interface{}{
		"status":        models.JobStatusCompleted,
		"config":        config,
		"error_message": nil,
		"updated_at":    time.Now(),
	})
}

func (r *jobRepository) MarkFailed(id uuid.UUID, errorMsg string) error {
	return r.updateJob(id, map[string]interface{}{
		"status":        models.JobStatusFailed,
		"error_message": errorMsg,
		"updated_at":    time.Now(),
	})
}

func (r *jobRepository) updateJob(id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.Model(&models.Job{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job not found")
	}
	return nil
}
