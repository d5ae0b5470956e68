package repositories

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"starscreen/screening/internal/models"
)

type PostingRepository interface {
	Create(posting *models.ExternalJobPosting) error
	ListByJob(jobID uuid.UUID) ([]models.ExternalJobPosting, error)
}

type postingRepository struct {
	db *gorm.DB
}

func NewPostingRepository(db *gorm.DB) PostingRepository {
	return &postingRepository{db: db}
}

func (r *postingRepository) Create(posting *models.ExternalJobPosting) error {
	if err := r.db.Create(posting).Error; err != nil {
		return fmt.Errorf("failed to create job posting record: %w", err)
	}
	return nil
}

func (r *postingRepository) ListByJob(jobID uuid.UUID) ([]models.ExternalJobPosting, error) {
	var postings []models.ExternalJobPosting
	if err := r.db.Where("job_id = ?", jobID).Order("posted_at DESC").Find(&postings).Error; err != nil {
		return nil, fmt.Errorf("failed to list job postings: %w", err)
	}
	return postings, nil
}
