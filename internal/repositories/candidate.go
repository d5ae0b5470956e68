package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"starscreen/screening/internal/models"
)

type CandidateRepository interface {
	FindByID(id uuid.UUID) (*models.Candidate, error)
	FindByIDForJob(id, jobID uuid.UUID) (*models.Candidate, error)
	ListByJob(jobID uuid.UUID, status *models.CandidateStatus, offset, limit int) ([]models.Candidate, error)
	MarkProcessing(id uuid.UUID) error
	CompleteParse(id uuid.UUID, resumeText string) error
	MarkFailed(id uuid.UUID, errorMsg string) error
	Delete(id uuid.UUID) error
}

type candidateRepository struct {
	db *gorm.DB
}

func NewCandidateRepository(db *gorm.DB) CandidateRepository {
	return &candidateRepository{db: db}
}

func (r *candidateRepository) FindByID(id uuid.UUID) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := r.db.Where("id = ?", id).First(&candidate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("candidate not found")
		}
		return nil, fmt.Errorf("failed to find candidate: %w", err)
	}
	return &candidate, nil
}

func (r *candidateRepository) FindByIDForJob(id, jobID uuid.UUID) (*models.Candidate, error) {
	var candidate models.Candidate
	if err := r.db.Where("id = ? AND job_id = ?", id, jobID).First(&candidate).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("candidate not found")
		}
		return nil, fmt.Errorf("failed to find candidate: %w", err)
	}
	return &candidate, nil
}

func (r *candidateRepository) ListByJob(jobID uuid.UUID, status *models.CandidateStatus, offset, limit int) ([]models.Candidate, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	query := r.db.Where("job_id = ?", jobID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}

	var candidates []models.Candidate
	if err := query.Order("created_at ASC").Offset(offset).Limit(limit).Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to list candidates: %w", err)
	}
	return candidates, nil
}

// MarkProcessing records the active transition before the slow work starts so
// status is observable mid-flight.
func (r *candidateRepository) MarkProcessing(id uuid.UUID) error {
	return r.updateCandidate(id, map[string]interface{}{
		"status":        models.CandidateStatusProcessing,
		"error_message": nil,
	})
}

// CompleteParse writes the extracted text and the PARSED status as one unit.
func (r *candidateRepository) CompleteParse(id uuid.UUID, resumeText string) error {
	return r.updateCandidate(id, map[string]interface{}{
		"resume_text":   resumeText,
		"status":        models.CandidateStatusParsed,
		"error_message": nil,
	})
}

func (r *candidateRepository) MarkFailed(id uuid.UUID, errorMsg string) error {
	return r.updateCandidate(id, map[string]interface{}{
		"status":        models.CandidateStatusFailed,
		"error_message": errorMsg,
	})
}

func (r *candidateRepository) Delete(id uuid.UUID) error {
	if err := r.db.Where("id = ?", id).Delete(&models.Candidate{}).Error; err != nil {
		return fmt.Errorf("failed to delete candidate: %w", err)
	}
	return nil
}

func (r *candidateRepository) updateCandidate(id uuid.UUID, updates map[string]interface{}) error {
	result := r.db.Model(&models.Candidate{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return fmt.Errorf("failed to update candidate: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("candidate not found")
	}
	return nil
}
