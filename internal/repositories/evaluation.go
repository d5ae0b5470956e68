package repositories

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"starscreen/screening/internal/models"
)

type EvaluationRepository interface {
	FindByCandidateID(candidateID uuid.UUID) (*models.Evaluation, error)
	// SaveScoringResult persists a scoring run as one transaction: the
	// evaluation replaces any prior row for the candidate, and the candidate
	// row gets its merged contact fields plus the SCORED status.
	SaveScoringResult(evaluation *models.Evaluation, candidate *models.Candidate) error
}

type evaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

func (r *evaluationRepository) FindByCandidateID(candidateID uuid.UUID) (*models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.db.Where("candidate_id = ?", candidateID).First(&evaluation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("evaluation not found")
		}
		return nil, fmt.Errorf("failed to find evaluation: %w", err)
	}
	return &evaluation, nil
}

func (r *evaluationRepository) SaveScoringResult(evaluation *models.Evaluation, candidate *models.Candidate) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		// Replace-on-rescore keeps the candidate_id unique invariant under
		// at-least-once task delivery.
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "candidate_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"match_score", "category_scores", "summary", "pros", "cons", "created_at",
			}),
		}).Create(evaluation).Error; err != nil {
			return fmt.Errorf("failed to save evaluation: %w", err)
		}

		result := tx.Model(&models.Candidate{}).
			Where("id = ?", candidate.ID).
			Updates(map[string]interface{}{
				"first_name":    candidate.FirstName,
				"last_name":     candidate.LastName,
				"email":         candidate.Email,
				"phone":         candidate.Phone,
				"location":      candidate.Location,
				"linkedin_url":  candidate.LinkedinURL,
				"github_url":    candidate.GithubURL,
				"portfolio_url": candidate.PortfolioURL,
				"status":        models.CandidateStatusScored,
				"error_message": nil,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to mark candidate scored: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("candidate not found")
		}
		return nil
	})
}
