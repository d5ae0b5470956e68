package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"starscreen/screening/internal/models"
	"starscreen/screening/internal/repositories"
)

type EvaluationHandler struct {
	candidateRepo  repositories.CandidateRepository
	evaluationRepo repositories.EvaluationRepository
}

func NewEvaluationHandler(
	candidateRepo repositories.CandidateRepository,
	evaluationRepo repositories.EvaluationRepository,
) *EvaluationHandler {
	return &EvaluationHandler{
		candidateRepo:  candidateRepo,
		evaluationRepo: evaluationRepo,
	}
}

// HandleGetEvaluation returns a candidate's evaluation once scoring finished.
// Until then the response reports the current pipeline status.
func (h *EvaluationHandler) HandleGetEvaluation(c *fiber.Ctx) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	candidateID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid candidate id format",
		})
	}

	candidate, err := h.candidateRepo.FindByID(candidateID)
	if err != nil || candidate.TenantID != tenantID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "candidate not found",
		})
	}

	if candidate.Status != models.CandidateStatusScored {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "evaluation not available",
			"status": string(candidate.Status),
		})
	}

	evaluation, err := h.evaluationRepo.FindByCandidateID(candidate.ID)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "evaluation not found",
		})
	}

	return c.JSON(models.EvaluationResponse{
		MatchScore:     evaluation.MatchScore,
		CategoryScores: evaluation.CategoryScores,
		Summary:        evaluation.Summary,
		Pros:           evaluation.Pros,
		Cons:           evaluation.Cons,
		CreatedAt:      evaluation.CreatedAt,
	})
}
