package handlers

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"starscreen/screening/internal/models"
	"starscreen/screening/internal/queue"
	"starscreen/screening/internal/repositories"
	"starscreen/screening/internal/services"
)

var allowedResumeExtensions = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
}

type CandidateHandler struct {
	jobRepo          repositories.JobRepository
	candidateRepo    repositories.CandidateRepository
	evaluationRepo   repositories.EvaluationRepository
	subscriptionRepo repositories.SubscriptionRepository
	store            services.ArtifactStore
	quota            services.QuotaGate
	queue            *queue.RedisQueue
	maxFileSize      int64
	freeTierLimit    int
	logger           *zap.Logger
}

func NewCandidateHandler(
	jobRepo repositories.JobRepository,
	candidateRepo repositories.CandidateRepository,
	evaluationRepo repositories.EvaluationRepository,
	subscriptionRepo repositories.SubscriptionRepository,
	store services.ArtifactStore,
	quota services.QuotaGate,
	q *queue.RedisQueue,
	maxFileSize int64,
	freeTierLimit int,
	logger *zap.Logger,
) *CandidateHandler {
	return &CandidateHandler{
		jobRepo:          jobRepo,
		candidateRepo:    candidateRepo,
		evaluationRepo:   evaluationRepo,
		subscriptionRepo: subscriptionRepo,
		store:            store,
		quota:            quota,
		queue:            q,
		maxFileSize:      maxFileSize,
		freeTierLimit:    freeTierLimit,
		logger:           logger,
	}
}

// HandleUploadCandidate accepts a resume file for a job, charges the tenant's
// monthly quota and queues async extraction. Legacy .doc files are accepted
// here and rejected by the extraction stage with a stored error message.
func (h *CandidateHandler) HandleUploadCandidate(c *fiber.Ctx) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	jobID, err := uuid.Parse(c.Params("jobID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid job id format",
		})
	}

	job, err := h.jobRepo.FindByID(jobID)
	if err != nil || job.TenantID != tenantID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "job not found",
		})
	}

	fileHeader, err := c.FormFile("resume")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "resume file is required",
		})
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !allowedResumeExtensions[ext] {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("unsupported file type %q, expected .pdf, .doc or .docx", ext),
		})
	}

	if fileHeader.Size > h.maxFileSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("resume too large, max size is %d bytes", h.maxFileSize),
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read resume file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to read resume file",
		})
	}

	fileRef, err := h.store.Put(data, fileHeader.Filename)
	if err != nil {
		h.logger.Error("failed to store resume artifact", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to store resume file",
		})
	}

	if err := h.ensureSubscription(tenantID); err != nil {
		h.store.Delete(fileRef)
		h.logger.Error("failed to ensure subscription", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to resolve subscription",
		})
	}

	candidate := &models.Candidate{
		ID:               uuid.New(),
		TenantID:         tenantID,
		JobID:            jobID,
		FileRef:          fileRef,
		OriginalFilename: fileHeader.Filename,
		Status:           models.CandidateStatusUploaded,
		CreatedAt:        time.Now(),
	}

	if err := h.quota.AdmitCandidate(c.Context(), candidate); err != nil {
		h.store.Delete(fileRef)
		if errors.Is(err, services.ErrQuotaExceeded) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"error": "monthly candidate quota exceeded, upgrade your plan to screen more candidates",
			})
		}
		h.logger.Error("failed to admit candidate", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create candidate",
		})
	}

	task := queue.NewTask(queue.TaskResumeParse, candidate.ID, tenantID)
	if err := h.queue.Enqueue(c.Context(), task); err != nil {
		// Undo the admission so the tenant is not charged for a candidate
		// that will never be processed.
		h.logger.Error("failed to enqueue resume parsing",
			zap.String("candidate_id", candidate.ID.String()),
			zap.Error(err),
		)
		if delErr := h.candidateRepo.Delete(candidate.ID); delErr != nil {
			h.logger.Error("failed to delete unprocessable candidate", zap.Error(delErr))
		}
		if relErr := h.quota.ReleaseOne(c.Context(), tenantID); relErr != nil {
			h.logger.Error("failed to release quota unit", zap.Error(relErr))
		}
		h.store.Delete(fileRef)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to queue resume for processing",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(models.UploadCandidateResponse{
		CandidateID: candidate.ID.String(),
		JobID:       jobID.String(),
		Status:      string(candidate.Status),
	})
}

// ensureSubscription creates a free tier subscription the first time a tenant
// uploads. Paid tiers are written by the billing integration.
func (h *CandidateHandler) ensureSubscription(tenantID uuid.UUID) error {
	if _, err := h.subscriptionRepo.FindByTenantID(tenantID); err == nil {
		return nil
	}

	now := time.Now()
	periodEnd := now.AddDate(0, 1, 0)
	subscription := &models.Subscription{
		ID:                    uuid.New(),
		TenantID:              tenantID,
		Plan:                  models.PlanFree,
		MonthlyCandidateLimit: h.freeTierLimit,
		CurrentPeriodStart:    &now,
		CurrentPeriodEnd:      &periodEnd,
	}
	if err := h.subscriptionRepo.Create(subscription); err != nil {
		// Two first uploads can race here; losing the insert on the
		// tenant_id unique index is fine as long as a row now exists.
		if _, findErr := h.subscriptionRepo.FindByTenantID(tenantID); findErr == nil {
			return nil
		}
		return err
	}
	return nil
}

func (h *CandidateHandler) HandleGetCandidate(c *fiber.Ctx) error {
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

	return c.JSON(candidate)
}

// HandleListCandidates lists a job's candidates with their scores, optionally
// filtered by status.
func (h *CandidateHandler) HandleListCandidates(c *fiber.Ctx) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	jobID, err := uuid.Parse(c.Params("jobID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid job id format",
		})
	}

	job, err := h.jobRepo.FindByID(jobID)
	if err != nil || job.TenantID != tenantID {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "job not found",
		})
	}

	var statusFilter *models.CandidateStatus
	if raw := c.Query("status"); raw != "" {
		status := models.CandidateStatus(strings.ToUpper(raw))
		statusFilter = &status
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := c.QueryInt("limit", 50)

	candidates, err := h.candidateRepo.ListByJob(jobID, statusFilter, offset, limit)
	if err != nil {
		h.logger.Error("failed to list candidates", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list candidates",
		})
	}

	items := make([]models.CandidateListItem, 0, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		item := models.CandidateListItem{
			ID:               candidate.ID.String(),
			JobID:            candidate.JobID.String(),
			FirstName:        candidate.FirstName,
			LastName:         candidate.LastName,
			Email:            candidate.Email,
			OriginalFilename: candidate.OriginalFilename,
			Status:           string(candidate.Status),
			ErrorMessage:     candidate.ErrorMessage,
			CreatedAt:        candidate.CreatedAt,
		}
		if candidate.Status == models.CandidateStatusScored {
			if evaluation, err := h.evaluationRepo.FindByCandidateID(candidate.ID); err == nil {
				score := evaluation.MatchScore
				item.Score = &score
			}
		}
		items = append(items, item)
	}

	return c.JSON(fiber.Map{
		"candidates": items,
		"offset":     offset,
		"count":      len(items),
	})
}

func (h *CandidateHandler) HandleDeleteCandidate(c *fiber.Ctx) error {
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

	if err := h.candidateRepo.Delete(candidate.ID); err != nil {
		h.logger.Error("failed to delete candidate", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to delete candidate",
		})
	}
	h.store.Delete(candidate.FileRef)

	return c.SendStatus(fiber.StatusNoContent)
}
