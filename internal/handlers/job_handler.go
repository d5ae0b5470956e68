package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"starscreen/screening/internal/models"
	"starscreen/screening/internal/queue"
	"starscreen/screening/internal/repositories"
)

type JobHandler struct {
	jobRepo     repositories.JobRepository
	postingRepo repositories.PostingRepository
	queue       *queue.RedisQueue
	logger      *zap.Logger
}

func NewJobHandler(
	jobRepo repositories.JobRepository,
	postingRepo repositories.PostingRepository,
	q *queue.RedisQueue,
	logger *zap.Logger,
) *JobHandler {
	return &JobHandler{
		jobRepo:     jobRepo,
		postingRepo: postingRepo,
		queue:       q,
		logger:      logger,
	}
}

// HandleCreateJob accepts a job posting and queues async config generation.
// The response is 202: the scoring config is not ready yet.
func (h *JobHandler) HandleCreateJob(c *fiber.Ctx) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var req models.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)
	if req.Title == "" || req.Description == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "title and description are required",
		})
	}

	job := &models.Job{
		ID:                        uuid.New(),
		TenantID:                  tenantID,
		Title:                     req.Title,
		Description:               req.Description,
		Location:                  req.Location,
		WorkAuthorizationRequired: req.WorkAuthorizationRequired,
		Status:                    models.JobStatusPending,
	}

	if err := h.jobRepo.Create(job); err != nil {
		h.logger.Error("failed to create job", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create job",
		})
	}

	task := queue.NewTask(queue.TaskJobConfig, job.ID, tenantID)
	task.Publish = req.PostToBoard
	if err := h.queue.Enqueue(c.Context(), task); err != nil {
		h.logger.Error("failed to enqueue config generation",
			zap.String("job_id", job.ID.String()),
			zap.Error(err),
		)
		if markErr := h.jobRepo.MarkFailed(job.ID, "failed to queue config generation"); markErr != nil {
			h.logger.Error("failed to mark job as failed", zap.Error(markErr))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to queue job for processing",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(models.CreateJobResponse{
		JobID:  job.ID.String(),
		Status: string(job.Status),
	})
}

func (h *JobHandler) HandleGetJob(c *fiber.Ctx) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	jobID, err := uuid.Parse(c.Params("id"))
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

	return c.JSON(job)
}

// HandleListPostings returns the external job board postings for a job.
func (h *JobHandler) HandleListPostings(c *fiber.Ctx) error {
	tenantID, err := tenantFromRequest(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	jobID, err := uuid.Parse(c.Params("id"))
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

	postings, err := h.postingRepo.ListByJob(jobID)
	if err != nil {
		h.logger.Error("failed to list postings", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list postings",
		})
	}

	return c.JSON(fiber.Map{
		"postings": postings,
	})
}
