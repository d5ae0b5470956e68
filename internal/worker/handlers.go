package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"starscreen/screening/internal/models"
	"starscreen/screening/internal/queue"
	"starscreen/screening/internal/repositories"
	"starscreen/screening/internal/services"
)

// PipelineHandlers implements the four pipeline stages: job config
// generation, resume extraction, candidate scoring and job board publishing.
// Handlers are idempotent so at-least-once delivery is safe.
type PipelineHandlers struct {
	jobs        repositories.JobRepository
	candidates  repositories.CandidateRepository
	evaluations repositories.EvaluationRepository
	postings    repositories.PostingRepository
	extractor   services.Extractor
	scorer      services.Scorer
	configGen   services.ConfigGenerator
	publisher   services.JobBoardPublisher
	queue       *queue.RedisQueue
	logger      *zap.Logger
}

func NewPipelineHandlers(
	jobs repositories.JobRepository,
	candidates repositories.CandidateRepository,
	evaluations repositories.EvaluationRepository,
	postings repositories.PostingRepository,
	extractor services.Extractor,
	scorer services.Scorer,
	configGen services.ConfigGenerator,
	publisher services.JobBoardPublisher,
	q *queue.RedisQueue,
	logger *zap.Logger,
) *PipelineHandlers {
	return &PipelineHandlers{
		jobs:        jobs,
		candidates:  candidates,
		evaluations: evaluations,
		postings:    postings,
		extractor:   extractor,
		scorer:      scorer,
		configGen:   configGen,
		publisher:   publisher,
		queue:       q,
		logger:      logger,
	}
}

func (h *PipelineHandlers) RegisterAll(w *Worker) {
	w.Register(queue.TaskJobConfig, TaskHandler{Run: h.HandleJobConfig, Fail: h.FailJob})
	w.Register(queue.TaskResumeParse, TaskHandler{Run: h.HandleResumeParse, Fail: h.FailCandidate})
	w.Register(queue.TaskCandidateScore, TaskHandler{Run: h.HandleCandidateScore, Fail: h.FailCandidate})
	w.Register(queue.TaskJobPublish, TaskHandler{Run: h.HandleJobPublish, Fail: h.FailPublish})
}

// HandleJobConfig generates the scoring configuration for a freshly created
// job and, when requested, chains a publish task on success.
func (h *PipelineHandlers) HandleJobConfig(ctx context.Context, task queue.Task) error {
	job, err := h.jobs.FindByID(task.EntityID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	// Redelivered task for a job that already finished.
	if job.Status == models.JobStatusCompleted || job.Status == models.JobStatusFailed {
		h.logger.Info("job already in terminal status, skipping config generation",
			zap.String("job_id", job.ID.String()),
			zap.String("status", string(job.Status)),
		)
		return nil
	}

	if err := h.jobs.MarkProcessing(job.ID); err != nil {
		return fmt.Errorf("failed to mark job as processing: %w", err)
	}

	config, err := h.configGen.GenerateConfig(ctx, job.Title, job.Description)
	if err != nil {
		return err
	}
	config.JobID = &job.ID

	if err := h.jobs.CompleteWithConfig(job.ID, config); err != nil {
		return fmt.Errorf("failed to persist job config: %w", err)
	}

	h.logger.Info("job config generated",
		zap.String("job_id", job.ID.String()),
		zap.Int("categories", len(config.Categories)),
	)

	if task.Publish {
		publishTask := queue.NewTask(queue.TaskJobPublish, job.ID, task.TenantID)
		if err := h.queue.Enqueue(ctx, publishTask); err != nil {
			// The job itself is complete; the missing posting is visible to
			// the tenant and can be re-requested.
			h.logger.Warn("failed to enqueue publish task",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (h *PipelineHandlers) FailJob(ctx context.Context, task queue.Task, taskErr error) {
	if err := h.jobs.MarkFailed(task.EntityID, taskErr.Error()); err != nil {
		h.logger.Error("failed to mark job as failed",
			zap.String("job_id", task.EntityID.String()),
			zap.Error(err),
		)
	}
}

// HandleResumeParse extracts text from the candidate's uploaded resume and
// chains a scoring task.
func (h *PipelineHandlers) HandleResumeParse(ctx context.Context, task queue.Task) error {
	candidate, err := h.candidates.FindByID(task.EntityID)
	if err != nil {
		return fmt.Errorf("failed to load candidate: %w", err)
	}

	if candidate.Status.IsTerminal() {
		h.logger.Info("candidate already in terminal status, skipping parse",
			zap.String("candidate_id", candidate.ID.String()),
			zap.String("status", string(candidate.Status)),
		)
		return nil
	}

	// A redelivered task after the extraction already committed only needs
	// to re-chain the scoring stage.
	if candidate.Status == models.CandidateStatusParsed {
		return h.enqueueScoring(ctx, candidate.ID, task.TenantID)
	}

	if err := h.candidates.MarkProcessing(candidate.ID); err != nil {
		return fmt.Errorf("failed to mark candidate as processing: %w", err)
	}

	text, err := h.extractor.Extract(ctx, candidate.FileRef, candidate.OriginalFilename)
	if err != nil {
		return err
	}

	if err := h.candidates.CompleteParse(candidate.ID, text); err != nil {
		return fmt.Errorf("failed to persist extracted text: %w", err)
	}

	h.logger.Info("resume parsed",
		zap.String("candidate_id", candidate.ID.String()),
		zap.Int("chars", len(text)),
	)

	return h.enqueueScoring(ctx, candidate.ID, task.TenantID)
}

func (h *PipelineHandlers) enqueueScoring(ctx context.Context, candidateID, tenantID uuid.UUID) error {
	scoreTask := queue.NewTask(queue.TaskCandidateScore, candidateID, tenantID)
	if err := h.queue.Enqueue(ctx, scoreTask); err != nil {
		// The candidate is PARSED; a retried parse task will re-chain.
		return services.Transientf("failed to enqueue scoring task: %w", err)
	}
	return nil
}

func (h *PipelineHandlers) FailCandidate(ctx context.Context, task queue.Task, taskErr error) {
	if err := h.candidates.MarkFailed(task.EntityID, taskErr.Error()); err != nil {
		h.logger.Error("failed to mark candidate as failed",
			zap.String("candidate_id", task.EntityID.String()),
			zap.Error(err),
		)
	}
}

// HandleCandidateScore runs the AI-assisted evaluation against the job's
// config and persists the evaluation together with the SCORED status.
func (h *PipelineHandlers) HandleCandidateScore(ctx context.Context, task queue.Task) error {
	candidate, err := h.candidates.FindByID(task.EntityID)
	if err != nil {
		return fmt.Errorf("failed to load candidate: %w", err)
	}

	if candidate.Status.IsTerminal() {
		h.logger.Info("candidate already in terminal status, skipping scoring",
			zap.String("candidate_id", candidate.ID.String()),
			zap.String("status", string(candidate.Status)),
		)
		return nil
	}

	if candidate.ResumeText == nil || *candidate.ResumeText == "" {
		return fmt.Errorf("candidate %s has no extracted resume text", candidate.ID)
	}

	job, err := h.jobs.FindByID(candidate.JobID)
	if err != nil {
		return fmt.Errorf("failed to load job for candidate: %w", err)
	}
	if job.Config == nil {
		return fmt.Errorf("job %s has no scoring config", job.ID)
	}

	if err := h.candidates.MarkProcessing(candidate.ID); err != nil {
		return fmt.Errorf("failed to mark candidate as processing: %w", err)
	}

	wantContact := needsContact(candidate)
	outcome, err := h.scorer.Score(ctx, *candidate.ResumeText, job.Config, wantContact)
	if err != nil {
		return err
	}

	if outcome.Contact != nil {
		services.MergeContact(candidate, outcome.Contact)
	}

	evaluation := &models.Evaluation{
		ID:             uuid.New(),
		TenantID:       candidate.TenantID,
		CandidateID:    candidate.ID,
		MatchScore:     outcome.MatchScore,
		CategoryScores: outcome.CategoryScores,
		Summary:        outcome.Summary,
		Pros:           outcome.Pros,
		Cons:           outcome.Cons,
		CreatedAt:      time.Now(),
	}

	if err := h.evaluations.SaveScoringResult(evaluation, candidate); err != nil {
		return fmt.Errorf("failed to persist scoring result: %w", err)
	}

	h.logger.Info("candidate scored",
		zap.String("candidate_id", candidate.ID.String()),
		zap.Float64("match_score", outcome.MatchScore),
	)
	return nil
}

// needsContact reports whether the candidate record is still missing contact
// details worth extracting from the resume.
func needsContact(c *models.Candidate) bool {
	for _, field := range []*string{c.FirstName, c.LastName, c.Email, c.Phone} {
		if field == nil || *field == "" {
			return true
		}
	}
	return false
}

// HandleJobPublish posts a completed job to the configured job board. The
// outcome lands in external_job_postings and never changes the job's status.
func (h *PipelineHandlers) HandleJobPublish(ctx context.Context, task queue.Task) error {
	job, err := h.jobs.FindByID(task.EntityID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	if job.Status != models.JobStatusCompleted || job.Config == nil {
		h.logger.Warn("job is not ready to publish, skipping",
			zap.String("job_id", job.ID.String()),
			zap.String("status", string(job.Status)),
		)
		return nil
	}

	externalID, err := h.publisher.PostJob(ctx, job, job.Config)
	if err != nil {
		return fmt.Errorf("failed to post job to %s: %w", h.publisher.Provider(), err)
	}

	posting := &models.ExternalJobPosting{
		ID:         uuid.New(),
		TenantID:   task.TenantID,
		JobID:      job.ID,
		Provider:   h.publisher.Provider(),
		ExternalID: &externalID,
		Status:     models.PostingStatusPosted,
		PostedAt:   time.Now(),
	}
	if err := h.postings.Create(posting); err != nil {
		return fmt.Errorf("failed to record job posting: %w", err)
	}

	h.logger.Info("job published",
		zap.String("job_id", job.ID.String()),
		zap.String("provider", h.publisher.Provider()),
		zap.String("external_id", externalID),
	)
	return nil
}

// FailPublish records the failed posting attempt. The job keeps its
// COMPLETED status regardless.
func (h *PipelineHandlers) FailPublish(ctx context.Context, task queue.Task, taskErr error) {
	msg := taskErr.Error()
	posting := &models.ExternalJobPosting{
		ID:       uuid.New(),
		TenantID: task.TenantID,
		JobID:    task.EntityID,
		Provider: h.publisher.Provider(),
		Status:   models.PostingStatusFailed,
		Error:    &msg,
		PostedAt: time.Now(),
	}
	if err := h.postings.Create(posting); err != nil {
		h.logger.Error("failed to record failed posting",
			zap.String("job_id", task.EntityID.String()),
			zap.Error(err),
		)
	}
}
