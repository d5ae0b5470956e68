package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"starscreen/screening/internal/models"
)

// JobBoardPublisher posts a completed job to an external job board. The OAuth
// dance and provider API live outside this module; implementations here only
// need to return the provider's posting id.
type JobBoardPublisher interface {
	Provider() string
	PostJob(ctx context.Context, job *models.Job, config *models.JobConfig) (string, error)
}

type logPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher is the default publisher used when no job board integration
// is configured. It records the posting locally and succeeds.
func NewLogPublisher(logger *zap.Logger) JobBoardPublisher {
	return &logPublisher{logger: logger}
}

func (p *logPublisher) Provider() string {
	return "log"
}

func (p *logPublisher) PostJob(ctx context.Context, job *models.Job, config *models.JobConfig) (string, error) {
	if config == nil {
		return "", fmt.Errorf("job %s has no config to publish", job.ID)
	}

	externalID := fmt.Sprintf("log-%s", uuid.New().String())
	p.logger.Info("published job posting",
		zap.String("job_id", job.ID.String()),
		zap.String("external_id", externalID),
		zap.String("title", job.Title),
	)
	return externalID, nil
}
