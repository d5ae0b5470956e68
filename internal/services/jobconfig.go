package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"starscreen/screening/internal/models"
)

// ConfigGenerator turns a job title and description into a validated scoring
// taxonomy. Retries are handled internally (malformed JSON included, since
// occasional sampling noise does recover on a re-roll); the error it finally
// returns is terminal for the job.
type ConfigGenerator interface {
	GenerateConfig(ctx context.Context, title, description string) (*models.JobConfig, error)
}

type configGenerator struct {
	inference     InferenceClient
	promptBuilder *PromptBuilder
	maxRetries    int
	initialDelay  time.Duration
	logger        *zap.Logger
}

func NewConfigGenerator(inference InferenceClient, maxRetries int, initialDelay time.Duration, logger *zap.Logger) ConfigGenerator {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if initialDelay <= 0 {
		initialDelay = time.Second
	}
	return &configGenerator{
		inference:     inference,
		promptBuilder: NewPromptBuilder(),
		maxRetries:    maxRetries,
		initialDelay:  initialDelay,
		logger:        logger,
	}
}

func (g *configGenerator) GenerateConfig(ctx context.Context, title, description string) (*models.JobConfig, error) {
	system, user := g.promptBuilder.BuildJobConfigPrompt(title, description)

	var lastErr error
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		config, err := g.generateOnce(ctx, system, user)
		if err == nil {
			g.logger.Info("generated job config",
				zap.String("title", title),
				zap.Int("categories", len(config.Categories)),
			)
			return config, nil
		}

		lastErr = err
		g.logger.Warn("job config generation attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.maxRetries),
			zap.Error(err),
		)

		if attempt == g.maxRetries {
			break
		}

		// Backoff 1s, 2s, 4s between attempts.
		wait := g.initialDelay << (attempt - 1)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("job config generation cancelled: %w", ctx.Err())
		case <-time.After(wait):
		}
	}

	// Exhaustion is terminal even when the last failure was transient; the
	// retry budget for this operation lives here, not in the orchestrator.
	if IsRetryable(lastErr) {
		return nil, fmt.Errorf("failed to generate job config after %d attempts: %v", g.maxRetries, lastErr)
	}
	return nil, fmt.Errorf("failed to generate job config after %d attempts: %w", g.maxRetries, lastErr)
}

func (g *configGenerator) generateOnce(ctx context.Context, system, user string) (*models.JobConfig, error) {
	raw, err := g.inference.GenerateJSONObject(ctx, system, user)
	if err != nil {
		return nil, err
	}

	var config models.JobConfig
	if err := json.Unmarshal([]byte(extractJSON(raw)), &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if err := validateJobConfig(&config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &config, nil
}

func validateJobConfig(config *models.JobConfig) error {
	if strings.TrimSpace(config.SeniorityLevel) == "" {
		return fmt.Errorf("missing seniority_level")
	}
	if len(config.CoreResponsibilities) == 0 {
		return fmt.Errorf("missing core_responsibilities")
	}
	if len(config.EducationPreferences) == 0 {
		return fmt.Errorf("missing education_preferences")
	}
	if n := len(config.Categories); n < 4 || n > 8 {
		return fmt.Errorf("expected 4-8 categories, got %d", n)
	}

	for _, cat := range config.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return fmt.Errorf("category with empty name")
		}
		if cat.Importance < 1 || cat.Importance > 5 {
			return fmt.Errorf("category %q importance %d out of range 1-5", cat.Name, cat.Importance)
		}
		if n := len(cat.ExamplesOfEvidence); n < 3 || n > 5 {
			return fmt.Errorf("category %q expected 3-5 evidence examples, got %d", cat.Name, n)
		}
	}

	return nil
}
