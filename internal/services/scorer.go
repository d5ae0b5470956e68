package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"starscreen/screening/internal/models"
)

// Scorer grades a resume against a job's taxonomy. The AI produces
// per-category integer grades and narrative text only; the headline match
// score is computed here, in auditable code, from the taxonomy's importance
// weights.
type Scorer interface {
	Score(ctx context.Context, resumeText string, config *models.JobConfig, wantContact bool) (*ScoringOutcome, error)
}

// ScoringOutcome is one complete scoring run, ready to be persisted as an
// Evaluation plus an optional contact patch.
type ScoringOutcome struct {
	MatchScore     float64
	CategoryScores models.CategoryScores
	Summary        string
	Pros           []string
	Cons           []string
	Contact        *ContactInfo
}

// ContactInfo is the structured contact block the AI may extract from a
// resume. Empty fields mean the resume did not state them.
type ContactInfo struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Location     string `json:"location"`
	LinkedinURL  string `json:"linkedin_url"`
	GithubURL    string `json:"github_url"`
	PortfolioURL string `json:"portfolio_url"`
}

type scoringService struct {
	inference     InferenceClient
	promptBuilder *PromptBuilder
	logger        *zap.Logger
}

func NewScoringService(inference InferenceClient, logger *zap.Logger) Scorer {
	return &scoringService{
		inference:     inference,
		promptBuilder: NewPromptBuilder(),
		logger:        logger,
	}
}

type scoringResponse struct {
	CategoryScores map[string]models.CategoryScore `json:"category_scores"`
	Summary        string                          `json:"summary"`
	Pros           []string                        `json:"pros"`
	Cons           []string                        `json:"cons"`
	Contact        *ContactInfo                    `json:"contact"`
}

func (s *scoringService) Score(ctx context.Context, resumeText string, config *models.JobConfig, wantContact bool) (*ScoringOutcome, error) {
	if config == nil {
		return nil, fmt.Errorf("job config is required for scoring")
	}

	system, user := s.promptBuilder.BuildScoringPrompt(config, resumeText, wantContact)

	raw, err := s.inference.GenerateJSON(ctx, system, user, scoringSchema(config.Categories, wantContact))
	if err != nil {
		return nil, fmt.Errorf("candidate scoring call failed: %w", err)
	}

	resp, err := parseScoringResponse(raw)
	if err != nil {
		return nil, err
	}

	matchScore, missing := computeMatchScore(config.Categories, resp.CategoryScores)
	for _, name := range missing {
		s.logger.Warn("inference response omitted taxonomy category, scored as 0",
			zap.String("category", name),
		)
	}

	// Keep only grades for categories the taxonomy defines; the AI does not
	// get to invent scoring dimensions.
	kept := make(models.CategoryScores, len(config.Categories))
	for _, cat := range config.Categories {
		if grade, ok := lookupGrade(resp.CategoryScores, cat.Name); ok {
			kept[cat.Name] = grade
		} else {
			kept[cat.Name] = models.CategoryScore{Score: 0, Reasoning: "not addressed in the AI evaluation"}
		}
	}

	return &ScoringOutcome{
		MatchScore:     matchScore,
		CategoryScores: kept,
		Summary:        resp.Summary,
		Pros:           resp.Pros,
		Cons:           resp.Cons,
		Contact:        resp.Contact,
	}, nil
}

func parseScoringResponse(raw string) (*scoringResponse, error) {
	var resp scoringResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	// Parse-then-validate: missing narrative fields mean the model broke the
	// schema, and an identical retry would break it the same way.
	if strings.TrimSpace(resp.Summary) == "" {
		return nil, fmt.Errorf("%w: missing summary", ErrMalformedResponse)
	}
	if resp.Pros == nil {
		return nil, fmt.Errorf("%w: missing pros", ErrMalformedResponse)
	}
	if resp.Cons == nil {
		return nil, fmt.Errorf("%w: missing cons", ErrMalformedResponse)
	}

	for name, grade := range resp.CategoryScores {
		if grade.Score < 0 || grade.Score > 100 {
			return nil, fmt.Errorf("%w: category %q score %d out of range", ErrMalformedResponse, name, grade.Score)
		}
	}

	return &resp, nil
}

// computeMatchScore is the deterministic importance-weighted average over the
// taxonomy. The taxonomy, not the AI response, decides which categories count:
// an omitted category contributes 0 while its importance stays in the
// denominator. The result is rounded to one decimal and clamped to [0,100].
func computeMatchScore(categories []models.JobCategory, grades map[string]models.CategoryScore) (float64, []string) {
	var weightSum, weighted float64
	var missing []string

	for _, cat := range categories {
		weightSum += float64(cat.Importance)

		grade, ok := lookupGrade(grades, cat.Name)
		if !ok {
			missing = append(missing, cat.Name)
			continue
		}
		weighted += float64(grade.Score) * float64(cat.Importance)
	}

	if weightSum == 0 {
		return 0, missing
	}

	score := math.Round(weighted/weightSum*10) / 10
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, missing
}

// lookupGrade matches a taxonomy category to an AI grade by exact name, then
// case-insensitively.
func lookupGrade(grades map[string]models.CategoryScore, name string) (models.CategoryScore, bool) {
	if grade, ok := grades[name]; ok {
		return grade, true
	}
	for k, grade := range grades {
		if strings.EqualFold(k, name) {
			return grade, true
		}
	}
	return models.CategoryScore{}, false
}

// MergeContact applies the first-writer-wins contact policy: extracted fields
// only fill candidate fields that are still empty. Returns whether any field
// changed.
func MergeContact(c *models.Candidate, info *ContactInfo) bool {
	if info == nil {
		return false
	}

	changed := false
	apply := func(dst **string, v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if *dst != nil && strings.TrimSpace(**dst) != "" {
			return
		}
		*dst = &v
		changed = true
	}

	apply(&c.FirstName, info.FirstName)
	apply(&c.LastName, info.LastName)
	apply(&c.Email, info.Email)
	apply(&c.Phone, info.Phone)
	apply(&c.Location, info.Location)
	apply(&c.LinkedinURL, info.LinkedinURL)
	apply(&c.GithubURL, info.GithubURL)
	apply(&c.PortfolioURL, info.PortfolioURL)

	return changed
}

// scoringSchema builds the strict response schema for one scoring call. The
// category properties are generated from the taxonomy so the model must grade
// exactly the categories that count.
func scoringSchema(categories []models.JobCategory, wantContact bool) *genai.Schema {
	gradeSchema := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"score":     {Type: genai.TypeInteger, Description: "0-100 grade for this category"},
			"reasoning": {Type: genai.TypeString},
		},
		Required: []string{"score", "reasoning"},
	}

	categoryProps := make(map[string]*genai.Schema, len(categories))
	categoryNames := make([]string, 0, len(categories))
	for _, cat := range categories {
		categoryProps[cat.Name] = gradeSchema
		categoryNames = append(categoryNames, cat.Name)
	}

	props := map[string]*genai.Schema{
		"category_scores": {
			Type:       genai.TypeObject,
			Properties: categoryProps,
			Required:   categoryNames,
		},
		"summary": {Type: genai.TypeString},
		"pros":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		"cons":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
	}
	required := []string{"category_scores", "summary", "pros", "cons"}

	if wantContact {
		props["contact"] = &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"first_name":    {Type: genai.TypeString},
				"last_name":     {Type: genai.TypeString},
				"email":         {Type: genai.TypeString},
				"phone":         {Type: genai.TypeString},
				"location":      {Type: genai.TypeString},
				"linkedin_url":  {Type: genai.TypeString},
				"github_url":    {Type: genai.TypeString},
				"portfolio_url": {Type: genai.TypeString},
			},
		}
	}

	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: props,
		Required:   required,
	}
}
