package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"starscreen/screening/internal/models"
)

type fakeInference struct {
	response string
	err      error
	calls    int
	// responses, when set, is consumed one per call.
	responses []string
	errs      []error
}

func (f *fakeInference) GenerateJSON(ctx context.Context, system, user string, schema *genai.Schema) (string, error) {
	return f.next()
}

func (f *fakeInference) GenerateJSONObject(ctx context.Context, system, user string) (string, error) {
	return f.next()
}

func (f *fakeInference) next() (string, error) {
	i := f.calls
	f.calls++
	if len(f.responses) > 0 || len(f.errs) > 0 {
		var resp string
		var err error
		if i < len(f.responses) {
			resp = f.responses[i]
		}
		if i < len(f.errs) {
			err = f.errs[i]
		}
		return resp, err
	}
	return f.response, f.err
}

func taxonomy(pairs ...interface{}) []models.JobCategory {
	var cats []models.JobCategory
	for i := 0; i < len(pairs); i += 2 {
		cats = append(cats, models.JobCategory{
			Name:       pairs[i].(string),
			Importance: pairs[i+1].(int),
		})
	}
	return cats
}

func TestComputeMatchScore(t *testing.T) {
	tests := []struct {
		name       string
		categories []models.JobCategory
		grades     map[string]models.CategoryScore
		want       float64
	}{
		{
			name:       "weighted average rounds to one decimal",
			categories: taxonomy("Backend", 5, "Communication", 1),
			grades: map[string]models.CategoryScore{
				"Backend":       {Score: 80},
				"Communication": {Score: 40},
			},
			want: 73.3,
		},
		{
			name:       "omitted category scores zero but keeps its weight",
			categories: taxonomy("Backend", 5, "Databases", 3, "Communication", 1),
			grades: map[string]models.CategoryScore{
				"Backend":       {Score: 90},
				"Communication": {Score: 100},
			},
			want: 61.1,
		},
		{
			name:       "empty taxonomy scores zero",
			categories: nil,
			grades:     map[string]models.CategoryScore{},
			want:       0,
		},
		{
			name:       "all categories graded equally",
			categories: taxonomy("A", 2, "B", 2),
			grades: map[string]models.CategoryScore{
				"A": {Score: 70},
				"B": {Score: 70},
			},
			want: 70,
		},
		{
			name:       "case insensitive fallback match",
			categories: taxonomy("Backend Engineering", 3),
			grades: map[string]models.CategoryScore{
				"backend engineering": {Score: 60},
			},
			want: 60,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := computeMatchScore(tt.categories, tt.grades)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeMatchScoreOrderIndependent(t *testing.T) {
	grades := map[string]models.CategoryScore{
		"A": {Score: 55},
		"B": {Score: 80},
		"C": {Score: 20},
	}

	forward, _ := computeMatchScore(taxonomy("A", 1, "B", 4, "C", 2), grades)
	reversed, _ := computeMatchScore(taxonomy("C", 2, "B", 4, "A", 1), grades)
	assert.Equal(t, forward, reversed)
}

func TestComputeMatchScoreReportsMissing(t *testing.T) {
	score, missing := computeMatchScore(
		taxonomy("Backend", 4, "Frontend", 4),
		map[string]models.CategoryScore{"Backend": {Score: 80}},
	)
	assert.Equal(t, 40.0, score)
	assert.Equal(t, []string{"Frontend"}, missing)
}

func TestParseScoringResponse(t *testing.T) {
	valid := `{
		"category_scores": {"Backend": {"score": 80, "reasoning": "strong"}},
		"summary": "Solid backend profile.",
		"pros": ["Go experience"],
		"cons": ["No frontend work"]
	}`

	resp, err := parseScoringResponse(valid)
	require.NoError(t, err)
	assert.Equal(t, 80, resp.CategoryScores["Backend"].Score)
	assert.Equal(t, "Solid backend profile.", resp.Summary)

	t.Run("markdown fenced json is accepted", func(t *testing.T) {
		_, err := parseScoringResponse("```json\n" + valid + "\n```")
		assert.NoError(t, err)
	})

	t.Run("invalid json is malformed", func(t *testing.T) {
		_, err := parseScoringResponse("not json at all")
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("missing summary is malformed", func(t *testing.T) {
		_, err := parseScoringResponse(`{"category_scores": {}, "summary": "", "pros": [], "cons": []}`)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})

	t.Run("score out of range is malformed", func(t *testing.T) {
		_, err := parseScoringResponse(`{
			"category_scores": {"Backend": {"score": 140, "reasoning": "x"}},
			"summary": "ok", "pros": [], "cons": []
		}`)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestScoreComputesFinalScoreLocally(t *testing.T) {
	// The AI grades a category at 100; the deterministic weighting must
	// still decide the headline number.
	inference := &fakeInference{response: `{
		"category_scores": {
			"Backend": {"score": 100, "reasoning": "excellent"},
			"Communication": {"score": 0, "reasoning": "no evidence"}
		},
		"summary": "Strong engineer.",
		"pros": ["Deep Go experience"],
		"cons": ["No communication signals"]
	}`}

	scorer := NewScoringService(inference, zap.NewNop())
	config := &models.JobConfig{Categories: taxonomy("Backend", 2, "Communication", 1)}

	outcome, err := scorer.Score(context.Background(), "resume text", config, false)
	require.NoError(t, err)
	assert.Equal(t, 66.7, outcome.MatchScore)
	assert.Equal(t, "Strong engineer.", outcome.Summary)
	assert.Len(t, outcome.CategoryScores, 2)
}

func TestScoreDropsUnknownCategories(t *testing.T) {
	inference := &fakeInference{response: `{
		"category_scores": {
			"Backend": {"score": 50, "reasoning": "some"},
			"Invented Dimension": {"score": 100, "reasoning": "made up"}
		},
		"summary": "ok", "pros": [], "cons": []
	}`}

	scorer := NewScoringService(inference, zap.NewNop())
	config := &models.JobConfig{Categories: taxonomy("Backend", 1)}

	outcome, err := scorer.Score(context.Background(), "resume", config, false)
	require.NoError(t, err)
	assert.Equal(t, 50.0, outcome.MatchScore)
	assert.Contains(t, outcome.CategoryScores, "Backend")
	assert.NotContains(t, outcome.CategoryScores, "Invented Dimension")
}

func TestScoreOmittedCategoryDefaultsToZero(t *testing.T) {
	inference := &fakeInference{response: `{
		"category_scores": {"Backend": {"score": 90, "reasoning": "strong"}},
		"summary": "ok", "pros": [], "cons": []
	}`}

	scorer := NewScoringService(inference, zap.NewNop())
	config := &models.JobConfig{Categories: taxonomy("Backend", 3, "Frontend", 3)}

	outcome, err := scorer.Score(context.Background(), "resume", config, false)
	require.NoError(t, err)
	assert.Equal(t, 45.0, outcome.MatchScore)
	assert.Equal(t, 0, outcome.CategoryScores["Frontend"].Score)
}

func TestScorePropagatesInferenceErrors(t *testing.T) {
	transient := Transientf("connection reset")
	inference := &fakeInference{err: transient}

	scorer := NewScoringService(inference, zap.NewNop())
	config := &models.JobConfig{Categories: taxonomy("Backend", 1)}

	_, err := scorer.Score(context.Background(), "resume", config, false)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestScoreMalformedResponseIsNotRetryable(t *testing.T) {
	inference := &fakeInference{response: "garbage"}

	scorer := NewScoringService(inference, zap.NewNop())
	config := &models.JobConfig{Categories: taxonomy("Backend", 1)}

	_, err := scorer.Score(context.Background(), "resume", config, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedResponse))
	assert.False(t, IsRetryable(err))
}

func strptr(s string) *string { return &s }

func TestMergeContactFirstWriterWins(t *testing.T) {
	candidate := &models.Candidate{
		FirstName: strptr("Dana"),
		Email:     strptr("dana@example.com"),
	}

	changed := MergeContact(candidate, &ContactInfo{
		FirstName: "Extracted",
		LastName:  "Smith",
		Email:     "other@example.com",
		Phone:     "+1 555 0100",
	})

	assert.True(t, changed)
	assert.Equal(t, "Dana", *candidate.FirstName)
	assert.Equal(t, "dana@example.com", *candidate.Email)
	assert.Equal(t, "Smith", *candidate.LastName)
	assert.Equal(t, "+1 555 0100", *candidate.Phone)
}

func TestMergeContactIgnoresBlanks(t *testing.T) {
	candidate := &models.Candidate{}
	changed := MergeContact(candidate, &ContactInfo{FirstName: "   ", Email: ""})
	assert.False(t, changed)
	assert.Nil(t, candidate.FirstName)

	assert.False(t, MergeContact(candidate, nil))
}

func TestScoringSchemaRequiresEveryCategory(t *testing.T) {
	schema := scoringSchema(taxonomy("Backend", 1, "Databases", 2), true)

	categoryBlock := schema.Properties["category_scores"]
	require.NotNil(t, categoryBlock)
	assert.ElementsMatch(t, []string{"Backend", "Databases"}, categoryBlock.Required)
	assert.Contains(t, schema.Properties, "contact")

	withoutContact := scoringSchema(taxonomy("Backend", 1), false)
	assert.NotContains(t, withoutContact.Properties, "contact")
}
