package repositories

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"starscreen/screening/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// Explicit DDL: the production schema relies on postgres defaults that
	// sqlite cannot express.
	for _, stmt := range []string{
		`CREATE TABLE jobs (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			location TEXT,
			work_authorization_required INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'PENDING',
			error_message TEXT,
			config TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE candidates (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			job_id TEXT NOT NULL,
			first_name TEXT,
			last_name TEXT,
			email TEXT,
			phone TEXT,
			location TEXT,
			linkedin_url TEXT,
			github_url TEXT,
			portfolio_url TEXT,
			file_ref TEXT NOT NULL,
			original_filename TEXT NOT NULL,
			resume_text TEXT,
			status TEXT NOT NULL DEFAULT 'UPLOADED',
			error_message TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE evaluations (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			candidate_id TEXT NOT NULL UNIQUE,
			match_score REAL NOT NULL,
			category_scores TEXT NOT NULL,
			summary TEXT NOT NULL,
			pros TEXT,
			cons TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	} {
		require.NoError(t, db.Exec(stmt).Error)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedJob(t *testing.T, db *gorm.DB) *models.Job {
	t.Helper()
	job := &models.Job{
		ID:          uuid.New(),
		TenantID:    uuid.New(),
		Title:       "Backend Engineer",
		Description: "Build services.",
		Status:      models.JobStatusPending,
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

func seedCandidate(t *testing.T, db *gorm.DB, jobID uuid.UUID, status models.CandidateStatus) *models.Candidate {
	t.Helper()
	candidate := &models.Candidate{
		ID:               uuid.New(),
		TenantID:         uuid.New(),
		JobID:            jobID,
		FileRef:          "ref-" + uuid.NewString(),
		OriginalFilename: "resume.pdf",
		Status:           status,
	}
	require.NoError(t, db.Create(candidate).Error)
	return candidate
}

func TestJobLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	job := seedJob(t, db)

	require.NoError(t, repo.MarkProcessing(job.ID))
	got, err := repo.FindByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)

	config := &models.JobConfig{
		Title:          "Backend Engineer",
		SeniorityLevel: "senior",
		Categories: []models.JobCategory{
			{Name: "Backend", Importance: 5},
		},
	}
	require.NoError(t, repo.CompleteWithConfig(job.ID, config))

	got, err = repo.FindByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	require.NotNil(t, got.Config)
	assert.Equal(t, "senior", got.Config.SeniorityLevel)
	assert.Nil(t, got.ErrorMessage)
}

func TestJobMarkFailedStoresMessage(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)
	job := seedJob(t, db)

	require.NoError(t, repo.MarkFailed(job.ID, "generation exhausted"))

	got, err := repo.FindByID(job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "generation exhausted", *got.ErrorMessage)
}

func TestJobUpdateMissingRow(t *testing.T) {
	db := newTestDB(t)
	repo := NewJobRepository(db)

	assert.Error(t, repo.MarkProcessing(uuid.New()))
}

func TestCandidateParseLifecycle(t *testing.T) {
	db := newTestDB(t)
	repo := NewCandidateRepository(db)
	job := seedJob(t, db)
	candidate := seedCandidate(t, db, job.ID, models.CandidateStatusUploaded)

	require.NoError(t, repo.MarkProcessing(candidate.ID))
	require.NoError(t, repo.CompleteParse(candidate.ID, "extracted resume text"))

	got, err := repo.FindByID(candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusParsed, got.Status)
	require.NotNil(t, got.ResumeText)
	assert.Equal(t, "extracted resume text", *got.ResumeText)
	assert.Nil(t, got.ErrorMessage)
}

func TestCandidateMarkFailedClearsOnReprocessing(t *testing.T) {
	db := newTestDB(t)
	repo := NewCandidateRepository(db)
	job := seedJob(t, db)
	candidate := seedCandidate(t, db, job.ID, models.CandidateStatusProcessing)

	require.NoError(t, repo.MarkFailed(candidate.ID, "scanned image"))
	got, err := repo.FindByID(candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)

	// A fresh processing attempt wipes the stale error.
	require.NoError(t, repo.MarkProcessing(candidate.ID))
	got, err = repo.FindByID(candidate.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ErrorMessage)
}

func TestCandidateListByJobFiltersStatus(t *testing.T) {
	db := newTestDB(t)
	repo := NewCandidateRepository(db)
	job := seedJob(t, db)

	seedCandidate(t, db, job.ID, models.CandidateStatusScored)
	seedCandidate(t, db, job.ID, models.CandidateStatusScored)
	seedCandidate(t, db, job.ID, models.CandidateStatusFailed)
	seedCandidate(t, db, uuid.New(), models.CandidateStatusScored)

	all, err := repo.ListByJob(job.ID, nil, 0, 50)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	scored := models.CandidateStatusScored
	filtered, err := repo.ListByJob(job.ID, &scored, 0, 50)
	require.NoError(t, err)
	assert.Len(t, filtered, 2)
}

func TestSaveScoringResult(t *testing.T) {
	db := newTestDB(t)
	repo := NewEvaluationRepository(db)
	job := seedJob(t, db)
	candidate := seedCandidate(t, db, job.ID, models.CandidateStatusProcessing)

	first := strptr("Dana")
	candidate.FirstName = first
	evaluation := &models.Evaluation{
		ID:          uuid.New(),
		TenantID:    candidate.TenantID,
		CandidateID: candidate.ID,
		MatchScore:  73.3,
		CategoryScores: models.CategoryScores{
			"Backend": {Score: 80, Reasoning: "strong"},
		},
		Summary: "Solid profile.",
		Pros:    models.StringList{"Go"},
		Cons:    models.StringList{"No frontend"},
	}

	require.NoError(t, repo.SaveScoringResult(evaluation, candidate))

	got, err := repo.FindByCandidateID(candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, 73.3, got.MatchScore)

	candidateRepo := NewCandidateRepository(db)
	updated, err := candidateRepo.FindByID(candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CandidateStatusScored, updated.Status)
	require.NotNil(t, updated.FirstName)
	assert.Equal(t, "Dana", *updated.FirstName)
}

func TestSaveScoringResultReplacesOnRescore(t *testing.T) {
	db := newTestDB(t)
	repo := NewEvaluationRepository(db)
	job := seedJob(t, db)
	candidate := seedCandidate(t, db, job.ID, models.CandidateStatusProcessing)

	base := func(score float64) *models.Evaluation {
		return &models.Evaluation{
			ID:             uuid.New(),
			TenantID:       candidate.TenantID,
			CandidateID:    candidate.ID,
			MatchScore:     score,
			CategoryScores: models.CategoryScores{"Backend": {Score: int(score)}},
			Summary:        "summary",
			Pros:           models.StringList{},
			Cons:           models.StringList{},
		}
	}

	require.NoError(t, repo.SaveScoringResult(base(60), candidate))
	require.NoError(t, repo.SaveScoringResult(base(85), candidate))

	var count int64
	require.NoError(t, db.Model(&models.Evaluation{}).Where("candidate_id = ?", candidate.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := repo.FindByCandidateID(candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, 85.0, got.MatchScore)
}

func strptr(s string) *string { return &s }
