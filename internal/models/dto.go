package models

import "time"

type CreateJobRequest struct {
	Title                     string  `json:"title"`
	Description               string  `json:"description"`
	Location                  *string `json:"location,omitempty"`
	WorkAuthorizationRequired bool    `json:"work_authorization_required"`
	PostToBoard               bool    `json:"post_to_board"`
}

type CreateJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type UploadCandidateResponse struct {
	CandidateID string `json:"candidate_id"`
	JobID       string `json:"job_id"`
	Status      string `json:"status"`
}

// CandidateListItem flattens a candidate with its score for list views.
// Score is nil until the candidate reaches SCORED.
type CandidateListItem struct {
	ID               string    `json:"id"`
	JobID            string    `json:"job_id"`
	FirstName        *string   `json:"first_name,omitempty"`
	LastName         *string   `json:"last_name,omitempty"`
	Email            *string   `json:"email,omitempty"`
	OriginalFilename string    `json:"original_filename"`
	Status           string    `json:"status"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
	Score            *float64  `json:"score,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type EvaluationResponse struct {
	MatchScore     float64        `json:"match_score"`
	CategoryScores CategoryScores `json:"category_scores"`
	Summary        string         `json:"summary"`
	Pros           []string       `json:"pros"`
	Cons           []string       `json:"cons"`
	CreatedAt      time.Time      `json:"created_at"`
}
