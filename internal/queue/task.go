package queue

import (
	"github.com/google/uuid"
)

type TaskType string

const (
	TaskJobConfig      TaskType = "job_config"
	TaskResumeParse    TaskType = "resume_parse"
	TaskCandidateScore TaskType = "candidate_score"
	TaskJobPublish     TaskType = "job_publish"
)

// Task is the JSON payload carried through the queue. EntityID is the job or
// candidate the task operates on; Attempt counts transient retries.
type Task struct {
	ID       string    `json:"id"`
	Type     TaskType  `json:"type"`
	EntityID uuid.UUID `json:"entity_id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Attempt  int       `json:"attempt"`
	// Publish asks the job_config handler to chain a job_publish task on
	// success.
	Publish bool `json:"publish,omitempty"`
}

// NewTask builds a task with a fresh task id.
func NewTask(taskType TaskType, entityID, tenantID uuid.UUID) Task {
	return Task{
		ID:       uuid.New().String(),
		Type:     taskType,
		EntityID: entityID,
		TenantID: tenantID,
	}
}
