package models

import (
	"fmt"
	"time"
)

// JobStatus is the state of an analysis job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// AnalysisJob is the durable record of one analysis run for one post.
type AnalysisJob struct {
	ID              string     `json:"id" badgerhold:"key"`
	PostID          string     `json:"post_id" badgerhold:"index"`
	UserID          string     `json:"user_id" badgerhold:"index"`
	Status          JobStatus  `json:"status" badgerhold:"index"`
	Progress        int        `json:"progress"`
	CurrentStep     int        `json:"current_step"`
	TotalSteps      int        `json:"total_steps"`
	StepDescription string     `json:"step_description,omitempty"`
	TotalComments   int        `json:"total_comments"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// Validate checks the fields required for a durable insert.
func (j *AnalysisJob) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if j.PostID == "" {
		return fmt.Errorf("post ID is required")
	}
	if j.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if j.Progress < 0 || j.Progress > 100 {
		return fmt.Errorf("progress must be within 0-100, got %d", j.Progress)
	}
	return nil
}

// MarkRunning transitions the job to RUNNING, stamping StartedAt on
// the first transition only.
func (j *AnalysisJob) MarkRunning() {
	j.Status = JobStatusRunning
	if j.StartedAt == nil {
		now := time.Now().UTC()
		j.StartedAt = &now
	}
}

// MarkCompleted transitions the job to COMPLETED with full progress.
func (j *AnalysisJob) MarkCompleted() {
	j.Status = JobStatusCompleted
	j.Progress = 100
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// MarkFailed transitions the job to FAILED with the final error.
func (j *AnalysisJob) MarkFailed(errorMessage string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errorMessage
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// MarkCancelled transitions the job to CANCELLED.
func (j *AnalysisJob) MarkCancelled() {
	j.Status = JobStatusCancelled
	now := time.Now().UTC()
	j.CompletedAt = &now
}

// IsTerminal reports whether the job has reached a terminal status.
func (j *AnalysisJob) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// ApplyProgress merges a progress report. Progress is monotonic within
// a job's lifetime: a report lower than the current value raises
// nothing, only the step metadata is updated.
func (j *AnalysisJob) ApplyProgress(update ProgressUpdate) {
	if update.Progress > j.Progress {
		j.Progress = update.Progress
	}
	if update.TotalSteps > 0 {
		j.TotalSteps = update.TotalSteps
	}
	if update.CurrentStep > 0 {
		j.CurrentStep = update.CurrentStep
	}
	if update.StepDescription != "" {
		j.StepDescription = update.StepDescription
	}
}

// ProgressUpdate is an incremental progress report from the processor.
type ProgressUpdate struct {
	Progress        int    `json:"progress"`
	TotalSteps      int    `json:"total_steps,omitempty"`
	CurrentStep     int    `json:"current_step,omitempty"`
	StepDescription string `json:"step_description,omitempty"`
}

// PostSummary is the denormalized post info attached to job views.
type PostSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title,omitempty"`
	CommentCount int    `json:"comment_count,omitempty"`
}

// JobView is the read-only projection returned to status consumers.
type JobView struct {
	ID              string       `json:"id"`
	PostID          string       `json:"post_id"`
	UserID          string       `json:"user_id"`
	Status          JobStatus    `json:"status"`
	Progress        int          `json:"progress"`
	CurrentStep     int          `json:"current_step"`
	TotalSteps      int          `json:"total_steps"`
	StepDescription string       `json:"step_description,omitempty"`
	ErrorMessage    string       `json:"error_message,omitempty"`
	Post            *PostSummary `json:"post,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	StartedAt       *time.Time   `json:"started_at,omitempty"`
	CompletedAt     *time.Time   `json:"completed_at,omitempty"`
}

// View projects the job into its read-only form.
func (j *AnalysisJob) View() *JobView {
	return &JobView{
		ID:              j.ID,
		PostID:          j.PostID,
		UserID:          j.UserID,
		Status:          j.Status,
		Progress:        j.Progress,
		CurrentStep:     j.CurrentStep,
		TotalSteps:      j.TotalSteps,
		StepDescription: j.StepDescription,
		ErrorMessage:    j.ErrorMessage,
		Post: &PostSummary{
			ID:           j.PostID,
			CommentCount: j.TotalComments,
		},
		CreatedAt: j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}

// QueueStats is a snapshot of the scheduler's in-process queue.
type QueueStats struct {
	Waiting           int  `json:"waiting"`
	Active            int  `json:"active"`
	MaxConcurrent     int  `json:"max_concurrent"`
	ProcessorAttached bool `json:"processor_attached"`
}
