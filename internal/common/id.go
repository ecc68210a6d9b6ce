package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
// Format: job_<uuid>
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewResultID generates a unique analysis result ID with the "res_" prefix
func NewResultID() string {
	return "res_" + uuid.New().String()
}
