package domain

import "time"

// ProcessingState is the stage a file currently occupies in the
// vectorization (or deletion) workflow. States only move forward along
// the pipeline order, except that any stage may jump to StateFailed.
type ProcessingState string

const (
	StateUploading   ProcessingState = "uploading"
	StateProcessing  ProcessingState = "processing"
	StateVectorizing ProcessingState = "vectorizing"
	StateCompleted   ProcessingState = "completed"
	StateFailed      ProcessingState = "failed"
	StateDeleting    ProcessingState = "deleting"
)

// ProcessingStatus is the per-(user, file) progress record the frontend
// polls while a document is in flight.
type ProcessingStatus struct {
	UserID             string
	FileName           string
	Status             ProcessingState
	ProgressPercentage int
	ErrorMessage       string
	// FileID and VectorStoreID are the external service handles, echoed
	// into the record so later deletion can find them.
	FileID        string
	VectorStoreID string
	StartedAt     time.Time
	CompletedAt   time.Time
	UpdatedAt     time.Time
}

// StatusUpdate is one merge write against a ProcessingStatus record.
// Only the fields an update actually carries are applied; everything
// else on the stored record is left untouched.
type StatusUpdate struct {
	Status        ProcessingState
	ErrorMessage  string
	Progress      *int
	FileID        string
	VectorStoreID string
}
