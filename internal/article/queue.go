package article

import (
	"context"
	"time"
)

// StatusStore is the ephemeral per-job status slot. Updates merge into the
// stored value and reset its retention window.
type StatusStore interface {
	GetStatus(ctx context.Context, jobID string) (*JobStatus, error)
	UpdateStatus(ctx context.Context, jobID string, patch StatusPatch) error
}

// Queue is the job transport: a FIFO list plus the status channel. Dequeue
// blocks up to timeout and returns (nil, nil) when nothing arrived, so the
// worker loop can re-check shutdown. Malformed payloads come back as a
// *ValidationError.
type Queue interface {
	StatusStore
	Enqueue(ctx context.Context, job *JobContext) error
	Dequeue(ctx context.Context, timeout time.Duration) (*JobContext, error)
}
