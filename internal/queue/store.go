package queue

import "context"

// Store persists jobs so queued submissions survive terminal restarts.
// PutJob is atomic per job: a reader never observes a job with a partial
// attachment set. DeleteJob of a missing key is a no-op, which makes the
// accepted race between a daemon sync pass and a detached -sync-once pass
// harmless.
type Store interface {
	PutJob(ctx context.Context, job *Job) error
	// GetJob returns ErrJobNotFound for a missing key and a
	// *MalformedJobError for a row that no longer decodes.
	GetJob(ctx context.Context, key int64) (*Job, error)
	DeleteJob(ctx context.Context, key int64) error
	// ListKeys returns all stored keys in implementation-defined order;
	// callers apply delivery ordering themselves.
	ListKeys(ctx context.Context) ([]int64, error)
	CountJobs(ctx context.Context) (int, error)
}
