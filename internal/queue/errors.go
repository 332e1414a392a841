package queue

import (
	"errors"
	"fmt"
)

// ErrJobNotFound is returned by Store.GetJob for a key that is not stored.
var ErrJobNotFound = errors.New("job not found")

// QueueWriteError means local persistence failed at enqueue time. The
// submission is NOT saved; the form must keep its state and ask the driver
// to retry.
type QueueWriteError struct {
	Err error
}

func (e *QueueWriteError) Error() string {
	return fmt.Sprintf("submission could not be queued: %v", e.Err)
}

func (e *QueueWriteError) Unwrap() error {
	return e.Err
}

// MalformedJobError marks a stored job that fails to decode. It is not
// recovered automatically; the sync pass stops and the row is left in place
// for inspection.
type MalformedJobError struct {
	Key int64
	Err error
}

func (e *MalformedJobError) Error() string {
	return fmt.Sprintf("stored job %d is malformed: %v", e.Key, e.Err)
}

func (e *MalformedJobError) Unwrap() error {
	return e.Err
}
