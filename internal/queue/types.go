package queue

import (
	"time"

	"github.com/vtaylor84-vlt/qlm-bol-uploader-sub000/internal/bol"
)

// SchemaVersion is written into every persisted Job so a future layout
// change never has to guess the shape of old records.
const SchemaVersion = 1

type Status string

const (
	StatusPending Status = "pending"
	// StatusFailed is a soft state: the job stays queued and every trigger
	// retries it.
	StatusFailed Status = "failed"
)

// Job is one queued driver submission awaiting delivery.
type Job struct {
	// Key is the store key and delivery sort key: the creation time in
	// unix nanoseconds, kept monotonic within one process.
	Key           int64            `json:"key"`
	ID            string           `json:"id"`
	SchemaVersion int              `json:"schema_version"`
	Metadata      bol.Metadata     `json:"metadata"`
	Attachments   []bol.Attachment `json:"attachments"`
	Status        Status           `json:"status"`
	AttemptCount  int              `json:"attempt_count"`
	LastError     string           `json:"last_error,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

// LoadID returns the identifier reported to listeners once the job syncs.
func (j *Job) LoadID() string {
	return j.Metadata.LoadID()
}

func cloneJob(job *Job) *Job {
	if job == nil {
		return nil
	}
	tmp := *job
	tmp.Attachments = make([]bol.Attachment, len(job.Attachments))
	copy(tmp.Attachments, job.Attachments)
	return &tmp
}
