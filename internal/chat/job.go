package chat

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job tracks one async assistant-reply request. The reply itself lands in the
// Redis session (and from there the sync engine mirrors it to Postgres); the
// job row only records progress.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"job_id"` // ULID length

	SessionID string `gorm:"size:64;index;not null" json:"session_id"`
	Prompt    string `gorm:"type:text;not null" json:"prompt"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_job_idempo,unique" json:"idempotency_key,omitempty"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	Reply *string `gorm:"type:text" json:"reply,omitempty"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "chat_jobs" }
