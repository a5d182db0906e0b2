package queue

import (
	"context"
	"time"
)

// Status tracks a job through its lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job types handled by the capture pipeline. The queue itself is agnostic;
// these are the types the save workflow registers handlers for.
const (
	TypeClassify    = "classify"
	TypeImageUpload = "image_upload"
)

// HandlerFunc executes one job attempt and returns its result.
type HandlerFunc func(ctx context.Context, payload interface{}) (interface{}, error)

// Job is a unit of asynchronous work owned by the queue until terminal.
type Job struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"-"`
	Status    Status      `json:"status"`
	Attempts  int         `json:"attempts"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Error     string      `json:"error,omitempty"`
	Result    interface{} `json:"result,omitempty"`

	// notBefore delays re-claim after a transient failure.
	notBefore time.Time
}

// Stats is an on-demand aggregate snapshot of the queue.
type Stats struct {
	Total             int `json:"total"`
	Pending           int `json:"pending"`
	Processing        int `json:"processing"`
	Completed         int `json:"completed"`
	Failed            int `json:"failed"`
	CurrentProcessing int `json:"currentProcessing"`
	MaxConcurrency    int `json:"maxConcurrency"`
}

// Clock abstracts time so tests can drive retries with a virtual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func())
}

type realClock struct{}

func (realClock) Now() time.Time                      { return time.Now().UTC() }
func (realClock) AfterFunc(d time.Duration, f func()) { time.AfterFunc(d, f) }
