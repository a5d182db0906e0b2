package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"synapse/internal/logger"
)

const (
	DefaultConcurrency = 5
	DefaultMaxRetries  = 3
	DefaultRetryBase   = 5 * time.Second

	DefaultCleanupInterval = 10 * time.Minute
	DefaultCleanupMaxAge   = time.Hour
)

// Options configures a Queue. Zero fields fall back to defaults.
type Options struct {
	Concurrency int
	MaxRetries  int
	RetryBase   time.Duration
	Clock       Clock
}

// Queue is an in-memory asynchronous task scheduler with bounded
// concurrency, retry with exponential backoff, and status tracking.
// Jobs do not survive a process restart.
type Queue struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	order    []string            // submission order, drives FIFO claims
	inflight map[string]struct{} // ids currently executing
	done     map[string]chan struct{}
	running  int

	handlers map[string]HandlerFunc

	concurrency int
	maxRetries  int
	retryBase   time.Duration
	clock       Clock

	log *logger.Logger
}

// New creates a queue. Register handlers with Handle before submitting.
func New(opts Options) *Queue {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = DefaultRetryBase
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	return &Queue{
		jobs:        make(map[string]*Job),
		inflight:    make(map[string]struct{}),
		done:        make(map[string]chan struct{}),
		handlers:    make(map[string]HandlerFunc),
		concurrency: opts.Concurrency,
		maxRetries:  opts.MaxRetries,
		retryBase:   opts.RetryBase,
		clock:       opts.Clock,
		log:         logger.New("JobQueue"),
	}
}

// Handle registers the handler for a job type.
func (q *Queue) Handle(jobType string, h HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

// Submit creates a pending job and triggers a scheduling pass. It never
// blocks on execution and fails only on malformed input; an unknown type
// is detected at execution time.
func (q *Queue) Submit(jobType string, payload interface{}) (string, error) {
	if strings.TrimSpace(jobType) == "" {
		return "", fmt.Errorf("job type is required")
	}
	now := q.clock.Now()
	id := fmt.Sprintf("%d-%s", now.UnixMilli(), uuid.NewString()[:8])

	q.mu.Lock()
	q.jobs[id] = &Job{
		ID:        id,
		Type:      jobType,
		Payload:   payload,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	q.order = append(q.order, id)
	q.done[id] = make(chan struct{})
	q.mu.Unlock()

	q.dispatch()
	return id, nil
}

// GetStatus returns a snapshot of one job.
func (q *Queue) GetStatus(id string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Wait blocks until the job reaches a terminal status or ctx is done.
// The job keeps running if ctx expires first; waiting is caller-side only.
func (q *Queue) Wait(ctx context.Context, id string) (Job, error) {
	q.mu.Lock()
	j, ok := q.jobs[id]
	if !ok {
		q.mu.Unlock()
		return Job{}, fmt.Errorf("job not found: %s", id)
	}
	if j.Status.Terminal() {
		snapshot := *j
		q.mu.Unlock()
		return snapshot, nil
	}
	ch := q.done[id]
	q.mu.Unlock()

	select {
	case <-ch:
		j, ok := q.GetStatus(id)
		if !ok {
			return Job{}, fmt.Errorf("job not found: %s", id)
		}
		return j, nil
	case <-ctx.Done():
		return Job{}, fmt.Errorf("waiting for job %s: %w", id, ctx.Err())
	}
}

// Stats computes an aggregate snapshot on demand.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := Stats{
		Total:             len(q.jobs),
		CurrentProcessing: q.running,
		MaxConcurrency:    q.concurrency,
	}
	for _, j := range q.jobs {
		switch j.Status {
		case StatusPending:
			s.Pending++
		case StatusProcessing:
			s.Processing++
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// Cleanup removes terminal jobs whose last transition is older than maxAge.
// Pending and processing jobs are never removed.
func (q *Queue) Cleanup(maxAge time.Duration) int {
	cutoff := q.clock.Now().Add(-maxAge)
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for id, j := range q.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(q.jobs, id)
			delete(q.done, id)
			removed++
		}
	}
	if removed > 0 {
		q.compactOrderLocked()
		q.log.LogDebugf("cleanup removed %d jobs", removed)
	}
	return removed
}

// StartCleanup runs Cleanup on a fixed interval until ctx is done.
func (q *Queue) StartCleanup(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if maxAge <= 0 {
		maxAge = DefaultCleanupMaxAge
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				q.Cleanup(maxAge)
			}
		}
	}()
}

// dispatch claims pending jobs FIFO until the concurrency ceiling is hit
// or no claimable job remains. Safe to call from any goroutine.
func (q *Queue) dispatch() {
	for {
		q.mu.Lock()
		if q.running >= q.concurrency {
			q.mu.Unlock()
			return
		}
		j := q.nextPendingLocked()
		if j == nil {
			q.mu.Unlock()
			return
		}
		q.running++
		q.inflight[j.ID] = struct{}{}
		j.Attempts++
		j.Status = StatusProcessing
		j.UpdatedAt = q.clock.Now()
		h := q.handlers[j.Type]
		id, jobType, payload := j.ID, j.Type, j.Payload
		q.mu.Unlock()

		go q.run(id, jobType, payload, h)
	}
}

func (q *Queue) nextPendingLocked() *Job {
	now := q.clock.Now()
	for _, id := range q.order {
		j, ok := q.jobs[id]
		if !ok {
			continue
		}
		if j.Status != StatusPending {
			continue
		}
		if _, busy := q.inflight[id]; busy {
			continue
		}
		if j.notBefore.After(now) {
			continue
		}
		return j
	}
	return nil
}

// run executes one attempt. The permit is always released, even when the
// handler panics.
func (q *Queue) run(id, jobType string, payload interface{}, h HandlerFunc) {
	var result interface{}
	var err error
	permanent := false

	if h == nil {
		// Unknown type cannot succeed on retry; fail terminally.
		err = fmt.Errorf("unknown job type: %s", jobType)
		permanent = true
	} else {
		result, err = q.invoke(h, payload)
	}
	q.settle(id, result, err, permanent)
}

func (q *Queue) invoke(h HandlerFunc, payload interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(context.Background(), payload)
}

func (q *Queue) settle(id string, result interface{}, err error, permanent bool) {
	q.mu.Lock()
	j, ok := q.jobs[id]
	if ok {
		now := q.clock.Now()
		switch {
		case err == nil:
			j.Status = StatusCompleted
			j.Result = result
			j.UpdatedAt = now
			q.finishLocked(id)
		case permanent || j.Attempts >= q.maxRetries:
			j.Status = StatusFailed
			j.Error = err.Error()
			j.UpdatedAt = now
			q.finishLocked(id)
			q.log.LogErrorf("job %s failed permanently after %d attempts: %v", id, j.Attempts, err)
		default:
			j.Status = StatusPending
			j.Error = err.Error()
			j.UpdatedAt = now
			delay := q.retryBase * (1 << (j.Attempts - 1))
			j.notBefore = now.Add(delay)
			q.clock.AfterFunc(delay, q.dispatch)
			q.log.LogWarnf("job %s failed (attempt %d/%d), retrying in %s: %v",
				id, j.Attempts, q.maxRetries, delay, err)
		}
	}
	delete(q.inflight, id)
	q.running--
	q.mu.Unlock()

	q.dispatch()
}

// finishLocked marks a terminal transition: wakes waiters and drops the
// job from the claim order.
func (q *Queue) finishLocked(id string) {
	if ch, ok := q.done[id]; ok {
		close(ch)
		delete(q.done, id)
	}
	for i, oid := range q.order {
		if oid == id {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

func (q *Queue) compactOrderLocked() {
	kept := q.order[:0]
	for _, id := range q.order {
		if _, ok := q.jobs[id]; ok {
			kept = append(kept, id)
		}
	}
	q.order = kept
}
