package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	at time.Time
	fn func()
	d  time.Duration
}

// fakeClock drives retry timers from tests without real sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	fired  []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timers = append(c.timers, &fakeTimer{at: c.now.Add(d), fn: f, d: d})
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	var remaining []*fakeTimer
	for _, t := range c.timers {
		if !t.at.After(c.now) {
			due = append(due, t)
			c.fired = append(c.fired, t.d)
		} else {
			remaining = append(remaining, t)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (c *fakeClock) firedDelays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.fired...)
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestSubmitAndComplete(t *testing.T) {
	q := New(Options{Clock: newFakeClock()})
	q.Handle(TypeClassify, func(_ context.Context, payload interface{}) (interface{}, error) {
		return map[string]string{"contentType": "todo", "content": payload.(string)}, nil
	})

	id, err := q.Submit(TypeClassify, "Buy milk")
	require.NoError(t, err)

	j, err := q.Wait(waitCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Equal(t, 1, j.Attempts)
	assert.Empty(t, j.Error)
	result := j.Result.(map[string]string)
	assert.Equal(t, "todo", result["contentType"])
}

func TestSubmitRejectsEmptyType(t *testing.T) {
	q := New(Options{Clock: newFakeClock()})
	_, err := q.Submit("  ", nil)
	assert.Error(t, err)
}

func TestUnknownTypeFailsTerminally(t *testing.T) {
	q := New(Options{Clock: newFakeClock()})

	id, err := q.Submit("transmogrify", nil)
	require.NoError(t, err)

	j, err := q.Wait(waitCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, j.Status)
	assert.Equal(t, 1, j.Attempts, "unknown type must not be retried")
	assert.Contains(t, j.Error, "unknown job type")
}

func TestRetryBackoffThenPermanentFailure(t *testing.T) {
	clock := newFakeClock()
	attempts := make(chan int, 10)
	var count int32

	q := New(Options{Clock: clock, MaxRetries: 3, RetryBase: 5 * time.Second})
	q.Handle(TypeClassify, func(context.Context, interface{}) (interface{}, error) {
		n := atomic.AddInt32(&count, 1)
		attempts <- int(n)
		return nil, errors.New("upstream timeout")
	})

	id, err := q.Submit(TypeClassify, nil)
	require.NoError(t, err)

	// First attempt runs immediately; the two retries need the clock.
	require.Equal(t, 1, <-attempts)
	require.Eventually(t, func() bool {
		j, _ := q.GetStatus(id)
		return j.Status == StatusPending
	}, time.Second, time.Millisecond)
	clock.Advance(5 * time.Second)

	require.Equal(t, 2, <-attempts)
	require.Eventually(t, func() bool {
		j, _ := q.GetStatus(id)
		return j.Status == StatusPending
	}, time.Second, time.Millisecond)
	clock.Advance(10 * time.Second)

	require.Equal(t, 3, <-attempts)
	j, err := q.Wait(waitCtx(t), id)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, j.Status)
	assert.Equal(t, 3, j.Attempts)
	assert.Equal(t, "upstream timeout", j.Error)
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, clock.firedDelays(),
		"retry delays must double")
}

func TestRetryThenSuccessKeepsLastError(t *testing.T) {
	clock := newFakeClock()
	var count int32

	q := New(Options{Clock: clock})
	q.Handle(TypeClassify, func(context.Context, interface{}) (interface{}, error) {
		if atomic.AddInt32(&count, 1) < 2 {
			return nil, errors.New("flaky")
		}
		return "ok", nil
	})

	id, err := q.Submit(TypeClassify, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, _ := q.GetStatus(id)
		return j.Status == StatusPending && j.Attempts == 1
	}, time.Second, time.Millisecond)
	clock.Advance(5 * time.Second)

	j, err := q.Wait(waitCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Equal(t, 2, j.Attempts)
	assert.Equal(t, "ok", j.Result)
	assert.Equal(t, "flaky", j.Error, "last error persists after recovery")
}

func TestHandlerPanicDoesNotLeakPermit(t *testing.T) {
	clock := newFakeClock()
	q := New(Options{Clock: clock, MaxRetries: 1})
	q.Handle("explode", func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	q.Handle(TypeClassify, func(context.Context, interface{}) (interface{}, error) {
		return "fine", nil
	})

	id1, err := q.Submit("explode", nil)
	require.NoError(t, err)
	j, err := q.Wait(waitCtx(t), id1)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, j.Status)
	assert.Contains(t, j.Error, "handler panic")

	// The queue keeps scheduling after a panic.
	id2, err := q.Submit(TypeClassify, nil)
	require.NoError(t, err)
	j, err = q.Wait(waitCtx(t), id2)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Equal(t, 0, q.Stats().CurrentProcessing)
}

func TestConcurrencyCeiling(t *testing.T) {
	release := make(chan struct{})
	var current, max int32

	q := New(Options{Clock: newFakeClock(), Concurrency: 2})
	q.Handle(TypeClassify, func(context.Context, interface{}) (interface{}, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			old := atomic.LoadInt32(&max)
			if n <= old || atomic.CompareAndSwapInt32(&max, old, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&current, -1)
		return nil, nil
	})

	ids := make([]string, 5)
	for i := range ids {
		id, err := q.Submit(TypeClassify, nil)
		require.NoError(t, err)
		ids[i] = id
	}

	require.Eventually(t, func() bool {
		return q.Stats().Processing == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, 3, q.Stats().Pending)
	assert.Equal(t, 2, q.Stats().CurrentProcessing)

	close(release)
	for _, id := range ids {
		j, err := q.Wait(waitCtx(t), id)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, j.Status)
	}
	assert.LessOrEqual(t, int(atomic.LoadInt32(&max)), 2)
}

func TestFIFOClaimOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	gate := make(chan struct{})

	q := New(Options{Clock: newFakeClock(), Concurrency: 1})
	q.Handle(TypeClassify, func(_ context.Context, payload interface{}) (interface{}, error) {
		<-gate
		mu.Lock()
		got = append(got, payload.(string))
		mu.Unlock()
		return nil, nil
	})

	var ids []string
	for _, name := range []string{"a", "b", "c", "d"} {
		id, err := q.Submit(TypeClassify, name)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	close(gate)

	for _, id := range ids {
		_, err := q.Wait(waitCtx(t), id)
		require.NoError(t, err)
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestCleanupRemovesOnlyOldTerminalJobs(t *testing.T) {
	clock := newFakeClock()
	gate := make(chan struct{})
	defer close(gate)

	q := New(Options{Clock: clock, Concurrency: 1})
	q.Handle(TypeClassify, func(_ context.Context, payload interface{}) (interface{}, error) {
		if payload == "block" {
			<-gate
		}
		return nil, nil
	})

	doneID, err := q.Submit(TypeClassify, "quick")
	require.NoError(t, err)
	_, err = q.Wait(waitCtx(t), doneID)
	require.NoError(t, err)

	// One job stuck processing, one queued behind it.
	blockID, err := q.Submit(TypeClassify, "block")
	require.NoError(t, err)
	pendingID, err := q.Submit(TypeClassify, "queued")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		j, _ := q.GetStatus(blockID)
		return j.Status == StatusProcessing
	}, time.Second, time.Millisecond)

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 0, q.Cleanup(time.Hour), "too young to prune")

	clock.Advance(31 * time.Minute)
	assert.Equal(t, 1, q.Cleanup(time.Hour))

	_, ok := q.GetStatus(doneID)
	assert.False(t, ok, "terminal job pruned")
	_, ok = q.GetStatus(blockID)
	assert.True(t, ok, "processing job kept")
	_, ok = q.GetStatus(pendingID)
	assert.True(t, ok, "pending job kept")
}

func TestStatsSnapshot(t *testing.T) {
	q := New(Options{Clock: newFakeClock(), Concurrency: 3})
	block := make(chan struct{})
	q.Handle(TypeClassify, func(context.Context, interface{}) (interface{}, error) {
		<-block
		return nil, nil
	})

	var ids []string
	for i := 0; i < 4; i++ {
		id, err := q.Submit(TypeClassify, nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	require.Eventually(t, func() bool {
		return q.Stats().Processing == 3
	}, time.Second, time.Millisecond)

	s := q.Stats()
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, 3, s.CurrentProcessing)
	assert.Equal(t, 3, s.MaxConcurrency)

	close(block)
	for _, id := range ids {
		_, err := q.Wait(waitCtx(t), id)
		require.NoError(t, err)
	}
	s = q.Stats()
	assert.Equal(t, 4, s.Completed)
	assert.Equal(t, 0, s.CurrentProcessing)
}
