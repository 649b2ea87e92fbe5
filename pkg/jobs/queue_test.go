package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	done := make(chan string, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		done <- job.Payload.(string)
		return nil
	}, QueueConfig{Workers: 1})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.TryEnqueue(Job{ID: "1", Payload: "hello"}))
	select {
	case got := <-done:
		assert.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("job was not processed")
	}
}

func TestQueueRejectsBeforeStart(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	err := q.TryEnqueue(Job{ID: "1"})
	assert.ErrorIs(t, err, ErrQueueStopped)
}

func TestQueueTryEnqueueReportsFull(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		started <- struct{}{}
		<-release
		return nil
	}, QueueConfig{Workers: 1, BufferSize: 1})
	q.Start(context.Background())
	defer q.Stop()
	defer close(release)

	require.NoError(t, q.TryEnqueue(Job{ID: "busy"}))
	<-started
	require.NoError(t, q.TryEnqueue(Job{ID: "buffered"}))
	assert.Equal(t, 1, q.Pending())
	assert.ErrorIs(t, q.TryEnqueue(Job{ID: "overflow"}), ErrQueueFull)
}

func TestQueueRetriesThenReportsFailure(t *testing.T) {
	var attempts int32
	failed := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("boom")
	}, QueueConfig{
		Workers:    1,
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnFailure:  func(job Job, err error) { failed <- job },
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.TryEnqueue(Job{ID: "1"}))
	select {
	case job := <-failed:
		assert.Equal(t, 3, job.Attempt)
		assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	case <-time.After(2 * time.Second):
		t.Fatal("failure handler not invoked")
	}
}
