package tiercache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// metaTask is a best-effort metadata mutation queued after a cache hit or
// set: access-count bumps, last-accessed stamps, daily counters, and L3
// upserts. Failures are logged and never surface to the caller.
type metaTask func(ctx context.Context)

// taskQueue drains queued metaTasks from a buffered channel one at a time,
// each under its own timeout, generalized to arbitrary closures so any tier
// can enqueue best-effort work without a fixed log-record shape.
type taskQueue struct {
	ch      chan metaTask
	wg      sync.WaitGroup
	logger  zerolog.Logger
	timeout time.Duration
}

func newTaskQueue(logger zerolog.Logger, bufferSize int, timeout time.Duration) *taskQueue {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	q := &taskQueue{
		ch:      make(chan metaTask, bufferSize),
		logger:  logger.With().Str("component", "tiercache_tasks").Logger(),
		timeout: timeout,
	}
	q.wg.Add(1)
	go q.drain()
	return q
}

// submit enqueues a task, dropping it if the buffer is full. A dropped
// task is not retried: its counter or metadata update is lost, which only
// undercounts best-effort statistics and never blocks the request.
func (q *taskQueue) submit(task metaTask) {
	select {
	case q.ch <- task:
	default:
		q.logger.Warn().Msg("task queue full, dropping best-effort metadata update")
	}
}

func (q *taskQueue) drain() {
	defer q.wg.Done()
	for task := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		task(ctx)
		cancel()
	}
}

// close stops accepting new tasks and waits for the queue to drain.
func (q *taskQueue) close() {
	close(q.ch)
	q.wg.Wait()
}
