package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/buildscout/internal/learning"
	"github.com/fyrsmithlabs/buildscout/internal/patternstore"
)

// ErrQueueClosed is returned for writes submitted to, or still pending in, a
// closed queue.
var ErrQueueClosed = errors.New("ingest queue closed")

// DefaultQueueCapacity is the number of writes that may wait for the worker.
const DefaultQueueCapacity = 16

// Writer is the mutating half of the learning service.
type Writer interface {
	Learn(ctx context.Context, comment string, meta patternstore.GameMetadata, opts ...learning.LearnOption) (learning.LearnResult, error)
	Edit(ctx context.Context, lookupKey, newComment string) (learning.EditResult, error)
}

type job struct {
	ctx  context.Context
	run  func(context.Context) (any, error)
	done chan jobResult
}

type jobResult struct {
	value any
	err   error
}

// IngestQueue runs learn and edit calls one at a time on a single worker
// goroutine, so concurrent callers never interleave store mutations.
//
// All methods are safe for concurrent use.
type IngestQueue struct {
	writer Writer
	logger *zap.Logger

	jobs    chan job
	quit    chan struct{}
	stopped chan struct{}

	mu     sync.Mutex
	closed bool
}

// QueueOption configures an IngestQueue.
type QueueOption func(*IngestQueue)

// WithQueueLogger sets the logger.
func WithQueueLogger(l *zap.Logger) QueueOption {
	return func(q *IngestQueue) {
		if l != nil {
			q.logger = l
		}
	}
}

// WithCapacity sets how many writes may wait for the worker. Zero makes
// submission block until the worker picks the job up.
func WithCapacity(n int) QueueOption {
	return func(q *IngestQueue) {
		if n >= 0 {
			q.jobs = make(chan job, n)
		}
	}
}

// NewIngestQueue starts a queue in front of w.
func NewIngestQueue(w Writer, opts ...QueueOption) (*IngestQueue, error) {
	if w == nil {
		return nil, errors.New("writer is required")
	}
	q := &IngestQueue{
		writer:  w,
		logger:  zap.NewNop(),
		jobs:    make(chan job, DefaultQueueCapacity),
		quit:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	go q.run()
	return q, nil
}

// Learn queues a learn call and waits for its result.
func (q *IngestQueue) Learn(ctx context.Context, comment string, meta patternstore.GameMetadata, opts ...learning.LearnOption) (learning.LearnResult, error) {
	v, err := q.submit(ctx, func(ctx context.Context) (any, error) {
		return q.writer.Learn(ctx, comment, meta, opts...)
	})
	if err != nil {
		return learning.LearnResult{}, err
	}
	return v.(learning.LearnResult), nil
}

// Edit queues an edit call and waits for its result.
func (q *IngestQueue) Edit(ctx context.Context, lookupKey, newComment string) (learning.EditResult, error) {
	v, err := q.submit(ctx, func(ctx context.Context) (any, error) {
		return q.writer.Edit(ctx, lookupKey, newComment)
	})
	if err != nil {
		return learning.EditResult{}, err
	}
	return v.(learning.EditResult), nil
}

// Close stops the worker after the job in progress, if any. Queued jobs
// that have not started fail with ErrQueueClosed. Close is idempotent.
func (q *IngestQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	close(q.quit)
	q.mu.Unlock()

	<-q.stopped
	q.logger.Debug("ingest queue stopped")
}

func (q *IngestQueue) submit(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j := job{ctx: ctx, run: fn, done: make(chan jobResult, 1)}

	select {
	case q.jobs <- j:
	case <-q.quit:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-j.done:
		return res.value, res.err
	case <-q.stopped:
		// The worker may have finished this job just before stopping.
		select {
		case res := <-j.done:
			return res.value, res.err
		default:
			return nil, ErrQueueClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *IngestQueue) run() {
	defer close(q.stopped)
	for {
		// Prefer quitting over starting another job.
		select {
		case <-q.quit:
			return
		default:
		}

		select {
		case <-q.quit:
			return
		case j := <-q.jobs:
			j.done <- q.execute(j)
		}
	}
}

func (q *IngestQueue) execute(j job) (res jobResult) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("ingest job panicked, recovering",
				zap.Any("panic", r),
				zap.Stack("stack"))
			res = jobResult{err: fmt.Errorf("ingest job panicked: %v", r)}
		}
	}()

	// The caller gave up while the job was queued.
	if err := j.ctx.Err(); err != nil {
		return jobResult{err: err}
	}
	v, err := j.run(j.ctx)
	return jobResult{value: v, err: err}
}
