package userapi

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"go.uber.org/zap"
)

// queue runs tasks one at a time on a single goroutine. Everything that
// touches a sandbox goes through it.
type queue struct {
	tasks  chan func()
	logger *logging.Logger

	closeOnce sync.Once
	quit      chan struct{}
	done      chan struct{}
}

func newQueue(size int, logger *logging.Logger) *queue {
	if size <= 0 {
		size = 64
	}
	q := &queue{
		tasks:  make(chan func(), size),
		logger: logger,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// call runs fn on the queue and waits for it. fn is skipped if ctx is done
// before it starts; the caller stops waiting if ctx is done before it ends.
func (q *queue) call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	task := func() {
		if err := ctx.Err(); err != nil {
			result <- err
			return
		}
		result <- fn()
	}

	if err := q.submit(ctx, task); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		// the task may have finished just before shutdown
		select {
		case err := <-result:
			return err
		default:
			return ErrClosed
		}
	}
}

// submit waits for room in the queue
func (q *queue) submit(ctx context.Context, task func()) error {
	if q.isClosed() {
		return ErrClosed
	}

	select {
	case q.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.quit:
		return ErrClosed
	}
}

// post enqueues task without blocking
func (q *queue) post(task func()) error {
	if q.isClosed() {
		return ErrClosed
	}

	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *queue) run() {
	defer close(q.done)
	for {
		select {
		case task := <-q.tasks:
			q.execute(task)
		case <-q.quit:
			return
		}
	}
}

func (q *queue) execute(task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Queued task panicked", zap.Any("panic", r))
		}
	}()
	task()
}

func (q *queue) isClosed() bool {
	select {
	case <-q.quit:
		return true
	default:
		return false
	}
}

// close stops the worker. Tasks still queued are discarded.
func (q *queue) close() {
	q.closeOnce.Do(func() { close(q.quit) })
	<-q.done
}
