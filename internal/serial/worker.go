// Package serial provides the single-goroutine execution context each link
// and quiz component runs its state on, plus the unbounded event dispatcher
// that hands results to the application.
package serial

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrClosed       = errors.New("serial: worker closed")
	ErrQueryTimeout = errors.New("serial: query timed out")
)

// Worker runs posted tasks one at a time in post order.
type Worker struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func NewWorker() *Worker {
	w := &Worker{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go w.run()
	return w
}

// Post enqueues f. It never blocks and is safe from any goroutine, including
// the worker itself.
func (w *Worker) Post(f func()) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.queue = append(w.queue, f)
	w.mu.Unlock()
	w.signal()
	return nil
}

// Close stops accepting tasks, runs what is already queued, and waits for the
// loop to exit. Must not be called from a task.
func (w *Worker) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.signal()
	<-w.done
}

// Done is closed once the loop has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		batch := w.queue
		w.queue = nil
		closed := w.closed
		w.mu.Unlock()

		for _, f := range batch {
			f()
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-w.wake
	}
}

// Query runs f on w and waits for its result for at most timeout. It must not
// be called from a task running on w.
func Query[T any](ctx context.Context, w *Worker, timeout time.Duration, f func() T) (T, error) {
	var zero T
	ch := make(chan T, 1)
	if err := w.Post(func() { ch <- f() }); err != nil {
		return zero, err
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timer.C:
		return zero, ErrQueryTimeout
	case <-w.done:
		// the task may have run just before exit
		select {
		case v := <-ch:
			return v, nil
		default:
			return zero, ErrClosed
		}
	}
}
