package serial

import (
	"sync"
	"time"
)

// Dispatcher decouples a producer from a slow consumer: Emit never blocks,
// and values are delivered on Events in emit order.
type Dispatcher[T any] struct {
	mu     sync.Mutex
	queue  []T
	closed bool
	wake   chan struct{}
	abort  chan struct{}
	done   chan struct{}
	out    chan T
	once   sync.Once
}

func NewDispatcher[T any](buffer int) *Dispatcher[T] {
	if buffer < 0 {
		buffer = 0
	}
	d := &Dispatcher[T]{
		wake:  make(chan struct{}, 1),
		abort: make(chan struct{}),
		done:  make(chan struct{}),
		out:   make(chan T, buffer),
	}
	go d.run()
	return d
}

func (d *Dispatcher[T]) Events() <-chan T {
	return d.out
}

// Emit queues v. Values emitted after Close are dropped.
func (d *Dispatcher[T]) Emit(v T) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, v)
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Close delivers everything already queued and then closes Events.
func (d *Dispatcher[T]) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Abort closes Events without waiting for the consumer to drain the queue.
func (d *Dispatcher[T]) Abort() {
	d.Close()
	d.once.Do(func() { close(d.abort) })
}

// DrainTimeout is how long owners give a consumer to read the tail of a
// closed dispatcher.
const DrainTimeout = 2 * time.Second

// Drain closes the dispatcher and gives the consumer up to timeout to read
// what is queued. Anything left after that is discarded so the delivery
// goroutine never outlives an abandoned Events channel.
func (d *Dispatcher[T]) Drain(timeout time.Duration) {
	d.Close()
	go func() {
		t := time.NewTimer(timeout)
		defer t.Stop()
		select {
		case <-d.done:
		case <-t.C:
			d.Abort()
		}
	}()
}

// Done is closed once Events has been closed.
func (d *Dispatcher[T]) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher[T]) run() {
	defer close(d.done)
	defer close(d.out)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, v := range batch {
			select {
			case d.out <- v:
			case <-d.abort:
				return
			}
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		select {
		case <-d.wake:
		case <-d.abort:
			return
		}
	}
}
