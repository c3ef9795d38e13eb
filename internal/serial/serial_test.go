package serial

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/quizlink/internal/testutil/testlog"
)

func TestWorkerRunsTasksInOrder(t *testing.T) {
	testlog.Start(t)
	w := NewWorker()
	var got []int
	for i := range 100 {
		if err := w.Post(func() { got = append(got, i) }); err != nil {
			t.Fatalf("post %d: %v", i, err)
		}
	}
	w.Close()
	if len(got) != 100 {
		t.Fatalf("expected 100 tasks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran as %d", i, v)
		}
	}
	if err := w.Post(func() {}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestWorkerSelfPostDoesNotDeadlock(t *testing.T) {
	testlog.Start(t)
	w := NewWorker()
	defer w.Close()
	done := make(chan struct{})
	_ = w.Post(func() {
		_ = w.Post(func() { close(done) })
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("nested post never ran")
	}
}

func TestQueryReturnsValueAndTimesOut(t *testing.T) {
	testlog.Start(t)
	w := NewWorker()
	defer w.Close()
	counter := 41
	v, err := Query(context.Background(), w, time.Second, func() int { counter++; return counter })
	if err != nil || v != 42 {
		t.Fatalf("query got=%d err=%v", v, err)
	}

	release := make(chan struct{})
	_ = w.Post(func() { <-release })
	_, err = Query(context.Background(), w, 20*time.Millisecond, func() int { return 0 })
	close(release)
	if !errors.Is(err, ErrQueryTimeout) {
		t.Fatalf("expected ErrQueryTimeout, got %v", err)
	}
}

func TestDispatcherDeliversInOrderThenCloses(t *testing.T) {
	testlog.Start(t)
	d := NewDispatcher[int](0)
	for i := range 50 {
		d.Emit(i)
	}
	d.Close()
	d.Emit(99)
	next := 0
	for v := range d.Events() {
		if v != next {
			t.Fatalf("got %d want %d", v, next)
		}
		next++
	}
	if next != 50 {
		t.Fatalf("expected 50 events, got %d", next)
	}
}

func TestDispatcherAbortUnblocks(t *testing.T) {
	testlog.Start(t)
	d := NewDispatcher[int](0)
	d.Emit(1)
	d.Emit(2)
	d.Abort()
	select {
	case <-waitClosed(d.Events()):
	case <-time.After(time.Second):
		t.Fatalf("events channel not closed after abort")
	}
}

func waitClosed(ch <-chan int) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		for range ch {
		}
		close(out)
	}()
	return out
}

func TestDispatcherDrainStopsWithoutReader(t *testing.T) {
	testlog.Start(t)
	d := NewDispatcher[int](0)
	for i := range 3 {
		d.Emit(i)
	}
	d.Drain(20 * time.Millisecond)
	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatalf("dispatcher still running with nobody reading")
	}
}

func TestDispatcherDrainDeliversToReader(t *testing.T) {
	testlog.Start(t)
	d := NewDispatcher[int](0)
	for i := range 5 {
		d.Emit(i)
	}
	d.Drain(time.Second)
	got := 0
	for range d.Events() {
		got++
	}
	if got != 5 {
		t.Fatalf("expected 5 events before close, got %d", got)
	}
	<-d.Done()
}
