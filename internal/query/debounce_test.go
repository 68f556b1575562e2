package query

import (
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu    sync.Mutex
	terms []string
	fired chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) fn(term string) {
	r.mu.Lock()
	r.terms = append(r.terms, term)
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.terms...)
}

func TestDebouncer_OnlyLatestTermRuns(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	d := NewDebouncer(50*time.Millisecond, r.fn)
	defer d.Stop()

	for _, term := range []string{"c", "ca", "cat"} {
		d.Submit(term)
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-r.fired:
	case <-time.After(time.Second):
		t.Fatal("debounced function never ran")
	}
	time.Sleep(100 * time.Millisecond)

	if got := r.got(); len(got) != 1 || got[0] != "cat" {
		t.Errorf("terms = %v, want [cat]", got)
	}
}

func TestDebouncer_SeparatedInputsBothRun(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	d := NewDebouncer(20*time.Millisecond, r.fn)
	defer d.Stop()

	d.Submit("dog")
	<-r.fired
	d.Submit("cat")
	<-r.fired

	if got := r.got(); len(got) != 2 || got[0] != "dog" || got[1] != "cat" {
		t.Errorf("terms = %v, want [dog cat]", got)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	t.Parallel()
	r := newRecorder()
	d := NewDebouncer(30*time.Millisecond, r.fn)

	d.Submit("cat")
	d.Stop()
	d.Submit("dog")

	time.Sleep(100 * time.Millisecond)
	if got := r.got(); len(got) != 0 {
		t.Errorf("terms = %v, want none after Stop", got)
	}
}

func TestNewDebouncer_DefaultDelay(t *testing.T) {
	t.Parallel()
	d := NewDebouncer(0, func(string) {})
	if d.delay != DefaultDebounce {
		t.Errorf("delay = %v, want %v", d.delay, DefaultDebounce)
	}
}
