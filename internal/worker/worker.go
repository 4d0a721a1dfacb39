// Package worker provides a simple worker goroutine lifecycle: spawn with
// Go, signal shutdown with Halt, observe it from inside the worker via
// HaltCh. Halt blocks until every spawned goroutine has returned.
package worker

import "sync"

// Worker is intended to be embedded in structs that own long-running
// goroutines.
type Worker struct {
	initOnce sync.Once
	haltOnce sync.Once
	haltCh   chan struct{}
	wg       sync.WaitGroup
}

func (w *Worker) init() {
	w.initOnce.Do(func() {
		w.haltCh = make(chan struct{})
	})
}

// Go spawns fn in its own goroutine, tracked by Halt.
func (w *Worker) Go(fn func()) {
	w.init()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// Halt signals all spawned goroutines to exit and waits for them. Safe to
// call more than once.
func (w *Worker) Halt() {
	w.init()
	w.haltOnce.Do(func() {
		close(w.haltCh)
	})
	w.wg.Wait()
}

// HaltCh returns the channel closed by Halt.
func (w *Worker) HaltCh() <-chan struct{} {
	w.init()
	return w.haltCh
}
