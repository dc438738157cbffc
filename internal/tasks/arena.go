// Package tasks provides an arena of named, cancellable, repeating tasks.
//
// At most one live task exists per name: Start is a no-op while a task with
// the same name is running, and Stop removes it by name. A task may also end
// itself by returning true from its tick function.
//
// Cancellation is synchronous with respect to side effects. A tick that wants
// to act on its result (emit a notification, write state) does so through
// Task.Guard, which runs only while the task is alive and holds the same lock
// Stop takes. Once Stop returns, no guarded action of that task can run,
// even if a tick was already in flight.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TickFunc is one execution of a task. Returning done=true ends the task.
type TickFunc func(ctx context.Context, t *Task) (done bool)

// Task is a single live entry in an Arena.
type Task struct {
	name     string
	interval time.Duration
	cancel   context.CancelFunc
	finished chan struct{}

	mu      sync.Mutex
	stopped bool
}

// Name returns the task key.
func (t *Task) Name() string { return t.name }

// Interval returns the delay between ticks.
func (t *Task) Interval() time.Duration { return t.interval }

// Alive reports whether the task has not been stopped.
func (t *Task) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.stopped
}

// Guard runs fn only if the task is still alive, holding the task lock so a
// concurrent Stop waits for fn to finish. It reports whether fn ran.
// fn must not call Stop on the same task.
func (t *Task) Guard(fn func()) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	fn()
	return true
}

// markStopped flips the task to stopped and cancels its context. It reports
// whether this call did the transition.
func (t *Task) markStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.cancel()
	return true
}

// Arena owns a set of named tasks. The zero value is not usable; use NewArena.
type Arena struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	wg     sync.WaitGroup
	log    zerolog.Logger
	closed bool
	onExit func(name string)
}

// Option configures an Arena.
type Option func(*Arena)

// WithExitHook registers fn to run once per task after its goroutine stops
// ticking, whether it was stopped or ended itself. fn runs without any arena
// lock held.
func WithExitHook(fn func(name string)) Option {
	return func(a *Arena) { a.onExit = fn }
}

// WithLogger replaces the arena logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Arena) { a.log = l }
}

// NewArena returns an empty Arena.
func NewArena(opts ...Option) *Arena {
	a := &Arena{
		tasks: make(map[string]*Task),
		log:   log.With().Str("component", "tasks").Logger(),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Start schedules fn under name, first tick immediately and then every
// interval. It returns false, without scheduling anything, when a live task
// with the same name exists or the arena is closed.
func (a *Arena) Start(name string, interval time.Duration, fn TickFunc) bool {
	if interval <= 0 {
		panic("tasks: non-positive interval")
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	if existing, ok := a.tasks[name]; ok && existing.Alive() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &Task{
		name:     name,
		interval: interval,
		cancel:   cancel,
		finished: make(chan struct{}),
	}
	a.tasks[name] = t
	a.wg.Add(1)
	go a.run(ctx, t, fn)
	return true
}

// Stop cancels the task registered under name. It is safe to call for
// unknown names and reports whether a live task was stopped.
func (a *Arena) Stop(name string) bool {
	a.mu.Lock()
	t, ok := a.tasks[name]
	if ok {
		delete(a.tasks, name)
	}
	a.mu.Unlock()
	if !ok {
		return false
	}
	return t.markStopped()
}

// Running reports whether a live task exists under name.
func (a *Arena) Running(name string) bool {
	a.mu.Lock()
	t, ok := a.tasks[name]
	a.mu.Unlock()
	return ok && t.Alive()
}

// Names returns the keys of all live tasks.
func (a *Arena) Names() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, 0, len(a.tasks))
	for name, t := range a.tasks {
		if t.Alive() {
			out = append(out, name)
		}
	}
	return out
}

// Len returns the number of live tasks.
func (a *Arena) Len() int { return len(a.Names()) }

// StopAll stops every task without waiting for in-flight ticks.
func (a *Arena) StopAll() {
	a.mu.Lock()
	all := a.tasks
	a.tasks = make(map[string]*Task)
	a.mu.Unlock()
	for _, t := range all {
		t.markStopped()
	}
}

// Close stops every task, refuses new ones, and waits for all goroutines to
// return or ctx to end.
func (a *Arena) Close(ctx context.Context) error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.StopAll()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Arena) run(ctx context.Context, t *Task, fn TickFunc) {
	defer a.wg.Done()
	defer close(t.finished)
	defer a.retire(t)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if a.tick(ctx, t, fn) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs fn once, recovering panics so a faulty tick degrades into a
// logged error instead of killing the process. It reports whether the loop
// should end.
func (a *Arena) tick(ctx context.Context, t *Task, fn TickFunc) (done bool) {
	if ctx.Err() != nil {
		return true
	}
	defer func() {
		if rec := recover(); rec != nil {
			a.log.Error().Interface("panic", rec).Str("task", t.name).Msg("task tick panicked")
			done = false
		}
	}()
	return fn(ctx, t)
}

// retire removes t from the arena if it is still the registered entry.
// The task lock is never held while taking the arena lock.
func (a *Arena) retire(t *Task) {
	t.markStopped()
	a.mu.Lock()
	if cur, ok := a.tasks[t.name]; ok && cur == t {
		delete(a.tasks, t.name)
	}
	a.mu.Unlock()
	if a.onExit != nil {
		a.onExit(t.name)
	}
}
