package tasks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}

func closeArena(t *testing.T, a *Arena) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestStart_IsIdempotentPerName(t *testing.T) {
	a := NewArena()
	defer closeArena(t, a)

	var ticks int32
	fn := func(ctx context.Context, _ *Task) bool {
		atomic.AddInt32(&ticks, 1)
		return false
	}
	if !a.Start("LB-1", time.Hour, fn) {
		t.Fatalf("first Start should schedule")
	}
	if a.Start("LB-1", time.Hour, fn) {
		t.Fatalf("second Start must be a no-op")
	}
	if a.Len() != 1 || !a.Running("LB-1") {
		t.Fatalf("expected exactly one live task, got %d", a.Len())
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&ticks) == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&ticks); got != 1 {
		t.Fatalf("expected a single immediate tick, got %d", got)
	}
}

func TestStart_TicksRepeatedly(t *testing.T) {
	a := NewArena()
	defer closeArena(t, a)

	var ticks int32
	a.Start("k", 5*time.Millisecond, func(ctx context.Context, _ *Task) bool {
		atomic.AddInt32(&ticks, 1)
		return false
	})
	waitFor(t, func() bool { return atomic.LoadInt32(&ticks) >= 3 })
}

func TestStop_IdempotentAndUnknown(t *testing.T) {
	a := NewArena()
	defer closeArena(t, a)

	if a.Stop("missing") {
		t.Fatalf("Stop on unknown name should report false")
	}
	a.Start("k", time.Hour, func(ctx context.Context, _ *Task) bool { return false })
	if !a.Stop("k") {
		t.Fatalf("Stop should report true for a live task")
	}
	if a.Stop("k") {
		t.Fatalf("second Stop should report false")
	}
	if a.Running("k") || a.Len() != 0 {
		t.Fatalf("task still registered after Stop")
	}
	if !a.Start("k", time.Hour, func(ctx context.Context, _ *Task) bool { return false }) {
		t.Fatalf("Start after Stop should schedule again")
	}
}

func TestSelfTermination_RemovesTask(t *testing.T) {
	a := NewArena()
	defer closeArena(t, a)

	var ticks int32
	a.Start("k", time.Millisecond, func(ctx context.Context, _ *Task) bool {
		return atomic.AddInt32(&ticks, 1) == 2
	})
	waitFor(t, func() bool { return !a.Running("k") })
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&ticks); got != 2 {
		t.Fatalf("expected 2 ticks before self-termination, got %d", got)
	}
}

func TestGuard_NoActionAfterStop(t *testing.T) {
	a := NewArena()
	defer closeArena(t, a)

	inTick := make(chan struct{})
	release := make(chan struct{})
	var acted, guarded atomic.Bool

	a.Start("k", time.Hour, func(ctx context.Context, task *Task) bool {
		close(inTick)
		<-release // simulates an in-flight fetch
		ran := task.Guard(func() { acted.Store(true) })
		guarded.Store(true)
		return ran
	})

	<-inTick
	a.Stop("k")
	close(release)
	waitFor(t, guarded.Load)
	if acted.Load() {
		t.Fatalf("in-flight tick acted after Stop returned")
	}
}

func TestGuard_StopWaitsForRunningAction(t *testing.T) {
	a := NewArena()
	defer closeArena(t, a)

	entered := make(chan struct{})
	release := make(chan struct{})
	a.Start("k", time.Hour, func(ctx context.Context, task *Task) bool {
		task.Guard(func() {
			close(entered)
			<-release
		})
		return false
	})
	<-entered

	stopped := make(chan struct{})
	go func() {
		a.Stop("k")
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatalf("Stop returned while a guarded action was running")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-stopped
}

func TestPanicInTickIsRecovered(t *testing.T) {
	a := NewArena()
	defer closeArena(t, a)

	var ticks int32
	a.Start("k", time.Millisecond, func(ctx context.Context, _ *Task) bool {
		if atomic.AddInt32(&ticks, 1) == 1 {
			panic("boom")
		}
		return true
	})
	waitFor(t, func() bool { return atomic.LoadInt32(&ticks) >= 2 && !a.Running("k") })
}

func TestConcurrentStartCreatesOneTask(t *testing.T) {
	a := NewArena()
	defer closeArena(t, a)

	var started int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if a.Start("k", time.Hour, func(ctx context.Context, _ *Task) bool { return false }) {
				atomic.AddInt32(&started, 1)
			}
		}()
	}
	wg.Wait()
	if started != 1 || a.Len() != 1 {
		t.Fatalf("started=%d len=%d, want 1/1", started, a.Len())
	}
}

func TestClose_StopsEverythingAndRejectsNew(t *testing.T) {
	a := NewArena()
	a.Start("a", time.Hour, func(ctx context.Context, _ *Task) bool { return false })
	a.Start("b", time.Hour, func(ctx context.Context, _ *Task) bool { return false })
	closeArena(t, a)
	if a.Len() != 0 {
		t.Fatalf("tasks survived Close")
	}
	if a.Start("c", time.Hour, func(ctx context.Context, _ *Task) bool { return false }) {
		t.Fatalf("Start after Close must fail")
	}
	names := a.Names()
	if len(names) != 0 {
		t.Fatalf("Names after Close = %v", names)
	}
}

func TestExitHook_RunsOncePerTask(t *testing.T) {
	var mu sync.Mutex
	exits := map[string]int{}
	a := NewArena(WithExitHook(func(name string) {
		mu.Lock()
		exits[name]++
		mu.Unlock()
	}))

	a.Start("stopped", time.Hour, func(context.Context, *Task) bool { return false })
	a.Start("self", time.Hour, func(context.Context, *Task) bool { return true })
	a.Stop("stopped")
	a.Stop("stopped")
	closeArena(t, a)

	mu.Lock()
	defer mu.Unlock()
	if exits["stopped"] != 1 || exits["self"] != 1 {
		t.Fatalf("exit hook counts = %v", exits)
	}
}
