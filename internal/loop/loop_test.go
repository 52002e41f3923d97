package loop

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/readaloud/internal/logging"
)

// testTimeout is a failsafe, not primary synchronization.
const testTimeout = 5 * time.Second

func testLogger() *slog.Logger {
	return logging.New("error", "text")
}

func TestLoopPost(t *testing.T) {
	l := New(10, time.Minute, testLogger())

	if err := l.Post(NewAction("a", func() {}, 0, "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Len() != 1 {
		t.Errorf("expected length 1, got %d", l.Len())
	}
}

func TestLoopCapacity(t *testing.T) {
	l := New(2, time.Minute, testLogger())

	l.Post(NewAction("a", nil, 0, ""))
	l.Post(NewAction("b", nil, 0, ""))

	if err := l.Post(NewAction("c", nil, 0, "")); !errors.Is(err, ErrLoopFull) {
		t.Errorf("expected ErrLoopFull, got %v", err)
	}
}

func TestLoopMustIgnoresCapacity(t *testing.T) {
	l := New(1, time.Minute, testLogger())

	l.Post(NewAction("a", nil, 0, ""))
	l.Go("dropped", func() {})
	l.Must("kept", func() {})

	if l.Len() != 2 {
		t.Errorf("expected length 2, got %d", l.Len())
	}
}

func TestLoopMustAfterStop(t *testing.T) {
	l := New(1, time.Minute, testLogger())
	l.Start()
	l.Stop()

	ran := false
	l.Must("late", func() { ran = true })
	if ran || l.Len() != 0 {
		t.Errorf("action queued after stop")
	}
}

func TestLoopDeduplication(t *testing.T) {
	l := New(10, time.Minute, testLogger())

	if err := l.Post(NewAction("a", nil, 0, "same")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.Post(NewAction("b", nil, 0, "same")); !errors.Is(err, ErrDuplicateAction) {
		t.Errorf("expected ErrDuplicateAction, got %v", err)
	}
	if err := l.Post(NewAction("c", nil, 0, "")); err != nil {
		t.Errorf("empty key must not dedupe: %v", err)
	}
	if err := l.Post(NewAction("d", nil, 0, "")); err != nil {
		t.Errorf("empty key must not dedupe: %v", err)
	}
}

func TestLoopClosed(t *testing.T) {
	l := New(10, time.Minute, testLogger())
	l.Start()
	l.Stop()

	if err := l.Post(NewAction("late", nil, 0, "")); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("expected ErrLoopClosed, got %v", err)
	}
	if err := l.Call(context.Background(), "late", func() {}); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("Call after stop = %v, want ErrLoopClosed", err)
	}
}

func TestLoopClear(t *testing.T) {
	l := New(10, time.Minute, testLogger())

	a := NewAction("a", nil, 0, "key1")
	l.Post(a)
	l.Post(NewAction("b", nil, 0, "key2"))

	l.Clear()

	if l.Len() != 0 {
		t.Errorf("expected length 0 after clear, got %d", l.Len())
	}
	select {
	case <-a.Done():
		if !errors.Is(a.Err(), ErrCleared) {
			t.Errorf("cleared action Err() = %v, want ErrCleared", a.Err())
		}
	default:
		t.Error("cleared action should be done")
	}

	if err := l.Post(NewAction("again", nil, 0, "key1")); err != nil {
		t.Fatalf("unexpected error after clear: %v", err)
	}
}

func TestLoopRunsActionsInOrder(t *testing.T) {
	l := New(10, time.Minute, testLogger())

	var mu sync.Mutex
	var ran []string
	allDone := make(chan struct{})

	l.SetCompletedCallback(func(a *Action) {
		mu.Lock()
		defer mu.Unlock()
		if len(ran) == 3 {
			close(allDone)
		}
	})

	l.Start()
	defer l.Stop()

	for _, name := range []string{"first", "second", "third"} {
		name := name
		l.Post(NewAction(name, func() {
			mu.Lock()
			ran = append(ran, name)
			mu.Unlock()
		}, 0, ""))
	}

	select {
	case <-allDone:
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for actions")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first", "second", "third"}
	for i := range want {
		if ran[i] != want[i] {
			t.Errorf("action %d = %q, want %q", i, ran[i], want[i])
		}
	}
}

func TestLoopSkipsExpiredActions(t *testing.T) {
	l := New(10, time.Minute, testLogger())

	var ranExpired atomic.Bool
	expired := NewAction("expired", func() { ranExpired.Store(true) }, time.Nanosecond, "")
	expired.ExpiresAt = time.Now().Add(-time.Second)
	valid := NewAction("valid", func() {}, 0, "")

	l.Post(expired)
	l.Post(valid)

	l.Start()
	defer l.Stop()

	select {
	case <-valid.Done():
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for valid action")
	}

	if ranExpired.Load() {
		t.Error("expired action should not run")
	}
	if !errors.Is(expired.Err(), ErrExpired) {
		t.Errorf("expired action Err() = %v, want ErrExpired", expired.Err())
	}
}

func TestLoopCall(t *testing.T) {
	l := New(10, time.Minute, testLogger())
	l.Start()
	defer l.Stop()

	value := 0
	if err := l.Call(context.Background(), "set", func() { value = 42 }); err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if value != 42 {
		t.Errorf("value = %d, want 42", value)
	}
}

func TestLoopCallContextCancelled(t *testing.T) {
	l := New(10, time.Minute, testLogger())
	// Not started, so the action never runs.

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := l.Call(ctx, "never", func() {}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestLoopRecoversPanics(t *testing.T) {
	l := New(10, time.Minute, testLogger())
	l.Start()
	defer l.Stop()

	err := l.Call(context.Background(), "boom", func() { panic("boom") })
	if err == nil {
		t.Fatal("expected error from panicking action")
	}

	if err := l.Call(context.Background(), "after", func() {}); err != nil {
		t.Errorf("loop should keep running after a panic: %v", err)
	}
}

func TestLoopGo(t *testing.T) {
	l := New(1, time.Minute, testLogger())

	l.Go("first", func() {})
	l.Go("overflow", func() {})

	if l.Len() != 1 {
		t.Errorf("expected overflow to be dropped, length = %d", l.Len())
	}
}

func TestIdleCallback(t *testing.T) {
	l := New(10, 30*time.Millisecond, testLogger())

	idleCalled := make(chan struct{})
	var once sync.Once
	l.SetIdleCallback(func() {
		once.Do(func() { close(idleCalled) })
	})

	l.Start()
	defer l.Stop()

	l.Go("hello", func() {})

	select {
	case <-idleCalled:
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for idle callback")
	}
}

func TestIdleCallbackNotCalledWhileRunning(t *testing.T) {
	idleTimeout := 20 * time.Millisecond
	l := New(10, idleTimeout, testLogger())

	var running atomic.Bool
	var idleDuringRun atomic.Bool
	idleCalled := make(chan struct{}, 10)

	l.SetIdleCallback(func() {
		if running.Load() {
			idleDuringRun.Store(true)
		}
		idleCalled <- struct{}{}
	})

	release := make(chan struct{})
	l.Post(NewAction("slow", func() {
		running.Store(true)
		<-release
		running.Store(false)
	}, 0, ""))

	l.Start()
	defer l.Stop()

	time.Sleep(idleTimeout * 3)
	close(release)

	select {
	case <-idleCalled:
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for idle callback")
	}

	if idleDuringRun.Load() {
		t.Error("idle callback ran during an action")
	}
}

func TestIdleCallbackFiresOncePerIdlePeriod(t *testing.T) {
	idleTimeout := 10 * time.Millisecond
	l := New(10, idleTimeout, testLogger())

	var calls atomic.Int32
	l.SetIdleCallback(func() { calls.Add(1) })

	l.Start()
	defer l.Stop()

	time.Sleep(idleTimeout * 10)
	if got := calls.Load(); got != 1 {
		t.Errorf("idle callback calls = %d, want 1", got)
	}
}

func TestDedupeKeyReleasedAfterRun(t *testing.T) {
	l := New(10, time.Minute, testLogger())
	l.Start()
	defer l.Stop()

	first := NewAction("first", func() {}, 0, "clip")
	l.Post(first)

	select {
	case <-first.Done():
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for first action")
	}

	if err := l.Post(NewAction("second", func() {}, 0, "clip")); err != nil {
		t.Fatalf("unexpected error after run: %v", err)
	}
}

func TestShutdownCallback(t *testing.T) {
	l := New(10, time.Minute, testLogger())

	var shutdownCalled atomic.Bool
	l.SetShutdownCallback(func() { shutdownCalled.Store(true) })

	l.Start()
	l.Stop()

	if !shutdownCalled.Load() {
		t.Error("shutdown callback was not called")
	}
}

func TestShutdownCallbackWithoutStart(t *testing.T) {
	l := New(10, time.Minute, testLogger())

	var shutdownCalled atomic.Bool
	l.SetShutdownCallback(func() { shutdownCalled.Store(true) })
	l.Stop()
	l.Stop()

	if !shutdownCalled.Load() {
		t.Error("shutdown callback was not called")
	}
}

func TestShutdownCallbackRunsAfterCurrentAction(t *testing.T) {
	l := New(10, time.Minute, testLogger())

	var actionFinished atomic.Bool
	var orderOK atomic.Bool
	started := make(chan struct{})

	l.SetShutdownCallback(func() {
		orderOK.Store(actionFinished.Load())
	})

	l.Post(NewAction("slow", func() {
		close(started)
		time.Sleep(20 * time.Millisecond)
		actionFinished.Store(true)
	}, 0, ""))

	l.Start()

	select {
	case <-started:
	case <-time.After(testTimeout):
		t.Fatal("timeout waiting for action to start")
	}

	l.Stop()

	if !orderOK.Load() {
		t.Error("shutdown callback ran before the current action finished")
	}
}
