package task

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Mmx233/RGNB/nts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// counterTask counts messages in a field only its own goroutine writes.
type counterTask struct {
	value int
}

func (c *counterTask) OnStart()           {}
func (c *counterTask) OnQuit()            {}
func (c *counterTask) Handle(nts.Message) { c.value++ }

// TestQuiesce_SnapshotIsStable verifies that a read taken while tasks are
// paused does not change until the pause is cleared, even with producers running.
func TestQuiesce_SnapshotIsStable(t *testing.T) {
	h := &counterTask{}
	tk := New("snapshot", newTestLogger())
	require.NoError(t, tk.Start(h))
	defer tk.Quit()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				tk.Send(&testMsg{})
				time.Sleep(50 * time.Microsecond)
			}
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
	}()

	ctrl := NewController(time.Second, newTestLogger())
	for i := 0; i < 5; i++ {
		err := ctrl.Quiesce(context.Background(), []*Task{tk}, func() error {
			if !tk.PauseConfirmed() {
				t.Error("expected pause to be confirmed inside the quiesced section")
			}
			first := h.value
			time.Sleep(5 * time.Millisecond)
			if h.value != first {
				t.Errorf("value changed while paused: %d -> %d", first, h.value)
			}
			return nil
		})
		require.NoError(t, err)
		assert.False(t, tk.PauseRequested())
	}

	// Processing resumes after the pause is cleared
	var before int
	require.NoError(t, ctrl.Quiesce(context.Background(), []*Task{tk}, func() error {
		before = h.value
		return nil
	}))
	require.Eventually(t, func() bool {
		var now int
		_ = ctrl.Quiesce(context.Background(), []*Task{tk}, func() error {
			now = h.value
			return nil
		})
		return now > before
	}, time.Second, 5*time.Millisecond)
}

// TestQuiesce_Timeout covers a controller pausing {T1, T2} where T2 is stuck
// in a long synchronous call and never reaches the top of its loop.
func TestQuiesce_Timeout(t *testing.T) {
	rec1 := &recorder{}
	t1 := New("t1", newTestLogger())
	require.NoError(t, t1.Start(rec1))
	defer t1.Quit()

	stuck := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	rec2 := &recorder{onHandle: func(nts.Message) {
		once.Do(func() {
			close(stuck)
			<-unblock
		})
	}}
	t2 := New("t2", newTestLogger())
	require.NoError(t, t2.Start(rec2))
	defer t2.Quit()

	t2.Send(&testMsg{seq: 0})
	<-stuck

	called := false
	ctrl := NewController(100*time.Millisecond, newTestLogger())
	start := time.Now()
	err := ctrl.Quiesce(context.Background(), []*Task{t1, t2}, func() error {
		called = true
		return nil
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPauseTimeout), "expected ErrPauseTimeout, got %v", err)
	assert.Contains(t, err.Error(), "t2")
	assert.NotContains(t, err.Error(), "t1")
	assert.False(t, called, "operation must be aborted on timeout")
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)

	// Pause requests are cleared on both tasks even though the operation failed
	assert.False(t, t1.PauseRequested())
	assert.False(t, t2.PauseRequested())

	// Both resume normal processing
	close(unblock)
	t1.Send(&testMsg{seq: 1})
	t2.Send(&testMsg{seq: 1})
	require.Eventually(t, func() bool { return rec1.count() == 1 && rec2.count() == 2 }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return !t1.PauseConfirmed() && !t2.PauseConfirmed() }, time.Second, time.Millisecond)
}

func TestQuiesce_ExitedTasksCountAsConfirmed(t *testing.T) {
	tk := New("exited", newTestLogger())
	require.NoError(t, tk.Start(&recorder{}))
	tk.Quit()

	ran := false
	err := NewController(50*time.Millisecond, newTestLogger()).Quiesce(context.Background(), []*Task{tk, tk}, func() error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestQuiesce_TaskQuitWhileWaiting(t *testing.T) {
	stuck := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	tk := New("quitting", newTestLogger())
	require.NoError(t, tk.Start(&recorder{onHandle: func(nts.Message) {
		once.Do(func() {
			close(stuck)
			<-unblock
		})
	}}))

	tk.Send(&testMsg{})
	<-stuck

	result := make(chan error, 1)
	go func() {
		result <- NewController(10*time.Second, newTestLogger()).Quiesce(context.Background(), []*Task{tk}, func() error { return nil })
	}()
	require.Eventually(t, tk.PauseRequested, time.Second, time.Millisecond)

	quit := make(chan struct{})
	go func() {
		tk.Quit()
		close(quit)
	}()
	// The in-flight step ends only after quit was requested, so the loop exits
	// without reaching the pause.
	<-tk.quit
	close(unblock)
	<-quit

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("quiesce still waiting on a task that quit")
	}
}

func TestQuiesce_ContextCanceled(t *testing.T) {
	stuck := make(chan struct{})
	unblock := make(chan struct{})
	var once sync.Once
	tk := New("ctx", newTestLogger())
	require.NoError(t, tk.Start(&recorder{onHandle: func(nts.Message) {
		once.Do(func() {
			close(stuck)
			<-unblock
		})
	}}))
	defer tk.Quit()
	defer close(unblock)

	tk.Send(&testMsg{})
	<-stuck

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewController(time.Second, newTestLogger()).Quiesce(ctx, []*Task{tk}, func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, tk.PauseRequested())
}

func TestQuiesce_PropagatesOperationError(t *testing.T) {
	tk := New("op-error", newTestLogger())
	require.NoError(t, tk.Start(&recorder{}))
	defer tk.Quit()

	opErr := errors.New("boom")
	err := NewController(time.Second, newTestLogger()).Quiesce(context.Background(), []*Task{tk}, func() error { return opErr })
	assert.ErrorIs(t, err, opErr)
	assert.False(t, tk.PauseRequested())
}

// Feature: pause/quiesce, Property 3: Back-to-back quiesce never loses a confirmation
// A task still parked from the previous pause must confirm the next request.
func TestProperty_BackToBackQuiesce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 4).Draw(rt, "tasks")
		rounds := rapid.IntRange(1, 10).Draw(rt, "rounds")

		tasks := make([]*Task, n)
		for i := range tasks {
			tasks[i] = New("b2b", newTestLogger())
			if err := tasks[i].Start(&counterTask{}); err != nil {
				rt.Fatalf("failed to start task: %v", err)
			}
		}
		defer func() {
			for _, tk := range tasks {
				tk.Quit()
			}
		}()

		ctrl := NewController(time.Second, newTestLogger())
		for r := 0; r < rounds; r++ {
			subset := rapid.SliceOfNDistinct(rapid.IntRange(0, n-1), 1, n, rapid.ID[int]).Draw(rt, "subset")
			targets := make([]*Task, 0, len(subset))
			for _, i := range subset {
				targets = append(targets, tasks[i])
			}
			err := ctrl.Quiesce(context.Background(), targets, func() error {
				for _, tk := range targets {
					if !tk.PauseConfirmed() {
						return errors.New("task not confirmed")
					}
				}
				return nil
			})
			if err != nil {
				rt.Fatalf("round %d: %v", r, err)
			}
		}
	})
}
