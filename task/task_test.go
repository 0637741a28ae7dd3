package task

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Mmx233/RGNB/nts"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() zerolog.Logger {
	return zerolog.Nop()
}

// testMsg is a message carrying its sender and sequence number.
type testMsg struct {
	sender int
	seq    int
}

func (*testMsg) Family() nts.Family { return nts.FamilyUeRrcToRrc }

// recorder is a Handler that keeps everything it saw.
type recorder struct {
	mu       sync.Mutex
	msgs     []nts.Message
	started  atomic.Int32
	quitted  atomic.Int32
	onHandle func(msg nts.Message)
}

func (r *recorder) OnStart() { r.started.Add(1) }
func (r *recorder) OnQuit()  { r.quitted.Add(1) }

func (r *recorder) Handle(msg nts.Message) {
	if r.onHandle != nil {
		r.onHandle(msg)
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, msg)
	r.mu.Unlock()
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func (r *recorder) snapshot() []nts.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]nts.Message(nil), r.msgs...)
}

func (r *recorder) timerIDs() []int {
	var ids []int
	for _, msg := range r.snapshot() {
		if e, ok := msg.(*nts.TimerExpired); ok {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// TestTask_Lifecycle tests the CREATED -> RUNNING -> QUIT progression
func TestTask_Lifecycle(t *testing.T) {
	tk := New("lifecycle", newTestLogger())
	if tk.Stage() != StageCreated {
		t.Fatalf("expected created stage, got %s", tk.Stage())
	}

	// Messages sent before start are kept
	tk.Send(&testMsg{seq: 1})

	rec := &recorder{}
	if err := tk.Start(rec); err != nil {
		t.Fatalf("failed to start task: %v", err)
	}
	if tk.Stage() != StageRunning {
		t.Errorf("expected running stage, got %s", tk.Stage())
	}

	tk.Send(&testMsg{seq: 2})
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond)

	tk.Quit()
	tk.Quit()

	if tk.Stage() != StageQuit {
		t.Errorf("expected quit stage, got %s", tk.Stage())
	}
	if rec.started.Load() != 1 {
		t.Errorf("expected OnStart once, got %d", rec.started.Load())
	}
	if rec.quitted.Load() != 1 {
		t.Errorf("expected OnQuit once, got %d", rec.quitted.Load())
	}

	// Sending to a quit task is discarded
	tk.Send(&testMsg{seq: 3})
	if rec.count() != 2 {
		t.Errorf("expected no processing after quit, got %d messages", rec.count())
	}
}

func TestTask_StartTwice(t *testing.T) {
	tk := New("twice", newTestLogger())
	defer tk.Quit()

	require.NoError(t, tk.Start(&recorder{}))
	err := tk.Start(&recorder{})
	if !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestTask_QuitBeforeStart(t *testing.T) {
	tk := New("never-started", newTestLogger())
	tk.Send(&testMsg{})
	tk.Quit()

	assert.Equal(t, StageQuit, tk.Stage())
	assert.Equal(t, 0, tk.MailboxLen())
	assert.ErrorIs(t, tk.Start(&recorder{}), ErrAlreadyStarted)
}

// TestTask_QuitFinishesInFlightStep verifies that quit lets the running step
// complete and discards everything still queued.
func TestTask_QuitFinishesInFlightStep(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	rec := &recorder{onHandle: func(nts.Message) {
		once.Do(func() {
			close(entered)
			<-release
		})
	}}
	tk := New("in-flight", newTestLogger())
	require.NoError(t, tk.Start(rec))

	tk.Send(&testMsg{seq: 1})
	<-entered
	tk.Send(&testMsg{seq: 2})
	tk.Send(&testMsg{seq: 3})

	quitDone := make(chan struct{})
	go func() {
		tk.Quit()
		close(quitDone)
	}()

	require.Eventually(t, func() bool {
		select {
		case <-tk.quit:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	close(release)
	<-quitDone

	assert.Equal(t, 1, rec.count(), "queued messages must be discarded")
	assert.Equal(t, int32(1), rec.quitted.Load())
}

func TestTask_TimerExpires(t *testing.T) {
	rec := &recorder{}
	tk := New("timer", newTestLogger())
	require.NoError(t, tk.Start(rec))
	defer tk.Quit()

	tk.ArmTimer(7, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.timerIDs()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []int{7}, rec.timerIDs())
	assert.Empty(t, tk.Timers())
}

// TestTask_TimerRearmCancelsPending verifies that re-arming an id replaces the
// pending expiration instead of adding a second one.
func TestTask_TimerRearmCancelsPending(t *testing.T) {
	rec := &recorder{}
	tk := New("rearm", newTestLogger())
	require.NoError(t, tk.Start(rec))
	defer tk.Quit()

	tk.ArmTimer(1, 20*time.Millisecond)
	tk.ArmTimer(1, 40*time.Millisecond)
	tk.ArmTimer(2, 30*time.Millisecond)

	require.Eventually(t, func() bool { return len(rec.timerIDs()) == 2 }, time.Second, time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	ids := rec.timerIDs()
	assert.ElementsMatch(t, []int{1, 2}, ids)
}

func TestTask_CancelTimer(t *testing.T) {
	rec := &recorder{}
	tk := New("cancel", newTestLogger())
	require.NoError(t, tk.Start(rec))
	defer tk.Quit()

	tk.ArmTimer(3, 20*time.Millisecond)
	remaining := tk.Timers()
	if d, ok := remaining[3]; !ok || d <= 0 || d > 20*time.Millisecond {
		t.Errorf("unexpected remaining duration for timer 3: %v (armed=%v)", d, ok)
	}

	tk.CancelTimer(3)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.timerIDs())
}

// TestTask_TimerInterleavesWithMessages verifies timer expirations go through
// the same mailbox as ordinary messages.
func TestTask_TimerInterleavesWithMessages(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	rec := &recorder{onHandle: func(nts.Message) {
		once.Do(func() { <-release })
	}}
	tk := New("interleave", newTestLogger())
	require.NoError(t, tk.Start(rec))
	defer tk.Quit()

	tk.Send(&testMsg{seq: 1})
	tk.ArmTimer(9, time.Millisecond)
	require.Eventually(t, func() bool { return tk.MailboxLen() == 1 }, time.Second, time.Millisecond)
	tk.Send(&testMsg{seq: 2})
	close(release)

	require.Eventually(t, func() bool { return rec.count() == 3 }, time.Second, time.Millisecond)
	msgs := rec.snapshot()
	assert.IsType(t, &testMsg{}, msgs[0])
	assert.IsType(t, &nts.TimerExpired{}, msgs[1])
	assert.IsType(t, &testMsg{}, msgs[2])
}

func TestTask_Unhandled(t *testing.T) {
	tk := New("unhandled", newTestLogger())
	rec := &recorder{}
	rec.onHandle = func(msg nts.Message) { tk.Unhandled(msg) }
	require.NoError(t, tk.Start(rec))
	defer tk.Quit()

	tk.Send(&testMsg{seq: 1})
	tk.Send(&testMsg{seq: 2})
	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, StageRunning, tk.Stage(), "unhandled messages must not stop the task")
}

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage    Stage
		expected string
	}{
		{StageCreated, "created"},
		{StageRunning, "running"},
		{StageQuit, "quit"},
		{Stage(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.stage.String(); got != tt.expected {
			t.Errorf("Stage(%d).String() = %q, want %q", tt.stage, got, tt.expected)
		}
	}
}
