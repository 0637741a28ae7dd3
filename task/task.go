// Package task implements the execution primitive every protocol layer runs on:
// a goroutine draining a private mailbox, one message at a time, with one-shot
// timers delivered through the same mailbox.
package task

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Mmx233/RGNB/metrics"
	"github.com/Mmx233/RGNB/nts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Stage is the lifecycle stage of a task.
type Stage int32

const (
	StageCreated Stage = iota
	StageRunning
	StageQuit
)

// String returns a string representation of the stage
func (s Stage) String() string {
	switch s {
	case StageCreated:
		return "created"
	case StageRunning:
		return "running"
	case StageQuit:
		return "quit"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyStarted = errors.New("task already started")
	ErrPauseTimeout   = errors.New("pause confirmation timeout")
)

// Handler is the private state block of a task. All three methods run on the
// task goroutine, so the handler may mutate its own fields without locking.
type Handler interface {
	OnStart()
	Handle(msg nts.Message)
	OnQuit()
}

// Task owns a mailbox and processes it sequentially with its Handler.
type Task struct {
	name    string
	logger  zerolog.Logger
	handler Handler
	mailbox *mailbox
	stage   atomic.Int32

	timerMu       sync.Mutex
	timers        map[int]*timerEntry
	timerGen      uint64
	timersStopped bool

	pauseMu        sync.Mutex
	pauseRequested atomic.Bool
	pauseConfirmed atomic.Bool
	pauseGen       uint64
	pauseNotify    chan<- *Task
	wake           chan struct{}

	quit     chan struct{}
	quitOnce sync.Once
	done     chan struct{}

	processed prometheus.Counter
}

// New creates a task in the CREATED stage. Messages sent before Start are kept.
func New(name string, logger zerolog.Logger) *Task {
	return &Task{
		name:      name,
		logger:    logger.With().Str("com", name).Logger(),
		mailbox:   newMailbox(),
		timers:    make(map[int]*timerEntry),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		processed: metrics.TaskMessages.WithLabelValues(name),
	}
}

func (t *Task) Name() string {
	return t.name
}

// Logger returns the task-scoped logger.
func (t *Task) Logger() *zerolog.Logger {
	return &t.logger
}

func (t *Task) Stage() Stage {
	return Stage(t.stage.Load())
}

// MailboxLen returns the number of queued messages.
func (t *Task) MailboxLen() int {
	return t.mailbox.len()
}

// Send enqueues msg. Messages for a task that already quit are discarded.
func (t *Task) Send(msg nts.Message) {
	if !t.mailbox.push(msg) {
		t.logger.Debug().Str("family", msg.Family().String()).Msg("message discarded, task quit")
	}
}

// Start runs h on a new goroutine. A task can be started once.
func (t *Task) Start(h Handler) error {
	if !t.stage.CompareAndSwap(int32(StageCreated), int32(StageRunning)) {
		return fmt.Errorf("%s: %w", t.name, ErrAlreadyStarted)
	}
	t.handler = h
	go t.run()
	return nil
}

// Quit stops the task after the in-flight step, discards its mailbox and runs
// the teardown hook once. It blocks until the task goroutine exited, so it
// must not be called from the task's own handler.
func (t *Task) Quit() {
	t.quitOnce.Do(func() {
		close(t.quit)
		if t.stage.CompareAndSwap(int32(StageCreated), int32(StageQuit)) {
			t.mailbox.close()
			t.stopTimers()
			close(t.done)
		}
	})
	<-t.done
}

// Done is closed once the task goroutine exited.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Unhandled reports a message the handler has no case for. The task keeps running.
func (t *Task) Unhandled(msg nts.Message) {
	family := msg.Family().String()
	t.logger.Error().
		Str("family", family).
		Str("variant", fmt.Sprintf("%T", msg)).
		Msg("unhandled message")
	metrics.UnhandledMessages.WithLabelValues(t.name, family).Inc()
}

func (t *Task) run() {
	defer close(t.done)
	defer t.teardown()

	t.handler.OnStart()
	for {
		select {
		case <-t.quit:
			return
		default:
		}

		if t.pauseRequested.Load() {
			if !t.holdPaused() {
				return
			}
			continue
		}

		msg, ok := t.mailbox.pop()
		if !ok {
			select {
			case <-t.mailbox.signal:
			case <-t.wake:
			case <-t.quit:
				return
			}
			continue
		}
		t.dispatch(msg)
	}
}

func (t *Task) dispatch(msg nts.Message) {
	if fire, ok := msg.(*timerFire); ok {
		if !t.takeTimer(fire) {
			return
		}
		msg = &nts.TimerExpired{ID: fire.id}
	}
	t.processed.Inc()
	t.handler.Handle(msg)
}

func (t *Task) teardown() {
	if n := t.mailbox.close(); n > 0 {
		t.logger.Debug().Int("discarded", n).Msg("mailbox discarded on quit")
	}
	t.stopTimers()
	t.handler.OnQuit()
	t.stage.Store(int32(StageQuit))
	t.logger.Debug().Msg("task quit")
}
