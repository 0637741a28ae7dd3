package task

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Mmx233/RGNB/metrics"
	"github.com/rs/zerolog"
)

const (
	// DefaultPauseTimeout bounds how long a controller waits for every task to confirm pause.
	DefaultPauseTimeout = 3000 * time.Millisecond
)

// PauseRequested reports whether a controller asked the task to pause.
func (t *Task) PauseRequested() bool {
	return t.pauseRequested.Load()
}

// PauseConfirmed reports whether the task stopped processing because of a pause request.
func (t *Task) PauseConfirmed() bool {
	return t.pauseConfirmed.Load()
}

func (t *Task) requestPause(notify chan<- *Task) {
	t.pauseMu.Lock()
	t.pauseGen++
	t.pauseNotify = notify
	t.pauseRequested.Store(true)
	t.pauseMu.Unlock()
	t.signalWake()
}

func (t *Task) clearPause() {
	t.pauseMu.Lock()
	t.pauseNotify = nil
	t.pauseRequested.Store(false)
	t.pauseMu.Unlock()
	t.signalWake()
}

func (t *Task) signalWake() {
	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// holdPaused confirms the pause and blocks until it is cleared. Each new
// request is confirmed once on its own notification channel. It returns false
// when the task was told to quit meanwhile.
func (t *Task) holdPaused() bool {
	var confirmedGen uint64
	for {
		t.pauseMu.Lock()
		if !t.pauseRequested.Load() {
			t.pauseConfirmed.Store(false)
			t.pauseMu.Unlock()
			return true
		}
		if t.pauseGen != confirmedGen {
			confirmedGen = t.pauseGen
			t.pauseConfirmed.Store(true)
			select {
			case t.pauseNotify <- t:
			default:
			}
		}
		t.pauseMu.Unlock()

		select {
		case <-t.wake:
		case <-t.quit:
			return false
		}
	}
}

func (t *Task) exited() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Controller quiesces sets of tasks so their private state can be read or
// changed from outside. Quiesce calls are serialized.
type Controller struct {
	mu      sync.Mutex
	timeout time.Duration
	logger  zerolog.Logger
}

// NewController creates a controller. A non-positive timeout selects DefaultPauseTimeout.
func NewController(timeout time.Duration, logger zerolog.Logger) *Controller {
	if timeout <= 0 {
		timeout = DefaultPauseTimeout
	}
	return &Controller{
		timeout: timeout,
		logger:  logger.With().Str("com", "quiesce").Logger(),
	}
}

// Quiesce pauses every task, runs fn once all of them confirmed, and resumes
// them. Pause requests are cleared on every path, including timeout. Tasks
// that exited, before or during the wait, count as confirmed.
func (c *Controller) Quiesce(ctx context.Context, tasks []*Task, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	targets := make([]*Task, 0, len(tasks))
	seen := make(map[*Task]struct{}, len(tasks))
	for _, t := range tasks {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		targets = append(targets, t)
	}

	notify := make(chan *Task, len(targets))
	for _, t := range targets {
		t.requestPause(notify)
	}
	defer func() {
		for _, t := range targets {
			t.clearPause()
		}
	}()

	confirmed := make(map[*Task]struct{}, len(targets))
	quitting := make(chan *Task, len(targets))
	stop := make(chan struct{})
	defer close(stop)
	for _, t := range targets {
		if t.exited() {
			confirmed[t] = struct{}{}
			continue
		}
		// A task that quits while the request is pending never confirms it.
		go func() {
			select {
			case <-t.Done():
				quitting <- t
			case <-stop:
			}
		}()
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	for len(confirmed) < len(targets) {
		select {
		case t := <-notify:
			confirmed[t] = struct{}{}
		case t := <-quitting:
			confirmed[t] = struct{}{}
		case <-timer.C:
			var pending []string
			for _, t := range targets {
				if _, ok := confirmed[t]; !ok {
					pending = append(pending, t.name)
				}
			}
			metrics.PauseTimeouts.Inc()
			c.logger.Warn().Strs("tasks", pending).Dur("timeout", c.timeout).Msg("pause not confirmed")
			return fmt.Errorf("%w: %s", ErrPauseTimeout, strings.Join(pending, ","))
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fn()
}
