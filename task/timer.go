package task

import (
	"time"

	"github.com/Mmx233/RGNB/nts"
)

// timerFire travels through the mailbox and becomes an nts.TimerExpired when
// it still matches the armed generation of its id.
type timerFire struct {
	id  int
	gen uint64
}

func (*timerFire) Family() nts.Family { return nts.FamilyTimer }

type timerEntry struct {
	timer    *time.Timer
	gen      uint64
	deadline time.Time
}

// ArmTimer schedules a one-shot expiration for id. Re-arming an id cancels
// the pending expiration for that id.
func (t *Task) ArmTimer(id int, d time.Duration) {
	t.timerMu.Lock()
	defer t.timerMu.Unlock()

	if t.timersStopped {
		return
	}
	if e, ok := t.timers[id]; ok {
		e.timer.Stop()
	}
	t.timerGen++
	gen := t.timerGen
	t.timers[id] = &timerEntry{
		gen:      gen,
		deadline: time.Now().Add(d),
		timer: time.AfterFunc(d, func() {
			t.mailbox.push(&timerFire{id: id, gen: gen})
		}),
	}
}

// CancelTimer drops the pending expiration of id, if any.
func (t *Task) CancelTimer(id int) {
	t.timerMu.Lock()
	defer t.timerMu.Unlock()
	if e, ok := t.timers[id]; ok {
		e.timer.Stop()
		delete(t.timers, id)
	}
}

// Timers returns the remaining duration of every armed timer.
func (t *Task) Timers() map[int]time.Duration {
	t.timerMu.Lock()
	defer t.timerMu.Unlock()
	now := time.Now()
	out := make(map[int]time.Duration, len(t.timers))
	for id, e := range t.timers {
		out[id] = max(e.deadline.Sub(now), 0)
	}
	return out
}

// takeTimer consumes the armed entry matching f. Stale fires report false.
func (t *Task) takeTimer(f *timerFire) bool {
	t.timerMu.Lock()
	defer t.timerMu.Unlock()
	e, ok := t.timers[f.id]
	if !ok || e.gen != f.gen {
		return false
	}
	delete(t.timers, f.id)
	return true
}

func (t *Task) stopTimers() {
	t.timerMu.Lock()
	defer t.timerMu.Unlock()
	t.timersStopped = true
	for id, e := range t.timers {
		e.timer.Stop()
		delete(t.timers, id)
	}
}
