package task

import (
	"sync"
	"testing"
	"time"

	"github.com/Mmx233/RGNB/nts"
	"pgregory.net/rapid"
)

// Feature: task runtime, Property 1: Mailbox FIFO per sender
// For any number of concurrent senders, each sender's messages reach the
// receiver in the order that sender sent them.
func TestProperty_MailboxFIFOPerSender(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		senders := rapid.IntRange(1, 6).Draw(rt, "senders")
		perSender := rapid.IntRange(1, 64).Draw(rt, "per_sender")

		rec := &recorder{}
		tk := New("fifo", newTestLogger())
		if err := tk.Start(rec); err != nil {
			rt.Fatalf("failed to start task: %v", err)
		}
		defer tk.Quit()

		var wg sync.WaitGroup
		for s := 0; s < senders; s++ {
			wg.Add(1)
			go func(sender int) {
				defer wg.Done()
				for i := 0; i < perSender; i++ {
					tk.Send(&testMsg{sender: sender, seq: i})
				}
			}(s)
		}
		wg.Wait()

		deadline := time.Now().Add(2 * time.Second)
		for rec.count() < senders*perSender {
			if time.Now().After(deadline) {
				rt.Fatalf("expected %d messages, got %d", senders*perSender, rec.count())
			}
			time.Sleep(time.Millisecond)
		}

		next := make([]int, senders)
		for _, msg := range rec.snapshot() {
			m := msg.(*testMsg)
			if m.seq != next[m.sender] {
				rt.Fatalf("sender %d: expected seq %d, got %d", m.sender, next[m.sender], m.seq)
			}
			next[m.sender]++
		}
	})
}

// counterHandler mutates its field without any synchronization. Running the
// property under -race proves the single-consumer guarantee.
type counterHandler struct {
	value int
	seen  map[int]int
}

func (h *counterHandler) OnStart() { h.seen = make(map[int]int) }
func (h *counterHandler) OnQuit()  {}
func (h *counterHandler) Handle(msg nts.Message) {
	m := msg.(*testMsg)
	h.value++
	h.seen[m.sender]++
}

// Feature: task runtime, Property 2: Single writer
// Task-local state is only ever mutated by the task goroutine, whatever the
// number of producers.
func TestProperty_SingleWriter(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		senders := rapid.IntRange(1, 8).Draw(rt, "senders")
		perSender := rapid.IntRange(1, 32).Draw(rt, "per_sender")

		h := &counterHandler{}
		tk := New("single-writer", newTestLogger())
		if err := tk.Start(h); err != nil {
			rt.Fatalf("failed to start task: %v", err)
		}

		var wg sync.WaitGroup
		for s := 0; s < senders; s++ {
			wg.Add(1)
			go func(sender int) {
				defer wg.Done()
				for i := 0; i < perSender; i++ {
					tk.Send(&testMsg{sender: sender, seq: i})
				}
			}(s)
		}
		wg.Wait()

		deadline := time.Now().Add(2 * time.Second)
		for tk.MailboxLen() > 0 {
			if time.Now().After(deadline) {
				rt.Fatalf("mailbox not drained")
			}
			time.Sleep(time.Millisecond)
		}
		// Quit waits for the task goroutine, which orders its writes before our reads.
		tk.Quit()

		if h.value != senders*perSender {
			rt.Fatalf("expected %d increments, got %d", senders*perSender, h.value)
		}
		for s := 0; s < senders; s++ {
			if h.seen[s] != perSender {
				rt.Fatalf("sender %d: expected %d messages, got %d", s, perSender, h.seen[s])
			}
		}
	})
}
