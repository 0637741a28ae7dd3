package task

import (
	"sync"

	"github.com/Mmx233/RGNB/nts"
)

// mailbox is an unbounded FIFO with many producers and one consumer.
type mailbox struct {
	mu     sync.Mutex
	queue  []nts.Message
	closed bool

	// signal holds at most one pending wakeup for the consumer.
	signal chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		queue:  make([]nts.Message, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// push appends msg and wakes the consumer. It returns false once the mailbox is closed.
func (m *mailbox) push(msg nts.Message) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

func (m *mailbox) pop() (nts.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return nil, false
	}
	msg := m.queue[0]
	m.queue[0] = nil
	m.queue = m.queue[1:]
	if len(m.queue) == 0 {
		m.queue = m.queue[:0:0]
	}
	return msg, true
}

// close rejects further pushes and discards whatever is still queued.
func (m *mailbox) close() (discarded int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	discarded = len(m.queue)
	m.queue = nil
	return discarded
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
