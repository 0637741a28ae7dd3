// Package sctp runs the association task that carries NGAP toward the core network.
package sctp

import (
	"errors"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/task"
	"github.com/rs/zerolog"
)

const receiveBufferSize = 8192

type client struct {
	id         int
	assoc      Association
	associated nts.Sender
	closing    bool
}

// Handler owns every association of the station. Receiver goroutines push
// inbound messages straight into the associated task.
type Handler struct {
	t      *task.Task
	dialer Dialer

	mu        sync.Mutex
	clients   map[int]*client
	nextAssoc int
	wg        sync.WaitGroup
}

func New(t *task.Task, dialer Dialer) *Handler {
	if dialer == nil {
		dialer = Free5gcDialer{}
	}
	return &Handler{
		t:       t,
		dialer:  dialer,
		clients: make(map[int]*client),
	}
}

func (h *Handler) logger() *zerolog.Logger {
	return h.t.Logger()
}

func (h *Handler) OnStart() {}

func (h *Handler) OnQuit() {
	h.mu.Lock()
	for _, c := range h.clients {
		c.closing = true
		_ = c.assoc.Close()
	}
	h.clients = make(map[int]*client)
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *Handler) Handle(msg nts.Message) {
	m, ok := msg.(nts.GnbSctp)
	if !ok {
		h.t.Unhandled(msg)
		return
	}
	switch m := m.(type) {
	case *nts.SctpConnectionRequest:
		h.connect(m)
	case *nts.SctpConnectionClose:
		h.close(m.ClientID)
	case *nts.SctpSendMessage:
		h.send(m)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) connect(req *nts.SctpConnectionRequest) {
	h.mu.Lock()
	_, exists := h.clients[req.ClientID]
	h.mu.Unlock()
	if exists {
		h.logger().Warn().Int("client", req.ClientID).Msg("connection request for an existing client ignored")
		return
	}

	assoc, err := h.dialer.Dial(req.LocalAddr, req.LocalPort, req.RemoteAddr, req.RemotePort, req.PPID)
	if err != nil {
		h.logger().Error().Err(err).
			Int("client", req.ClientID).
			Str("remote", net.JoinHostPort(req.RemoteAddr, strconv.Itoa(req.RemotePort))).
			Msg("sctp association could not be established")
		return
	}

	h.mu.Lock()
	h.nextAssoc++
	c := &client{id: req.ClientID, assoc: assoc, associated: req.Associated}
	h.clients[req.ClientID] = c
	assocID := h.nextAssoc
	h.mu.Unlock()

	in, out := assoc.Streams()
	h.logger().Info().
		Int("client", req.ClientID).
		Int("assoc", assocID).
		Str("remote", net.JoinHostPort(req.RemoteAddr, strconv.Itoa(req.RemotePort))).
		Msg("sctp association established")

	// Setup is queued before the receiver starts so it precedes any inbound message.
	req.Associated.Send(&nts.SctpAssociationSetup{
		ClientID:   req.ClientID,
		AssocID:    assocID,
		InStreams:  in,
		OutStreams: out,
	})

	h.wg.Add(1)
	go h.receive(c)
}

func (h *Handler) receive(c *client) {
	defer h.wg.Done()
	for {
		buf := make([]byte, receiveBufferSize)
		n, err := c.assoc.Read(buf)
		if err != nil {
			h.mu.Lock()
			closing := c.closing
			if h.clients[c.id] == c {
				delete(h.clients, c.id)
			}
			h.mu.Unlock()

			if !closing && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				h.logger().Warn().Err(err).Int("client", c.id).Msg("sctp receive failed")
			}
			if !closing {
				c.associated.Send(&nts.SctpAssociationShutdown{ClientID: c.id})
			}
			return
		}
		if n == 0 {
			continue
		}
		c.associated.Send(&nts.SctpReceiveMessage{ClientID: c.id, Buffer: buf[:n]})
	}
}

func (h *Handler) send(m *nts.SctpSendMessage) {
	h.mu.Lock()
	c, ok := h.clients[m.ClientID]
	h.mu.Unlock()
	if !ok {
		h.logger().Warn().Int("client", m.ClientID).Msg("send on unknown sctp client dropped")
		return
	}
	if _, err := c.assoc.WriteStream(m.Buffer, m.Stream); err != nil {
		h.logger().Error().Err(err).Int("client", m.ClientID).Int("stream", m.Stream).Msg("sctp send failed")
	}
}

func (h *Handler) close(id int) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		c.closing = true
		delete(h.clients, id)
	}
	h.mu.Unlock()
	if !ok {
		h.logger().Warn().Int("client", id).Msg("close of unknown sctp client ignored")
		return
	}
	if err := c.assoc.Close(); err != nil {
		h.logger().Debug().Err(err).Int("client", id).Msg("sctp close")
	}
}

// Clients returns the ids of the live associations.
func (h *Handler) Clients() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]int, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}
