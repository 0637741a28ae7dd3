// Package rls runs the device link layer: it probes every cell of the search
// list with heartbeats, reports their signal to RRC and declares radio link
// failure when the serving cell goes silent.
package rls

import (
	"errors"
	"net"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol"
	"github.com/Mmx233/RGNB/shared"
	"github.com/Mmx233/RGNB/task"
	"github.com/rs/zerolog"
)

const (
	timerHeartbeat = 1

	DefaultHeartbeatInterval = 1000 * time.Millisecond
	DefaultSignalLossTimeout = 2000 * time.Millisecond
)

var timeNow = time.Now

type Config struct {
	SearchList        []netip.AddrPort
	HeartbeatInterval time.Duration
	SignalLossTimeout time.Duration
}

type cell struct {
	id       int
	sti      uint64
	addr     netip.AddrPort
	dbm      int
	info     shared.CellDescription
	lastSeen time.Time
}

// CellStatus describes one cell heard by the device.
type CellStatus struct {
	CellID  int                    `json:"cell-id"`
	Address string                 `json:"address"`
	Dbm     int                    `json:"dbm"`
	Info    shared.CellDescription `json:"info"`
	Serving bool                   `json:"serving"`
}

// State is the link-layer view shown to operators.
type State struct {
	Sti         uint64 `json:"sti"`
	ServingCell int    `json:"serving-cell"`
	CellCount   int    `json:"cell-count"`
}

type Handler struct {
	t    *task.Task
	cfg  Config
	ctx  *shared.Context
	conn net.PacketConn
	rrc  nts.Sender

	cells   map[uint64]*cell
	nextID  int
	serving int

	wg sync.WaitGroup
}

// New takes ownership of conn.
func New(t *task.Task, cfg Config, ctx *shared.Context, conn net.PacketConn, rrc nts.Sender) *Handler {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.SignalLossTimeout <= 0 {
		cfg.SignalLossTimeout = DefaultSignalLossTimeout
	}
	if ctx.Sti.Load() == 0 {
		ctx.Sti.Store(protocol.NewSti())
	}
	return &Handler{
		t:     t,
		cfg:   cfg,
		ctx:   ctx,
		conn:  conn,
		rrc:   rrc,
		cells: make(map[uint64]*cell),
	}
}

func (h *Handler) logger() *zerolog.Logger {
	return h.t.Logger()
}

func (h *Handler) OnStart() {
	h.wg.Add(1)
	go h.readLoop()
	h.sendHeartbeats()
	h.t.ArmTimer(timerHeartbeat, h.cfg.HeartbeatInterval)
}

func (h *Handler) OnQuit() {
	_ = h.conn.Close()
	h.wg.Wait()
}

func (h *Handler) readLoop() {
	defer h.wg.Done()
	for {
		bufPtr := protocol.GetReadBuffer()
		n, from, err := h.conn.ReadFrom(*bufPtr)
		if err != nil {
			protocol.PutReadBuffer(bufPtr)
			if !errors.Is(err, net.ErrClosed) {
				h.logger().Error().Err(err).Msg("link socket read failed")
			}
			return
		}
		udpAddr, ok := from.(*net.UDPAddr)
		if ok {
			h.receive((*bufPtr)[:n], udpAddr.AddrPort())
		}
		protocol.PutReadBuffer(bufPtr)
	}
}

func (h *Handler) receive(datagram []byte, from netip.AddrPort) {
	msgType, payload, err := protocol.ParseDatagram(datagram)
	if err != nil {
		h.logger().Debug().Err(err).Str("from", from.String()).Msg("malformed link datagram")
		return
	}
	switch msgType {
	case protocol.MsgTypeHeartbeatAck:
		var ack protocol.HeartbeatAckMsg
		if err = protocol.DecodeMessage(payload, &ack); err != nil {
			h.logger().Debug().Err(err).Msg("malformed heartbeat ack")
			return
		}
		h.t.Send(&nts.LinkHeartbeatAck{From: from, Sti: ack.Sti, Dbm: ack.Dbm, CellID: ack.CellID, Info: ack.Cell})
	case protocol.MsgTypeError:
		var e protocol.ErrorMsg
		if err = protocol.DecodeMessage(payload, &e); err == nil {
			h.logger().Debug().Uint32("code", e.Code).Str("msg", e.Message).Str("from", from.String()).Msg("link error received")
		}
	default:
		h.logger().Debug().Uint8("type", msgType).Msg("unexpected link message type")
	}
}

func (h *Handler) Handle(msg nts.Message) {
	switch m := msg.(type) {
	case *nts.TimerExpired:
		if m.ID == timerHeartbeat {
			h.sendHeartbeats()
			h.checkLoss()
			h.t.ArmTimer(timerHeartbeat, h.cfg.HeartbeatInterval)
		}
	case nts.UeRlsLink:
		switch ack := msg.(type) {
		case *nts.LinkHeartbeatAck:
			h.heartbeatAck(ack)
		default:
			h.t.Unhandled(msg)
		}
	case nts.UeRrcToRls:
		h.handleRrc(m)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleRrc(msg nts.UeRrcToRls) {
	switch m := msg.(type) {
	case *nts.RlsAssignCurrentCell:
		h.serving = m.CellID
		h.logger().Debug().Int("cell", m.CellID).Msg("serving cell assigned")
	case *nts.RlsResetSti:
		h.ctx.Sti.Store(protocol.NewSti())
		h.logger().Debug().Msg("temporary identity renewed")
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) sendHeartbeats() {
	data, err := protocol.EncodeHeartbeat(h.ctx.Sti.Load(), timeNow().UnixMilli())
	if err != nil {
		h.logger().Error().Err(err).Msg("link codec error")
		return
	}
	for _, addr := range h.cfg.SearchList {
		if _, err = h.conn.WriteTo(data, net.UDPAddrFromAddrPort(addr)); err != nil {
			h.logger().Debug().Err(err).Str("to", addr.String()).Msg("heartbeat send failed")
		}
	}
}

func (h *Handler) heartbeatAck(m *nts.LinkHeartbeatAck) {
	c, ok := h.cells[m.Sti]
	if !ok {
		h.nextID++
		c = &cell{id: h.nextID, sti: m.Sti}
		h.cells[m.Sti] = c
		h.logger().Info().Int("cell", c.id).Str("addr", m.From.String()).Str("gnb", m.Info.GnbName).Msg("new cell found")
	}
	c.addr = m.From
	c.dbm = m.Dbm
	c.info = m.Info
	c.lastSeen = timeNow()
	h.rrc.Send(&nts.RlsSignalChanged{CellID: c.id, Dbm: c.dbm, Info: c.info})
}

func (h *Handler) checkLoss() {
	now := timeNow()
	for sti, c := range h.cells {
		if now.Sub(c.lastSeen) <= h.cfg.SignalLossTimeout {
			continue
		}
		delete(h.cells, sti)
		h.logger().Info().Int("cell", c.id).Msg("cell signal lost")
		h.rrc.Send(&nts.RlsSignalChanged{CellID: c.id, Lost: true})
		if c.id == h.serving {
			h.serving = 0
			h.rrc.Send(&nts.RlsRadioLinkFailure{Cause: nts.RlfSignalLostToConnectedCell})
		}
	}
}

// State is safe only while the task is paused.
func (h *Handler) State() State {
	return State{Sti: h.ctx.Sti.Load(), ServingCell: h.serving, CellCount: len(h.cells)}
}

// Coverage is safe only while the task is paused.
func (h *Handler) Coverage() []CellStatus {
	out := make([]CellStatus, 0, len(h.cells))
	for _, c := range h.cells {
		out = append(out, CellStatus{
			CellID:  c.id,
			Address: c.addr.String(),
			Dbm:     c.dbm,
			Info:    c.info,
			Serving: c.id == h.serving,
		})
	}
	slices.SortFunc(out, func(a, b CellStatus) int { return a.CellID - b.CellID })
	return out
}
