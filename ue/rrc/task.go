// Package rrc runs the device RRC task: the RRC state machine, cell selection
// over the cells reported by the link layer, and the device end of the relay.
package rrc

import (
	"slices"
	"sync/atomic"
	"time"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/relay"
	"github.com/Mmx233/RGNB/shared"
	"github.com/Mmx233/RGNB/task"
	"github.com/rs/zerolog"
)

const (
	timerCycle           = 1
	DefaultCycleInterval = 2500 * time.Millisecond

	// MinimumSignalDbm is the weakest signal a cell may have to be selected.
	MinimumSignalDbm = -120
)

// State is the RRC state of the device.
type State int32

const (
	StateIdle State = iota
	StateConnected
	StateInactive
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "RRC-IDLE"
	case StateConnected:
		return "RRC-CONNECTED"
	case StateInactive:
		return "RRC-INACTIVE"
	default:
		return "unknown"
	}
}

type Config struct {
	CycleInterval time.Duration
}

type Peers struct {
	Nas    nts.Sender
	Rls    nts.Sender
	GnbRrc nts.Sender
}

// Cell is a measured cell as last reported by the link layer.
type Cell struct {
	CellID int                    `json:"cell-id"`
	Dbm    int                    `json:"dbm"`
	Info   shared.CellDescription `json:"info"`
}

type Handler struct {
	t     *task.Task
	cfg   Config
	ctx   *shared.Context
	relay *relay.Table
	peers Peers

	state  atomic.Int32
	handle relay.Handle
	cells  map[int]*Cell
}

func New(t *task.Task, cfg Config, ctx *shared.Context, table *relay.Table, peers Peers) *Handler {
	if cfg.CycleInterval <= 0 {
		cfg.CycleInterval = DefaultCycleInterval
	}
	return &Handler{
		t:     t,
		cfg:   cfg,
		ctx:   ctx,
		relay: table,
		peers: peers,
		cells: make(map[int]*Cell),
	}
}

func (h *Handler) logger() *zerolog.Logger {
	return h.t.Logger()
}

func (h *Handler) OnStart() {
	h.t.ArmTimer(timerCycle, h.cfg.CycleInterval)
}

func (h *Handler) OnQuit() {}

func (h *Handler) Handle(msg nts.Message) {
	switch m := msg.(type) {
	case *nts.TimerExpired:
		if m.ID == timerCycle {
			h.performCycle()
			h.t.ArmTimer(timerCycle, h.cfg.CycleInterval)
		}
	case nts.UeRrcToRrc:
		switch msg.(type) {
		case *nts.RrcTriggerCycle:
			h.performCycle()
		default:
			h.t.Unhandled(msg)
		}
	case nts.UeNasToRrc:
		h.handleNas(m)
	case nts.UeRlsToRrc:
		h.handleRls(m)
	case nts.BridgeToUe:
		h.handleBridge(m)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleNas(msg nts.UeNasToRrc) {
	switch m := msg.(type) {
	case *nts.NasUplinkDelivery:
		h.uplinkNas(m)
	case *nts.NasLocalReleaseConnection:
		h.releaseCorrelation()
		h.switchState(StateIdle)
		h.peers.Rls.Send(&nts.RlsResetSti{})
		h.peers.Nas.Send(&nts.RrcConnectionRelease{})
	case *nts.NasRrcNotify:
		h.t.Send(&nts.RrcTriggerCycle{})
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleRls(msg nts.UeRlsToRrc) {
	switch m := msg.(type) {
	case *nts.RlsSignalChanged:
		h.signalChanged(m)
	case *nts.RlsRadioLinkFailure:
		h.logger().Warn().Stringer("cause", m.Cause).Msg("radio link failure")
		h.releaseCorrelation()
		h.switchState(StateIdle)
		h.peers.Nas.Send(&nts.RrcRadioLinkFailureNotify{Cause: m.Cause})
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleBridge(msg nts.BridgeToUe) {
	switch m := msg.(type) {
	case *nts.BridgeDownlinkNas:
		if !h.owns(m.Handle) {
			return
		}
		if h.State() == StateInactive {
			h.logger().Debug().Msg("downlink for suspended session, resuming")
			h.switchState(StateConnected)
		}
		h.peers.Nas.Send(&nts.RrcNasDelivery{Pdu: m.Pdu})
	case *nts.BridgeConnectionRelease:
		if !h.owns(m.Handle) {
			return
		}
		h.handle = 0
		h.switchState(StateIdle)
		h.peers.Nas.Send(&nts.RrcConnectionRelease{})
	case *nts.BridgeSuspend:
		if !h.owns(m.Handle) {
			return
		}
		if h.State() == StateConnected {
			h.switchState(StateInactive)
		}
	default:
		h.t.Unhandled(msg)
	}
}

// owns reports whether handle is the correlation of the current session.
func (h *Handler) owns(handle relay.Handle) bool {
	if handle == 0 || handle != h.handle {
		h.logger().Warn().Uint32("handle", uint32(handle)).Uint32("current", uint32(h.handle)).
			Msg("relay message for a stale session ignored")
		return false
	}
	return true
}

func (h *Handler) uplinkNas(m *nts.NasUplinkDelivery) {
	if len(m.Pdu) == 0 {
		return
	}
	if !h.ctx.CurrentCell.Get().HasValue() {
		h.logger().Error().Msg("uplink NAS delivery failed, no active cell")
		h.peers.Nas.Send(&nts.RrcEstablishmentFailure{})
		return
	}

	switch h.State() {
	case StateIdle:
		open := h.relay.InitialUplink(m.Pdu)
		h.handle = open.Handle
		h.switchState(StateConnected)
		h.peers.GnbRrc.Send(open)
		h.peers.Nas.Send(&nts.RrcConnectionSetup{})
	case StateConnected, StateInactive:
		up, err := h.relay.SubsequentUplink(h.handle, m.Pdu)
		if err != nil {
			h.logger().Error().Err(err).Msg("uplink NAS relay failed")
			h.handle = 0
			h.switchState(StateIdle)
			h.peers.Nas.Send(&nts.RrcConnectionRelease{})
			return
		}
		if h.State() == StateInactive {
			h.logger().Debug().Uint32("handle", uint32(h.handle)).Msg("resuming suspended session")
			h.switchState(StateConnected)
		}
		h.peers.GnbRrc.Send(up)
	}
}

// releaseCorrelation drops the current session on the device side. The
// station is told only when this side removed the correlation.
func (h *Handler) releaseCorrelation() {
	if h.handle == 0 {
		return
	}
	handle := h.handle
	h.handle = 0
	if _, released := h.relay.ReleaseHandle(handle); released {
		h.peers.GnbRrc.Send(&nts.BridgeLocalRelease{Handle: handle})
	}
}

func (h *Handler) switchState(state State) {
	old := State(h.state.Swap(int32(state)))
	if old != state {
		h.logger().Info().Stringer("from", old).Stringer("to", state).Msg("UE switches RRC state")
	}
}

func (h *Handler) signalChanged(m *nts.RlsSignalChanged) {
	if m.Lost {
		if _, ok := h.cells[m.CellID]; ok {
			delete(h.cells, m.CellID)
			h.logger().Debug().Int("cell", m.CellID).Msg("cell lost")
		}
		return
	}
	c, known := h.cells[m.CellID]
	if !known {
		c = &Cell{CellID: m.CellID}
		h.cells[m.CellID] = c
		h.logger().Debug().Int("cell", m.CellID).Int("dbm", m.Dbm).Msg("new cell detected")
	}
	c.Dbm = m.Dbm
	c.Info = m.Info
	if m.Info.Plmn.HasValue() {
		h.ctx.AddAvailablePlmn(m.Info.Plmn)
	}
	if !known && h.State() != StateConnected {
		h.performCycle()
	}
}

func (h *Handler) performCycle() {
	if h.State() == StateConnected {
		return
	}
	h.performCellSelection()
}

func (h *Handler) performCellSelection() {
	previous := h.ctx.CurrentCell.Get()
	selected := SelectCell(h.cellList(), h.ctx.SelectedPlmn.Get(), h.ctx.IsForbidden)
	if selected == previous {
		return
	}

	h.ctx.CurrentCell.Set(selected)
	if selected.CellID != previous.CellID {
		h.peers.Rls.Send(&nts.RlsAssignCurrentCell{CellID: selected.CellID})
	}
	if selected.HasValue() {
		h.logger().Info().Int("cell", selected.CellID).Stringer("category", selected.Category).
			Stringer("tai", selected.Tai()).Msg("cell selected")
	} else {
		h.logger().Warn().Msg("no suitable or acceptable cell found")
	}
	h.peers.Nas.Send(&nts.RrcActiveCellChanged{PreviousTai: previous.Tai()})
}

func (h *Handler) cellList() []Cell {
	out := make([]Cell, 0, len(h.cells))
	for _, c := range h.cells {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b Cell) int { return a.CellID - b.CellID })
	return out
}

// SelectCell picks the strongest usable cell. A cell of the selected PLMN in a
// tracking area that is not forbidden is suitable; any other usable cell is
// acceptable, and suitable cells always win.
func SelectCell(cells []Cell, plmn shared.Plmn, forbidden func(shared.Tai) bool) shared.ActiveCellInfo {
	var best *Cell
	bestCategory := shared.CellBarred
	for i := range cells {
		c := &cells[i]
		if c.Info.Barred || c.Dbm < MinimumSignalDbm {
			continue
		}
		category := shared.CellAcceptable
		tai := shared.Tai{Plmn: c.Info.Plmn, Tac: c.Info.Tac}
		if plmn.HasValue() && c.Info.Plmn == plmn && !forbidden(tai) {
			category = shared.CellSuitable
		}
		switch {
		case best == nil,
			category > bestCategory,
			category == bestCategory && c.Dbm > best.Dbm,
			category == bestCategory && c.Dbm == best.Dbm && c.CellID < best.CellID:
			best, bestCategory = c, category
		}
	}
	if best == nil {
		return shared.ActiveCellInfo{}
	}
	return shared.ActiveCellInfo{
		CellID:   best.CellID,
		Category: bestCategory,
		Plmn:     best.Info.Plmn,
		Tac:      best.Info.Tac,
	}
}

// State may be read from any goroutine.
func (h *Handler) State() State {
	return State(h.state.Load())
}

// CurrentHandle is safe only while the task is paused.
func (h *Handler) CurrentHandle() relay.Handle {
	return h.handle
}

// Cells is safe only while the task is paused.
func (h *Handler) Cells() []Cell {
	return h.cellList()
}
