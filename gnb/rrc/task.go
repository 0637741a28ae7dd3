// Package rrc runs the station RRC task. It terminates RRC toward downstream
// devices and is the station end of the relay toward the device stack.
package rrc

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol/rrcmsg"
	"github.com/Mmx233/RGNB/relay"
	"github.com/Mmx233/RGNB/shared"
	"github.com/Mmx233/RGNB/task"
	"github.com/rs/zerolog"
)

const (
	timerSiBroadcast           = 1
	DefaultSiBroadcastInterval = 10 * time.Second
	relayedUeIDBase            = 1 << 24
)

var ErrUeNotFound = errors.New("RRC UE context not found")

type UeContext struct {
	UeID               int
	InitialID          uint64
	IsInitialIDSTmsi   bool
	EstablishmentCause nts.EstablishmentCause
	STmsi              uint64

	Relayed bool
	Handle  relay.Handle
	Ids     nts.UeNgapIDs

	transaction int
}

func (u *UeContext) nextTransaction() int {
	u.transaction = (u.transaction + 1) % 4
	return u.transaction
}

type Config struct {
	Cell shared.CellDescription

	SiBroadcastInterval time.Duration
	// InactivityTimeout suspends an idle relayed session. Zero disables it.
	InactivityTimeout time.Duration
}

type Peers struct {
	Rls   nts.Sender
	Ngap  nts.Sender
	UeRrc nts.Sender
}

type Handler struct {
	t     *task.Task
	cfg   Config
	relay *relay.Table
	peers Peers

	ues         map[int]*UeContext
	byHandle    map[relay.Handle]int
	nextRelayed int
	poweredOn   bool
}

func New(t *task.Task, cfg Config, table *relay.Table, peers Peers) *Handler {
	if cfg.SiBroadcastInterval <= 0 {
		cfg.SiBroadcastInterval = DefaultSiBroadcastInterval
	}
	return &Handler{
		t:        t,
		cfg:      cfg,
		relay:    table,
		peers:    peers,
		ues:      make(map[int]*UeContext),
		byHandle: make(map[relay.Handle]int),
	}
}

func (h *Handler) logger() *zerolog.Logger {
	return h.t.Logger()
}

func (h *Handler) OnStart() {}
func (h *Handler) OnQuit()  {}

func (h *Handler) Handle(msg nts.Message) {
	switch m := msg.(type) {
	case *nts.TimerExpired:
		h.onTimer(m.ID)
	case nts.GnbRlsToRrc:
		h.handleRls(m)
	case nts.GnbNgapToRrc:
		h.handleNgap(m)
	case nts.BridgeToGnb:
		h.handleBridge(m)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) onTimer(id int) {
	if id == timerSiBroadcast {
		h.broadcastSystemInformation(0)
		h.t.ArmTimer(timerSiBroadcast, h.cfg.SiBroadcastInterval)
		return
	}
	h.suspendIdle(id)
}

func (h *Handler) handleRls(msg nts.GnbRlsToRrc) {
	switch m := msg.(type) {
	case *nts.RlsSignalDetected:
		if h.poweredOn {
			h.broadcastSystemInformation(m.UeID)
		}
	case *nts.RlsUplinkRrc:
		h.uplinkRrc(m)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleNgap(msg nts.GnbNgapToRrc) {
	switch m := msg.(type) {
	case *nts.NgapRadioPowerOn:
		h.poweredOn = true
		h.logger().Info().Int64("nci", h.cfg.Cell.Nci).Msg("radio powered on")
		h.broadcastSystemInformation(0)
		h.t.ArmTimer(timerSiBroadcast, h.cfg.SiBroadcastInterval)
	case *nts.NgapNasDelivery:
		h.downlinkNas(m)
	case *nts.NgapAnRelease:
		h.anRelease(m)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleBridge(msg nts.BridgeToGnb) {
	switch m := msg.(type) {
	case *nts.BridgeInitialNas:
		h.bridgeInitial(m)
	case *nts.BridgeUplinkNas:
		h.bridgeUplink(m)
	case *nts.BridgeLocalRelease:
		h.bridgeLocalRelease(m)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) sendRrc(ueID int, channel nts.RrcChannel, msg rrcmsg.Message) {
	pdu, err := rrcmsg.Encode(msg)
	if err != nil {
		h.logger().Error().Err(err).Int("ue", ueID).Msg("RRC codec error")
		return
	}
	h.peers.Rls.Send(&nts.RrcPduDelivery{UeID: ueID, Channel: channel, Pdu: pdu})
}

// broadcastSystemInformation sends SI to one device, or to every device for ueID 0.
func (h *Handler) broadcastSystemInformation(ueID int) {
	h.sendRrc(ueID, nts.ChannelBcchDlSch, &rrcmsg.SystemInformation{Cell: h.cfg.Cell})
}

func (h *Handler) uplinkRrc(m *nts.RlsUplinkRrc) {
	msg, err := rrcmsg.Decode(m.Data)
	if err != nil {
		h.logger().Error().Err(err).Int("ue", m.UeID).Msg("RRC codec error")
		return
	}

	switch p := msg.(type) {
	case *rrcmsg.SetupRequest:
		h.setupRequest(m.UeID, p)
	case *rrcmsg.SetupComplete:
		ue, ok := h.ues[m.UeID]
		if !ok {
			h.logger().Warn().Int("ue", m.UeID).Msg("RRC setup complete without a context")
			return
		}
		ue.STmsi = p.STmsi
		h.peers.Ngap.Send(&nts.RrcInitialNasDelivery{UeID: ue.UeID, Cause: ue.EstablishmentCause, Pdu: p.Nas})
	case *rrcmsg.ULInformationTransfer:
		if _, ok := h.ues[m.UeID]; !ok {
			h.logger().Warn().Int("ue", m.UeID).Err(ErrUeNotFound).Msg("uplink information transfer dropped")
			return
		}
		h.peers.Ngap.Send(&nts.RrcUplinkNasDelivery{UeID: m.UeID, Pdu: p.Nas})
	default:
		h.logger().Error().Int("ue", m.UeID).Str("pdu", fmt.Sprintf("%T", msg)).Msg("unexpected uplink RRC message")
	}
}

func (h *Handler) setupRequest(ueID int, p *rrcmsg.SetupRequest) {
	if _, exists := h.ues[ueID]; exists {
		h.logger().Warn().Int("ue", ueID).Msg("RRC setup request for an existing context, ignoring")
		return
	}
	ue := &UeContext{
		UeID:               ueID,
		InitialID:          p.InitialID,
		IsInitialIDSTmsi:   p.IsSTmsi,
		EstablishmentCause: p.Cause,
	}
	h.ues[ueID] = ue
	h.logger().Debug().Int("ue", ueID).Msg("RRC setup for UE")
	h.sendRrc(ueID, nts.ChannelDlCcch, &rrcmsg.Setup{TransactionID: ue.nextTransaction()})
}

func (h *Handler) downlinkNas(m *nts.NgapNasDelivery) {
	ue, ok := h.ues[m.UeID]
	if !ok {
		h.logger().Error().Int("ue", m.UeID).Err(ErrUeNotFound).Msg("downlink NAS dropped")
		return
	}

	if !ue.Relayed {
		h.sendRrc(ue.UeID, nts.ChannelDlDcch, &rrcmsg.DLInformationTransfer{
			TransactionID: ue.nextTransaction(),
			Nas:           m.Pdu,
		})
		return
	}

	if !ue.Ids.Complete() && m.Ids.Complete() {
		if err := h.relay.Assign(ue.Handle, m.Ids); err != nil {
			h.logger().Error().Err(err).Int("ue", ue.UeID).Uint32("handle", uint32(ue.Handle)).Msg("relay correlation failed")
			return
		}
		ue.Ids = m.Ids
	}
	out, err := h.relay.Downlink(ue.Ids, m.Pdu)
	if err != nil {
		h.logger().Error().Err(err).Int("ue", ue.UeID).Msg("downlink NAS not relayed")
		return
	}
	h.touch(ue)
	h.peers.UeRrc.Send(out)
}

func (h *Handler) anRelease(m *nts.NgapAnRelease) {
	ue, ok := h.ues[m.UeID]
	if !ok {
		h.logger().Debug().Int("ue", m.UeID).Msg("AN release for unknown UE")
		return
	}
	h.deleteContext(ue)

	if !ue.Relayed {
		h.sendRrc(ue.UeID, nts.ChannelDlDcch, &rrcmsg.Release{TransactionID: ue.nextTransaction()})
		return
	}

	var released bool
	if ue.Ids.Complete() {
		_, released = h.relay.ReleaseStation(ue.Ids)
	} else {
		_, released = h.relay.ReleaseHandle(ue.Handle)
	}
	// The device side may have dropped the handle already; it then needs no notice.
	if released {
		h.peers.UeRrc.Send(&nts.BridgeConnectionRelease{Handle: ue.Handle})
	}
}

func (h *Handler) bridgeInitial(m *nts.BridgeInitialNas) {
	if _, exists := h.byHandle[m.Handle]; exists {
		h.logger().Error().Uint32("handle", uint32(m.Handle)).Msg("initial NAS on a handle already in use")
		return
	}
	h.nextRelayed++
	ue := &UeContext{
		UeID:               relayedUeIDBase + h.nextRelayed,
		EstablishmentCause: nts.EstablishmentMoSignalling,
		Relayed:            true,
		Handle:             m.Handle,
		Ids:                nts.UeNgapIDs{AmfUeNgapID: -1},
	}
	h.ues[ue.UeID] = ue
	h.byHandle[m.Handle] = ue.UeID
	h.touch(ue)

	h.logger().Debug().Int("ue", ue.UeID).Uint32("handle", uint32(m.Handle)).Msg("relayed session opened")
	h.peers.Ngap.Send(&nts.RrcInitialNasDelivery{UeID: ue.UeID, Cause: ue.EstablishmentCause, Pdu: m.Pdu})
}

func (h *Handler) relayed(handle relay.Handle) (*UeContext, bool) {
	id, ok := h.byHandle[handle]
	if !ok {
		return nil, false
	}
	ue, ok := h.ues[id]
	return ue, ok
}

func (h *Handler) bridgeUplink(m *nts.BridgeUplinkNas) {
	ue, ok := h.relayed(m.Handle)
	if !ok {
		h.logger().Error().Uint32("handle", uint32(m.Handle)).Err(ErrUeNotFound).Msg("relayed uplink NAS dropped")
		return
	}
	h.touch(ue)
	h.peers.Ngap.Send(&nts.RrcUplinkNasDelivery{UeID: ue.UeID, Pdu: m.Pdu})
}

func (h *Handler) bridgeLocalRelease(m *nts.BridgeLocalRelease) {
	ue, ok := h.relayed(m.Handle)
	if !ok {
		h.logger().Debug().Uint32("handle", uint32(m.Handle)).Msg("local release for unknown handle")
		return
	}
	h.t.CancelTimer(ue.UeID)
	h.peers.Ngap.Send(&nts.RrcRadioLinkFailure{UeID: ue.UeID})
}

// touch restarts the inactivity timer of a relayed session.
func (h *Handler) touch(ue *UeContext) {
	if ue.Relayed && h.cfg.InactivityTimeout > 0 {
		h.t.ArmTimer(ue.UeID, h.cfg.InactivityTimeout)
	}
}

func (h *Handler) suspendIdle(ueID int) {
	ue, ok := h.ues[ueID]
	if !ok || !ue.Relayed {
		return
	}
	h.logger().Debug().Int("ue", ueID).Msg("relayed session inactive, suspending")
	h.peers.UeRrc.Send(&nts.BridgeSuspend{Handle: ue.Handle})
}

func (h *Handler) deleteContext(ue *UeContext) {
	h.t.CancelTimer(ue.UeID)
	delete(h.ues, ue.UeID)
	if ue.Relayed {
		delete(h.byHandle, ue.Handle)
	}
}

// UeIDs is safe only while the task is paused.
func (h *Handler) UeIDs() []int {
	ids := make([]int, 0, len(h.ues))
	for id := range h.ues {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (h *Handler) PoweredOn() bool {
	return h.poweredOn
}
