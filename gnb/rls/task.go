// Package rls runs the station link layer toward downstream devices: a UDP
// cell that answers heartbeats, tracks devices by their temporary identity
// and carries RRC and user-plane PDUs.
package rls

import (
	"net"
	"time"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol"
	"github.com/Mmx233/RGNB/shared"
	"github.com/Mmx233/RGNB/task"
	"github.com/rs/zerolog"
)

const (
	Port = 4997

	timerLossCheck           = 1
	DefaultLossCheckInterval = 1000 * time.Millisecond
	DefaultSignalLossTimeout = 2000 * time.Millisecond
	DefaultDbm               = -50
)

type Config struct {
	CellID int
	Cell   shared.CellDescription
	Dbm    int

	LossCheckInterval time.Duration
	SignalLossTimeout time.Duration
}

type Peers struct {
	Rrc nts.Sender
	Gtp nts.Sender
}

type Handler struct {
	t     *task.Task
	cfg   Config
	peers Peers
	link  *link
}

// New takes ownership of conn, the link-layer socket.
func New(t *task.Task, cfg Config, conn net.PacketConn, peers Peers) *Handler {
	if cfg.LossCheckInterval <= 0 {
		cfg.LossCheckInterval = DefaultLossCheckInterval
	}
	if cfg.SignalLossTimeout <= 0 {
		cfg.SignalLossTimeout = DefaultSignalLossTimeout
	}
	if cfg.Dbm == 0 {
		cfg.Dbm = DefaultDbm
	}
	ack := protocol.HeartbeatAckMsg{CellID: cfg.CellID, Dbm: cfg.Dbm, Cell: cfg.Cell}
	return &Handler{
		t:     t,
		cfg:   cfg,
		peers: peers,
		link:  newLink(conn, protocol.NewSti(), ack, *t.Logger()),
	}
}

func (h *Handler) logger() *zerolog.Logger {
	return h.t.Logger()
}

func (h *Handler) OnStart() {
	h.link.start(h.t)
	h.t.ArmTimer(timerLossCheck, h.cfg.LossCheckInterval)
	h.logger().Info().Str("addr", h.link.conn.LocalAddr().String()).Msg("link layer listening")
}

func (h *Handler) OnQuit() {
	h.link.close()
}

func (h *Handler) Handle(msg nts.Message) {
	switch m := msg.(type) {
	case *nts.TimerExpired:
		if m.ID == timerLossCheck {
			for _, ueID := range h.link.expire(time.Now(), h.cfg.SignalLossTimeout) {
				h.signalLost(ueID)
			}
			h.t.ArmTimer(timerLossCheck, h.cfg.LossCheckInterval)
		}
	case nts.GnbRlsLink:
		h.handleLink(m)
	case *nts.RrcPduDelivery:
		if !h.link.sendPdu(m.UeID, protocol.PduTransmissionMsg{
			PduType: protocol.PduTypeRrc,
			Channel: m.Channel,
			Payload: m.Pdu,
		}) {
			h.logger().Warn().Int("ue", m.UeID).Msg("RRC PDU for unknown device dropped")
		}
	case *nts.GtpDownlinkData:
		if !h.link.sendPdu(m.UeID, protocol.PduTransmissionMsg{
			PduType: protocol.PduTypeData,
			Psi:     m.Psi,
			Payload: m.Pdu,
		}) {
			h.logger().Debug().Int("ue", m.UeID).Msg("downlink data for unknown device dropped")
		}
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleLink(msg nts.GnbRlsLink) {
	switch m := msg.(type) {
	case *nts.LinkSignalDetected:
		h.logger().Debug().Int("ue", m.UeID).Msg("new device detected")
		h.peers.Rrc.Send(&nts.RlsSignalDetected{UeID: m.UeID})
	case *nts.LinkSignalLost:
		h.signalLost(m.UeID)
	case *nts.LinkUplinkRrc:
		h.peers.Rrc.Send(&nts.RlsUplinkRrc{UeID: m.UeID, Channel: m.Channel, Data: m.Data})
	case *nts.LinkUplinkData:
		h.peers.Gtp.Send(&nts.RlsUplinkData{UeID: m.UeID, Psi: m.Psi, Pdu: m.Data})
	case *nts.LinkRadioLinkFailure:
		h.logger().Warn().Int("ue", m.UeID).Stringer("cause", m.Cause).Msg("radio link failure")
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) signalLost(ueID int) {
	h.logger().Debug().Int("ue", ueID).Msg("device signal lost")
}

// LocalAddr is the address devices reach the cell on.
func (h *Handler) LocalAddr() net.Addr {
	return h.link.conn.LocalAddr()
}

// DeviceCount is the number of devices currently heard.
func (h *Handler) DeviceCount() int {
	return h.link.count()
}
