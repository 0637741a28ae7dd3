// Package gtp runs the station's user-plane task: PDU session tunnels over
// GTP-U on N3, rate limited by the aggregate maximum bit rates.
package gtp

import (
	"errors"
	"net"
	"net/netip"
	"slices"
	"sync"
	"time"

	"github.com/Mmx233/RGNB/metrics"
	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol"
	"github.com/Mmx233/RGNB/protocol/gtpu"
	"github.com/Mmx233/RGNB/task"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// upfPort is the destination port of uplink G-PDUs.
var upfPort uint16 = gtpu.Port

type sessionKey struct {
	ueID int
	psi  int
}

type ueContext struct {
	ueID int
	ambr nts.BitRate
	ul   *rate.Limiter
	dl   *rate.Limiter
}

type session struct {
	resource *nts.PduSessionResource
	ul       *rate.Limiter
	dl       *rate.Limiter
}

// SessionInfo describes one tunnel for status output.
type SessionInfo struct {
	UeID     int    `json:"ue-id"`
	Psi      int    `json:"psi"`
	UpTeid   uint32 `json:"up-teid"`
	DownTeid uint32 `json:"down-teid"`
	Upf      string `json:"upf"`
}

type Handler struct {
	t    *task.Task
	conn net.PacketConn
	rls  nts.Sender

	ues      map[int]*ueContext
	sessions map[sessionKey]*session
	byTeid   map[uint32]sessionKey

	wg sync.WaitGroup
}

// New takes ownership of conn, the N3 socket.
func New(t *task.Task, conn net.PacketConn, rls nts.Sender) *Handler {
	return &Handler{
		t:        t,
		conn:     conn,
		rls:      rls,
		ues:      make(map[int]*ueContext),
		sessions: make(map[sessionKey]*session),
		byTeid:   make(map[uint32]sessionKey),
	}
}

func (h *Handler) logger() *zerolog.Logger {
	return h.t.Logger()
}

func (h *Handler) OnStart() {
	h.wg.Add(1)
	go h.readLoop()
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
				h.logger().Error().Err(err).Msg("N3 socket read failed")
			}
			return
		}
		packet := make([]byte, n)
		copy(packet, (*bufPtr)[:n])
		protocol.PutReadBuffer(bufPtr)
		h.t.Send(&nts.GtpReceive{Packet: packet, From: from})
	}
}

func (h *Handler) Handle(msg nts.Message) {
	switch m := msg.(type) {
	case nts.GnbNgapToGtp:
		h.handleNgap(m)
	case *nts.RlsUplinkData:
		h.uplink(m)
	case *nts.GtpReceive:
		h.downlink(m.Packet, m.From)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) handleNgap(msg nts.GnbNgapToGtp) {
	switch m := msg.(type) {
	case *nts.GtpUeContextUpdate:
		ue := h.ue(m.UeID)
		ue.ambr = m.Ambr
		ue.ul = newLimiter(m.Ambr.Uplink)
		ue.dl = newLimiter(m.Ambr.Downlink)
	case *nts.GtpSessionCreate:
		h.createSession(m.Resource)
	case *nts.GtpSessionRelease:
		h.releaseSession(sessionKey{ueID: m.UeID, psi: m.Psi})
	case *nts.GtpUeContextRelease:
		for key := range h.sessions {
			if key.ueID == m.UeID {
				h.releaseSession(key)
			}
		}
		delete(h.ues, m.UeID)
	default:
		h.t.Unhandled(msg)
	}
}

func (h *Handler) ue(id int) *ueContext {
	ue, ok := h.ues[id]
	if !ok {
		ue = &ueContext{ueID: id}
		h.ues[id] = ue
	}
	return ue
}

func (h *Handler) createSession(r *nts.PduSessionResource) {
	key := sessionKey{ueID: r.UeID, psi: r.Psi}
	if _, exists := h.sessions[key]; exists {
		h.releaseSession(key)
	}
	h.ue(r.UeID)
	h.sessions[key] = &session{
		resource: r,
		ul:       newLimiter(r.SessionAmbr.Uplink),
		dl:       newLimiter(r.SessionAmbr.Downlink),
	}
	h.byTeid[r.DownTunnel.Teid] = key
	h.logger().Debug().Int("ue", r.UeID).Int("psi", r.Psi).
		Uint32("ul-teid", r.UpTunnel.Teid).Uint32("dl-teid", r.DownTunnel.Teid).Msg("tunnel created")
}

func (h *Handler) releaseSession(key sessionKey) {
	s, ok := h.sessions[key]
	if !ok {
		return
	}
	delete(h.byTeid, s.resource.DownTunnel.Teid)
	delete(h.sessions, key)
	h.logger().Debug().Int("ue", key.ueID).Int("psi", key.psi).Msg("tunnel released")
}

func (h *Handler) uplink(m *nts.RlsUplinkData) {
	s, ok := h.sessions[sessionKey{ueID: m.UeID, psi: m.Psi}]
	if !ok {
		metrics.GtpPackets.WithLabelValues("uplink", "not-found").Inc()
		h.logger().Warn().Int("ue", m.UeID).Int("psi", m.Psi).Msg("uplink data for unknown PDU session")
		return
	}
	now := time.Now()
	if !allow(s.ul, now, len(m.Pdu)) || !allow(h.ues[m.UeID].limiter(true), now, len(m.Pdu)) {
		metrics.GtpPackets.WithLabelValues("uplink", "rate-limited").Inc()
		return
	}

	qfi := -1
	if len(s.resource.QosFlows) > 0 {
		qfi = s.resource.QosFlows[0]
	}
	packet, err := gtpu.Encode(s.resource.UpTunnel.Teid, qfi, m.Pdu)
	if err != nil {
		metrics.GtpPackets.WithLabelValues("uplink", "error").Inc()
		h.logger().Error().Err(err).Msg("G-PDU encoding failed")
		return
	}
	dst := net.UDPAddrFromAddrPort(netip.AddrPortFrom(s.resource.UpTunnel.Address, upfPort))
	if _, err = h.conn.WriteTo(packet, dst); err != nil {
		metrics.GtpPackets.WithLabelValues("uplink", "error").Inc()
		h.logger().Error().Err(err).Str("upf", dst.String()).Msg("N3 send failed")
		return
	}
	metrics.GtpPackets.WithLabelValues("uplink", "ok").Inc()
}

func (h *Handler) downlink(packet []byte, from net.Addr) {
	p, err := gtpu.Decode(packet)
	if err != nil {
		metrics.GtpPackets.WithLabelValues("downlink", "error").Inc()
		h.logger().Debug().Err(err).Msg("malformed GTP-U packet")
		return
	}
	switch p.Type {
	case gtpu.MsgTypeGPdu:
	case gtpu.MsgTypeEchoRequest:
		h.echo(p.Sequence, from)
		return
	default:
		h.logger().Debug().Uint8("type", p.Type).Msg("GTP-U signalling message ignored")
		return
	}
	key, ok := h.byTeid[p.Teid]
	if !ok {
		metrics.GtpPackets.WithLabelValues("downlink", "not-found").Inc()
		h.logger().Warn().Uint32("teid", p.Teid).Msg("downlink data for unknown TEID")
		return
	}
	s := h.sessions[key]
	now := time.Now()
	if !allow(s.dl, now, len(p.Payload)) || !allow(h.ues[key.ueID].limiter(false), now, len(p.Payload)) {
		metrics.GtpPackets.WithLabelValues("downlink", "rate-limited").Inc()
		return
	}
	metrics.GtpPackets.WithLabelValues("downlink", "ok").Inc()
	h.rls.Send(&nts.GtpDownlinkData{UeID: key.ueID, Psi: key.psi, Pdu: p.Payload})
}

func (h *Handler) echo(seq uint16, peer net.Addr) {
	if peer == nil {
		return
	}
	resp, err := gtpu.EncodeEchoResponse(seq)
	if err != nil {
		h.logger().Error().Err(err).Msg("echo response encoding failed")
		return
	}
	if _, err = h.conn.WriteTo(resp, peer); err != nil {
		h.logger().Warn().Err(err).Str("peer", peer.String()).Msg("echo response send failed")
	}
}

// Sessions is safe only while the task is paused.
func (h *Handler) Sessions() []SessionInfo {
	out := make([]SessionInfo, 0, len(h.sessions))
	for key, s := range h.sessions {
		out = append(out, SessionInfo{
			UeID:     key.ueID,
			Psi:      key.psi,
			UpTeid:   s.resource.UpTunnel.Teid,
			DownTeid: s.resource.DownTunnel.Teid,
			Upf:      s.resource.UpTunnel.Address.String(),
		})
	}
	slices.SortFunc(out, func(a, b SessionInfo) int {
		if a.UeID != b.UeID {
			return a.UeID - b.UeID
		}
		return a.Psi - b.Psi
	})
	return out
}

func (u *ueContext) limiter(uplink bool) *rate.Limiter {
	if u == nil {
		return nil
	}
	if uplink {
		return u.ul
	}
	return u.dl
}

// newLimiter converts a bit rate into a byte limiter. Zero means unlimited.
func newLimiter(bitsPerSecond int64) *rate.Limiter {
	if bitsPerSecond <= 0 {
		return nil
	}
	bytesPerSecond := bitsPerSecond / 8
	return rate.NewLimiter(rate.Limit(bytesPerSecond), int(max(bytesPerSecond, protocol.ReadBufferSize)))
}

func allow(l *rate.Limiter, now time.Time, n int) bool {
	return l == nil || l.AllowN(now, n)
}
