package rls

import (
	"errors"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol"
	"github.com/rs/zerolog"
)

const errCodeUnknownSti = 1

type peer struct {
	ueID     int
	sti      uint64
	addr     netip.AddrPort
	lastSeen time.Time
}

// link is the UDP side of the station link layer. The socket reader answers
// heartbeats itself and forwards everything else to the RLS task.
type link struct {
	conn   net.PacketConn
	logger zerolog.Logger
	sti    uint64
	ack    protocol.HeartbeatAckMsg

	mu     sync.Mutex
	bySti  map[uint64]*peer
	byUe   map[int]*peer
	nextUe int

	wg sync.WaitGroup
}

func newLink(conn net.PacketConn, sti uint64, ack protocol.HeartbeatAckMsg, logger zerolog.Logger) *link {
	ack.Sti = sti
	return &link{
		conn:   conn,
		logger: logger,
		sti:    sti,
		ack:    ack,
		bySti:  make(map[uint64]*peer),
		byUe:   make(map[int]*peer),
	}
}

func (l *link) start(sink nts.Sender) {
	l.wg.Add(1)
	go l.serve(sink)
}

func (l *link) close() {
	_ = l.conn.Close()
	l.wg.Wait()
}

func (l *link) serve(sink nts.Sender) {
	defer l.wg.Done()
	for {
		bufPtr := protocol.GetReadBuffer()
		n, from, err := l.conn.ReadFrom(*bufPtr)
		if err != nil {
			protocol.PutReadBuffer(bufPtr)
			if !errors.Is(err, net.ErrClosed) {
				l.logger.Error().Err(err).Msg("link socket read failed")
			}
			return
		}
		udpAddr, ok := from.(*net.UDPAddr)
		if ok {
			l.receive((*bufPtr)[:n], udpAddr.AddrPort(), sink)
		}
		protocol.PutReadBuffer(bufPtr)
	}
}

// receive must not retain datagram.
func (l *link) receive(datagram []byte, from netip.AddrPort, sink nts.Sender) {
	msgType, payload, err := protocol.ParseDatagram(datagram)
	if err != nil {
		l.logger.Debug().Err(err).Str("from", from.String()).Msg("malformed link datagram")
		return
	}

	switch msgType {
	case protocol.MsgTypeHeartbeat:
		var hb protocol.HeartbeatMsg
		if err = protocol.DecodeMessage(payload, &hb); err != nil {
			l.logger.Debug().Err(err).Msg("malformed heartbeat")
			return
		}
		ueID, detected := l.touch(hb.Sti, from)
		if detected {
			sink.Send(&nts.LinkSignalDetected{UeID: ueID})
		}
		ack := l.ack
		ack.Timestamp = hb.Timestamp
		l.write(from, func() ([]byte, error) { return protocol.EncodeHeartbeatAck(&ack) })

	case protocol.MsgTypePduTransmission:
		var pdu protocol.PduTransmissionMsg
		if err = protocol.DecodeMessage(payload, &pdu); err != nil {
			l.logger.Debug().Err(err).Msg("malformed PDU transmission")
			return
		}
		ueID, known := l.ueOf(pdu.Sti)
		if !known {
			l.write(from, func() ([]byte, error) { return protocol.EncodeError(errCodeUnknownSti, "unknown sti") })
			return
		}
		switch pdu.PduType {
		case protocol.PduTypeRrc:
			sink.Send(&nts.LinkUplinkRrc{UeID: ueID, Channel: pdu.Channel, Data: pdu.Payload})
		case protocol.PduTypeData:
			sink.Send(&nts.LinkUplinkData{UeID: ueID, Psi: pdu.Psi, Data: pdu.Payload})
		default:
			l.logger.Debug().Uint8("type", uint8(pdu.PduType)).Msg("unknown PDU type")
		}

	default:
		l.logger.Debug().Uint8("type", msgType).Msg("unexpected link message type")
	}
}

// touch refreshes the peer with sti and reports whether it was just detected.
func (l *link) touch(sti uint64, from netip.AddrPort) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.bySti[sti]; ok {
		p.addr = from
		p.lastSeen = time.Now()
		return p.ueID, false
	}
	l.nextUe++
	p := &peer{ueID: l.nextUe, sti: sti, addr: from, lastSeen: time.Now()}
	l.bySti[sti] = p
	l.byUe[p.ueID] = p
	return p.ueID, true
}

func (l *link) ueOf(sti uint64) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.bySti[sti]
	if !ok {
		return 0, false
	}
	return p.ueID, true
}

// expire drops peers silent for longer than threshold and returns their ids.
func (l *link) expire(now time.Time, threshold time.Duration) []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	var lost []int
	for sti, p := range l.bySti {
		if now.Sub(p.lastSeen) > threshold {
			lost = append(lost, p.ueID)
			delete(l.bySti, sti)
			delete(l.byUe, p.ueID)
		}
	}
	return lost
}

// sendPdu delivers a PDU to one device, or to every device for ueID 0.
func (l *link) sendPdu(ueID int, msg protocol.PduTransmissionMsg) bool {
	msg.Sti = l.sti
	data, err := protocol.EncodePduTransmission(&msg)
	if err != nil {
		l.logger.Error().Err(err).Msg("link codec error")
		return false
	}

	l.mu.Lock()
	var targets []netip.AddrPort
	if ueID == 0 {
		for _, p := range l.byUe {
			targets = append(targets, p.addr)
		}
	} else if p, ok := l.byUe[ueID]; ok {
		targets = append(targets, p.addr)
	}
	l.mu.Unlock()

	if len(targets) == 0 && ueID != 0 {
		return false
	}
	for _, addr := range targets {
		if _, err = l.conn.WriteTo(data, net.UDPAddrFromAddrPort(addr)); err != nil {
			l.logger.Warn().Err(err).Str("to", addr.String()).Msg("link send failed")
		}
	}
	return true
}

func (l *link) write(to netip.AddrPort, encode func() ([]byte, error)) {
	data, err := encode()
	if err != nil {
		l.logger.Error().Err(err).Msg("link codec error")
		return
	}
	if _, err = l.conn.WriteTo(data, net.UDPAddrFromAddrPort(to)); err != nil {
		l.logger.Warn().Err(err).Str("to", to.String()).Msg("link send failed")
	}
}

func (l *link) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.byUe)
}
