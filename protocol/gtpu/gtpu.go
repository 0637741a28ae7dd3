// Package gtpu encodes and decodes GTP-U G-PDU headers for the N3 interface.
package gtpu

import (
	"errors"
	"fmt"

	"github.com/wmnsk/go-gtp/gtpv1/ie"
	"github.com/wmnsk/go-gtp/gtpv1/message"
)

const (
	Port = 2152

	MsgTypeEchoRequest  = message.MsgTypeEchoRequest
	MsgTypeEchoResponse = message.MsgTypeEchoResponse
	MsgTypeGPdu         = message.MsgTypeTPDU

	flagsPlain     = 0x30
	flagsExtension = 0x34
	headerLen      = 8
	pduTypeUplink  = 1
	maxPayloadSize = 0xffff - 8
)

var (
	ErrShortPacket = errors.New("gtp-u packet too short")
	ErrVersion     = errors.New("unsupported gtp version")
	ErrMalformed   = errors.New("malformed gtp-u packet")
)

// Packet is a decoded G-PDU or echo message.
type Packet struct {
	Type     uint8
	Teid     uint32
	Sequence uint16
	Qfi      int // -1 when no PDU session container is present
	Payload  []byte
}

// Encode builds an uplink G-PDU. A negative qfi omits the PDU session container.
func Encode(teid uint32, qfi int, payload []byte) ([]byte, error) {
	if len(payload) > maxPayloadSize {
		return nil, fmt.Errorf("gtp-u payload of %d bytes exceeds the length field", len(payload))
	}
	var h *message.Header
	if qfi < 0 {
		h = message.NewHeader(flagsPlain, message.MsgTypeTPDU, teid, 0, payload)
	} else {
		container := message.NewExtensionHeader(
			message.ExtHeaderTypePDUSessionContainer,
			[]byte{pduTypeUplink << 4, uint8(qfi) & 0x3f},
			message.ExtHeaderTypeNoMoreExtensionHeaders,
		)
		h = message.NewHeaderWithExtensionHeaders(flagsExtension, message.MsgTypeTPDU, teid, 0, payload, container)
	}
	return h.Marshal()
}

// EncodeEchoResponse answers an Echo Request carrying sequence number seq.
func EncodeEchoResponse(seq uint16) ([]byte, error) {
	return message.NewEchoResponse(seq, ie.NewRecovery(0)).Marshal()
}

func Decode(packet []byte) (*Packet, error) {
	if len(packet) < headerLen {
		return nil, ErrShortPacket
	}
	if packet[0]>>5 != 1 {
		return nil, fmt.Errorf("%w: %d", ErrVersion, packet[0]>>5)
	}
	if length := int(packet[2])<<8 | int(packet[3]); headerLen+length > len(packet) {
		return nil, ErrShortPacket
	}

	h, err := message.ParseHeader(packet)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	p := &Packet{
		Type:     h.Type,
		Teid:     h.TEID,
		Sequence: h.SequenceNumber,
		Qfi:      -1,
		Payload:  h.Payload,
	}
	for _, ext := range h.ExtensionHeaders {
		if ext.Type == message.ExtHeaderTypePDUSessionContainer && len(ext.Content) >= 2 {
			p.Qfi = int(ext.Content[1] & 0x3f)
		}
	}
	return p, nil
}
