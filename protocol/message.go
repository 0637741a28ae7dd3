package protocol

import (
	"encoding/binary"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/shared"
	"github.com/google/uuid"
)

// Link message types
const (
	MsgTypeHeartbeat       = 0x01 // Device probes a cell
	MsgTypeHeartbeatAck    = 0x02 // Cell answers with its description and signal strength
	MsgTypePduTransmission = 0x03 // RRC or user-plane PDU in either direction
	MsgTypeError           = 0xFF // Error message
)

// PduType tells what a PduTransmissionMsg carries.
type PduType uint8

const (
	PduTypeRrc  PduType = 1
	PduTypeData PduType = 2
)

func (t PduType) String() string {
	switch t {
	case PduTypeRrc:
		return "rrc"
	case PduTypeData:
		return "data"
	default:
		return "unknown"
	}
}

// HeartbeatMsg is sent periodically by a device to every cell it searches.
type HeartbeatMsg struct {
	Sti       uint64 // Sender temporary identity
	Timestamp int64  // Unix milliseconds
}

// HeartbeatAckMsg answers a heartbeat
type HeartbeatAckMsg struct {
	Sti       uint64                 // Station temporary identity
	CellID    int                    // Station-local cell identifier
	Dbm       int                    // Simulated signal strength seen by the device
	Cell      shared.CellDescription // Broadcast cell information
	Timestamp int64                  // Echo of the heartbeat timestamp
}

// PduTransmissionMsg carries an RRC PDU on a logical channel or a user-plane
// PDU of a PDU session.
type PduTransmissionMsg struct {
	Sti     uint64
	PduType PduType
	PduID   uint32
	Channel nts.RrcChannel // Only for PduTypeRrc
	Psi     int            // Only for PduTypeData
	Payload []byte
}

// ErrorMsg carries error information
type ErrorMsg struct {
	Code    uint32
	Message string
}

// NewSti derives a random temporary identity for one end of the link.
func NewSti() uint64 {
	id := uuid.New()
	return binary.BigEndian.Uint64(id[:8])
}
