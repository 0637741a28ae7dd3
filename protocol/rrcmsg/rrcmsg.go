// Package rrcmsg holds the RRC records exchanged between the station and
// downstream devices over the link layer. Records travel in the link framing
// of package protocol; the NAS fields are opaque.
package rrcmsg

import (
	"errors"
	"fmt"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol"
	"github.com/Mmx233/RGNB/shared"
)

// Record types
const (
	TypeSetupRequest          = 0x10
	TypeSetup                 = 0x11
	TypeSetupComplete         = 0x12
	TypeULInformationTransfer = 0x13
	TypeDLInformationTransfer = 0x14
	TypeRelease               = 0x15
	TypeSystemInformation     = 0x16
)

var ErrDecode = errors.New("rrc decode failed")

// Message is implemented by every RRC record.
type Message interface {
	rrcType() byte
}

// SetupRequest opens a connection. InitialID is either a random value or the
// device's 5G-S-TMSI when IsSTmsi is set.
type SetupRequest struct {
	InitialID uint64
	IsSTmsi   bool
	Cause     nts.EstablishmentCause
}

type Setup struct {
	TransactionID int
}

// SetupComplete finishes connection setup and carries the first NAS PDU.
type SetupComplete struct {
	TransactionID int
	STmsi         uint64
	Nas           []byte
}

type ULInformationTransfer struct {
	Nas []byte
}

type DLInformationTransfer struct {
	TransactionID int
	Nas           []byte
}

type Release struct {
	TransactionID int
}

// SystemInformation is broadcast periodically and sent to newly detected devices.
type SystemInformation struct {
	Cell shared.CellDescription
}

func (*SetupRequest) rrcType() byte          { return TypeSetupRequest }
func (*Setup) rrcType() byte                 { return TypeSetup }
func (*SetupComplete) rrcType() byte         { return TypeSetupComplete }
func (*ULInformationTransfer) rrcType() byte { return TypeULInformationTransfer }
func (*DLInformationTransfer) rrcType() byte { return TypeDLInformationTransfer }
func (*Release) rrcType() byte               { return TypeRelease }
func (*SystemInformation) rrcType() byte     { return TypeSystemInformation }

// Encode frames msg for transmission on a logical channel.
func Encode(msg Message) ([]byte, error) {
	return protocol.EncodeMessage(msg.rrcType(), msg)
}

// Decode parses one framed RRC record. Failures wrap ErrDecode.
func Decode(data []byte) (Message, error) {
	msgType, payload, err := protocol.ParseDatagram(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	var msg Message
	switch msgType {
	case TypeSetupRequest:
		msg = new(SetupRequest)
	case TypeSetup:
		msg = new(Setup)
	case TypeSetupComplete:
		msg = new(SetupComplete)
	case TypeULInformationTransfer:
		msg = new(ULInformationTransfer)
	case TypeDLInformationTransfer:
		msg = new(DLInformationTransfer)
	case TypeRelease:
		msg = new(Release)
	case TypeSystemInformation:
		msg = new(SystemInformation)
	default:
		return nil, fmt.Errorf("%w: unknown record type 0x%02x", ErrDecode, msgType)
	}

	if err := protocol.DecodeMessage(payload, msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return msg, nil
}
