package nts

import (
	"fmt"
	"net/netip"
)

// Handle identifies a subscriber session on the device side of the relay. Zero means none.
type Handle uint32

// UeNgapIDs is the station-side identifier pair of a subscriber.
// AmfUeNgapID is -1 until the core network assigns one.
type UeNgapIDs struct {
	AmfUeNgapID int64
	RanUeNgapID int64
}

// Complete reports whether both identifiers are known.
func (ids UeNgapIDs) Complete() bool {
	return ids.AmfUeNgapID >= 0 && ids.RanUeNgapID > 0
}

func (ids UeNgapIDs) String() string {
	return fmt.Sprintf("(amf=%d,ran=%d)", ids.AmfUeNgapID, ids.RanUeNgapID)
}

// BitRate is an uplink/downlink pair of maximum bit rates in bits per second.
type BitRate struct {
	Uplink   int64
	Downlink int64
}

// GtpTunnel is one end of a GTP-U tunnel.
type GtpTunnel struct {
	Teid    uint32
	Address netip.Addr
}

// PduSessionType mirrors the NGAP PDU session type enumeration.
type PduSessionType int

const (
	PduSessionIPv4 PduSessionType = iota
	PduSessionIPv6
	PduSessionIPv4v6
	PduSessionEthernet
	PduSessionUnstructured
)

func (t PduSessionType) String() string {
	switch t {
	case PduSessionIPv4:
		return "IPv4"
	case PduSessionIPv6:
		return "IPv6"
	case PduSessionIPv4v6:
		return "IPv4v6"
	case PduSessionEthernet:
		return "Ethernet"
	case PduSessionUnstructured:
		return "Unstructured"
	default:
		return "unknown"
	}
}

// PduSessionResource is a user-plane session of one subscriber.
type PduSessionResource struct {
	UeID                      int
	Psi                       int
	SessionAmbr               BitRate
	DataForwardingNotPossible bool
	SessionType               PduSessionType
	UpTunnel                  GtpTunnel
	DownTunnel                GtpTunnel
	QosFlows                  []int
}

// Cause is an NGAP cause. Values are grouped by cause category in ranges of 100.
type Cause int

const (
	CauseRadioNetworkUnspecified     Cause = 0
	CauseRadioNetworkUserInactivity  Cause = 20
	CauseRadioNetworkRadioConnLost   Cause = 21
	CauseRadioNetworkReleaseDueTo5GC Cause = 5
	CauseTransportUnspecified        Cause = 101
	CauseNasNormalRelease            Cause = 200
	CauseNasDeregister               Cause = 202
	CauseProtocolUnspecified         Cause = 306
	CauseMiscUnspecified             Cause = 405
)

// CauseGroup is the NGAP cause category.
type CauseGroup int

const (
	CauseGroupRadioNetwork CauseGroup = iota
	CauseGroupTransport
	CauseGroupNas
	CauseGroupProtocol
	CauseGroupMisc
)

func (g CauseGroup) String() string {
	switch g {
	case CauseGroupRadioNetwork:
		return "radio-network"
	case CauseGroupTransport:
		return "transport"
	case CauseGroupNas:
		return "nas"
	case CauseGroupProtocol:
		return "protocol"
	case CauseGroupMisc:
		return "misc"
	default:
		return "unknown"
	}
}

// Group returns the category of the cause.
func (c Cause) Group() CauseGroup {
	return CauseGroup(int(c) / 100)
}

// Value returns the category-local enumeration value.
func (c Cause) Value() int {
	return int(c) % 100
}

// MakeCause builds a cause from its category and category-local value.
func MakeCause(group CauseGroup, value int) Cause {
	return Cause(int(group)*100 + value)
}

func (c Cause) String() string {
	return fmt.Sprintf("%s/%d", c.Group(), c.Value())
}

// RlfCause tells why the link layer declared a radio link failure.
type RlfCause int

const (
	RlfPduIDExists RlfCause = iota
	RlfPduIDFull
	RlfSignalLostToConnectedCell
)

func (c RlfCause) String() string {
	switch c {
	case RlfPduIDExists:
		return "pdu-id-exists"
	case RlfPduIDFull:
		return "pdu-id-full"
	case RlfSignalLostToConnectedCell:
		return "signal-lost-to-connected-cell"
	default:
		return "unknown"
	}
}

// RrcChannel is the logical channel an RRC PDU travels on.
type RrcChannel int

const (
	ChannelBcchBch RrcChannel = iota
	ChannelBcchDlSch
	ChannelDlCcch
	ChannelDlDcch
	ChannelPcch
	ChannelUlCcch
	ChannelUlCcch1
	ChannelUlDcch
)

// EstablishmentCause mirrors the RRC establishment cause enumeration.
type EstablishmentCause int

const (
	EstablishmentEmergency EstablishmentCause = iota
	EstablishmentHighPriorityAccess
	EstablishmentMtAccess
	EstablishmentMoSignalling
	EstablishmentMoData
	EstablishmentMoVoiceCall
	EstablishmentMoVideoCall
	EstablishmentMoSms
	EstablishmentMpsPriorityAccess
	EstablishmentMcsPriorityAccess
)
