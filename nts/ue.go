package nts

import (
	"net/netip"

	"github.com/Mmx233/RGNB/shared"
)

// UeRrcToNas notifies the mobility layer.
type UeRrcToNas interface {
	Message
	ueRrcToNas()
}

type RrcNasDelivery struct {
	Pdu []byte
}

type RrcConnectionSetup struct{}

type RrcConnectionRelease struct{}

type RrcEstablishmentFailure struct{}

type RrcRadioLinkFailureNotify struct {
	Cause RlfCause
}

type RrcActiveCellChanged struct {
	PreviousTai shared.Tai
}

func (*RrcNasDelivery) Family() Family            { return FamilyUeRrcToNas }
func (*RrcConnectionSetup) Family() Family        { return FamilyUeRrcToNas }
func (*RrcConnectionRelease) Family() Family      { return FamilyUeRrcToNas }
func (*RrcEstablishmentFailure) Family() Family   { return FamilyUeRrcToNas }
func (*RrcRadioLinkFailureNotify) Family() Family { return FamilyUeRrcToNas }
func (*RrcActiveCellChanged) Family() Family      { return FamilyUeRrcToNas }
func (*RrcNasDelivery) ueRrcToNas()               {}
func (*RrcConnectionSetup) ueRrcToNas()           {}
func (*RrcConnectionRelease) ueRrcToNas()         {}
func (*RrcEstablishmentFailure) ueRrcToNas()      {}
func (*RrcRadioLinkFailureNotify) ueRrcToNas()    {}
func (*RrcActiveCellChanged) ueRrcToNas()         {}

// UeNasToRrc carries NAS demands toward device RRC.
type UeNasToRrc interface {
	Message
	ueNasToRrc()
}

type NasUplinkDelivery struct {
	PduID uint32
	Pdu   []byte
}

type NasLocalReleaseConnection struct {
	TreatBarred bool
}

type NasRrcNotify struct{}

func (*NasUplinkDelivery) Family() Family         { return FamilyUeNasToRrc }
func (*NasLocalReleaseConnection) Family() Family { return FamilyUeNasToRrc }
func (*NasRrcNotify) Family() Family              { return FamilyUeNasToRrc }
func (*NasUplinkDelivery) ueNasToRrc()            {}
func (*NasLocalReleaseConnection) ueNasToRrc()    {}
func (*NasRrcNotify) ueNasToRrc()                 {}

// UeRrcToRls configures the device link layer.
type UeRrcToRls interface {
	Message
	ueRrcToRls()
}

type RlsAssignCurrentCell struct {
	CellID int
}

type RlsResetSti struct{}

func (*RlsAssignCurrentCell) Family() Family { return FamilyUeRrcToRls }
func (*RlsResetSti) Family() Family          { return FamilyUeRrcToRls }
func (*RlsAssignCurrentCell) ueRrcToRls()    {}
func (*RlsResetSti) ueRrcToRls()             {}

// UeRrcToRrc is the device RRC task talking to itself.
type UeRrcToRrc interface {
	Message
	ueRrcToRrc()
}

type RrcTriggerCycle struct{}

func (*RrcTriggerCycle) Family() Family { return FamilyUeRrcToRrc }
func (*RrcTriggerCycle) ueRrcToRrc()    {}

// UeRlsToRrc reports radio conditions to device RRC.
type UeRlsToRrc interface {
	Message
	ueRlsToRrc()
}

// RlsSignalChanged reports a new measurement of a cell. Lost is set when the
// cell stopped answering; Dbm is meaningless then.
type RlsSignalChanged struct {
	CellID int
	Dbm    int
	Lost   bool
	Info   shared.CellDescription
}

type RlsRadioLinkFailure struct {
	Cause RlfCause
}

func (*RlsSignalChanged) Family() Family    { return FamilyUeRlsToRrc }
func (*RlsRadioLinkFailure) Family() Family { return FamilyUeRlsToRrc }
func (*RlsSignalChanged) ueRlsToRrc()       {}
func (*RlsRadioLinkFailure) ueRlsToRrc()    {}

// UeRlsLink is produced by the device link-layer socket reader.
type UeRlsLink interface {
	Message
	ueRlsLink()
}

type LinkHeartbeatAck struct {
	From   netip.AddrPort
	Sti    uint64
	Dbm    int
	CellID int
	Info   shared.CellDescription
}

func (*LinkHeartbeatAck) Family() Family { return FamilyUeRlsLink }
func (*LinkHeartbeatAck) ueRlsLink()     {}

// UeNasToNas carries operator requests into the mobility task.
type UeNasToNas interface {
	Message
	ueNasToNas()
}

type NasRegister struct{}

type NasDeregister struct {
	SwitchOff bool
}

func (*NasRegister) Family() Family   { return FamilyUeNasToNas }
func (*NasDeregister) Family() Family { return FamilyUeNasToNas }
func (*NasRegister) ueNasToNas()      {}
func (*NasDeregister) ueNasToNas()    {}
