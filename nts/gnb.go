package nts

import "net"

// GnbRlsToRrc carries uplink radio events from the station link layer to station RRC.
type GnbRlsToRrc interface {
	Message
	gnbRlsToRrc()
}

type RlsSignalDetected struct {
	UeID int
}

type RlsUplinkRrc struct {
	UeID    int
	Channel RrcChannel
	Data    []byte
}

func (*RlsSignalDetected) Family() Family { return FamilyGnbRlsToRrc }
func (*RlsUplinkRrc) Family() Family      { return FamilyGnbRlsToRrc }
func (*RlsSignalDetected) gnbRlsToRrc()   {}
func (*RlsUplinkRrc) gnbRlsToRrc()        {}

// GnbRlsToGtp carries uplink user data toward the tunnel task.
type GnbRlsToGtp interface {
	Message
	gnbRlsToGtp()
}

type RlsUplinkData struct {
	UeID int
	Psi  int
	Pdu  []byte
}

func (*RlsUplinkData) Family() Family { return FamilyGnbRlsToGtp }
func (*RlsUplinkData) gnbRlsToGtp()   {}

// GnbGtpToRls carries downlink user data toward the link layer.
type GnbGtpToRls interface {
	Message
	gnbGtpToRls()
}

type GtpDownlinkData struct {
	UeID int
	Psi  int
	Pdu  []byte
}

func (*GtpDownlinkData) Family() Family { return FamilyGnbGtpToRls }
func (*GtpDownlinkData) gnbGtpToRls()   {}

// GnbRlsLink is produced by the station link-layer socket reader and consumed by the RLS task.
type GnbRlsLink interface {
	Message
	gnbRlsLink()
}

type LinkSignalDetected struct {
	UeID int
}

type LinkSignalLost struct {
	UeID int
}

type LinkUplinkRrc struct {
	UeID    int
	Channel RrcChannel
	Data    []byte
}

type LinkUplinkData struct {
	UeID int
	Psi  int
	Data []byte
}

type LinkRadioLinkFailure struct {
	UeID  int
	Cause RlfCause
}

func (*LinkSignalDetected) Family() Family   { return FamilyGnbRlsLink }
func (*LinkSignalLost) Family() Family       { return FamilyGnbRlsLink }
func (*LinkUplinkRrc) Family() Family        { return FamilyGnbRlsLink }
func (*LinkUplinkData) Family() Family       { return FamilyGnbRlsLink }
func (*LinkRadioLinkFailure) Family() Family { return FamilyGnbRlsLink }
func (*LinkSignalDetected) gnbRlsLink()      {}
func (*LinkSignalLost) gnbRlsLink()          {}
func (*LinkUplinkRrc) gnbRlsLink()           {}
func (*LinkUplinkData) gnbRlsLink()          {}
func (*LinkRadioLinkFailure) gnbRlsLink()    {}

// GnbRrcToRls carries downlink RRC PDUs toward the link layer.
type GnbRrcToRls interface {
	Message
	gnbRrcToRls()
}

// RrcPduDelivery sends an RRC PDU to one device, or to every device when UeID is zero.
type RrcPduDelivery struct {
	UeID    int
	Channel RrcChannel
	Pdu     []byte
}

func (*RrcPduDelivery) Family() Family { return FamilyGnbRrcToRls }
func (*RrcPduDelivery) gnbRrcToRls()   {}

// GnbNgapToRrc carries core-network events toward station RRC.
type GnbNgapToRrc interface {
	Message
	gnbNgapToRrc()
}

type NgapRadioPowerOn struct{}

type NgapNasDelivery struct {
	UeID int
	Ids  UeNgapIDs
	Pdu  []byte
}

type NgapAnRelease struct {
	UeID int
	Ids  UeNgapIDs
}

func (*NgapRadioPowerOn) Family() Family { return FamilyGnbNgapToRrc }
func (*NgapNasDelivery) Family() Family  { return FamilyGnbNgapToRrc }
func (*NgapAnRelease) Family() Family    { return FamilyGnbNgapToRrc }
func (*NgapRadioPowerOn) gnbNgapToRrc()  {}
func (*NgapNasDelivery) gnbNgapToRrc()   {}
func (*NgapAnRelease) gnbNgapToRrc()     {}

// GnbRrcToNgap carries NAS and radio events from station RRC toward the core-network task.
type GnbRrcToNgap interface {
	Message
	gnbRrcToNgap()
}

type RrcInitialNasDelivery struct {
	UeID  int
	Cause EstablishmentCause
	Pdu   []byte
}

type RrcUplinkNasDelivery struct {
	UeID int
	Pdu  []byte
}

type RrcRadioLinkFailure struct {
	UeID int
}

func (*RrcInitialNasDelivery) Family() Family { return FamilyGnbRrcToNgap }
func (*RrcUplinkNasDelivery) Family() Family  { return FamilyGnbRrcToNgap }
func (*RrcRadioLinkFailure) Family() Family   { return FamilyGnbRrcToNgap }
func (*RrcInitialNasDelivery) gnbRrcToNgap()  {}
func (*RrcUplinkNasDelivery) gnbRrcToNgap()   {}
func (*RrcRadioLinkFailure) gnbRrcToNgap()    {}

// GnbNgapToGtp drives tunnel and session management.
type GnbNgapToGtp interface {
	Message
	gnbNgapToGtp()
}

type GtpUeContextUpdate struct {
	UeID int
	Ambr BitRate
}

type GtpUeContextRelease struct {
	UeID int
}

type GtpSessionCreate struct {
	Resource *PduSessionResource
}

type GtpSessionRelease struct {
	UeID int
	Psi  int
}

func (*GtpUeContextUpdate) Family() Family  { return FamilyGnbNgapToGtp }
func (*GtpUeContextRelease) Family() Family { return FamilyGnbNgapToGtp }
func (*GtpSessionCreate) Family() Family    { return FamilyGnbNgapToGtp }
func (*GtpSessionRelease) Family() Family   { return FamilyGnbNgapToGtp }
func (*GtpUeContextUpdate) gnbNgapToGtp()   {}
func (*GtpUeContextRelease) gnbNgapToGtp()  {}
func (*GtpSessionCreate) gnbNgapToGtp()     {}
func (*GtpSessionRelease) gnbNgapToGtp()    {}

// GnbGtpLink is produced by the N3 socket reader and consumed by the tunnel task.
type GnbGtpLink interface {
	Message
	gnbGtpLink()
}

type GtpReceive struct {
	Packet []byte
	From   net.Addr
}

func (*GtpReceive) Family() Family { return FamilyGnbGtpLink }
func (*GtpReceive) gnbGtpLink()    {}

// GnbSctp covers both requests to the transport task and the association
// events it pushes into the associated task.
type GnbSctp interface {
	Message
	gnbSctp()
}

type SctpConnectionRequest struct {
	ClientID   int
	LocalAddr  string
	LocalPort  int
	RemoteAddr string
	RemotePort int
	PPID       uint32
	Associated Sender
}

type SctpConnectionClose struct {
	ClientID int
}

type SctpAssociationSetup struct {
	ClientID   int
	AssocID    int
	InStreams  int
	OutStreams int
}

type SctpAssociationShutdown struct {
	ClientID int
}

type SctpReceiveMessage struct {
	ClientID int
	Stream   int
	Buffer   []byte
}

type SctpSendMessage struct {
	ClientID int
	Stream   int
	Buffer   []byte
}

type SctpUnhandledNotification struct {
	ClientID int
}

func (*SctpConnectionRequest) Family() Family     { return FamilyGnbSctp }
func (*SctpConnectionClose) Family() Family       { return FamilyGnbSctp }
func (*SctpAssociationSetup) Family() Family      { return FamilyGnbSctp }
func (*SctpAssociationShutdown) Family() Family   { return FamilyGnbSctp }
func (*SctpReceiveMessage) Family() Family        { return FamilyGnbSctp }
func (*SctpSendMessage) Family() Family           { return FamilyGnbSctp }
func (*SctpUnhandledNotification) Family() Family { return FamilyGnbSctp }
func (*SctpConnectionRequest) gnbSctp()           {}
func (*SctpConnectionClose) gnbSctp()             {}
func (*SctpAssociationSetup) gnbSctp()            {}
func (*SctpAssociationShutdown) gnbSctp()         {}
func (*SctpReceiveMessage) gnbSctp()              {}
func (*SctpSendMessage) gnbSctp()                 {}
func (*SctpUnhandledNotification) gnbSctp()       {}

// GnbStatus updates the station status task.
type GnbStatus interface {
	Message
	gnbStatus()
}

type StatusNgapIsUp struct {
	IsUp bool
}

func (*StatusNgapIsUp) Family() Family { return FamilyGnbStatus }
func (*StatusNgapIsUp) gnbStatus()     {}

// GnbCommand carries operator commands into station tasks.
type GnbCommand interface {
	Message
	gnbCommand()
}

type CommandUeReleaseRequest struct {
	UeID  int
	Cause Cause
}

func (*CommandUeReleaseRequest) Family() Family { return FamilyGnbCommand }
func (*CommandUeReleaseRequest) gnbCommand()    {}
