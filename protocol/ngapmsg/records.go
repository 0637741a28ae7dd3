// Package ngapmsg defines the NGAP records the core-network task works with
// and the codec that turns them into wire bytes. Only the fields that affect
// routing, state or correlation are kept; NAS PDUs are opaque.
package ngapmsg

import (
	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/shared"
)

// Message is implemented by every NGAP record.
type Message interface {
	ngapMessage()
}

// Snssai is a network slice. Sd is -1 when absent.
type Snssai struct {
	Sst int
	Sd  int
}

type Guami struct {
	Plmn       shared.Plmn
	RegionID   int
	SetID      int
	AmfPointer int
}

type PlmnSupport struct {
	Plmn   shared.Plmn
	Slices []Snssai
}

type SupportedTa struct {
	Tac    int
	Plmn   shared.Plmn
	Slices []Snssai
}

// UserLocation is the NR cell and tracking area a message is sent from.
type UserLocation struct {
	Tai shared.Tai
	Nci int64
}

// Outgoing (station to core) records.

type NGSetupRequest struct {
	Plmn         shared.Plmn
	GnbID        uint32
	GnbIDLength  int
	RanNodeName  string
	SupportedTas []SupportedTa
}

type InitialUEMessage struct {
	RanUeNgapID int64
	NasPdu      []byte
	Location    UserLocation
	Cause       nts.EstablishmentCause
}

type UplinkNASTransport struct {
	Ids      nts.UeNgapIDs
	NasPdu   []byte
	Location UserLocation
}

type UEContextReleaseRequest struct {
	Ids         nts.UeNgapIDs
	Cause       nts.Cause
	PduSessions []int
}

type UEContextReleaseComplete struct {
	Ids nts.UeNgapIDs
}

type InitialContextSetupResponse struct {
	Ids nts.UeNgapIDs
}

// SessionSetupResult reports the downlink tunnel allocated for a session.
type SessionSetupResult struct {
	Psi        int
	DownTunnel nts.GtpTunnel
	QosFlows   []int
}

type PDUSessionResourceSetupResponse struct {
	Ids      nts.UeNgapIDs
	Sessions []SessionSetupResult
}

type PDUSessionResourceReleaseResponse struct {
	Ids  nts.UeNgapIDs
	Psis []int
}

// Incoming (core to station) records.

type NGSetupResponse struct {
	AmfName          string
	RelativeCapacity int
	ServedGuamis     []Guami
	PlmnSupport      []PlmnSupport
}

type NGSetupFailure struct {
	Cause nts.Cause
}

type DownlinkNASTransport struct {
	Ids    nts.UeNgapIDs
	NasPdu []byte
}

// InitialContextSetupRequest carries the UE AMBR when Ambr is non-nil.
type InitialContextSetupRequest struct {
	Ids    nts.UeNgapIDs
	Ambr   *nts.BitRate
	NasPdu []byte
}

// UEContextReleaseCommand may address the UE by the AMF identifier only, in
// which case Ids.RanUeNgapID is zero.
type UEContextReleaseCommand struct {
	Ids   nts.UeNgapIDs
	Cause nts.Cause
}

// SessionSetupItem is one session of a PDUSessionResourceSetupRequest with its
// transfer already decoded.
type SessionSetupItem struct {
	Psi                       int
	NasPdu                    []byte
	Snssai                    Snssai
	Ambr                      nts.BitRate
	UpTunnel                  nts.GtpTunnel
	SessionType               nts.PduSessionType
	DataForwardingNotPossible bool
	QosFlows                  []int
}

type PDUSessionResourceSetupRequest struct {
	Ids      nts.UeNgapIDs
	Ambr     *nts.BitRate
	NasPdu   []byte
	Sessions []SessionSetupItem
}

type PDUSessionResourceReleaseCommand struct {
	Ids    nts.UeNgapIDs
	NasPdu []byte
	Psis   []int
}

type OverloadStart struct{}

type OverloadStop struct{}

func (*NGSetupRequest) ngapMessage()                    {}
func (*InitialUEMessage) ngapMessage()                  {}
func (*UplinkNASTransport) ngapMessage()                {}
func (*UEContextReleaseRequest) ngapMessage()           {}
func (*UEContextReleaseComplete) ngapMessage()          {}
func (*InitialContextSetupResponse) ngapMessage()       {}
func (*PDUSessionResourceSetupResponse) ngapMessage()   {}
func (*PDUSessionResourceReleaseResponse) ngapMessage() {}
func (*NGSetupResponse) ngapMessage()                   {}
func (*NGSetupFailure) ngapMessage()                    {}
func (*DownlinkNASTransport) ngapMessage()              {}
func (*InitialContextSetupRequest) ngapMessage()        {}
func (*UEContextReleaseCommand) ngapMessage()           {}
func (*PDUSessionResourceSetupRequest) ngapMessage()    {}
func (*PDUSessionResourceReleaseCommand) ngapMessage()  {}
func (*OverloadStart) ngapMessage()                     {}
func (*OverloadStop) ngapMessage()                      {}

// UeAssociated reports whether msg belongs to a single UE and therefore
// travels on a UE-associated stream.
func UeAssociated(msg Message) bool {
	switch msg.(type) {
	case *NGSetupRequest, *NGSetupResponse, *NGSetupFailure, *OverloadStart, *OverloadStop:
		return false
	default:
		return true
	}
}
