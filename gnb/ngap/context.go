package ngap

import (
	"net/netip"
	"time"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol/ngapmsg"
	"github.com/Mmx233/RGNB/shared"
)

const (
	DefaultNgSetupTimeout        = 5000 * time.Millisecond
	DefaultContextReleaseTimeout = 5000 * time.Millisecond
)

// AmfState is the state of the NG interface toward one AMF.
type AmfState int

const (
	AmfNotConnected AmfState = iota
	AmfWaitingSetup
	AmfConnected
)

func (s AmfState) String() string {
	switch s {
	case AmfNotConnected:
		return "NOT_CONNECTED"
	case AmfWaitingSetup:
		return "WAITING_NG_SETUP"
	case AmfConnected:
		return "CONNECTED"
	default:
		return "unknown"
	}
}

// OverloadInfo is set between OverloadStart and OverloadStop.
type OverloadInfo struct {
	Overloaded bool
	Since      time.Time
}

type AmfContext struct {
	CtxID      int
	AssocID    int
	InStreams  int
	OutStreams int
	NextStream int
	Address    string
	Port       int

	Name             string
	RelativeCapacity int
	State            AmfState
	OverloadInfo     OverloadInfo
	ServedGuamis     []ngapmsg.Guami
	PlmnSupport      []ngapmsg.PlmnSupport
}

type UeContext struct {
	CtxID          int
	AmfUeNgapID    int64
	RanUeNgapID    int64
	AssociatedAmf  int
	UplinkStream   int
	DownlinkStream int
	Ambr           nts.BitRate
	PduSessions    map[int]struct{}
	ReleasePending bool
}

func (u *UeContext) ids() nts.UeNgapIDs {
	return nts.UeNgapIDs{AmfUeNgapID: u.AmfUeNgapID, RanUeNgapID: u.RanUeNgapID}
}

// AmfAddress is a configured core-network endpoint.
type AmfAddress struct {
	Address string
	Port    int
}

// Config is the part of the station configuration the NG interface needs.
type Config struct {
	Name        string
	GnbID       uint32
	GnbIDLength int
	Nci         int64
	Tai         shared.Tai
	Slices      []ngapmsg.Snssai
	NgapAddr    string
	GtpAddr     netip.Addr
	Amfs        []AmfAddress

	// IgnoreStreamIDs keeps every UE-associated message on stream 0.
	IgnoreStreamIDs bool

	NgSetupTimeout        time.Duration
	ContextReleaseTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.NgSetupTimeout <= 0 {
		c.NgSetupTimeout = DefaultNgSetupTimeout
	}
	if c.ContextReleaseTimeout <= 0 {
		c.ContextReleaseTimeout = DefaultContextReleaseTimeout
	}
}

// AmfSummary is a row of the AMF list.
type AmfSummary struct {
	ID      int    `json:"id"`
	Address string `json:"address"`
	Port    int    `json:"port"`
	State   string `json:"state"`
}

// AmfDetail describes one AMF context.
type AmfDetail struct {
	AmfSummary
	Name             string   `json:"name"`
	RelativeCapacity int      `json:"capacity"`
	Overloaded       bool     `json:"overloaded"`
	ServedGuamis     []string `json:"served-guami"`
	PlmnSupport      []string `json:"plmn-support"`
}

// UeSummary is a row of the UE list.
type UeSummary struct {
	UeID        int   `json:"ue-id"`
	RanUeNgapID int64 `json:"ran-ngap-id"`
	AmfUeNgapID int64 `json:"amf-ngap-id"`
	AmfCtxID    int   `json:"amf-ctx-id"`
	PduSessions []int `json:"pdu-sessions"`
}
