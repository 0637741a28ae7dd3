package config

import (
	"net/netip"
	"slices"
	"strings"
	"time"

	gnbrls "github.com/Mmx233/RGNB/gnb/rls"
	"github.com/Mmx233/RGNB/ue/nas"
	"github.com/Mmx233/RGNB/ue/rls"
	"github.com/Mmx233/RGNB/ue/rrc"
)

const (
	keyHexLength = 32
	amfHexLength = 4
	imeiLength   = 15
	imeiSvLength = 16
	maxUacClass  = 9
)

var (
	sessionTypes = []string{"IPv4", "IPv6", "IPv4v6", "Ethernet", "Unstructured"}
	opTypes      = []string{"OP", "OPC"}
)

// Ue is the device side of a relay node: the subscriber the node
// registers with the upstream core through another station's cell.
type Ue struct {
	PlmnFields `yaml:",inline"`

	Supi             string `yaml:"supi"`
	RoutingIndicator string `yaml:"routingIndicator"`
	ProtectionScheme int    `yaml:"protectionScheme"`
	Imei             string `yaml:"imei,omitempty"`
	ImeiSv           string `yaml:"imeiSv,omitempty"`

	Key    string `yaml:"key"`
	Op     string `yaml:"op"`
	OpType string `yaml:"opType"`
	Amf    string `yaml:"amf"`

	GnbSearchList   []string `yaml:"gnbSearchList"`
	DefaultNssai    []Slice  `yaml:"default-nssai"`
	ConfiguredNssai []Slice  `yaml:"configured-nssai"`

	Integrity Integrity `yaml:"integrity"`
	Ciphering Ciphering `yaml:"ciphering"`

	IntegrityMaxRate IntegrityMaxRate `yaml:"integrityMaxRate"`
	Sessions         []Session        `yaml:"sessions"`
	UacAic           UacAic           `yaml:"uacAic"`
	UacAcc           UacAcc           `yaml:"uacAcc"`

	Timers UeTimer `yaml:"timers"`
}

type Integrity struct {
	IA1 bool `yaml:"IA1"`
	IA2 bool `yaml:"IA2"`
	IA3 bool `yaml:"IA3"`
}

type Ciphering struct {
	EA1 bool `yaml:"EA1"`
	EA2 bool `yaml:"EA2"`
	EA3 bool `yaml:"EA3"`
}

// IntegrityMaxRate values are "64kbps" or "full".
type IntegrityMaxRate struct {
	Uplink   string `yaml:"uplink"`
	Downlink string `yaml:"downlink"`
}

type Session struct {
	Type  string `yaml:"type"`
	Apn   string `yaml:"apn,omitempty"`
	Slice *Slice `yaml:"slice,omitempty"`
}

type UacAic struct {
	Mps bool `yaml:"mps"`
	Mcs bool `yaml:"mcs"`
}

type UacAcc struct {
	NormalClass int  `yaml:"normalClass"`
	Class11     bool `yaml:"class11"`
	Class12     bool `yaml:"class12"`
	Class13     bool `yaml:"class13"`
	Class14     bool `yaml:"class14"`
	Class15     bool `yaml:"class15"`
}

type UeTimer struct {
	CycleInterval     time.Duration `yaml:"cycleInterval"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
	SignalLossTimeout time.Duration `yaml:"signalLossTimeout"`
	RetryInterval     time.Duration `yaml:"retryInterval"`
	GuardInterval     time.Duration `yaml:"guardInterval"`
}

// ApplyDefaults sets default values for zero-value fields.
func (u *Ue) ApplyDefaults() {
	if u.RoutingIndicator == "" {
		u.RoutingIndicator = DefaultRoutingIndicator
	}
	if u.OpType == "" {
		u.OpType = "OPC"
	}
	if u.IntegrityMaxRate.Uplink == "" {
		u.IntegrityMaxRate.Uplink = "full"
	}
	if u.IntegrityMaxRate.Downlink == "" {
		u.IntegrityMaxRate.Downlink = "full"
	}
}

func (u *Ue) Validate() error {
	plmn, err := u.Plmn()
	if err != nil {
		return err
	}
	if u.Supi != "" {
		if _, err = nas.EncodeSuci(u.Supi, plmn); err != nil {
			return invalid("supi: %v", err)
		}
	}
	if u.Supi == "" && u.Imei == "" && u.ImeiSv == "" {
		return invalid("one of supi, imei or imeiSv is required")
	}
	if l := len(u.RoutingIndicator); l < 1 || l > 4 || !isDigits(u.RoutingIndicator) {
		return invalid("routingIndicator %q must be 1 to 4 digits", u.RoutingIndicator)
	}
	if u.ProtectionScheme != 0 {
		return invalid("protectionScheme %d is not supported", u.ProtectionScheme)
	}
	if u.Imei != "" && (len(u.Imei) != imeiLength || !isDigits(u.Imei)) {
		return invalid("imei must be %d digits", imeiLength)
	}
	if u.ImeiSv != "" && (len(u.ImeiSv) != imeiSvLength || !isDigits(u.ImeiSv)) {
		return invalid("imeiSv must be %d digits", imeiSvLength)
	}
	if len(u.Key) != keyHexLength || !isHex(u.Key) {
		return invalid("key must be %d hex characters", keyHexLength)
	}
	if len(u.Op) != keyHexLength || !isHex(u.Op) {
		return invalid("op must be %d hex characters", keyHexLength)
	}
	if !slices.Contains(opTypes, u.OpType) {
		return invalid("opType %q must be OP or OPC", u.OpType)
	}
	if len(u.Amf) != amfHexLength || !isHex(u.Amf) {
		return invalid("amf must be %d hex characters", amfHexLength)
	}
	if len(u.GnbSearchList) == 0 {
		return invalid("gnbSearchList is empty")
	}
	for _, ip := range u.GnbSearchList {
		if _, err = parseIP("gnbSearchList", ip); err != nil {
			return err
		}
	}
	if err = validateSlices("default-nssai", u.DefaultNssai); err != nil {
		return err
	}
	if err = validateSlices("configured-nssai", u.ConfiguredNssai); err != nil {
		return err
	}
	for _, rate := range []string{u.IntegrityMaxRate.Uplink, u.IntegrityMaxRate.Downlink} {
		if rate != "full" && rate != "64kbps" {
			return invalid("integrityMaxRate %q must be full or 64kbps", rate)
		}
	}
	for i, s := range u.Sessions {
		if !slices.Contains(sessionTypes, s.Type) {
			return invalid("sessions[%d]: type %q is not supported", i, s.Type)
		}
		if s.Slice != nil {
			if err = s.Slice.Validate(); err != nil {
				return err
			}
		}
	}
	if u.UacAcc.NormalClass < 0 || u.UacAcc.NormalClass > maxUacClass {
		return invalid("uacAcc normalClass %d must be within 0..%d", u.UacAcc.NormalClass, maxUacClass)
	}
	return nil
}

// NodeName prefers the SUPI, then the equipment identities.
func (u *Ue) NodeName() string {
	switch {
	case u.Supi != "":
		return u.Supi
	case u.Imei != "":
		return "imei-" + u.Imei
	case u.ImeiSv != "":
		return "imeisv-" + u.ImeiSv
	default:
		return "unknown-ue"
	}
}

// SearchList resolves the search list to station link addresses.
func (u *Ue) SearchList() []netip.AddrPort {
	out := make([]netip.AddrPort, 0, len(u.GnbSearchList))
	for _, ip := range u.GnbSearchList {
		addr, err := netip.ParseAddr(strings.TrimSpace(ip))
		if err != nil {
			continue
		}
		out = append(out, netip.AddrPortFrom(addr, gnbrls.Port))
	}
	return out
}

func (u *Ue) NasConfig() nas.Config {
	plmn, _ := u.Plmn()
	return nas.Config{
		Supi:  u.Supi,
		Hplmn: plmn,
		Algorithms: nas.Algorithms{
			IA1: u.Integrity.IA1, IA2: u.Integrity.IA2, IA3: u.Integrity.IA3,
			EA1: u.Ciphering.EA1, EA2: u.Ciphering.EA2, EA3: u.Ciphering.EA3,
		},
		RetryInterval: u.Timers.RetryInterval,
		GuardInterval: u.Timers.GuardInterval,
	}
}

func (u *Ue) RrcConfig() rrc.Config {
	return rrc.Config{CycleInterval: u.Timers.CycleInterval}
}

func (u *Ue) RlsConfig() rls.Config {
	return rls.Config{
		SearchList:        u.SearchList(),
		HeartbeatInterval: u.Timers.HeartbeatInterval,
		SignalLossTimeout: u.Timers.SignalLossTimeout,
	}
}
