package config

import (
	"fmt"
	"net/netip"
	"strconv"
	"time"

	"github.com/Mmx233/RGNB/gnb/ngap"
	"github.com/Mmx233/RGNB/gnb/rls"
	"github.com/Mmx233/RGNB/gnb/rrc"
	"github.com/Mmx233/RGNB/protocol/ngapmsg"
	"github.com/Mmx233/RGNB/shared"
)

const (
	nciMask         = 0xFFFFFFFFF
	maxTac          = 0xFFFFFF
	minGnbIDLength  = 22
	maxGnbIDLength  = 32
	minAmfPort      = 1024
	maxAmfPort      = 65535
	nciBits         = 36
	gnbNamePrefix   = "UERANSIM-gnb"
	defaultLinkPort = rls.Port
)

// Gnb is the station side of a relay node.
type Gnb struct {
	PlmnFields `yaml:",inline"`

	// Nci is the 36 bit NR cell identity. Hex notation with a 0x prefix is accepted.
	Nci         string `yaml:"nci"`
	GnbIDLength int    `yaml:"idLength"`
	Tac         int    `yaml:"tac"`

	LinkIP         string `yaml:"linkIp"`
	NgapIP         string `yaml:"ngapIp"`
	GtpIP          string `yaml:"gtpIp"`
	GtpAdvertiseIP string `yaml:"gtpAdvertiseIp,omitempty"`

	IgnoreStreamIDs bool `yaml:"ignoreStreamIds"`

	AmfConfigs []Amf    `yaml:"amfConfigs"`
	Slices     []Slice  `yaml:"slices"`
	Timers     GnbTimer `yaml:"timers"`
}

type Amf struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// GnbTimer holds the optional procedure timers of the station.
type GnbTimer struct {
	NgSetupTimeout        time.Duration `yaml:"ngSetupTimeout"`
	ContextReleaseTimeout time.Duration `yaml:"contextReleaseTimeout"`
	InactivityTimeout     time.Duration `yaml:"inactivityTimeout"`
	SignalLossTimeout     time.Duration `yaml:"signalLossTimeout"`
}

// ApplyDefaults sets default values for zero-value fields.
func (g *Gnb) ApplyDefaults() {
	if g.GnbIDLength == 0 {
		g.GnbIDLength = DefaultGnbIDLength
	}
	for i := range g.AmfConfigs {
		if g.AmfConfigs[i].Port == 0 {
			g.AmfConfigs[i].Port = DefaultAmfPort
		}
	}
	if g.NgapIP == "" {
		g.NgapIP = g.LinkIP
	}
	if g.GtpIP == "" {
		g.GtpIP = g.NgapIP
	}
}

func (g *Gnb) Validate() error {
	if _, err := g.Plmn(); err != nil {
		return err
	}
	nci, err := g.NciValue()
	if err != nil {
		return err
	}
	if g.GnbIDLength < minGnbIDLength || g.GnbIDLength > maxGnbIDLength {
		return invalid("idLength %d must be within %d..%d", g.GnbIDLength, minGnbIDLength, maxGnbIDLength)
	}
	if nci>>(nciBits-g.GnbIDLength) == 0 {
		return invalid("nci %s yields a zero gNB id", g.Nci)
	}
	if g.Tac < 0 || g.Tac > maxTac {
		return invalid("tac %d out of range", g.Tac)
	}
	if _, err = parseIP("linkIp", g.LinkIP); err != nil {
		return err
	}
	if _, err = parseIP("ngapIp", g.NgapIP); err != nil {
		return err
	}
	if _, err = parseIP("gtpIp", g.GtpIP); err != nil {
		return err
	}
	if g.GtpAdvertiseIP != "" {
		if _, err = parseIP("gtpAdvertiseIp", g.GtpAdvertiseIP); err != nil {
			return err
		}
	}
	if len(g.AmfConfigs) == 0 {
		return invalid("at least one AMF is required")
	}
	for i, amf := range g.AmfConfigs {
		if amf.Address == "" {
			return invalid("amfConfigs[%d]: address is empty", i)
		}
		if amf.Port < minAmfPort || amf.Port > maxAmfPort {
			return invalid("amfConfigs[%d]: port %d must be within %d..%d", i, amf.Port, minAmfPort, maxAmfPort)
		}
	}
	return validateSlices("slices", g.Slices)
}

// NciValue parses the configured cell identity.
func (g *Gnb) NciValue() (int64, error) {
	nci, err := strconv.ParseInt(g.Nci, 0, 64)
	if err != nil {
		return 0, invalid("nci %q is not a number", g.Nci)
	}
	if nci <= 0 || nci > nciMask {
		return 0, invalid("nci %q must fit in %d bits", g.Nci, nciBits)
	}
	return nci, nil
}

// GnbID is the leading idLength bits of the cell identity.
func (g *Gnb) GnbID() uint32 {
	nci, _ := g.NciValue()
	return uint32((nci & nciMask) >> (nciBits - g.GnbIDLength))
}

// NodeName is the station name announced in NG setup.
func (g *Gnb) NodeName() string {
	return fmt.Sprintf("%s-%s-%s-%d", gnbNamePrefix, g.Mcc, g.Mnc, g.GnbID())
}

func (g *Gnb) Tai() shared.Tai {
	plmn, _ := g.Plmn()
	return shared.Tai{Plmn: plmn, Tac: g.Tac}
}

// Cell describes the station's single cell as devices see it.
func (g *Gnb) Cell() shared.CellDescription {
	nci, _ := g.NciValue()
	plmn, _ := g.Plmn()
	return shared.CellDescription{Nci: nci, Plmn: plmn, Tac: g.Tac, GnbName: g.NodeName()}
}

// LinkAddr is the UDP address of the station link layer.
func (g *Gnb) LinkAddr() string {
	return netip.AddrPortFrom(netip.MustParseAddr(g.LinkIP), defaultLinkPort).String()
}

// GtpAddr is the N3 address announced to the core network.
func (g *Gnb) GtpAddr() netip.Addr {
	if g.GtpAdvertiseIP != "" {
		return netip.MustParseAddr(g.GtpAdvertiseIP)
	}
	return netip.MustParseAddr(g.GtpIP)
}

// NgapConfig must only be called on a validated record.
func (g *Gnb) NgapConfig() ngap.Config {
	nci, _ := g.NciValue()
	cfg := ngap.Config{
		Name:                  g.NodeName(),
		GnbID:                 g.GnbID(),
		GnbIDLength:           g.GnbIDLength,
		Nci:                   nci,
		Tai:                   g.Tai(),
		NgapAddr:              g.NgapIP,
		GtpAddr:               g.GtpAddr(),
		IgnoreStreamIDs:       g.IgnoreStreamIDs,
		NgSetupTimeout:        g.Timers.NgSetupTimeout,
		ContextReleaseTimeout: g.Timers.ContextReleaseTimeout,
	}
	for _, amf := range g.AmfConfigs {
		cfg.Amfs = append(cfg.Amfs, ngap.AmfAddress{Address: amf.Address, Port: amf.Port})
	}
	for _, s := range g.Slices {
		cfg.Slices = append(cfg.Slices, s.Snssai())
	}
	return cfg
}

func (g *Gnb) RrcConfig() rrc.Config {
	return rrc.Config{Cell: g.Cell(), InactivityTimeout: g.Timers.InactivityTimeout}
}

func (g *Gnb) RlsConfig() rls.Config {
	return rls.Config{CellID: 1, Cell: g.Cell(), SignalLossTimeout: g.Timers.SignalLossTimeout}
}

// Snssai converts the slice to its NGAP form, where an absent SD is -1.
func (s Slice) Snssai() ngapmsg.Snssai {
	out := ngapmsg.Snssai{Sst: s.Sst, Sd: -1}
	if s.Sd != nil {
		out.Sd = *s.Sd
	}
	return out
}
