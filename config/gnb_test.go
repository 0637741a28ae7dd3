package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validGnb() *Gnb {
	g := &Gnb{
		PlmnFields: PlmnFields{Mcc: "208", Mnc: "93"},
		Nci:        "0x000000010",
		Tac:        1,
		LinkIP:     "127.0.0.1",
		AmfConfigs: []Amf{{Address: "127.0.0.5"}},
		Slices:     []Slice{{Sst: 1}},
	}
	g.ApplyDefaults()
	return g
}

func TestGnb_ApplyDefaults(t *testing.T) {
	g := validGnb()
	assert.Equal(t, DefaultGnbIDLength, g.GnbIDLength)
	assert.Equal(t, DefaultAmfPort, g.AmfConfigs[0].Port)
	assert.Equal(t, "127.0.0.1", g.NgapIP)
	assert.Equal(t, "127.0.0.1", g.GtpIP)
	require.NoError(t, g.Validate())
}

func TestGnb_Validate(t *testing.T) {
	sd := 0x1000000
	tests := []struct {
		name   string
		mutate func(g *Gnb)
	}{
		{"short mcc", func(g *Gnb) { g.Mcc = "20" }},
		{"letters in mnc", func(g *Gnb) { g.Mnc = "9a" }},
		{"nci not a number", func(g *Gnb) { g.Nci = "cell" }},
		{"nci too wide", func(g *Gnb) { g.Nci = "0x1000000000" }},
		{"id length too short", func(g *Gnb) { g.GnbIDLength = 21 }},
		{"id length too long", func(g *Gnb) { g.GnbIDLength = 33 }},
		{"zero gnb id", func(g *Gnb) { g.Nci = "0x1" }},
		{"tac too large", func(g *Gnb) { g.Tac = 0x1000000 }},
		{"bad link ip", func(g *Gnb) { g.LinkIP = "localhost" }},
		{"bad advertise ip", func(g *Gnb) { g.GtpAdvertiseIP = "::g" }},
		{"no amf", func(g *Gnb) { g.AmfConfigs = nil }},
		{"privileged amf port", func(g *Gnb) { g.AmfConfigs[0].Port = 80 }},
		{"sst out of range", func(g *Gnb) { g.Slices[0].Sst = 256 }},
		{"sd out of range", func(g *Gnb) { g.Slices[0].Sd = &sd }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGnb()
			tt.mutate(g)
			assert.ErrorIs(t, g.Validate(), ErrInvalidConfig)
		})
	}
}

func TestGnb_NodeName(t *testing.T) {
	g := validGnb()
	g.Mnc = "093"
	g.Nci = "0x000001123"
	g.GnbIDLength = 24
	require.NoError(t, g.Validate())
	assert.Equal(t, uint32(0x1), g.GnbID())
	assert.Equal(t, "UERANSIM-gnb-208-093-1", g.NodeName())

	plmn, err := g.Plmn()
	require.NoError(t, err)
	assert.True(t, plmn.IsLongMnc)
	assert.Equal(t, 93, plmn.Mnc)
}

func TestGnb_NgapConfig(t *testing.T) {
	sd := 0x010203
	g := validGnb()
	g.GtpAdvertiseIP = "10.0.0.1"
	g.Slices = append(g.Slices, Slice{Sst: 2, Sd: &sd})

	cfg := g.NgapConfig()
	assert.Equal(t, g.NodeName(), cfg.Name)
	assert.Equal(t, int64(0x10), cfg.Nci)
	assert.Equal(t, "10.0.0.1", cfg.GtpAddr.String())
	require.Len(t, cfg.Amfs, 1)
	assert.Equal(t, DefaultAmfPort, cfg.Amfs[0].Port)
	require.Len(t, cfg.Slices, 2)
	assert.Equal(t, -1, cfg.Slices[0].Sd)
	assert.Equal(t, sd, cfg.Slices[1].Sd)

	assert.Equal(t, "127.0.0.1:4997", g.LinkAddr())
	assert.Equal(t, g.NodeName(), g.RrcConfig().Cell.GnbName)
}
