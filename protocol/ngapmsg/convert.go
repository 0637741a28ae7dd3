package ngapmsg

import (
	"encoding/binary"
	"fmt"
	"net/netip"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/shared"
	"github.com/free5gc/aper"
	"github.com/free5gc/ngap/ngapType"
)

// EncodePlmn returns the 3-octet BCD form of a PLMN identity.
func EncodePlmn(p shared.Plmn) []byte {
	mcc := [3]byte{byte(p.Mcc / 100 % 10), byte(p.Mcc / 10 % 10), byte(p.Mcc % 10)}
	out := make([]byte, 3)
	out[0] = mcc[1]<<4 | mcc[0]
	if p.IsLongMnc {
		mnc := [3]byte{byte(p.Mnc / 100 % 10), byte(p.Mnc / 10 % 10), byte(p.Mnc % 10)}
		out[1] = mnc[2]<<4 | mcc[2]
		out[2] = mnc[1]<<4 | mnc[0]
	} else {
		mnc := [2]byte{byte(p.Mnc / 10 % 10), byte(p.Mnc % 10)}
		out[1] = 0xf0 | mcc[2]
		out[2] = mnc[1]<<4 | mnc[0]
	}
	return out
}

// DecodePlmn parses a 3-octet BCD PLMN identity.
func DecodePlmn(b []byte) (shared.Plmn, error) {
	if len(b) != 3 {
		return shared.Plmn{}, fmt.Errorf("plmn identity has %d octets", len(b))
	}
	p := shared.Plmn{
		Mcc: int(b[0]&0x0f)*100 + int(b[0]>>4)*10 + int(b[1]&0x0f),
	}
	if b[1]>>4 == 0x0f {
		p.Mnc = int(b[2]&0x0f)*10 + int(b[2]>>4)
	} else {
		p.IsLongMnc = true
		p.Mnc = int(b[2]&0x0f)*100 + int(b[2]>>4)*10 + int(b[1]>>4)
	}
	return p, nil
}

func encodeTac(tac int) aper.OctetString {
	return aper.OctetString{byte(tac >> 16), byte(tac >> 8), byte(tac)}
}

func octetsInt(b aper.OctetString) int {
	var v int
	for _, o := range b {
		v = v<<8 | int(o)
	}
	return v
}

// uintBits packs the low n bits of v into a left-aligned bit string.
func uintBits(v uint64, n int) aper.BitString {
	size := (n + 7) / 8
	v <<= uint(size*8 - n)
	out := make([]byte, size)
	for i := size - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return aper.BitString{Bytes: out, BitLength: uint64(n)}
}

func bitsUint(bs aper.BitString) uint64 {
	var v uint64
	for _, o := range bs.Bytes {
		v = v<<8 | uint64(o)
	}
	return v >> (uint64(len(bs.Bytes))*8 - bs.BitLength)
}

func encodePlmnIdentity(p shared.Plmn) ngapType.PLMNIdentity {
	return ngapType.PLMNIdentity{Value: EncodePlmn(p)}
}

func encodeSnssai(s Snssai) ngapType.SNSSAI {
	out := ngapType.SNSSAI{SST: ngapType.SST{Value: aper.OctetString{byte(s.Sst)}}}
	if s.Sd >= 0 {
		out.SD = &ngapType.SD{Value: aper.OctetString{byte(s.Sd >> 16), byte(s.Sd >> 8), byte(s.Sd)}}
	}
	return out
}

func decodeSnssai(s ngapType.SNSSAI) Snssai {
	out := Snssai{Sd: -1}
	if len(s.SST.Value) > 0 {
		out.Sst = int(s.SST.Value[0])
	}
	if s.SD != nil {
		out.Sd = octetsInt(s.SD.Value)
	}
	return out
}

func encodeLocation(loc UserLocation) *ngapType.UserLocationInformation {
	return &ngapType.UserLocationInformation{
		Present: ngapType.UserLocationInformationPresentUserLocationInformationNR,
		UserLocationInformationNR: &ngapType.UserLocationInformationNR{
			NRCGI: ngapType.NRCGI{
				PLMNIdentity:   encodePlmnIdentity(loc.Tai.Plmn),
				NRCellIdentity: ngapType.NRCellIdentity{Value: uintBits(uint64(loc.Nci), 36)},
			},
			TAI: ngapType.TAI{
				PLMNIdentity: encodePlmnIdentity(loc.Tai.Plmn),
				TAC:          ngapType.TAC{Value: encodeTac(loc.Tai.Tac)},
			},
		},
	}
}

func encodeCause(c nts.Cause) *ngapType.Cause {
	v := aper.Enumerated(c.Value())
	out := new(ngapType.Cause)
	switch c.Group() {
	case nts.CauseGroupRadioNetwork:
		out.Present = ngapType.CausePresentRadioNetwork
		out.RadioNetwork = &ngapType.CauseRadioNetwork{Value: v}
	case nts.CauseGroupTransport:
		out.Present = ngapType.CausePresentTransport
		out.Transport = &ngapType.CauseTransport{Value: v}
	case nts.CauseGroupNas:
		out.Present = ngapType.CausePresentNas
		out.Nas = &ngapType.CauseNas{Value: v}
	case nts.CauseGroupProtocol:
		out.Present = ngapType.CausePresentProtocol
		out.Protocol = &ngapType.CauseProtocol{Value: v}
	default:
		out.Present = ngapType.CausePresentMisc
		out.Misc = &ngapType.CauseMisc{Value: v}
	}
	return out
}

func decodeCause(c *ngapType.Cause) nts.Cause {
	if c == nil {
		return nts.CauseMiscUnspecified
	}
	switch {
	case c.Present == ngapType.CausePresentRadioNetwork && c.RadioNetwork != nil:
		return nts.MakeCause(nts.CauseGroupRadioNetwork, int(c.RadioNetwork.Value))
	case c.Present == ngapType.CausePresentTransport && c.Transport != nil:
		return nts.MakeCause(nts.CauseGroupTransport, int(c.Transport.Value))
	case c.Present == ngapType.CausePresentNas && c.Nas != nil:
		return nts.MakeCause(nts.CauseGroupNas, int(c.Nas.Value))
	case c.Present == ngapType.CausePresentProtocol && c.Protocol != nil:
		return nts.MakeCause(nts.CauseGroupProtocol, int(c.Protocol.Value))
	case c.Present == ngapType.CausePresentMisc && c.Misc != nil:
		return nts.MakeCause(nts.CauseGroupMisc, int(c.Misc.Value))
	default:
		return nts.CauseMiscUnspecified
	}
}

func encodeTunnel(t nts.GtpTunnel) ngapType.UPTransportLayerInformation {
	teid := make([]byte, 4)
	binary.BigEndian.PutUint32(teid, t.Teid)
	addr := t.Address.AsSlice()
	return ngapType.UPTransportLayerInformation{
		Present: ngapType.UPTransportLayerInformationPresentGTPTunnel,
		GTPTunnel: &ngapType.GTPTunnel{
			TransportLayerAddress: ngapType.TransportLayerAddress{
				Value: aper.BitString{Bytes: addr, BitLength: uint64(len(addr) * 8)},
			},
			GTPTEID: ngapType.GTPTEID{Value: teid},
		},
	}
}

func decodeTunnel(info *ngapType.UPTransportLayerInformation) (nts.GtpTunnel, error) {
	if info == nil || info.GTPTunnel == nil {
		return nts.GtpTunnel{}, fmt.Errorf("missing GTP tunnel")
	}
	teid := info.GTPTunnel.GTPTEID.Value
	if len(teid) != 4 {
		return nts.GtpTunnel{}, fmt.Errorf("GTP TEID has %d octets", len(teid))
	}
	raw := info.GTPTunnel.TransportLayerAddress.Value.Bytes
	// An IPv4v6 transport address carries both; the IPv4 part comes first.
	if len(raw) == 20 {
		raw = raw[:4]
	}
	addr, ok := netip.AddrFromSlice(raw)
	if !ok {
		return nts.GtpTunnel{}, fmt.Errorf("transport layer address has %d octets", len(raw))
	}
	return nts.GtpTunnel{Teid: binary.BigEndian.Uint32(teid), Address: addr}, nil
}

func ueIDs(amf *ngapType.AMFUENGAPID, ran *ngapType.RANUENGAPID) nts.UeNgapIDs {
	out := nts.UeNgapIDs{AmfUeNgapID: -1}
	if amf != nil {
		out.AmfUeNgapID = amf.Value
	}
	if ran != nil {
		out.RanUeNgapID = ran.Value
	}
	return out
}
