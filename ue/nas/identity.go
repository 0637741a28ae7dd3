package nas

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Mmx233/RGNB/shared"
)

var ErrInvalidSupi = errors.New("invalid SUPI")

const (
	suciTypeImsi           = 0x01
	protectionSchemeNull   = 0x00
	homeNetworkPublicKeyID = 0x00
)

// EncodeSuci builds the 5GS mobile identity contents of an IMSI based SUCI
// with the null protection scheme and routing indicator 0.
func EncodeSuci(supi string, plmn shared.Plmn) ([]byte, error) {
	imsi, ok := strings.CutPrefix(supi, "imsi-")
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an IMSI", ErrInvalidSupi, supi)
	}
	if !isDigits(imsi) {
		return nil, fmt.Errorf("%w: %q has non digit characters", ErrInvalidSupi, supi)
	}
	mcc := fmt.Sprintf("%03d", plmn.Mcc)
	mnc := fmt.Sprintf("%02d", plmn.Mnc)
	if plmn.IsLongMnc {
		mnc = fmt.Sprintf("%03d", plmn.Mnc)
	}
	prefix := mcc + mnc
	if !strings.HasPrefix(imsi, prefix) || len(imsi) <= len(prefix) {
		return nil, fmt.Errorf("%w: %q does not belong to PLMN %s", ErrInvalidSupi, supi, plmn)
	}
	msin := imsi[len(prefix):]

	out := make([]byte, 0, 8+(len(msin)+1)/2)
	out = append(out, suciTypeImsi)
	out = append(out, EncodePlmn(plmn)...)
	out = append(out, 0xf0, 0xff, protectionSchemeNull, homeNetworkPublicKeyID)
	out = append(out, bcd(msin)...)
	return out, nil
}

// EncodePlmn packs a PLMN into the three octet BCD form of NAS identities.
func EncodePlmn(plmn shared.Plmn) []byte {
	mcc := digits(plmn.Mcc, 3)
	mnc2 := byte(0x0f)
	var mnc []byte
	if plmn.IsLongMnc {
		mnc = digits(plmn.Mnc, 3)
		mnc2 = mnc[2]
	} else {
		mnc = digits(plmn.Mnc, 2)
	}
	return []byte{
		mcc[1]<<4 | mcc[0],
		mnc2<<4 | mcc[2],
		mnc[1]<<4 | mnc[0],
	}
}

// bcd packs decimal digits two per octet, low nibble first, padding with 0xf.
func bcd(s string) []byte {
	out := make([]byte, 0, (len(s)+1)/2)
	for i := 0; i < len(s); i += 2 {
		lo := s[i] - '0'
		hi := byte(0x0f)
		if i+1 < len(s) {
			hi = s[i+1] - '0'
		}
		out = append(out, hi<<4|lo)
	}
	return out
}

func digits(v, n int) []byte {
	s := strconv.Itoa(v)
	for len(s) < n {
		s = "0" + s
	}
	out := make([]byte, n)
	for i := range n {
		out[i] = s[len(s)-n+i] - '0'
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
