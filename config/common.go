package config

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"

	"github.com/Mmx233/RGNB/shared"
)

const (
	EnvPrefix = "RGNB_"
)

var ErrInvalidConfig = errors.New("invalid configuration")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}

// PlmnFields are the mcc and mnc keys shared by both node configurations.
// They are strings so that the length of the MNC survives YAML decoding.
type PlmnFields struct {
	Mcc string `yaml:"mcc"`
	Mnc string `yaml:"mnc"`
}

// Plmn validates and converts the fields.
func (p PlmnFields) Plmn() (shared.Plmn, error) {
	if len(p.Mcc) != 3 || !isDigits(p.Mcc) {
		return shared.Plmn{}, invalid("mcc %q must be 3 digits", p.Mcc)
	}
	if (len(p.Mnc) != 2 && len(p.Mnc) != 3) || !isDigits(p.Mnc) {
		return shared.Plmn{}, invalid("mnc %q must be 2 or 3 digits", p.Mnc)
	}
	mcc, _ := strconv.Atoi(p.Mcc)
	mnc, _ := strconv.Atoi(p.Mnc)
	if mcc == 0 {
		return shared.Plmn{}, invalid("mcc must not be 000")
	}
	return shared.Plmn{Mcc: mcc, Mnc: mnc, IsLongMnc: len(p.Mnc) == 3}, nil
}

// Slice is a single network slice selection assistance value.
type Slice struct {
	Sst int  `yaml:"sst"`
	Sd  *int `yaml:"sd,omitempty"`
}

func (s Slice) Validate() error {
	if s.Sst < 0 || s.Sst > 0xff {
		return invalid("sst %d out of range", s.Sst)
	}
	if s.Sd != nil && (*s.Sd < 0 || *s.Sd > 0xffffff) {
		return invalid("sd %d out of range", *s.Sd)
	}
	return nil
}

func validateSlices(field string, slices []Slice) error {
	for i, s := range slices {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("%s[%d]: %w", field, i, err)
		}
	}
	return nil
}

func parseIP(field, value string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}, invalid("%s %q is not an IP address", field, value)
	}
	return addr, nil
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

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
