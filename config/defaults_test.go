package config

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"pgregory.net/rapid"
)

// Feature: config-defaults, Property 1: Zero-value fields receive correct defaults
func TestZeroValueDefaultsApplication_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		amfs := rapid.IntRange(1, 4).Draw(t, "amfs")
		g := &Gnb{AmfConfigs: make([]Amf, amfs), LinkIP: "127.0.0.1"}

		g.ApplyDefaults()

		if g.GnbIDLength != DefaultGnbIDLength {
			t.Fatalf("expected GnbIDLength=%d, got %d", DefaultGnbIDLength, g.GnbIDLength)
		}
		for i, amf := range g.AmfConfigs {
			if amf.Port != DefaultAmfPort {
				t.Fatalf("expected AmfConfigs[%d].Port=%d, got %d", i, DefaultAmfPort, amf.Port)
			}
		}
		if g.NgapIP != g.LinkIP || g.GtpIP != g.LinkIP {
			t.Fatalf("expected interface addresses to fall back to linkIp")
		}
	})

	rapid.Check(t, func(t *rapid.T) {
		u := &Ue{}
		u.ApplyDefaults()
		if u.RoutingIndicator != DefaultRoutingIndicator {
			t.Fatalf("expected RoutingIndicator=%s, got %s", DefaultRoutingIndicator, u.RoutingIndicator)
		}
		if u.OpType != "OPC" {
			t.Fatalf("expected OpType=OPC, got %s", u.OpType)
		}
	})
}

// Feature: config-defaults, Property 2: Explicit values are preserved
func TestExplicitValuesPreserved_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idLength := rapid.IntRange(minGnbIDLength, maxGnbIDLength).Draw(t, "idLength")
		port := rapid.IntRange(minAmfPort, maxAmfPort).Draw(t, "port")
		g := &Gnb{GnbIDLength: idLength, AmfConfigs: []Amf{{Address: "127.0.0.1", Port: port}}}

		g.ApplyDefaults()

		if g.GnbIDLength != idLength {
			t.Fatalf("expected GnbIDLength=%d preserved, got %d", idLength, g.GnbIDLength)
		}
		if g.AmfConfigs[0].Port != port {
			t.Fatalf("expected Port=%d preserved, got %d", port, g.AmfConfigs[0].Port)
		}
	})
}

// Feature: config-defaults, Property 3: gNB id is the leading idLength bits of the NCI
func TestGnbIDDerivation_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		idLength := rapid.IntRange(minGnbIDLength, maxGnbIDLength).Draw(t, "idLength")
		nci := rapid.Int64Range(1, nciMask).Draw(t, "nci")
		g := &Gnb{Nci: fmt.Sprintf("%#x", nci), GnbIDLength: idLength}

		id := g.GnbID()
		if uint64(id) != uint64(nci)>>(nciBits-idLength) {
			t.Fatalf("nci %#x idLength %d: got gnb id %#x", nci, idLength, id)
		}
		if idLength < 32 && uint64(id) >= 1<<idLength {
			t.Fatalf("gnb id %#x does not fit in %d bits", id, idLength)
		}
	})
}

func TestGenerateInstanceID(t *testing.T) {
	id := GenerateInstanceID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected a UUID, got %q: %v", id, err)
	}
	if id == GenerateInstanceID() {
		t.Fatal("expected distinct instance ids")
	}
}
