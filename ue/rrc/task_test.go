package rrc

import (
	"sync"
	"testing"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/relay"
	"github.com/Mmx233/RGNB/shared"
	"github.com/Mmx233/RGNB/task"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type sink struct {
	mu   sync.Mutex
	msgs []nts.Message
}

func (s *sink) Send(msg nts.Message) {
	s.mu.Lock()
	s.msgs = append(s.msgs, msg)
	s.mu.Unlock()
}

func (s *sink) take() []nts.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.msgs
	s.msgs = nil
	return out
}

var home = shared.Plmn{Mcc: 208, Mnc: 93}

type fixture struct {
	tk    *task.Task
	h     *Handler
	ctx   *shared.Context
	table *relay.Table
	nas   *sink
	rls   *sink
	gnb   *sink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tk:    task.New("ue-rrc", zerolog.Nop()),
		ctx:   shared.NewContext(home),
		table: relay.New(zerolog.Nop()),
		nas:   &sink{},
		rls:   &sink{},
		gnb:   &sink{},
	}
	f.h = New(f.tk, Config{}, f.ctx, f.table, Peers{Nas: f.nas, Rls: f.rls, GnbRrc: f.gnb})
	t.Cleanup(f.tk.Quit)
	f.h.OnStart()
	return f
}

// camp reports one good cell and drains the resulting notifications.
func (f *fixture) camp() {
	f.h.Handle(&nts.RlsSignalChanged{CellID: 1, Dbm: -60, Info: shared.CellDescription{Plmn: home, Tac: 1}})
	f.nas.take()
	f.rls.take()
}

func TestRrc_CellSelection(t *testing.T) {
	f := newFixture(t)
	f.h.Handle(&nts.RlsSignalChanged{CellID: 3, Dbm: -70, Info: shared.CellDescription{Plmn: home, Tac: 7}})

	cell := f.ctx.CurrentCell.Get()
	assert.Equal(t, 3, cell.CellID)
	assert.Equal(t, shared.CellSuitable, cell.Category)
	assert.Equal(t, []nts.Message{&nts.RlsAssignCurrentCell{CellID: 3}}, f.rls.take())
	assert.Equal(t, []nts.Message{&nts.RrcActiveCellChanged{}}, f.nas.take())
	assert.Equal(t, []shared.Plmn{home}, f.ctx.AvailablePlmns.Get())

	// A newly detected stronger cell takes over right away.
	f.h.Handle(&nts.RlsSignalChanged{CellID: 3, Dbm: -50, Info: shared.CellDescription{Plmn: home, Tac: 7}})
	f.h.Handle(&nts.RlsSignalChanged{CellID: 4, Dbm: -40, Info: shared.CellDescription{Plmn: home, Tac: 8}})
	assert.Equal(t, 4, f.ctx.CurrentCell.Get().CellID)
	assert.Equal(t, []nts.Message{&nts.RrcActiveCellChanged{PreviousTai: shared.Tai{Plmn: home, Tac: 7}}}, f.nas.take())

	f.h.Handle(&nts.RlsSignalChanged{CellID: 4, Lost: true})
	f.h.Handle(&nts.TimerExpired{ID: timerCycle})
	assert.Equal(t, 3, f.ctx.CurrentCell.Get().CellID)

	f.h.Handle(&nts.RlsSignalChanged{CellID: 3, Lost: true})
	f.h.Handle(&nts.RrcTriggerCycle{})
	assert.False(t, f.ctx.CurrentCell.Get().HasValue())
	assert.Equal(t, []nts.Message{
		&nts.RlsAssignCurrentCell{CellID: 4},
		&nts.RlsAssignCurrentCell{CellID: 3},
		&nts.RlsAssignCurrentCell{CellID: 0},
	}, f.rls.take())
}

func TestSelectCell(t *testing.T) {
	forbiddenTai := shared.Tai{Plmn: home, Tac: 9}
	forbidden := func(tai shared.Tai) bool { return tai == forbiddenTai }
	other := shared.Plmn{Mcc: 1, Mnc: 1}

	cells := []Cell{
		{CellID: 1, Dbm: -30, Info: shared.CellDescription{Plmn: other, Tac: 1}},
		{CellID: 2, Dbm: -20, Info: shared.CellDescription{Plmn: home, Tac: 1, Barred: true}},
		{CellID: 3, Dbm: -25, Info: shared.CellDescription{Plmn: home, Tac: 9}},
		{CellID: 4, Dbm: -90, Info: shared.CellDescription{Plmn: home, Tac: 2}},
		{CellID: 5, Dbm: -125, Info: shared.CellDescription{Plmn: home, Tac: 3}},
	}
	got := SelectCell(cells, home, forbidden)
	assert.Equal(t, shared.ActiveCellInfo{CellID: 4, Category: shared.CellSuitable, Plmn: home, Tac: 2}, got)

	got = SelectCell(cells[:3], home, forbidden)
	assert.Equal(t, 3, got.CellID)
	assert.Equal(t, shared.CellAcceptable, got.Category)

	assert.False(t, SelectCell(cells[4:], home, forbidden).HasValue())
	assert.False(t, SelectCell(nil, home, forbidden).HasValue())
}

func TestRrc_UplinkWithoutCell(t *testing.T) {
	f := newFixture(t)
	f.h.Handle(&nts.NasUplinkDelivery{Pdu: []byte{0x7e}})
	assert.Equal(t, []nts.Message{&nts.RrcEstablishmentFailure{}}, f.nas.take())
	assert.Empty(t, f.gnb.take())

	f.camp()
	f.h.Handle(&nts.NasUplinkDelivery{})
	assert.Empty(t, f.nas.take())
	assert.Equal(t, StateIdle, f.h.State())
}

func TestRrc_EstablishAndRelay(t *testing.T) {
	f := newFixture(t)
	f.camp()

	f.h.Handle(&nts.NasUplinkDelivery{Pdu: []byte{0x7e, 0x00, 0x41}})
	require.Equal(t, StateConnected, f.h.State())
	assert.Equal(t, []nts.Message{&nts.RrcConnectionSetup{}}, f.nas.take())
	sent := f.gnb.take()
	require.Len(t, sent, 1)
	open := sent[0].(*nts.BridgeInitialNas)
	assert.Equal(t, []byte{0x7e, 0x00, 0x41}, open.Pdu)
	assert.Equal(t, open.Handle, f.h.CurrentHandle())

	ids := nts.UeNgapIDs{AmfUeNgapID: 7, RanUeNgapID: 3}
	require.NoError(t, f.table.Assign(open.Handle, ids))
	f.h.Handle(&nts.NasUplinkDelivery{Pdu: []byte{0x7e, 0x00, 0x43}})
	assert.Equal(t, []nts.Message{&nts.BridgeUplinkNas{Handle: open.Handle, Ids: ids, Pdu: []byte{0x7e, 0x00, 0x43}}}, f.gnb.take())

	down, err := f.table.Downlink(ids, []byte{0x7e, 0x00, 0x42})
	require.NoError(t, err)
	f.h.Handle(down)
	assert.Equal(t, []nts.Message{&nts.RrcNasDelivery{Pdu: []byte{0x7e, 0x00, 0x42}}}, f.nas.take())

	// A message for another session is ignored.
	f.h.Handle(&nts.BridgeDownlinkNas{Handle: open.Handle + 1, Pdu: []byte{1}})
	f.h.Handle(&nts.BridgeConnectionRelease{Handle: open.Handle + 1})
	assert.Empty(t, f.nas.take())
	assert.Equal(t, StateConnected, f.h.State())

	f.table.ReleaseStation(ids)
	f.h.Handle(&nts.BridgeConnectionRelease{Handle: open.Handle})
	assert.Equal(t, StateIdle, f.h.State())
	assert.Equal(t, []nts.Message{&nts.RrcConnectionRelease{}}, f.nas.take())
	assert.Empty(t, f.gnb.take())
}

func TestRrc_UplinkOnReleasedCorrelation(t *testing.T) {
	f := newFixture(t)
	f.camp()
	f.h.Handle(&nts.NasUplinkDelivery{Pdu: []byte{1}})
	open := f.gnb.take()[0].(*nts.BridgeInitialNas)
	f.nas.take()

	// The station dropped the correlation before its release reached the device.
	f.table.ReleaseHandle(open.Handle)
	f.h.Handle(&nts.NasUplinkDelivery{Pdu: []byte{2}})
	assert.Equal(t, StateIdle, f.h.State())
	assert.Equal(t, []nts.Message{&nts.RrcConnectionRelease{}}, f.nas.take())
	assert.Empty(t, f.gnb.take())

	// The release the station sent for the dropped handle arrives afterwards.
	f.h.Handle(&nts.BridgeConnectionRelease{Handle: open.Handle})
	assert.Empty(t, f.nas.take())
	assert.Equal(t, StateIdle, f.h.State())
}

// Feature: device-rrc, Property: NAS learns of every lost session exactly once
// whichever way the station release and the next uplink interleave.
func TestRrc_ReleaseRaceNotifiesOnce_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		f.camp()
		f.h.Handle(&nts.NasUplinkDelivery{Pdu: []byte{1}})
		open := f.gnb.take()[0].(*nts.BridgeInitialNas)
		f.nas.take()

		f.table.ReleaseHandle(open.Handle)
		uplinkFirst := rapid.Bool().Draw(rt, "uplinkFirst")
		if uplinkFirst {
			f.h.Handle(&nts.NasUplinkDelivery{Pdu: []byte{2}})
			f.h.Handle(&nts.BridgeConnectionRelease{Handle: open.Handle})
		} else {
			f.h.Handle(&nts.BridgeConnectionRelease{Handle: open.Handle})
		}

		releases := 0
		for _, msg := range f.nas.take() {
			if _, ok := msg.(*nts.RrcConnectionRelease); ok {
				releases++
			}
		}
		if releases != 1 {
			rt.Fatalf("NAS notified %d times, want 1", releases)
		}
		if f.h.State() != StateIdle {
			rt.Fatalf("state %v, want idle", f.h.State())
		}
	})
}

func TestRrc_LocalRelease(t *testing.T) {
	f := newFixture(t)
	f.camp()
	f.h.Handle(&nts.NasUplinkDelivery{Pdu: []byte{1}})
	open := f.gnb.take()[0].(*nts.BridgeInitialNas)
	f.nas.take()

	f.h.Handle(&nts.NasLocalReleaseConnection{})
	assert.Equal(t, StateIdle, f.h.State())
	assert.Zero(t, f.table.Len())
	assert.Equal(t, []nts.Message{&nts.BridgeLocalRelease{Handle: open.Handle}}, f.gnb.take())
	assert.Equal(t, []nts.Message{&nts.RlsResetSti{}}, f.rls.take())
	assert.Equal(t, []nts.Message{&nts.RrcConnectionRelease{}}, f.nas.take())
}

func TestRrc_RadioLinkFailure(t *testing.T) {
	f := newFixture(t)
	f.camp()
	f.h.Handle(&nts.NasUplinkDelivery{Pdu: []byte{1}})
	open := f.gnb.take()[0].(*nts.BridgeInitialNas)
	f.nas.take()

	f.h.Handle(&nts.RlsRadioLinkFailure{Cause: nts.RlfSignalLostToConnectedCell})
	assert.Equal(t, StateIdle, f.h.State())
	assert.Zero(t, f.table.Len())
	assert.Equal(t, []nts.Message{&nts.BridgeLocalRelease{Handle: open.Handle}}, f.gnb.take())
	assert.Equal(t, []nts.Message{&nts.RrcRadioLinkFailureNotify{Cause: nts.RlfSignalLostToConnectedCell}}, f.nas.take())

	// Failure while idle still notifies once and has nothing to release.
	f.h.Handle(&nts.RlsRadioLinkFailure{Cause: nts.RlfSignalLostToConnectedCell})
	assert.Len(t, f.nas.take(), 1)
	assert.Empty(t, f.gnb.take())
}

func TestRrc_SuspendAndResume(t *testing.T) {
	f := newFixture(t)
	f.camp()
	f.h.Handle(&nts.NasUplinkDelivery{Pdu: []byte{1}})
	open := f.gnb.take()[0].(*nts.BridgeInitialNas)
	f.nas.take()

	f.h.Handle(&nts.BridgeSuspend{Handle: open.Handle})
	require.Equal(t, StateInactive, f.h.State())
	assert.Equal(t, open.Handle, f.h.CurrentHandle())

	f.h.Handle(&nts.NasUplinkDelivery{Pdu: []byte{2}})
	assert.Equal(t, StateConnected, f.h.State())
	sent := f.gnb.take()
	require.Len(t, sent, 1)
	up := sent[0].(*nts.BridgeUplinkNas)
	assert.Equal(t, open.Handle, up.Handle)
	assert.Empty(t, f.nas.take())
}

// Feature: device RRC, Property 1: IDLE to CONNECTED happens exactly once per
// uplink demand made while idle, and a radio link failure always ends in IDLE
// with exactly one notification.
func TestProperty_EstablishOncePerDemand(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture(t)
		f.camp()

		expectedOpens := 0
		ops := rapid.SliceOfN(rapid.IntRange(0, 4), 1, 40).Draw(rt, "ops")
		for _, op := range ops {
			switch op {
			case 0, 1:
				if f.h.State() == StateIdle {
					expectedOpens++
				}
				f.h.Handle(&nts.NasUplinkDelivery{Pdu: []byte{byte(op)}})
				if f.h.State() != StateConnected {
					rt.Fatalf("uplink left state %s", f.h.State())
				}
			case 2:
				f.h.Handle(&nts.NasLocalReleaseConnection{})
			case 3:
				f.nas.take()
				f.h.Handle(&nts.RlsRadioLinkFailure{Cause: nts.RlfSignalLostToConnectedCell})
				if f.h.State() != StateIdle {
					rt.Fatalf("radio link failure left state %s", f.h.State())
				}
				notes := f.nas.take()
				if len(notes) != 1 {
					rt.Fatalf("expected one notification, got %d", len(notes))
				}
			case 4:
				f.h.Handle(&nts.BridgeSuspend{Handle: f.h.CurrentHandle()})
			}

			live := 0
			if f.h.State() != StateIdle {
				live = 1
			}
			if f.table.Len() != live {
				rt.Fatalf("state %s with %d correlations", f.h.State(), f.table.Len())
			}
		}

		opens := 0
		for _, msg := range f.gnb.take() {
			if _, ok := msg.(*nts.BridgeInitialNas); ok {
				opens++
			}
		}
		if opens != expectedOpens {
			rt.Fatalf("expected %d establishments, got %d", expectedOpens, opens)
		}
	})
}
