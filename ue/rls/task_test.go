package rls

import (
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol"
	"github.com/Mmx233/RGNB/shared"
	"github.com/Mmx233/RGNB/task"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

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

func (s *sink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func listen(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	return conn
}

func addrOf(conn net.PacketConn) netip.AddrPort {
	return conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

var cellInfo = shared.CellDescription{Nci: 0x10, Plmn: shared.Plmn{Mcc: 208, Mnc: 93}, Tac: 1, GnbName: "upstream"}

func TestRls_HeartbeatReportsSignal(t *testing.T) {
	station := listen(t)
	defer station.Close()

	ctx := shared.NewContext(cellInfo.Plmn)
	rrc := &sink{}
	tk := task.New("ue-rls", zerolog.Nop())
	h := New(tk, Config{SearchList: []netip.AddrPort{addrOf(station)}, HeartbeatInterval: 50 * time.Millisecond}, ctx, listen(t), rrc)
	require.NotZero(t, ctx.Sti.Load())
	require.NoError(t, tk.Start(h))
	defer tk.Quit()

	buf := make([]byte, protocol.ReadBufferSize)
	require.NoError(t, station.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, from, err := station.ReadFrom(buf)
	require.NoError(t, err)
	msgType, payload, err := protocol.ParseDatagram(buf[:n])
	require.NoError(t, err)
	require.Equal(t, byte(protocol.MsgTypeHeartbeat), msgType)
	var hb protocol.HeartbeatMsg
	require.NoError(t, protocol.DecodeMessage(payload, &hb))
	assert.Equal(t, ctx.Sti.Load(), hb.Sti)

	ack, err := protocol.EncodeHeartbeatAck(&protocol.HeartbeatAckMsg{Sti: 99, CellID: 1, Dbm: -60, Cell: cellInfo, Timestamp: hb.Timestamp})
	require.NoError(t, err)
	_, err = station.WriteTo(ack, from)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rrc.len() > 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, &nts.RlsSignalChanged{CellID: 1, Dbm: -60, Info: cellInfo}, rrc.take()[0])
}

func TestRls_ServingCellLoss(t *testing.T) {
	now := time.Unix(1000, 0)
	timeNow = func() time.Time { return now }
	defer func() { timeNow = time.Now }()

	ctx := shared.NewContext(cellInfo.Plmn)
	rrc := &sink{}
	tk := task.New("ue-rls", zerolog.Nop())
	h := New(tk, Config{}, ctx, listen(t), rrc)
	defer h.OnQuit()
	defer tk.Quit()

	from := netip.MustParseAddrPort("127.0.0.1:4997")
	h.Handle(&nts.LinkHeartbeatAck{From: from, Sti: 7, Dbm: -60, Info: cellInfo})
	h.Handle(&nts.LinkHeartbeatAck{From: netip.MustParseAddrPort("127.0.0.2:4997"), Sti: 8, Dbm: -80, Info: cellInfo})
	h.Handle(&nts.LinkHeartbeatAck{From: from, Sti: 7, Dbm: -55, Info: cellInfo})
	assert.Equal(t, []nts.Message{
		&nts.RlsSignalChanged{CellID: 1, Dbm: -60, Info: cellInfo},
		&nts.RlsSignalChanged{CellID: 2, Dbm: -80, Info: cellInfo},
		&nts.RlsSignalChanged{CellID: 1, Dbm: -55, Info: cellInfo},
	}, rrc.take())

	h.Handle(&nts.RlsAssignCurrentCell{CellID: 1})
	assert.Equal(t, State{Sti: ctx.Sti.Load(), ServingCell: 1, CellCount: 2}, h.State())
	coverage := h.Coverage()
	require.Len(t, coverage, 2)
	assert.True(t, coverage[0].Serving)
	assert.Equal(t, "127.0.0.1:4997", coverage[0].Address)

	// Only cell 2 keeps answering.
	now = now.Add(1500 * time.Millisecond)
	h.Handle(&nts.LinkHeartbeatAck{From: netip.MustParseAddrPort("127.0.0.2:4997"), Sti: 8, Dbm: -80, Info: cellInfo})
	rrc.take()
	now = now.Add(1000 * time.Millisecond)
	h.Handle(&nts.TimerExpired{ID: timerHeartbeat})
	assert.Equal(t, []nts.Message{
		&nts.RlsSignalChanged{CellID: 1, Lost: true},
		&nts.RlsRadioLinkFailure{Cause: nts.RlfSignalLostToConnectedCell},
	}, rrc.take())

	now = now.Add(5 * time.Second)
	h.Handle(&nts.TimerExpired{ID: timerHeartbeat})
	assert.Equal(t, []nts.Message{&nts.RlsSignalChanged{CellID: 2, Lost: true}}, rrc.take())
	assert.Zero(t, h.State().ServingCell)
}

func TestRls_ResetSti(t *testing.T) {
	ctx := shared.NewContext(cellInfo.Plmn)
	tk := task.New("ue-rls", zerolog.Nop())
	h := New(tk, Config{}, ctx, listen(t), &sink{})
	defer h.OnQuit()
	defer tk.Quit()

	before := ctx.Sti.Load()
	h.Handle(&nts.RlsResetSti{})
	assert.NotEqual(t, before, ctx.Sti.Load())
}
