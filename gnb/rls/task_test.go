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

func (s *sink) snapshot() []nts.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]nts.Message(nil), s.msgs...)
}

type fixture struct {
	tk     *task.Task
	h      *Handler
	rrc    *sink
	gtp    *sink
	device net.PacketConn
	cell   net.Addr
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	device, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fixture{
		tk:     task.New("gnb-rls", zerolog.Nop()),
		rrc:    &sink{},
		gtp:    &sink{},
		device: device,
		cell:   conn.LocalAddr(),
	}
	f.h = New(f.tk, cfg, conn, Peers{Rrc: f.rrc, Gtp: f.gtp})
	require.NoError(t, f.tk.Start(f.h))
	t.Cleanup(func() {
		f.tk.Quit()
		_ = device.Close()
	})
	return f
}

func (f *fixture) write(t *testing.T, data []byte) {
	t.Helper()
	_, err := f.device.WriteTo(data, f.cell)
	require.NoError(t, err)
}

func (f *fixture) read(t *testing.T) (byte, []byte) {
	t.Helper()
	buf := make([]byte, protocol.ReadBufferSize)
	require.NoError(t, f.device.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := f.device.ReadFrom(buf)
	require.NoError(t, err)
	msgType, payload, err := protocol.ParseDatagram(buf[:n])
	require.NoError(t, err)
	return msgType, payload
}

func testConfig() Config {
	return Config{
		CellID: 1,
		Cell:   shared.CellDescription{Nci: 0x10, Plmn: shared.Plmn{Mcc: 208, Mnc: 93}, Tac: 1, GnbName: "gnb"},
		Dbm:    -60,
	}
}

func TestRls_HeartbeatAndPdus(t *testing.T) {
	f := newFixture(t, testConfig())

	hb, err := protocol.EncodeHeartbeat(42, 1000)
	require.NoError(t, err)
	f.write(t, hb)

	msgType, payload := f.read(t)
	require.Equal(t, byte(protocol.MsgTypeHeartbeatAck), msgType)
	var ack protocol.HeartbeatAckMsg
	require.NoError(t, protocol.DecodeMessage(payload, &ack))
	assert.Equal(t, -60, ack.Dbm)
	assert.Equal(t, int64(1000), ack.Timestamp)
	assert.Equal(t, int64(0x10), ack.Cell.Nci)

	require.Eventually(t, func() bool { return len(f.rrc.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	detected := f.rrc.snapshot()[0].(*nts.RlsSignalDetected)
	ueID := detected.UeID
	assert.Equal(t, 1, f.h.DeviceCount())

	// A second heartbeat does not re-detect the device.
	f.write(t, hb)
	f.read(t)

	up, err := protocol.EncodePduTransmission(&protocol.PduTransmissionMsg{
		Sti: 42, PduType: protocol.PduTypeRrc, Channel: nts.ChannelUlCcch, Payload: []byte{0x10},
	})
	require.NoError(t, err)
	f.write(t, up)
	data, err := protocol.EncodePduTransmission(&protocol.PduTransmissionMsg{
		Sti: 42, PduType: protocol.PduTypeData, Psi: 1, Payload: []byte{0x45},
	})
	require.NoError(t, err)
	f.write(t, data)

	require.Eventually(t, func() bool { return len(f.rrc.snapshot()) == 2 && len(f.gtp.snapshot()) == 1 },
		2*time.Second, 10*time.Millisecond)
	assert.Equal(t, &nts.RlsUplinkRrc{UeID: ueID, Channel: nts.ChannelUlCcch, Data: []byte{0x10}}, f.rrc.snapshot()[1])
	assert.Equal(t, &nts.RlsUplinkData{UeID: ueID, Psi: 1, Pdu: []byte{0x45}}, f.gtp.snapshot()[0])

	f.tk.Send(&nts.RrcPduDelivery{UeID: ueID, Channel: nts.ChannelDlCcch, Pdu: []byte{0x20}})
	msgType, payload = f.read(t)
	require.Equal(t, byte(protocol.MsgTypePduTransmission), msgType)
	var down protocol.PduTransmissionMsg
	require.NoError(t, protocol.DecodeMessage(payload, &down))
	assert.Equal(t, protocol.PduTypeRrc, down.PduType)
	assert.Equal(t, []byte{0x20}, down.Payload)
	assert.Equal(t, ack.Sti, down.Sti)
}

func TestRls_UnknownStiGetsError(t *testing.T) {
	f := newFixture(t, testConfig())
	up, err := protocol.EncodePduTransmission(&protocol.PduTransmissionMsg{Sti: 7, PduType: protocol.PduTypeRrc})
	require.NoError(t, err)
	f.write(t, up)

	msgType, _ := f.read(t)
	assert.Equal(t, byte(protocol.MsgTypeError), msgType)
	assert.Empty(t, f.rrc.snapshot())
}

func TestRls_SignalLoss(t *testing.T) {
	cfg := testConfig()
	cfg.LossCheckInterval = 20 * time.Millisecond
	cfg.SignalLossTimeout = 300 * time.Millisecond
	f := newFixture(t, cfg)

	hb, err := protocol.EncodeHeartbeat(1, 0)
	require.NoError(t, err)
	f.write(t, hb)
	f.read(t)
	require.Equal(t, 1, f.h.DeviceCount())

	require.Eventually(t, func() bool { return f.h.DeviceCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestLink_Expire(t *testing.T) {
	l := newLink(nil, 1, protocol.HeartbeatAckMsg{}, zerolog.Nop())
	id, detected := l.touch(10, netip.MustParseAddrPort("127.0.0.1:5000"))
	require.True(t, detected)
	_, detected = l.touch(10, netip.MustParseAddrPort("127.0.0.1:5000"))
	assert.False(t, detected)

	assert.Empty(t, l.expire(time.Now(), time.Second))
	assert.Equal(t, []int{id}, l.expire(time.Now().Add(2*time.Second), time.Second))
	assert.Zero(t, l.count())
}
