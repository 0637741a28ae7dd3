package sctp

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Mmx233/RGNB/nts"
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

type fakeAssoc struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written [][]byte
	streams []int
}

func newFakeAssoc() *fakeAssoc {
	return &fakeAssoc{inbound: make(chan []byte, 8), closed: make(chan struct{})}
}

func (a *fakeAssoc) Read(b []byte) (int, error) {
	select {
	case data, ok := <-a.inbound:
		if !ok {
			return 0, io.EOF
		}
		return copy(b, data), nil
	case <-a.closed:
		return 0, errors.New("use of closed association")
	}
}

func (a *fakeAssoc) WriteStream(b []byte, stream int) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.written = append(a.written, b)
	a.streams = append(a.streams, stream)
	return len(b), nil
}

func (a *fakeAssoc) Close() error {
	a.once.Do(func() { close(a.closed) })
	return nil
}

func (a *fakeAssoc) Streams() (int, int) { return 2, 2 }

type fakeDialer struct {
	assoc *fakeAssoc
	err   error
}

func (d *fakeDialer) Dial(string, int, string, int, uint32) (Association, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.assoc, nil
}

func startTask(t *testing.T, d Dialer) (*task.Task, *Handler) {
	t.Helper()
	tk := task.New("sctp", zerolog.Nop())
	h := New(tk, d)
	require.NoError(t, tk.Start(h))
	return tk, h
}

func TestSctp_ConnectReceiveSend(t *testing.T) {
	assoc := newFakeAssoc()
	tk, h := startTask(t, &fakeDialer{assoc: assoc})
	defer tk.Quit()

	ngap := &sink{}
	tk.Send(&nts.SctpConnectionRequest{ClientID: 1, RemoteAddr: "127.0.0.1", RemotePort: 38412, PPID: NgapPPID, Associated: ngap})

	require.Eventually(t, func() bool { return len(ngap.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	setup, ok := ngap.snapshot()[0].(*nts.SctpAssociationSetup)
	require.True(t, ok)
	assert.Equal(t, 1, setup.ClientID)
	assert.Equal(t, 2, setup.OutStreams)
	assert.Equal(t, []int{1}, h.Clients())

	assoc.inbound <- []byte{0x00, 0x15}
	require.Eventually(t, func() bool { return len(ngap.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	recv := ngap.snapshot()[1].(*nts.SctpReceiveMessage)
	assert.Equal(t, []byte{0x00, 0x15}, recv.Buffer)

	tk.Send(&nts.SctpSendMessage{ClientID: 1, Stream: 1, Buffer: []byte{0xaa}})
	require.Eventually(t, func() bool {
		assoc.mu.Lock()
		defer assoc.mu.Unlock()
		return len(assoc.written) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1}, assoc.streams)
}

func TestSctp_PeerShutdown(t *testing.T) {
	assoc := newFakeAssoc()
	tk, h := startTask(t, &fakeDialer{assoc: assoc})
	defer tk.Quit()

	ngap := &sink{}
	tk.Send(&nts.SctpConnectionRequest{ClientID: 4, Associated: ngap})
	require.Eventually(t, func() bool { return len(ngap.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	close(assoc.inbound)
	require.Eventually(t, func() bool { return len(ngap.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
	shutdown, ok := ngap.snapshot()[1].(*nts.SctpAssociationShutdown)
	require.True(t, ok)
	assert.Equal(t, 4, shutdown.ClientID)
	assert.Empty(t, h.Clients())
}

func TestSctp_LocalCloseIsSilent(t *testing.T) {
	assoc := newFakeAssoc()
	tk, h := startTask(t, &fakeDialer{assoc: assoc})

	ngap := &sink{}
	tk.Send(&nts.SctpConnectionRequest{ClientID: 2, Associated: ngap})
	require.Eventually(t, func() bool { return len(h.Clients()) == 1 }, time.Second, 5*time.Millisecond)

	tk.Send(&nts.SctpConnectionClose{ClientID: 2})
	require.Eventually(t, func() bool { return len(h.Clients()) == 0 }, time.Second, 5*time.Millisecond)
	tk.Quit()

	for _, msg := range ngap.snapshot() {
		_, isShutdown := msg.(*nts.SctpAssociationShutdown)
		assert.False(t, isShutdown)
	}
}

func TestSctp_DialFailure(t *testing.T) {
	tk, h := startTask(t, &fakeDialer{err: errors.New("connection refused")})
	ngap := &sink{}
	tk.Send(&nts.SctpConnectionRequest{ClientID: 1, Associated: ngap})
	tk.Send(&nts.SctpSendMessage{ClientID: 1, Buffer: []byte{1}})
	tk.Quit()

	assert.Empty(t, ngap.snapshot())
	assert.Empty(t, h.Clients())
}
