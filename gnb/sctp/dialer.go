package sctp

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/free5gc/sctp"
)

// NgapPPID is the payload protocol identifier assigned to NGAP.
const NgapPPID uint32 = 60

// Association is one established SCTP association.
type Association interface {
	// Read blocks for the next user message.
	Read(b []byte) (int, error)
	WriteStream(b []byte, stream int) (int, error)
	Close() error
	Streams() (in, out int)
}

// Dialer opens associations toward the core network.
type Dialer interface {
	Dial(localAddr string, localPort int, remoteAddr string, remotePort int, ppid uint32) (Association, error)
}

// Free5gcDialer dials kernel SCTP associations through free5gc/sctp.
type Free5gcDialer struct {
	InStreams  int
	OutStreams int
}

func (d Free5gcDialer) Dial(localAddr string, localPort int, remoteAddr string, remotePort int, ppid uint32) (Association, error) {
	raddr, err := resolve(remoteAddr, remotePort)
	if err != nil {
		return nil, fmt.Errorf("resolve remote address: %w", err)
	}
	var laddr *sctp.SCTPAddr
	if localAddr != "" {
		if laddr, err = resolve(localAddr, localPort); err != nil {
			return nil, fmt.Errorf("resolve local address: %w", err)
		}
	}

	conn, err := sctp.DialSCTP("sctp", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("dial sctp %s: %w", raddr, err)
	}

	info, err := conn.GetDefaultSentParam()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("get default sent param: %w", err)
	}
	info.PPID = wirePPID(ppid)
	if err = conn.SetDefaultSentParam(info); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("set default sent param: %w", err)
	}

	in, out := d.InStreams, d.OutStreams
	if in <= 0 {
		in = 1
	}
	if out <= 0 {
		out = 1
	}
	return &kernelAssociation{conn: conn, ppid: ppid, in: in, out: out}, nil
}

func resolve(host string, port int) (*sctp.SCTPAddr, error) {
	ip, err := net.ResolveIPAddr("ip", host)
	if err != nil {
		return nil, err
	}
	return &sctp.SCTPAddr{IPAddrs: []net.IPAddr{*ip}, Port: port}, nil
}

// wirePPID converts ppid to network byte order; the socket option stores it untouched.
func wirePPID(ppid uint32) uint32 {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], ppid)
	return binary.NativeEndian.Uint32(b[:])
}

type kernelAssociation struct {
	conn    *sctp.SCTPConn
	ppid    uint32
	in, out int
}

func (a *kernelAssociation) Read(b []byte) (int, error) {
	return a.conn.Read(b)
}

func (a *kernelAssociation) WriteStream(b []byte, stream int) (int, error) {
	if stream == 0 {
		return a.conn.Write(b)
	}
	return a.conn.SCTPWrite(b, &sctp.SndRcvInfo{Stream: uint16(stream), PPID: wirePPID(a.ppid)})
}

func (a *kernelAssociation) Close() error {
	return a.conn.Close()
}

func (a *kernelAssociation) Streams() (in, out int) {
	return a.in, a.out
}
