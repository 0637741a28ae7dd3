// Package node composes the station and device stacks of one relay node,
// wires their tasks together and serves operator commands against them.
package node

import (
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/Mmx233/RGNB/config"
	"github.com/Mmx233/RGNB/gnb/app"
	"github.com/Mmx233/RGNB/gnb/gtp"
	"github.com/Mmx233/RGNB/gnb/ngap"
	gnbrls "github.com/Mmx233/RGNB/gnb/rls"
	gnbrrc "github.com/Mmx233/RGNB/gnb/rrc"
	"github.com/Mmx233/RGNB/gnb/sctp"
	"github.com/Mmx233/RGNB/protocol/gtpu"
	"github.com/Mmx233/RGNB/protocol/ngapmsg"
	"github.com/Mmx233/RGNB/relay"
	"github.com/Mmx233/RGNB/shared"
	"github.com/Mmx233/RGNB/task"
	"github.com/Mmx233/RGNB/ue/nas"
	uerls "github.com/Mmx233/RGNB/ue/rls"
	uerrc "github.com/Mmx233/RGNB/ue/rrc"
	"github.com/rs/zerolog"
)

// ListenPacketFunc opens a UDP socket, net.ListenPacket by default.
type ListenPacketFunc func(network, address string) (net.PacketConn, error)

type Options struct {
	Logger zerolog.Logger

	// PauseTimeout bounds command quiesce. Zero selects config.DefaultPauseTimeout.
	PauseTimeout time.Duration

	// Dialer opens SCTP associations toward AMFs. Nil dials kernel SCTP.
	Dialer sctp.Dialer

	ListenPacket ListenPacketFunc
	Codec        ngapmsg.Codec

	// DeviceAddr is the local bind address of the device link socket.
	DeviceAddr string
}

type station struct {
	sctp, ngap, rrc, gtp, rls, app *task.Task

	ngapH *ngap.Handler
	rrcH  *gnbrrc.Handler
	gtpH  *gtp.Handler
	rlsH  *gnbrls.Handler
	appH  *app.Handler
	sctpH *sctp.Handler
}

type device struct {
	rrc, nas, rls *task.Task

	rrcH *uerrc.Handler
	nasH *nas.Handler
	rlsH *uerls.Handler
}

// Node is one relay: a station serving downstream devices and a device
// registered upstream, joined by the correlation table.
type Node struct {
	id     string
	gnbCfg *config.Gnb
	ueCfg  *config.Ue
	logger zerolog.Logger

	table      *relay.Table
	ctx        *shared.Context
	controller *task.Controller

	gnb station
	ue  device

	// start order; Stop quits in reverse
	tasks    []*task.Task
	handlers []task.Handler
}

// New validates both configurations and builds every task. Sockets are
// opened here so that address errors surface before anything runs.
func New(gnbCfg *config.Gnb, ueCfg *config.Ue, opts Options) (*Node, error) {
	gnbCfg.ApplyDefaults()
	if err := gnbCfg.Validate(); err != nil {
		return nil, fmt.Errorf("gnb config: %w", err)
	}
	ueCfg.ApplyDefaults()
	if err := ueCfg.Validate(); err != nil {
		return nil, fmt.Errorf("ue config: %w", err)
	}
	if opts.ListenPacket == nil {
		opts.ListenPacket = net.ListenPacket
	}
	if opts.PauseTimeout <= 0 {
		opts.PauseTimeout = config.DefaultPauseTimeout
	}
	if opts.DeviceAddr == "" {
		opts.DeviceAddr = ":0"
	}

	hplmn, _ := ueCfg.Plmn()
	n := &Node{
		id:     config.GenerateInstanceID(),
		gnbCfg: gnbCfg,
		ueCfg:  ueCfg,
		logger: opts.Logger.With().Str("node", gnbCfg.NodeName()).Logger(),
		ctx:    shared.NewContext(hplmn),
	}
	n.table = relay.New(n.logger)
	n.controller = task.NewController(opts.PauseTimeout, n.logger)

	var conns []net.PacketConn
	closeAll := func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}
	listen := func(name, addr string) (net.PacketConn, error) {
		conn, err := opts.ListenPacket("udp", addr)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("listen %s on %s: %w", name, addr, err)
		}
		conns = append(conns, conn)
		return conn, nil
	}

	linkConn, err := listen("link", gnbCfg.LinkAddr())
	if err != nil {
		return nil, err
	}
	n3Addr := netip.AddrPortFrom(netip.MustParseAddr(gnbCfg.GtpIP), gtpu.Port).String()
	n3Conn, err := listen("N3", n3Addr)
	if err != nil {
		return nil, err
	}
	deviceConn, err := listen("device link", opts.DeviceAddr)
	if err != nil {
		return nil, err
	}

	n.buildStation(opts, linkConn, n3Conn)
	n.buildDevice(deviceConn)
	return n, nil
}

func (n *Node) newTask(name string) *task.Task {
	return task.New(name, n.logger)
}

func (n *Node) buildStation(opts Options, linkConn, n3Conn net.PacketConn) {
	s := &n.gnb
	s.app = n.newTask("gnb-app")
	s.gtp = n.newTask("gnb-gtp")
	s.rls = n.newTask("gnb-rls")
	s.rrc = n.newTask("gnb-rrc")
	s.sctp = n.newTask("gnb-sctp")
	s.ngap = n.newTask("gnb-ngap")

	// The device RRC task is the station's upstream peer, so it is created first.
	n.ue.rrc = n.newTask("ue-rrc")

	s.appH = app.New(s.app)
	s.gtpH = gtp.New(s.gtp, n3Conn, s.rls)
	s.rlsH = gnbrls.New(s.rls, n.gnbCfg.RlsConfig(), linkConn, gnbrls.Peers{Rrc: s.rrc, Gtp: s.gtp})
	s.rrcH = gnbrrc.New(s.rrc, n.gnbCfg.RrcConfig(), n.table, gnbrrc.Peers{Rls: s.rls, Ngap: s.ngap, UeRrc: n.ue.rrc})
	s.sctpH = sctp.New(s.sctp, opts.Dialer)
	s.ngapH = ngap.New(s.ngap, n.gnbCfg.NgapConfig(), opts.Codec, ngap.Peers{Sctp: s.sctp, Rrc: s.rrc, Gtp: s.gtp, App: s.app})

	n.add(s.app, s.appH)
	n.add(s.gtp, s.gtpH)
	n.add(s.rls, s.rlsH)
	n.add(s.rrc, s.rrcH)
	n.add(s.sctp, s.sctpH)
	n.add(s.ngap, s.ngapH)
}

func (n *Node) buildDevice(conn net.PacketConn) {
	d := &n.ue
	d.nas = n.newTask("ue-nas")
	d.rls = n.newTask("ue-rls")

	d.rrcH = uerrc.New(d.rrc, n.ueCfg.RrcConfig(), n.ctx, n.table, uerrc.Peers{Nas: d.nas, Rls: d.rls, GnbRrc: n.gnb.rrc})
	d.nasH = nas.New(d.nas, n.ueCfg.NasConfig(), n.ctx, d.rrc)
	d.rlsH = uerls.New(d.rls, n.ueCfg.RlsConfig(), n.ctx, conn, d.rrc)

	n.add(d.rls, d.rlsH)
	n.add(d.rrc, d.rrcH)
	n.add(d.nas, d.nasH)
}

func (n *Node) add(t *task.Task, h task.Handler) {
	n.tasks = append(n.tasks, t)
	n.handlers = append(n.handlers, h)
}

// Start runs every task. A failure quits the tasks already started.
func (n *Node) Start() error {
	for i, t := range n.tasks {
		if err := t.Start(n.handlers[i]); err != nil {
			n.Stop()
			return err
		}
	}
	n.logger.Info().
		Str("instance", n.id).
		Str("device", n.ueCfg.NodeName()).
		Str("link", n.gnbCfg.LinkAddr()).
		Msg("node started")
	return nil
}

// Stop quits every task in reverse start order. Tasks that never started
// still release the sockets they own.
func (n *Node) Stop() {
	for i := len(n.tasks) - 1; i >= 0; i-- {
		t := n.tasks[i]
		started := t.Stage() != task.StageCreated
		t.Quit()
		if !started {
			n.handlers[i].OnQuit()
		}
	}
	n.logger.Info().Msg("node stopped")
}

// Name is the station name, which also keys the registry.
func (n *Node) Name() string {
	return n.gnbCfg.NodeName()
}

func (n *Node) InstanceID() string {
	return n.id
}

// DeviceName is the name of the upstream device identity.
func (n *Node) DeviceName() string {
	return n.ueCfg.NodeName()
}

// LinkAddr is the bound address of the station link socket.
func (n *Node) LinkAddr() net.Addr {
	return n.gnb.rlsH.LocalAddr()
}
