package node

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Mmx233/RGNB/gnb/app"
	"github.com/Mmx233/RGNB/gnb/gtp"
	"github.com/Mmx233/RGNB/gnb/ngap"
	"github.com/Mmx233/RGNB/metrics"
	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/relay"
	"github.com/Mmx233/RGNB/shared"
	"github.com/Mmx233/RGNB/task"
	"github.com/Mmx233/RGNB/ue/nas"
	uerls "github.com/Mmx233/RGNB/ue/rls"
	uerrc "github.com/Mmx233/RGNB/ue/rrc"
)

var (
	ErrUeNotFound     = errors.New("UE not found")
	ErrCommandTimeout = errors.New("unable to process command due to pausing timeout")
)

const (
	sideGnb = "gnb"
	sideUe  = "ue"
)

// GnbInfo is the static and link-level view of the station.
type GnbInfo struct {
	Name       string            `json:"name"`
	Instance   string            `json:"instance"`
	Plmn       string            `json:"plmn"`
	Tac        int               `json:"tac"`
	Nci        int64             `json:"nci"`
	GnbID      uint32            `json:"gnb-id"`
	LinkAddr   string            `json:"link-addr"`
	NgapIP     string            `json:"ngap-ip"`
	GtpIP      string            `json:"gtp-ip"`
	PoweredOn  bool              `json:"powered-on"`
	Devices    int               `json:"devices"`
	RrcUes     []int             `json:"rrc-ues"`
	Sessions   []gtp.SessionInfo `json:"sessions"`
	AmfClients []int             `json:"amf-clients"`
}

// UeInfo is the radio-level view of the device.
type UeInfo struct {
	Name          string                `json:"name"`
	Supi          string                `json:"supi"`
	Hplmn         string                `json:"hplmn"`
	RrcState      string                `json:"rrc-state"`
	CurrentHandle relay.Handle          `json:"current-handle"`
	CurrentCell   shared.ActiveCellInfo `json:"current-cell"`
	Cells         []uerrc.Cell          `json:"cells"`
	ForbiddenTais []shared.Tai          `json:"forbidden-tais"`
}

// quiesce runs fn with tasks paused and records the outcome.
func (n *Node) quiesce(ctx context.Context, side, command string, tasks []*task.Task, fn func() error) error {
	err := n.controller.Quiesce(ctx, tasks, fn)
	result := "ok"
	switch {
	case errors.Is(err, task.ErrPauseTimeout):
		result = "timeout"
		err = ErrCommandTimeout
	case err != nil:
		result = "error"
	}
	metrics.Commands.WithLabelValues(side, command, result).Inc()
	if err != nil {
		n.logger.Warn().Err(err).Str("side", side).Str("command", command).Msg("command failed")
	}
	return err
}

// GnbStatus reports whether the NG interface is up.
func (n *Node) GnbStatus(ctx context.Context) (app.StatusInfo, error) {
	var out app.StatusInfo
	err := n.quiesce(ctx, sideGnb, "status", []*task.Task{n.gnb.app}, func() error {
		out = n.gnb.appH.Status()
		return nil
	})
	return out, err
}

func (n *Node) GnbInfo(ctx context.Context) (GnbInfo, error) {
	plmn, _ := n.gnbCfg.Plmn()
	nci, _ := n.gnbCfg.NciValue()
	out := GnbInfo{
		Name:     n.Name(),
		Instance: n.id,
		Plmn:     plmn.String(),
		Tac:      n.gnbCfg.Tac,
		Nci:      nci,
		GnbID:    n.gnbCfg.GnbID(),
		LinkAddr: n.LinkAddr().String(),
		NgapIP:   n.gnbCfg.NgapIP,
		GtpIP:    n.gnbCfg.GtpIP,
	}
	tasks := []*task.Task{n.gnb.rrc, n.gnb.rls, n.gnb.gtp}
	err := n.quiesce(ctx, sideGnb, "info", tasks, func() error {
		out.PoweredOn = n.gnb.rrcH.PoweredOn()
		out.RrcUes = n.gnb.rrcH.UeIDs()
		out.Devices = n.gnb.rlsH.DeviceCount()
		out.Sessions = n.gnb.gtpH.Sessions()
		out.AmfClients = n.gnb.sctpH.Clients()
		return nil
	})
	return out, err
}

func (n *Node) AmfList(ctx context.Context) ([]ngap.AmfSummary, error) {
	var out []ngap.AmfSummary
	err := n.quiesce(ctx, sideGnb, "amf-list", []*task.Task{n.gnb.ngap}, func() error {
		out = n.gnb.ngapH.AmfList()
		return nil
	})
	return out, err
}

func (n *Node) AmfInfo(ctx context.Context, id int) (ngap.AmfDetail, error) {
	var out ngap.AmfDetail
	err := n.quiesce(ctx, sideGnb, "amf-info", []*task.Task{n.gnb.ngap}, func() error {
		var err error
		out, err = n.gnb.ngapH.AmfInfo(id)
		return err
	})
	return out, err
}

func (n *Node) UeList(ctx context.Context) ([]ngap.UeSummary, error) {
	var out []ngap.UeSummary
	err := n.quiesce(ctx, sideGnb, "ue-list", []*task.Task{n.gnb.ngap}, func() error {
		out = n.gnb.ngapH.UeList()
		return nil
	})
	return out, err
}

func (n *Node) UeCount(ctx context.Context) (int, error) {
	var out int
	err := n.quiesce(ctx, sideGnb, "ue-count", []*task.Task{n.gnb.ngap}, func() error {
		out = n.gnb.ngapH.UeCount()
		return nil
	})
	return out, err
}

// UeReleaseRequest asks the core network to release one UE context.
func (n *Node) UeReleaseRequest(ctx context.Context, ueID int) error {
	return n.quiesce(ctx, sideGnb, "ue-release", []*task.Task{n.gnb.ngap}, func() error {
		if !n.gnb.ngapH.HasUe(ueID) {
			return fmt.Errorf("%w: %d", ErrUeNotFound, ueID)
		}
		n.gnb.ngap.Send(&nts.CommandUeReleaseRequest{UeID: ueID, Cause: nts.CauseRadioNetworkUnspecified})
		return nil
	})
}

// UeStatus reports the mobility management state of the device.
func (n *Node) UeStatus(ctx context.Context) (nas.Status, error) {
	var out nas.Status
	err := n.quiesce(ctx, sideUe, "status", []*task.Task{n.ue.nas}, func() error {
		out = n.ue.nasH.Status()
		return nil
	})
	return out, err
}

// UeTimers lists the armed mobility management timers.
func (n *Node) UeTimers(ctx context.Context) ([]nas.TimerInfo, error) {
	var out []nas.TimerInfo
	err := n.quiesce(ctx, sideUe, "timers", []*task.Task{n.ue.nas}, func() error {
		out = n.ue.nasH.Timers()
		return nil
	})
	return out, err
}

func (n *Node) UeInfo(ctx context.Context) (UeInfo, error) {
	hplmn, _ := n.ueCfg.Plmn()
	out := UeInfo{
		Name:  n.DeviceName(),
		Supi:  n.ueCfg.Supi,
		Hplmn: hplmn.String(),
	}
	err := n.quiesce(ctx, sideUe, "info", []*task.Task{n.ue.rrc}, func() error {
		out.RrcState = n.ue.rrcH.State().String()
		out.CurrentHandle = n.ue.rrcH.CurrentHandle()
		out.Cells = n.ue.rrcH.Cells()
		return nil
	})
	if err != nil {
		return out, err
	}
	out.CurrentCell = n.ctx.CurrentCell.Get()
	out.ForbiddenTais = slices.Concat(n.ctx.ForbiddenTaiRoaming.Get(), n.ctx.ForbiddenTaiRps.Get())
	return out, nil
}

func (n *Node) RlsState(ctx context.Context) (uerls.State, error) {
	var out uerls.State
	err := n.quiesce(ctx, sideUe, "rls-state", []*task.Task{n.ue.rls}, func() error {
		out = n.ue.rlsH.State()
		return nil
	})
	return out, err
}

func (n *Node) Coverage(ctx context.Context) ([]uerls.CellStatus, error) {
	var out []uerls.CellStatus
	err := n.quiesce(ctx, sideUe, "coverage", []*task.Task{n.ue.rls}, func() error {
		out = n.ue.rlsH.Coverage()
		return nil
	})
	return out, err
}

// Correlations lists the relay table with both RRC ends paused so that no
// establishment or release is half applied.
func (n *Node) Correlations(ctx context.Context) ([]relay.Entry, error) {
	var out []relay.Entry
	err := n.quiesce(ctx, sideUe, "correlations", []*task.Task{n.ue.rrc, n.gnb.rrc}, func() error {
		out = n.table.Entries()
		return nil
	})
	return out, err
}

// Deregister starts deregistration from the upstream core.
func (n *Node) Deregister(ctx context.Context, switchOff bool) error {
	return n.quiesce(ctx, sideUe, "deregister", []*task.Task{n.ue.nas}, func() error {
		n.ue.nas.Send(&nts.NasDeregister{SwitchOff: switchOff})
		return nil
	})
}
