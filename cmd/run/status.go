package run

import (
	"context"
	"io"

	"github.com/Mmx233/RGNB/gnb/app"
	"github.com/Mmx233/RGNB/gnb/ngap"
	"github.com/Mmx233/RGNB/node"
	"github.com/Mmx233/RGNB/relay"
	"github.com/Mmx233/RGNB/ue/nas"
	uerls "github.com/Mmx233/RGNB/ue/rls"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Status is the document written on SIGUSR1.
type Status struct {
	Node         string             `json:"node"`
	Gnb          app.StatusInfo     `json:"gnb"`
	GnbInfo      node.GnbInfo       `json:"gnb-info"`
	Amfs         []ngap.AmfSummary  `json:"amfs"`
	Ues          []ngap.UeSummary   `json:"ues"`
	Ue           nas.Status         `json:"ue"`
	UeTimers     []nas.TimerInfo    `json:"ue-timers"`
	UeInfo       node.UeInfo        `json:"ue-info"`
	Rls          uerls.State        `json:"rls"`
	Coverage     []uerls.CellStatus `json:"coverage"`
	Correlations []relay.Entry      `json:"correlations"`
}

// collectStatus stops at the first failing command.
func collectStatus(ctx context.Context, n *node.Node) (*Status, error) {
	s := &Status{Node: n.Name()}
	var err error
	if s.Gnb, err = n.GnbStatus(ctx); err != nil {
		return nil, err
	}
	if s.GnbInfo, err = n.GnbInfo(ctx); err != nil {
		return nil, err
	}
	if s.Amfs, err = n.AmfList(ctx); err != nil {
		return nil, err
	}
	if s.Ues, err = n.UeList(ctx); err != nil {
		return nil, err
	}
	if s.Ue, err = n.UeStatus(ctx); err != nil {
		return nil, err
	}
	if s.UeTimers, err = n.UeTimers(ctx); err != nil {
		return nil, err
	}
	if s.UeInfo, err = n.UeInfo(ctx); err != nil {
		return nil, err
	}
	if s.Rls, err = n.RlsState(ctx); err != nil {
		return nil, err
	}
	if s.Coverage, err = n.Coverage(ctx); err != nil {
		return nil, err
	}
	if s.Correlations, err = n.Correlations(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func dumpStatus(ctx context.Context, n *node.Node, w io.Writer) {
	logger := log.With().Str("com", "status").Str("node", n.Name()).Logger()
	status, err := collectStatus(ctx, n)
	if err != nil {
		logger.Error().Err(err).Msg("status collection failed")
		return
	}
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		logger.Error().Err(err).Msg("status encoding failed")
		return
	}
	_, _ = w.Write(append(data, '\n'))
}
