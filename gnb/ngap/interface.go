package ngap

import (
	"time"

	"github.com/Mmx233/RGNB/metrics"
	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol/ngapmsg"
)

var timeNow = time.Now

func (h *Handler) associationSetup(m *nts.SctpAssociationSetup) {
	amf, ok := h.amfs[m.ClientID]
	if !ok {
		h.logger().Warn().Int("amf", m.ClientID).Msg("association setup for unknown AMF context")
		return
	}
	amf.AssocID = m.AssocID
	amf.InStreams = m.InStreams
	amf.OutStreams = m.OutStreams
	amf.NextStream = 0
	amf.State = AmfWaitingSetup
	h.reportAmfStates()

	h.logger().Info().Int("amf", amf.CtxID).Int("assoc", m.AssocID).Msg("sending NG setup request")
	h.sendNgSetup(amf)
}

func (h *Handler) sendNgSetup(amf *AmfContext) {
	h.send(amf, 0, &ngapmsg.NGSetupRequest{
		Plmn:        h.cfg.Tai.Plmn,
		GnbID:       h.cfg.GnbID,
		GnbIDLength: h.cfg.GnbIDLength,
		RanNodeName: h.cfg.Name,
		SupportedTas: []ngapmsg.SupportedTa{{
			Tac:    h.cfg.Tai.Tac,
			Plmn:   h.cfg.Tai.Plmn,
			Slices: h.cfg.Slices,
		}},
	})
	h.t.ArmTimer(setupTimerBase+amf.CtxID, h.cfg.NgSetupTimeout)
}

func (h *Handler) ngSetupTimeout(ctxID int) {
	amf, ok := h.amfs[ctxID]
	if !ok || amf.State != AmfWaitingSetup {
		return
	}
	metrics.NgSetupTimeouts.Inc()
	h.logger().Warn().Int("amf", ctxID).Dur("timeout", h.cfg.NgSetupTimeout).Msg("NG setup not answered, retrying")
	h.sendNgSetup(amf)
}

func (h *Handler) ngSetupResponse(amf *AmfContext, p *ngapmsg.NGSetupResponse) {
	if amf.State != AmfWaitingSetup {
		h.logger().Warn().Int("amf", amf.CtxID).Msg("unexpected NG setup response ignored")
		return
	}
	h.t.CancelTimer(setupTimerBase + amf.CtxID)
	amf.State = AmfConnected
	amf.Name = p.AmfName
	amf.RelativeCapacity = p.RelativeCapacity
	amf.ServedGuamis = p.ServedGuamis
	amf.PlmnSupport = p.PlmnSupport
	h.reportAmfStates()

	h.logger().Info().Int("amf", amf.CtxID).Str("name", amf.Name).Msg("NG setup procedure is successful")

	if !h.isUp {
		h.isUp = true
		h.peers.App.Send(&nts.StatusNgapIsUp{IsUp: true})
		h.peers.Rrc.Send(&nts.NgapRadioPowerOn{})
	}
}

func (h *Handler) ngSetupFailure(amf *AmfContext, p *ngapmsg.NGSetupFailure) {
	h.t.CancelTimer(setupTimerBase + amf.CtxID)
	amf.State = AmfNotConnected
	h.reportAmfStates()
	h.logger().Error().Int("amf", amf.CtxID).Stringer("cause", p.Cause).Msg("NG setup procedure is failed")
	h.updateUpState()
}

func (h *Handler) associationShutdown(ctxID int) {
	amf, ok := h.amfs[ctxID]
	if !ok {
		return
	}
	h.logger().Warn().Int("amf", ctxID).Msg("association with AMF is down")
	h.t.CancelTimer(setupTimerBase + ctxID)
	amf.State = AmfNotConnected
	amf.OverloadInfo = OverloadInfo{}
	h.reportAmfStates()

	for _, ue := range h.uesOf(ctxID) {
		h.releaseLocally(ue)
	}
	h.updateUpState()
}

func (h *Handler) updateUpState() {
	up := false
	for _, amf := range h.amfs {
		if amf.State == AmfConnected {
			up = true
			break
		}
	}
	if up != h.isUp {
		h.isUp = up
		h.peers.App.Send(&nts.StatusNgapIsUp{IsUp: up})
	}
}

// selectAmf picks the connected, not overloaded AMF with the highest relative capacity.
func (h *Handler) selectAmf() *AmfContext {
	var best *AmfContext
	for _, amf := range h.amfs {
		if amf.State != AmfConnected || amf.OverloadInfo.Overloaded {
			continue
		}
		if best == nil || amf.RelativeCapacity > best.RelativeCapacity ||
			(amf.RelativeCapacity == best.RelativeCapacity && amf.CtxID < best.CtxID) {
			best = amf
		}
	}
	return best
}

// allocateStream hands out UE-associated streams round-robin, skipping stream 0.
func (h *Handler) allocateStream(amf *AmfContext) int {
	if amf.OutStreams <= 1 {
		return 0
	}
	amf.NextStream++
	if amf.NextStream >= amf.OutStreams {
		amf.NextStream = 1
	}
	return amf.NextStream
}
