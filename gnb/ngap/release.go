package ngap

import (
	"slices"

	"github.com/Mmx233/RGNB/metrics"
	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol/ngapmsg"
)

// requestRelease starts the gNB-initiated UE context release.
func (h *Handler) requestRelease(ueID int, cause nts.Cause) {
	ue, ok := h.ues[ueID]
	if !ok {
		h.logger().Error().Int("ue", ueID).Err(ErrUeNotFound).Msg("UE context release request dropped")
		return
	}
	if ue.ReleasePending {
		h.logger().Debug().Int("ue", ueID).Msg("UE context release already pending")
		return
	}

	// Without an AMF-side id the core cannot answer, so release right away.
	if ue.AmfUeNgapID < 0 {
		h.releaseLocally(ue)
		return
	}

	psis := make([]int, 0, len(ue.PduSessions))
	for psi := range ue.PduSessions {
		psis = append(psis, psi)
	}
	slices.Sort(psis)

	ue.ReleasePending = true
	h.logger().Info().Int("ue", ueID).Stringer("cause", cause).Msg("requesting UE context release")
	h.sendUe(ue, &ngapmsg.UEContextReleaseRequest{Ids: ue.ids(), Cause: cause, PduSessions: psis})
	h.t.ArmTimer(ue.CtxID, h.cfg.ContextReleaseTimeout)
}

func (h *Handler) releaseTimeout(ueID int) {
	ue, ok := h.ues[ueID]
	if !ok || !ue.ReleasePending {
		return
	}
	metrics.ContextReleaseTimeouts.Inc()
	h.logger().Warn().Int("ue", ueID).Dur("timeout", h.cfg.ContextReleaseTimeout).
		Msg("UE context release not answered, releasing locally")
	h.releaseLocally(ue)
}

func (h *Handler) releaseCommand(amf *AmfContext, p *ngapmsg.UEContextReleaseCommand) {
	ue := h.findUe(amf, p.Ids)
	if ue == nil {
		return
	}
	ids := ue.ids()
	h.logger().Info().Int("ue", ue.CtxID).Stringer("cause", p.Cause).Msg("UE context release command received")
	h.releaseLocally(ue)
	h.send(amf, ue.UplinkStream, &ngapmsg.UEContextReleaseComplete{Ids: ids})
}

// releaseLocally tears down every trace of ue on the station side.
func (h *Handler) releaseLocally(ue *UeContext) {
	h.t.CancelTimer(ue.CtxID)
	h.peers.Rrc.Send(&nts.NgapAnRelease{UeID: ue.CtxID, Ids: ue.ids()})
	h.peers.Gtp.Send(&nts.GtpUeContextRelease{UeID: ue.CtxID})
	delete(h.byRanID, ue.RanUeNgapID)
	delete(h.ues, ue.CtxID)
}

func (h *Handler) uesOf(amfID int) []*UeContext {
	var out []*UeContext
	for _, ue := range h.ues {
		if ue.AssociatedAmf == amfID {
			out = append(out, ue)
		}
	}
	slices.SortFunc(out, func(a, b *UeContext) int { return a.CtxID - b.CtxID })
	return out
}
