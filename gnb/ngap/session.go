package ngap

import (
	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol/ngapmsg"
)

func (h *Handler) allocateTeid() uint32 {
	h.nextTeid++
	if h.nextTeid == 0 {
		h.nextTeid = 1
	}
	return h.nextTeid
}

func (h *Handler) sessionSetup(amf *AmfContext, p *ngapmsg.PDUSessionResourceSetupRequest) {
	ue := h.findUe(amf, p.Ids)
	if ue == nil {
		return
	}
	if p.Ambr != nil {
		ue.Ambr = *p.Ambr
		h.peers.Gtp.Send(&nts.GtpUeContextUpdate{UeID: ue.CtxID, Ambr: ue.Ambr})
	}

	results := make([]ngapmsg.SessionSetupResult, 0, len(p.Sessions))
	for _, item := range p.Sessions {
		if _, exists := ue.PduSessions[item.Psi]; exists {
			h.logger().Warn().Int("ue", ue.CtxID).Int("psi", item.Psi).Msg("PDU session already exists, setup item skipped")
			continue
		}
		resource := &nts.PduSessionResource{
			UeID:                      ue.CtxID,
			Psi:                       item.Psi,
			SessionAmbr:               item.Ambr,
			DataForwardingNotPossible: item.DataForwardingNotPossible,
			SessionType:               item.SessionType,
			UpTunnel:                  item.UpTunnel,
			DownTunnel:                nts.GtpTunnel{Teid: h.allocateTeid(), Address: h.cfg.GtpAddr},
			QosFlows:                  item.QosFlows,
		}
		ue.PduSessions[item.Psi] = struct{}{}
		h.peers.Gtp.Send(&nts.GtpSessionCreate{Resource: resource})
		results = append(results, ngapmsg.SessionSetupResult{
			Psi:        item.Psi,
			DownTunnel: resource.DownTunnel,
			QosFlows:   item.QosFlows,
		})
		h.deliverNas(ue, item.NasPdu)

		h.logger().Info().Int("ue", ue.CtxID).Int("psi", item.Psi).Uint32("dl-teid", resource.DownTunnel.Teid).
			Msg("PDU session resource is set up")
	}
	h.deliverNas(ue, p.NasPdu)

	h.sendUe(ue, &ngapmsg.PDUSessionResourceSetupResponse{Ids: ue.ids(), Sessions: results})
}

func (h *Handler) sessionRelease(amf *AmfContext, p *ngapmsg.PDUSessionResourceReleaseCommand) {
	ue := h.findUe(amf, p.Ids)
	if ue == nil {
		return
	}

	released := make([]int, 0, len(p.Psis))
	for _, psi := range p.Psis {
		if _, ok := ue.PduSessions[psi]; !ok {
			h.logger().Warn().Int("ue", ue.CtxID).Int("psi", psi).Msg("release of unknown PDU session")
			continue
		}
		delete(ue.PduSessions, psi)
		h.peers.Gtp.Send(&nts.GtpSessionRelease{UeID: ue.CtxID, Psi: psi})
		released = append(released, psi)
	}
	h.deliverNas(ue, p.NasPdu)

	h.sendUe(ue, &ngapmsg.PDUSessionResourceReleaseResponse{Ids: ue.ids(), Psis: released})
}
