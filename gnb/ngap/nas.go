package ngap

import (
	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/protocol/ngapmsg"
)

func (h *Handler) location() ngapmsg.UserLocation {
	return ngapmsg.UserLocation{Tai: h.cfg.Tai, Nci: h.cfg.Nci}
}

func (h *Handler) initialNas(m *nts.RrcInitialNasDelivery) {
	if _, exists := h.ues[m.UeID]; exists {
		h.logger().Error().Int("ue", m.UeID).Msg("initial NAS for a UE that already has a context")
		return
	}

	amf := h.selectAmf()
	if amf == nil {
		h.logger().Error().Int("ue", m.UeID).Msg("AMF selection for initial UE message failed, no AMF is available")
		h.peers.Rrc.Send(&nts.NgapAnRelease{UeID: m.UeID, Ids: nts.UeNgapIDs{AmfUeNgapID: -1}})
		return
	}

	h.nextRan++
	ue := &UeContext{
		CtxID:         m.UeID,
		AmfUeNgapID:   -1,
		RanUeNgapID:   h.nextRan,
		AssociatedAmf: amf.CtxID,
		UplinkStream:  h.allocateStream(amf),
		PduSessions:   make(map[int]struct{}),
	}
	h.ues[ue.CtxID] = ue
	h.byRanID[ue.RanUeNgapID] = ue.CtxID

	h.logger().Debug().Int("ue", ue.CtxID).Int64("ran-ue-ngap-id", ue.RanUeNgapID).Int("amf", amf.CtxID).
		Msg("sending initial UE message")
	h.sendUe(ue, &ngapmsg.InitialUEMessage{
		RanUeNgapID: ue.RanUeNgapID,
		NasPdu:      m.Pdu,
		Location:    h.location(),
		Cause:       m.Cause,
	})
}

func (h *Handler) uplinkNas(m *nts.RrcUplinkNasDelivery) {
	ue, ok := h.ues[m.UeID]
	if !ok {
		h.logger().Error().Int("ue", m.UeID).Err(ErrUeNotFound).Msg("uplink NAS dropped")
		return
	}
	if ue.AmfUeNgapID < 0 {
		h.logger().Error().Int("ue", m.UeID).Msg("uplink NAS dropped, AMF-UE-NGAP-ID not assigned yet")
		return
	}
	h.sendUe(ue, &ngapmsg.UplinkNASTransport{Ids: ue.ids(), NasPdu: m.Pdu, Location: h.location()})
}

// findUe resolves the UE of a UE-associated message and learns the AMF-UE-NGAP-ID.
func (h *Handler) findUe(amf *AmfContext, ids nts.UeNgapIDs) *UeContext {
	var ue *UeContext
	if ids.RanUeNgapID > 0 {
		if id, ok := h.byRanID[ids.RanUeNgapID]; ok {
			ue = h.ues[id]
		}
	} else if ids.AmfUeNgapID >= 0 {
		for _, u := range h.ues {
			if u.AmfUeNgapID == ids.AmfUeNgapID && u.AssociatedAmf == amf.CtxID {
				ue = u
				break
			}
		}
	}
	if ue == nil {
		h.logger().Error().Int("amf", amf.CtxID).Stringer("ids", ids).Err(ErrUeNotFound).
			Msg("NGAP protocol error: unknown UE")
		return nil
	}
	if ue.AssociatedAmf != amf.CtxID {
		h.logger().Error().Int("ue", ue.CtxID).Int("amf", amf.CtxID).Msg("NGAP protocol error: UE belongs to another AMF")
		return nil
	}

	switch {
	case ue.AmfUeNgapID < 0 && ids.AmfUeNgapID >= 0:
		ue.AmfUeNgapID = ids.AmfUeNgapID
		ue.DownlinkStream = ue.UplinkStream
	case ids.AmfUeNgapID >= 0 && ue.AmfUeNgapID != ids.AmfUeNgapID:
		h.logger().Warn().Int("ue", ue.CtxID).Int64("old", ue.AmfUeNgapID).Int64("new", ids.AmfUeNgapID).
			Msg("AMF-UE-NGAP-ID changed")
		ue.AmfUeNgapID = ids.AmfUeNgapID
	}
	return ue
}

func (h *Handler) deliverNas(ue *UeContext, pdu []byte) {
	if len(pdu) == 0 {
		return
	}
	h.peers.Rrc.Send(&nts.NgapNasDelivery{UeID: ue.CtxID, Ids: ue.ids(), Pdu: pdu})
}

func (h *Handler) downlinkNas(amf *AmfContext, p *ngapmsg.DownlinkNASTransport) {
	ue := h.findUe(amf, p.Ids)
	if ue == nil {
		return
	}
	h.deliverNas(ue, p.NasPdu)
}

func (h *Handler) initialContextSetup(amf *AmfContext, p *ngapmsg.InitialContextSetupRequest) {
	ue := h.findUe(amf, p.Ids)
	if ue == nil {
		return
	}
	if p.Ambr != nil {
		ue.Ambr = *p.Ambr
		h.peers.Gtp.Send(&nts.GtpUeContextUpdate{UeID: ue.CtxID, Ambr: ue.Ambr})
	}
	h.sendUe(ue, &ngapmsg.InitialContextSetupResponse{Ids: ue.ids()})
	h.deliverNas(ue, p.NasPdu)
}
