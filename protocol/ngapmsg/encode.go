package ngapmsg

import (
	"fmt"

	"github.com/free5gc/aper"
	"github.com/free5gc/ngap/ngapType"
)

func initiating(code int64, criticality aper.Enumerated, present int) *ngapType.NGAPPDU {
	pdu := &ngapType.NGAPPDU{
		Present:           ngapType.NGAPPDUPresentInitiatingMessage,
		InitiatingMessage: new(ngapType.InitiatingMessage),
	}
	pdu.InitiatingMessage.ProcedureCode.Value = code
	pdu.InitiatingMessage.Criticality.Value = criticality
	pdu.InitiatingMessage.Value.Present = present
	return pdu
}

func successful(code int64, present int) *ngapType.NGAPPDU {
	pdu := &ngapType.NGAPPDU{
		Present:           ngapType.NGAPPDUPresentSuccessfulOutcome,
		SuccessfulOutcome: new(ngapType.SuccessfulOutcome),
	}
	pdu.SuccessfulOutcome.ProcedureCode.Value = code
	pdu.SuccessfulOutcome.Criticality.Value = ngapType.CriticalityPresentReject
	pdu.SuccessfulOutcome.Value.Present = present
	return pdu
}

func buildNGSetupRequest(m *NGSetupRequest) *ngapType.NGAPPDU {
	pdu := initiating(ngapType.ProcedureCodeNGSetup, ngapType.CriticalityPresentReject,
		ngapType.InitiatingMessagePresentNGSetupRequest)
	req := new(ngapType.NGSetupRequest)
	pdu.InitiatingMessage.Value.NGSetupRequest = req
	ies := &req.ProtocolIEs

	gnbID := uintBits(uint64(m.GnbID), m.GnbIDLength)
	ie := ngapType.NGSetupRequestIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDGlobalRANNodeID
	ie.Criticality.Value = ngapType.CriticalityPresentReject
	ie.Value.Present = ngapType.NGSetupRequestIEsPresentGlobalRANNodeID
	ie.Value.GlobalRANNodeID = &ngapType.GlobalRANNodeID{
		Present: ngapType.GlobalRANNodeIDPresentGlobalGNBID,
		GlobalGNBID: &ngapType.GlobalGNBID{
			PLMNIdentity: encodePlmnIdentity(m.Plmn),
			GNBID: ngapType.GNBID{
				Present: ngapType.GNBIDPresentGNBID,
				GNBID:   &gnbID,
			},
		},
	}
	ies.List = append(ies.List, ie)

	if m.RanNodeName != "" {
		ie = ngapType.NGSetupRequestIEs{}
		ie.Id.Value = ngapType.ProtocolIEIDRANNodeName
		ie.Criticality.Value = ngapType.CriticalityPresentIgnore
		ie.Value.Present = ngapType.NGSetupRequestIEsPresentRANNodeName
		ie.Value.RANNodeName = &ngapType.RANNodeName{Value: m.RanNodeName}
		ies.List = append(ies.List, ie)
	}

	taList := new(ngapType.SupportedTAList)
	for _, ta := range m.SupportedTas {
		item := ngapType.SupportedTAItem{}
		item.TAC.Value = encodeTac(ta.Tac)
		plmnItem := ngapType.BroadcastPLMNItem{PLMNIdentity: encodePlmnIdentity(ta.Plmn)}
		for _, s := range ta.Slices {
			plmnItem.TAISliceSupportList.List = append(plmnItem.TAISliceSupportList.List,
				ngapType.SliceSupportItem{SNSSAI: encodeSnssai(s)})
		}
		item.BroadcastPLMNList.List = append(item.BroadcastPLMNList.List, plmnItem)
		taList.List = append(taList.List, item)
	}
	ie = ngapType.NGSetupRequestIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDSupportedTAList
	ie.Criticality.Value = ngapType.CriticalityPresentReject
	ie.Value.Present = ngapType.NGSetupRequestIEsPresentSupportedTAList
	ie.Value.SupportedTAList = taList
	ies.List = append(ies.List, ie)

	ie = ngapType.NGSetupRequestIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDDefaultPagingDRX
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.NGSetupRequestIEsPresentDefaultPagingDRX
	ie.Value.DefaultPagingDRX = &ngapType.PagingDRX{Value: ngapType.PagingDRXPresentV128}
	ies.List = append(ies.List, ie)

	return pdu
}

func buildInitialUEMessage(m *InitialUEMessage) *ngapType.NGAPPDU {
	pdu := initiating(ngapType.ProcedureCodeInitialUEMessage, ngapType.CriticalityPresentIgnore,
		ngapType.InitiatingMessagePresentInitialUEMessage)
	msg := new(ngapType.InitialUEMessage)
	pdu.InitiatingMessage.Value.InitialUEMessage = msg
	ies := &msg.ProtocolIEs

	ie := ngapType.InitialUEMessageIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDRANUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentReject
	ie.Value.Present = ngapType.InitialUEMessageIEsPresentRANUENGAPID
	ie.Value.RANUENGAPID = &ngapType.RANUENGAPID{Value: m.RanUeNgapID}
	ies.List = append(ies.List, ie)

	ie = ngapType.InitialUEMessageIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDNASPDU
	ie.Criticality.Value = ngapType.CriticalityPresentReject
	ie.Value.Present = ngapType.InitialUEMessageIEsPresentNASPDU
	ie.Value.NASPDU = &ngapType.NASPDU{Value: m.NasPdu}
	ies.List = append(ies.List, ie)

	ie = ngapType.InitialUEMessageIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDUserLocationInformation
	ie.Criticality.Value = ngapType.CriticalityPresentReject
	ie.Value.Present = ngapType.InitialUEMessageIEsPresentUserLocationInformation
	ie.Value.UserLocationInformation = encodeLocation(m.Location)
	ies.List = append(ies.List, ie)

	ie = ngapType.InitialUEMessageIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDRRCEstablishmentCause
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.InitialUEMessageIEsPresentRRCEstablishmentCause
	ie.Value.RRCEstablishmentCause = &ngapType.RRCEstablishmentCause{Value: aper.Enumerated(m.Cause)}
	ies.List = append(ies.List, ie)

	ie = ngapType.InitialUEMessageIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDUEContextRequest
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.InitialUEMessageIEsPresentUEContextRequest
	ie.Value.UEContextRequest = &ngapType.UEContextRequest{Value: ngapType.UEContextRequestPresentRequested}
	ies.List = append(ies.List, ie)

	return pdu
}

func buildUplinkNASTransport(m *UplinkNASTransport) *ngapType.NGAPPDU {
	pdu := initiating(ngapType.ProcedureCodeUplinkNASTransport, ngapType.CriticalityPresentIgnore,
		ngapType.InitiatingMessagePresentUplinkNASTransport)
	msg := new(ngapType.UplinkNASTransport)
	pdu.InitiatingMessage.Value.UplinkNASTransport = msg
	ies := &msg.ProtocolIEs

	ie := ngapType.UplinkNASTransportIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDAMFUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentReject
	ie.Value.Present = ngapType.UplinkNASTransportIEsPresentAMFUENGAPID
	ie.Value.AMFUENGAPID = &ngapType.AMFUENGAPID{Value: m.Ids.AmfUeNgapID}
	ies.List = append(ies.List, ie)

	ie = ngapType.UplinkNASTransportIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDRANUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentReject
	ie.Value.Present = ngapType.UplinkNASTransportIEsPresentRANUENGAPID
	ie.Value.RANUENGAPID = &ngapType.RANUENGAPID{Value: m.Ids.RanUeNgapID}
	ies.List = append(ies.List, ie)

	ie = ngapType.UplinkNASTransportIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDNASPDU
	ie.Criticality.Value = ngapType.CriticalityPresentReject
	ie.Value.Present = ngapType.UplinkNASTransportIEsPresentNASPDU
	ie.Value.NASPDU = &ngapType.NASPDU{Value: m.NasPdu}
	ies.List = append(ies.List, ie)

	ie = ngapType.UplinkNASTransportIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDUserLocationInformation
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.UplinkNASTransportIEsPresentUserLocationInformation
	ie.Value.UserLocationInformation = encodeLocation(m.Location)
	ies.List = append(ies.List, ie)

	return pdu
}

func buildUEContextReleaseRequest(m *UEContextReleaseRequest) *ngapType.NGAPPDU {
	pdu := initiating(ngapType.ProcedureCodeUEContextReleaseRequest, ngapType.CriticalityPresentIgnore,
		ngapType.InitiatingMessagePresentUEContextReleaseRequest)
	msg := new(ngapType.UEContextReleaseRequest)
	pdu.InitiatingMessage.Value.UEContextReleaseRequest = msg
	ies := &msg.ProtocolIEs

	ie := ngapType.UEContextReleaseRequestIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDAMFUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentReject
	ie.Value.Present = ngapType.UEContextReleaseRequestIEsPresentAMFUENGAPID
	ie.Value.AMFUENGAPID = &ngapType.AMFUENGAPID{Value: m.Ids.AmfUeNgapID}
	ies.List = append(ies.List, ie)

	ie = ngapType.UEContextReleaseRequestIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDRANUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentReject
	ie.Value.Present = ngapType.UEContextReleaseRequestIEsPresentRANUENGAPID
	ie.Value.RANUENGAPID = &ngapType.RANUENGAPID{Value: m.Ids.RanUeNgapID}
	ies.List = append(ies.List, ie)

	if len(m.PduSessions) > 0 {
		list := new(ngapType.PDUSessionResourceListCxtRelReq)
		for _, psi := range m.PduSessions {
			item := ngapType.PDUSessionResourceItemCxtRelReq{}
			item.PDUSessionID.Value = int64(psi)
			list.List = append(list.List, item)
		}
		ie = ngapType.UEContextReleaseRequestIEs{}
		ie.Id.Value = ngapType.ProtocolIEIDPDUSessionResourceListCxtRelReq
		ie.Criticality.Value = ngapType.CriticalityPresentReject
		ie.Value.Present = ngapType.UEContextReleaseRequestIEsPresentPDUSessionResourceListCxtRelReq
		ie.Value.PDUSessionResourceListCxtRelReq = list
		ies.List = append(ies.List, ie)
	}

	ie = ngapType.UEContextReleaseRequestIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDCause
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.UEContextReleaseRequestIEsPresentCause
	ie.Value.Cause = encodeCause(m.Cause)
	ies.List = append(ies.List, ie)

	return pdu
}

func buildUEContextReleaseComplete(m *UEContextReleaseComplete) *ngapType.NGAPPDU {
	pdu := successful(ngapType.ProcedureCodeUEContextRelease,
		ngapType.SuccessfulOutcomePresentUEContextReleaseComplete)
	msg := new(ngapType.UEContextReleaseComplete)
	pdu.SuccessfulOutcome.Value.UEContextReleaseComplete = msg
	ies := &msg.ProtocolIEs

	ie := ngapType.UEContextReleaseCompleteIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDAMFUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.UEContextReleaseCompleteIEsPresentAMFUENGAPID
	ie.Value.AMFUENGAPID = &ngapType.AMFUENGAPID{Value: m.Ids.AmfUeNgapID}
	ies.List = append(ies.List, ie)

	ie = ngapType.UEContextReleaseCompleteIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDRANUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.UEContextReleaseCompleteIEsPresentRANUENGAPID
	ie.Value.RANUENGAPID = &ngapType.RANUENGAPID{Value: m.Ids.RanUeNgapID}
	ies.List = append(ies.List, ie)

	return pdu
}

func buildInitialContextSetupResponse(m *InitialContextSetupResponse) *ngapType.NGAPPDU {
	pdu := successful(ngapType.ProcedureCodeInitialContextSetup,
		ngapType.SuccessfulOutcomePresentInitialContextSetupResponse)
	msg := new(ngapType.InitialContextSetupResponse)
	pdu.SuccessfulOutcome.Value.InitialContextSetupResponse = msg
	ies := &msg.ProtocolIEs

	ie := ngapType.InitialContextSetupResponseIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDAMFUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.InitialContextSetupResponseIEsPresentAMFUENGAPID
	ie.Value.AMFUENGAPID = &ngapType.AMFUENGAPID{Value: m.Ids.AmfUeNgapID}
	ies.List = append(ies.List, ie)

	ie = ngapType.InitialContextSetupResponseIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDRANUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.InitialContextSetupResponseIEsPresentRANUENGAPID
	ie.Value.RANUENGAPID = &ngapType.RANUENGAPID{Value: m.Ids.RanUeNgapID}
	ies.List = append(ies.List, ie)

	return pdu
}

func buildPDUSessionResourceSetupResponse(m *PDUSessionResourceSetupResponse) (*ngapType.NGAPPDU, error) {
	pdu := successful(ngapType.ProcedureCodePDUSessionResourceSetup,
		ngapType.SuccessfulOutcomePresentPDUSessionResourceSetupResponse)
	msg := new(ngapType.PDUSessionResourceSetupResponse)
	pdu.SuccessfulOutcome.Value.PDUSessionResourceSetupResponse = msg
	ies := &msg.ProtocolIEs

	ie := ngapType.PDUSessionResourceSetupResponseIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDAMFUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.PDUSessionResourceSetupResponseIEsPresentAMFUENGAPID
	ie.Value.AMFUENGAPID = &ngapType.AMFUENGAPID{Value: m.Ids.AmfUeNgapID}
	ies.List = append(ies.List, ie)

	ie = ngapType.PDUSessionResourceSetupResponseIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDRANUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.PDUSessionResourceSetupResponseIEsPresentRANUENGAPID
	ie.Value.RANUENGAPID = &ngapType.RANUENGAPID{Value: m.Ids.RanUeNgapID}
	ies.List = append(ies.List, ie)

	if len(m.Sessions) > 0 {
		list := new(ngapType.PDUSessionResourceSetupListSURes)
		for _, s := range m.Sessions {
			transfer := ngapType.PDUSessionResourceSetupResponseTransfer{}
			transfer.DLQosFlowPerTNLInformation.UPTransportLayerInformation = encodeTunnel(s.DownTunnel)
			for _, qfi := range s.QosFlows {
				item := ngapType.AssociatedQosFlowItem{}
				item.QosFlowIdentifier.Value = int64(qfi)
				transfer.DLQosFlowPerTNLInformation.AssociatedQosFlowList.List = append(
					transfer.DLQosFlowPerTNLInformation.AssociatedQosFlowList.List, item)
			}
			encoded, err := aper.MarshalWithParams(transfer, "valueExt")
			if err != nil {
				return nil, fmt.Errorf("setup response transfer of session %d: %w", s.Psi, err)
			}
			item := ngapType.PDUSessionResourceSetupItemSURes{}
			item.PDUSessionID.Value = int64(s.Psi)
			item.PDUSessionResourceSetupResponseTransfer = encoded
			list.List = append(list.List, item)
		}
		ie = ngapType.PDUSessionResourceSetupResponseIEs{}
		ie.Id.Value = ngapType.ProtocolIEIDPDUSessionResourceSetupListSURes
		ie.Criticality.Value = ngapType.CriticalityPresentIgnore
		ie.Value.Present = ngapType.PDUSessionResourceSetupResponseIEsPresentPDUSessionResourceSetupListSURes
		ie.Value.PDUSessionResourceSetupListSURes = list
		ies.List = append(ies.List, ie)
	}

	return pdu, nil
}

func buildPDUSessionResourceReleaseResponse(m *PDUSessionResourceReleaseResponse) (*ngapType.NGAPPDU, error) {
	pdu := successful(ngapType.ProcedureCodePDUSessionResourceRelease,
		ngapType.SuccessfulOutcomePresentPDUSessionResourceReleaseResponse)
	msg := new(ngapType.PDUSessionResourceReleaseResponse)
	pdu.SuccessfulOutcome.Value.PDUSessionResourceReleaseResponse = msg
	ies := &msg.ProtocolIEs

	ie := ngapType.PDUSessionResourceReleaseResponseIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDAMFUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.PDUSessionResourceReleaseResponseIEsPresentAMFUENGAPID
	ie.Value.AMFUENGAPID = &ngapType.AMFUENGAPID{Value: m.Ids.AmfUeNgapID}
	ies.List = append(ies.List, ie)

	ie = ngapType.PDUSessionResourceReleaseResponseIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDRANUENGAPID
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.PDUSessionResourceReleaseResponseIEsPresentRANUENGAPID
	ie.Value.RANUENGAPID = &ngapType.RANUENGAPID{Value: m.Ids.RanUeNgapID}
	ies.List = append(ies.List, ie)

	list := new(ngapType.PDUSessionResourceReleasedListRelRes)
	for _, psi := range m.Psis {
		encoded, err := aper.MarshalWithParams(ngapType.PDUSessionResourceReleaseResponseTransfer{}, "valueExt")
		if err != nil {
			return nil, fmt.Errorf("release response transfer of session %d: %w", psi, err)
		}
		item := ngapType.PDUSessionResourceReleasedItemRelRes{}
		item.PDUSessionID.Value = int64(psi)
		item.PDUSessionResourceReleaseResponseTransfer = encoded
		list.List = append(list.List, item)
	}
	ie = ngapType.PDUSessionResourceReleaseResponseIEs{}
	ie.Id.Value = ngapType.ProtocolIEIDPDUSessionResourceReleasedListRelRes
	ie.Criticality.Value = ngapType.CriticalityPresentIgnore
	ie.Value.Present = ngapType.PDUSessionResourceReleaseResponseIEsPresentPDUSessionResourceReleasedListRelRes
	ie.Value.PDUSessionResourceReleasedListRelRes = list
	ies.List = append(ies.List, ie)

	return pdu, nil
}
