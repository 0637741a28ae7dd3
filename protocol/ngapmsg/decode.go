package ngapmsg

import (
	"errors"
	"fmt"

	"github.com/Mmx233/RGNB/nts"
	"github.com/free5gc/aper"
	"github.com/free5gc/ngap/ngapType"
)

var errMissingIE = errors.New("mandatory IE missing")

func parseNGSetupResponse(msg *ngapType.NGSetupResponse) (Message, error) {
	if msg == nil {
		return nil, errMissingIE
	}
	out := &NGSetupResponse{}
	for _, ie := range msg.ProtocolIEs.List {
		switch ie.Id.Value {
		case ngapType.ProtocolIEIDAMFName:
			if ie.Value.AMFName != nil {
				out.AmfName = ie.Value.AMFName.Value
			}
		case ngapType.ProtocolIEIDRelativeAMFCapacity:
			if ie.Value.RelativeAMFCapacity != nil {
				out.RelativeCapacity = int(ie.Value.RelativeAMFCapacity.Value)
			}
		case ngapType.ProtocolIEIDServedGUAMIList:
			if ie.Value.ServedGUAMIList == nil {
				continue
			}
			for _, item := range ie.Value.ServedGUAMIList.List {
				plmn, err := DecodePlmn(item.GUAMI.PLMNIdentity.Value)
				if err != nil {
					return nil, fmt.Errorf("served GUAMI: %w", err)
				}
				out.ServedGuamis = append(out.ServedGuamis, Guami{
					Plmn:       plmn,
					RegionID:   int(bitsUint(item.GUAMI.AMFRegionID.Value)),
					SetID:      int(bitsUint(item.GUAMI.AMFSetID.Value)),
					AmfPointer: int(bitsUint(item.GUAMI.AMFPointer.Value)),
				})
			}
		case ngapType.ProtocolIEIDPLMNSupportList:
			if ie.Value.PLMNSupportList == nil {
				continue
			}
			for _, item := range ie.Value.PLMNSupportList.List {
				plmn, err := DecodePlmn(item.PLMNIdentity.Value)
				if err != nil {
					return nil, fmt.Errorf("plmn support: %w", err)
				}
				support := PlmnSupport{Plmn: plmn}
				for _, s := range item.SliceSupportList.List {
					support.Slices = append(support.Slices, decodeSnssai(s.SNSSAI))
				}
				out.PlmnSupport = append(out.PlmnSupport, support)
			}
		}
	}
	return out, nil
}

func parseNGSetupFailure(msg *ngapType.NGSetupFailure) (Message, error) {
	if msg == nil {
		return nil, errMissingIE
	}
	out := &NGSetupFailure{Cause: nts.CauseMiscUnspecified}
	for _, ie := range msg.ProtocolIEs.List {
		if ie.Id.Value == ngapType.ProtocolIEIDCause {
			out.Cause = decodeCause(ie.Value.Cause)
		}
	}
	return out, nil
}

func parseDownlinkNASTransport(msg *ngapType.DownlinkNASTransport) (Message, error) {
	if msg == nil {
		return nil, errMissingIE
	}
	var (
		amf *ngapType.AMFUENGAPID
		ran *ngapType.RANUENGAPID
		nas *ngapType.NASPDU
	)
	for _, ie := range msg.ProtocolIEs.List {
		switch ie.Id.Value {
		case ngapType.ProtocolIEIDAMFUENGAPID:
			amf = ie.Value.AMFUENGAPID
		case ngapType.ProtocolIEIDRANUENGAPID:
			ran = ie.Value.RANUENGAPID
		case ngapType.ProtocolIEIDNASPDU:
			nas = ie.Value.NASPDU
		}
	}
	if amf == nil || ran == nil || nas == nil {
		return nil, fmt.Errorf("downlink NAS transport: %w", errMissingIE)
	}
	return &DownlinkNASTransport{Ids: ueIDs(amf, ran), NasPdu: nas.Value}, nil
}

func parseInitialContextSetupRequest(msg *ngapType.InitialContextSetupRequest) (Message, error) {
	if msg == nil {
		return nil, errMissingIE
	}
	var (
		amf *ngapType.AMFUENGAPID
		ran *ngapType.RANUENGAPID
	)
	out := &InitialContextSetupRequest{}
	for _, ie := range msg.ProtocolIEs.List {
		switch ie.Id.Value {
		case ngapType.ProtocolIEIDAMFUENGAPID:
			amf = ie.Value.AMFUENGAPID
		case ngapType.ProtocolIEIDRANUENGAPID:
			ran = ie.Value.RANUENGAPID
		case ngapType.ProtocolIEIDUEAggregateMaximumBitRate:
			if v := ie.Value.UEAggregateMaximumBitRate; v != nil {
				out.Ambr = &nts.BitRate{
					Uplink:   v.UEAggregateMaximumBitRateUL.Value,
					Downlink: v.UEAggregateMaximumBitRateDL.Value,
				}
			}
		case ngapType.ProtocolIEIDNASPDU:
			if ie.Value.NASPDU != nil {
				out.NasPdu = ie.Value.NASPDU.Value
			}
		}
	}
	if amf == nil || ran == nil {
		return nil, fmt.Errorf("initial context setup request: %w", errMissingIE)
	}
	out.Ids = ueIDs(amf, ran)
	return out, nil
}

func parseUEContextReleaseCommand(msg *ngapType.UEContextReleaseCommand) (Message, error) {
	if msg == nil {
		return nil, errMissingIE
	}
	out := &UEContextReleaseCommand{Cause: nts.CauseMiscUnspecified}
	found := false
	for _, ie := range msg.ProtocolIEs.List {
		switch ie.Id.Value {
		case ngapType.ProtocolIEIDUENGAPIDs:
			v := ie.Value.UENGAPIDs
			if v == nil {
				continue
			}
			switch {
			case v.Present == ngapType.UENGAPIDsPresentUENGAPIDPair && v.UENGAPIDPair != nil:
				out.Ids = ueIDs(&v.UENGAPIDPair.AMFUENGAPID, &v.UENGAPIDPair.RANUENGAPID)
				found = true
			case v.Present == ngapType.UENGAPIDsPresentAMFUENGAPID && v.AMFUENGAPID != nil:
				out.Ids = ueIDs(v.AMFUENGAPID, nil)
				found = true
			}
		case ngapType.ProtocolIEIDCause:
			out.Cause = decodeCause(ie.Value.Cause)
		}
	}
	if !found {
		return nil, fmt.Errorf("UE context release command: %w", errMissingIE)
	}
	return out, nil
}

func parsePDUSessionResourceSetupRequest(msg *ngapType.PDUSessionResourceSetupRequest) (Message, error) {
	if msg == nil {
		return nil, errMissingIE
	}
	var (
		amf *ngapType.AMFUENGAPID
		ran *ngapType.RANUENGAPID
	)
	out := &PDUSessionResourceSetupRequest{}
	for _, ie := range msg.ProtocolIEs.List {
		switch ie.Id.Value {
		case ngapType.ProtocolIEIDAMFUENGAPID:
			amf = ie.Value.AMFUENGAPID
		case ngapType.ProtocolIEIDRANUENGAPID:
			ran = ie.Value.RANUENGAPID
		case ngapType.ProtocolIEIDNASPDU:
			if ie.Value.NASPDU != nil {
				out.NasPdu = ie.Value.NASPDU.Value
			}
		case ngapType.ProtocolIEIDUEAggregateMaximumBitRate:
			if v := ie.Value.UEAggregateMaximumBitRate; v != nil {
				out.Ambr = &nts.BitRate{
					Uplink:   v.UEAggregateMaximumBitRateUL.Value,
					Downlink: v.UEAggregateMaximumBitRateDL.Value,
				}
			}
		case ngapType.ProtocolIEIDPDUSessionResourceSetupListSUReq:
			if ie.Value.PDUSessionResourceSetupListSUReq == nil {
				continue
			}
			for _, item := range ie.Value.PDUSessionResourceSetupListSUReq.List {
				session, err := parseSessionSetupItem(item)
				if err != nil {
					return nil, err
				}
				out.Sessions = append(out.Sessions, session)
			}
		}
	}
	if amf == nil || ran == nil {
		return nil, fmt.Errorf("PDU session resource setup request: %w", errMissingIE)
	}
	out.Ids = ueIDs(amf, ran)
	return out, nil
}

func parseSessionSetupItem(item ngapType.PDUSessionResourceSetupItemSUReq) (SessionSetupItem, error) {
	out := SessionSetupItem{
		Psi:    int(item.PDUSessionID.Value),
		Snssai: decodeSnssai(item.SNSSAI),
	}
	if item.PDUSessionNASPDU != nil {
		out.NasPdu = item.PDUSessionNASPDU.Value
	}

	transfer := ngapType.PDUSessionResourceSetupRequestTransfer{}
	if err := aper.UnmarshalWithParams(item.PDUSessionResourceSetupRequestTransfer, &transfer, "valueExt"); err != nil {
		return out, fmt.Errorf("setup request transfer of session %d: %w", out.Psi, err)
	}

	hasTunnel := false
	for _, ie := range transfer.ProtocolIEs.List {
		switch ie.Id.Value {
		case ngapType.ProtocolIEIDPDUSessionAggregateMaximumBitRate:
			if v := ie.Value.PDUSessionAggregateMaximumBitRate; v != nil {
				out.Ambr = nts.BitRate{
					Uplink:   v.PDUSessionAggregateMaximumBitRateUL.Value,
					Downlink: v.PDUSessionAggregateMaximumBitRateDL.Value,
				}
			}
		case ngapType.ProtocolIEIDULNGUUPTNLInformation:
			tunnel, err := decodeTunnel(ie.Value.ULNGUUPTNLInformation)
			if err != nil {
				return out, fmt.Errorf("uplink tunnel of session %d: %w", out.Psi, err)
			}
			out.UpTunnel = tunnel
			hasTunnel = true
		case ngapType.ProtocolIEIDPDUSessionType:
			if ie.Value.PDUSessionType != nil {
				out.SessionType = nts.PduSessionType(ie.Value.PDUSessionType.Value)
			}
		case ngapType.ProtocolIEIDDataForwardingNotPossible:
			out.DataForwardingNotPossible = ie.Value.DataForwardingNotPossible != nil
		case ngapType.ProtocolIEIDQosFlowSetupRequestList:
			if ie.Value.QosFlowSetupRequestList == nil {
				continue
			}
			for _, flow := range ie.Value.QosFlowSetupRequestList.List {
				out.QosFlows = append(out.QosFlows, int(flow.QosFlowIdentifier.Value))
			}
		}
	}
	if !hasTunnel {
		return out, fmt.Errorf("session %d: uplink tunnel: %w", out.Psi, errMissingIE)
	}
	return out, nil
}

func parsePDUSessionResourceReleaseCommand(msg *ngapType.PDUSessionResourceReleaseCommand) (Message, error) {
	if msg == nil {
		return nil, errMissingIE
	}
	var (
		amf *ngapType.AMFUENGAPID
		ran *ngapType.RANUENGAPID
	)
	out := &PDUSessionResourceReleaseCommand{}
	for _, ie := range msg.ProtocolIEs.List {
		switch ie.Id.Value {
		case ngapType.ProtocolIEIDAMFUENGAPID:
			amf = ie.Value.AMFUENGAPID
		case ngapType.ProtocolIEIDRANUENGAPID:
			ran = ie.Value.RANUENGAPID
		case ngapType.ProtocolIEIDNASPDU:
			if ie.Value.NASPDU != nil {
				out.NasPdu = ie.Value.NASPDU.Value
			}
		case ngapType.ProtocolIEIDPDUSessionResourceToReleaseListRelCmd:
			if ie.Value.PDUSessionResourceToReleaseListRelCmd == nil {
				continue
			}
			for _, item := range ie.Value.PDUSessionResourceToReleaseListRelCmd.List {
				out.Psis = append(out.Psis, int(item.PDUSessionID.Value))
			}
		}
	}
	if amf == nil || ran == nil {
		return nil, fmt.Errorf("PDU session resource release command: %w", errMissingIE)
	}
	out.Ids = ueIDs(amf, ran)
	return out, nil
}
