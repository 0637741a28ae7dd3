package ngapmsg

import (
	"errors"
	"fmt"

	"github.com/free5gc/ngap"
	"github.com/free5gc/ngap/ngapType"
)

// ErrCodec marks wire encoding and decoding failures, as opposed to records
// that decode fine but make no sense in the current protocol state.
var ErrCodec = errors.New("ngap codec error")

// ErrUnsupported is wrapped into ErrCodec for procedures this node does not implement.
var ErrUnsupported = errors.New("unsupported procedure")

// Codec turns NGAP records into APER bytes and back.
type Codec interface {
	Encode(msg Message) ([]byte, error)
	Decode(data []byte) (Message, error)
}

// Free5gc is the Codec backed by github.com/free5gc/ngap.
type Free5gc struct{}

func NewCodec() Free5gc {
	return Free5gc{}
}

func (Free5gc) Encode(msg Message) ([]byte, error) {
	pdu, err := buildPdu(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}
	data, err := ngap.Encoder(*pdu)
	if err != nil {
		return nil, fmt.Errorf("%w: encode %T: %w", ErrCodec, msg, err)
	}
	return data, nil
}

func (Free5gc) Decode(data []byte) (Message, error) {
	pdu, err := ngap.Decoder(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}
	msg, err := parsePdu(pdu)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCodec, err)
	}
	return msg, nil
}

func buildPdu(msg Message) (*ngapType.NGAPPDU, error) {
	switch m := msg.(type) {
	case *NGSetupRequest:
		return buildNGSetupRequest(m), nil
	case *InitialUEMessage:
		return buildInitialUEMessage(m), nil
	case *UplinkNASTransport:
		return buildUplinkNASTransport(m), nil
	case *UEContextReleaseRequest:
		return buildUEContextReleaseRequest(m), nil
	case *UEContextReleaseComplete:
		return buildUEContextReleaseComplete(m), nil
	case *InitialContextSetupResponse:
		return buildInitialContextSetupResponse(m), nil
	case *PDUSessionResourceSetupResponse:
		return buildPDUSessionResourceSetupResponse(m)
	case *PDUSessionResourceReleaseResponse:
		return buildPDUSessionResourceReleaseResponse(m)
	default:
		return nil, fmt.Errorf("%w: encode %T", ErrUnsupported, msg)
	}
}

func parsePdu(pdu *ngapType.NGAPPDU) (Message, error) {
	switch pdu.Present {
	case ngapType.NGAPPDUPresentInitiatingMessage:
		if pdu.InitiatingMessage == nil {
			break
		}
		v := &pdu.InitiatingMessage.Value
		switch v.Present {
		case ngapType.InitiatingMessagePresentDownlinkNASTransport:
			return parseDownlinkNASTransport(v.DownlinkNASTransport)
		case ngapType.InitiatingMessagePresentInitialContextSetupRequest:
			return parseInitialContextSetupRequest(v.InitialContextSetupRequest)
		case ngapType.InitiatingMessagePresentUEContextReleaseCommand:
			return parseUEContextReleaseCommand(v.UEContextReleaseCommand)
		case ngapType.InitiatingMessagePresentPDUSessionResourceSetupRequest:
			return parsePDUSessionResourceSetupRequest(v.PDUSessionResourceSetupRequest)
		case ngapType.InitiatingMessagePresentPDUSessionResourceReleaseCommand:
			return parsePDUSessionResourceReleaseCommand(v.PDUSessionResourceReleaseCommand)
		case ngapType.InitiatingMessagePresentOverloadStart:
			return &OverloadStart{}, nil
		case ngapType.InitiatingMessagePresentOverloadStop:
			return &OverloadStop{}, nil
		}
		return nil, fmt.Errorf("%w: initiating message, procedure %d", ErrUnsupported, pdu.InitiatingMessage.ProcedureCode.Value)
	case ngapType.NGAPPDUPresentSuccessfulOutcome:
		if pdu.SuccessfulOutcome == nil {
			break
		}
		v := &pdu.SuccessfulOutcome.Value
		if v.Present == ngapType.SuccessfulOutcomePresentNGSetupResponse {
			return parseNGSetupResponse(v.NGSetupResponse)
		}
		return nil, fmt.Errorf("%w: successful outcome, procedure %d", ErrUnsupported, pdu.SuccessfulOutcome.ProcedureCode.Value)
	case ngapType.NGAPPDUPresentUnsuccessfulOutcome:
		if pdu.UnsuccessfulOutcome == nil {
			break
		}
		v := &pdu.UnsuccessfulOutcome.Value
		if v.Present == ngapType.UnsuccessfulOutcomePresentNGSetupFailure {
			return parseNGSetupFailure(v.NGSetupFailure)
		}
		return nil, fmt.Errorf("%w: unsuccessful outcome, procedure %d", ErrUnsupported, pdu.UnsuccessfulOutcome.ProcedureCode.Value)
	}
	return nil, fmt.Errorf("empty NGAP PDU (present %d)", pdu.Present)
}
