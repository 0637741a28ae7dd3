package nas

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/free5gc/nas"
	"github.com/free5gc/nas/nasMessage"
	"github.com/free5gc/nas/nasType"
)

var ErrNasCodec = errors.New("NAS codec error")

const (
	ieiUeSecurityCapability = 0x2e
	accessType3gpp          = 0x01
	ngKsiNone               = 0x07
)

// Algorithms are the optional integrity and ciphering algorithms the device
// announces. The null algorithms are always announced.
type Algorithms struct {
	IA1 bool `yaml:"IA1"`
	IA2 bool `yaml:"IA2"`
	IA3 bool `yaml:"IA3"`
	EA1 bool `yaml:"EA1"`
	EA2 bool `yaml:"EA2"`
	EA3 bool `yaml:"EA3"`
}

func bit(on bool, shift uint) uint8 {
	if on {
		return 1 << shift
	}
	return 0
}

func (a Algorithms) capability() *nasType.UESecurityCapability {
	return &nasType.UESecurityCapability{
		Iei: ieiUeSecurityCapability,
		Len: 2,
		Buffer: []uint8{
			1<<7 | bit(a.EA1, 6) | bit(a.EA2, 5) | bit(a.EA3, 4),
			1<<7 | bit(a.IA1, 6) | bit(a.IA2, 5) | bit(a.IA3, 4),
		},
	}
}

func newGmm(msgType uint8) *nas.Message {
	m := nas.NewMessage()
	m.GmmMessage = nas.NewGmmMessage()
	m.GmmHeader.SetMessageType(msgType)
	return m
}

func encodeGmm(m *nas.Message) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := m.GmmMessageEncode(buf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNasCodec, err)
	}
	return buf.Bytes(), nil
}

func mobileIdentity(contents []byte) nasType.MobileIdentity5GS {
	return nasType.MobileIdentity5GS{Len: uint16(len(contents)), Buffer: contents}
}

// BuildRegistrationRequest encodes a plain initial registration request.
func BuildRegistrationRequest(suci []byte, algorithms Algorithms) ([]byte, error) {
	m := newGmm(nas.MsgTypeRegistrationRequest)
	req := nasMessage.NewRegistrationRequest(0)
	req.ExtendedProtocolDiscriminator.SetExtendedProtocolDiscriminator(nasMessage.Epd5GSMobilityManagementMessage)
	req.SpareHalfOctetAndSecurityHeaderType.SetSecurityHeaderType(nas.SecurityHeaderTypePlainNas)
	req.SpareHalfOctetAndSecurityHeaderType.SetSpareHalfOctet(0)
	req.RegistrationRequestMessageIdentity.SetMessageType(nas.MsgTypeRegistrationRequest)
	req.NgksiAndRegistrationType5GS.SetTSC(nasMessage.TypeOfSecurityContextFlagNative)
	req.NgksiAndRegistrationType5GS.SetNasKeySetIdentifiler(ngKsiNone)
	req.NgksiAndRegistrationType5GS.SetFOR(1)
	req.NgksiAndRegistrationType5GS.SetRegistrationType5GS(nasMessage.RegistrationType5GSInitialRegistration)
	req.MobileIdentity5GS = mobileIdentity(suci)
	req.UESecurityCapability = algorithms.capability()
	m.GmmMessage.RegistrationRequest = req
	return encodeGmm(m)
}

func BuildRegistrationComplete() ([]byte, error) {
	m := newGmm(nas.MsgTypeRegistrationComplete)
	rc := nasMessage.NewRegistrationComplete(0)
	rc.ExtendedProtocolDiscriminator.SetExtendedProtocolDiscriminator(nasMessage.Epd5GSMobilityManagementMessage)
	rc.SpareHalfOctetAndSecurityHeaderType.SetSecurityHeaderType(nas.SecurityHeaderTypePlainNas)
	rc.SpareHalfOctetAndSecurityHeaderType.SetSpareHalfOctet(0)
	rc.RegistrationCompleteMessageIdentity.SetMessageType(nas.MsgTypeRegistrationComplete)
	m.GmmMessage.RegistrationComplete = rc
	return encodeGmm(m)
}

// BuildDeregistrationRequest encodes a UE originating deregistration for 3GPP access.
func BuildDeregistrationRequest(identity []byte, switchOff bool) ([]byte, error) {
	m := newGmm(nas.MsgTypeDeregistrationRequestUEOriginatingDeregistration)
	req := nasMessage.NewDeregistrationRequestUEOriginatingDeregistration(0)
	req.ExtendedProtocolDiscriminator.SetExtendedProtocolDiscriminator(nasMessage.Epd5GSMobilityManagementMessage)
	req.SpareHalfOctetAndSecurityHeaderType.SetSecurityHeaderType(nas.SecurityHeaderTypePlainNas)
	req.SpareHalfOctetAndSecurityHeaderType.SetSpareHalfOctet(0)
	req.DeregistrationRequestMessageIdentity.SetMessageType(nas.MsgTypeDeregistrationRequestUEOriginatingDeregistration)
	req.NgksiAndDeregistrationType.SetAccessType(accessType3gpp)
	req.NgksiAndDeregistrationType.SetSwitchOff(bit(switchOff, 0))
	req.NgksiAndDeregistrationType.SetNasKeySetIdentifiler(ngKsiNone)
	req.MobileIdentity5GS = mobileIdentity(identity)
	m.GmmMessage.DeregistrationRequestUEOriginatingDeregistration = req
	return encodeGmm(m)
}

func BuildDeregistrationAccept() ([]byte, error) {
	m := newGmm(nas.MsgTypeDeregistrationAcceptUETerminatedDeregistration)
	acc := nasMessage.NewDeregistrationAcceptUETerminatedDeregistration(0)
	acc.ExtendedProtocolDiscriminator.SetExtendedProtocolDiscriminator(nasMessage.Epd5GSMobilityManagementMessage)
	acc.SpareHalfOctetAndSecurityHeaderType.SetSecurityHeaderType(nas.SecurityHeaderTypePlainNas)
	acc.SpareHalfOctetAndSecurityHeaderType.SetSpareHalfOctet(0)
	acc.DeregistrationAcceptMessageIdentity.SetMessageType(nas.MsgTypeDeregistrationAcceptUETerminatedDeregistration)
	m.GmmMessage.DeregistrationAcceptUETerminatedDeregistration = acc
	return encodeGmm(m)
}

// IsSecurityProtected reports whether a 5GMM PDU carries a security header.
func IsSecurityProtected(pdu []byte) bool {
	return len(pdu) >= 2 && pdu[0] == nasMessage.Epd5GSMobilityManagementMessage && pdu[1]&0x0f != nas.SecurityHeaderTypePlainNas
}

// DecodePlain decodes a plain 5GMM or 5GSM PDU.
func DecodePlain(pdu []byte) (*nas.Message, error) {
	m := nas.NewMessage()
	data := pdu
	if err := m.PlainNasDecode(&data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNasCodec, err)
	}
	return m, nil
}
