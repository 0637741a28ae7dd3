// Package nts defines every message exchanged between tasks of a node.
//
// Each message family is a closed sum type: an interface with an unexported
// marker method, implemented only by the variant structs of that family.
// Receivers switch on the family first and then on the variant, so reading a
// field that belongs to another variant cannot compile.
package nts

// Family selects the semantic domain (and usually the receiving mailbox) of a message.
type Family int

const (
	FamilyTimer Family = iota
	FamilyGnbRlsToRrc
	FamilyGnbRlsToGtp
	FamilyGnbGtpToRls
	FamilyGnbRlsLink
	FamilyGnbRrcToRls
	FamilyGnbNgapToRrc
	FamilyGnbRrcToNgap
	FamilyGnbNgapToGtp
	FamilyGnbGtpLink
	FamilyGnbSctp
	FamilyGnbStatus
	FamilyGnbCommand
	FamilyBridgeToGnb
	FamilyBridgeToUe
	FamilyUeRrcToNas
	FamilyUeNasToRrc
	FamilyUeRrcToRls
	FamilyUeRrcToRrc
	FamilyUeRlsToRrc
	FamilyUeRlsLink
	FamilyUeNasToNas
)

func (f Family) String() string {
	switch f {
	case FamilyTimer:
		return "timer"
	case FamilyGnbRlsToRrc:
		return "gnb-rls-to-rrc"
	case FamilyGnbRlsToGtp:
		return "gnb-rls-to-gtp"
	case FamilyGnbGtpToRls:
		return "gnb-gtp-to-rls"
	case FamilyGnbRlsLink:
		return "gnb-rls-link"
	case FamilyGnbRrcToRls:
		return "gnb-rrc-to-rls"
	case FamilyGnbNgapToRrc:
		return "gnb-ngap-to-rrc"
	case FamilyGnbRrcToNgap:
		return "gnb-rrc-to-ngap"
	case FamilyGnbNgapToGtp:
		return "gnb-ngap-to-gtp"
	case FamilyGnbGtpLink:
		return "gnb-gtp-link"
	case FamilyGnbSctp:
		return "gnb-sctp"
	case FamilyGnbStatus:
		return "gnb-status"
	case FamilyGnbCommand:
		return "gnb-command"
	case FamilyBridgeToGnb:
		return "bridge-to-gnb"
	case FamilyBridgeToUe:
		return "bridge-to-ue"
	case FamilyUeRrcToNas:
		return "ue-rrc-to-nas"
	case FamilyUeNasToRrc:
		return "ue-nas-to-rrc"
	case FamilyUeRrcToRls:
		return "ue-rrc-to-rls"
	case FamilyUeRrcToRrc:
		return "ue-rrc-to-rrc"
	case FamilyUeRlsToRrc:
		return "ue-rls-to-rrc"
	case FamilyUeRlsLink:
		return "ue-rls-link"
	case FamilyUeNasToNas:
		return "ue-nas-to-nas"
	default:
		return "unknown"
	}
}

// Message is anything that can be put into a task mailbox.
// A message must not be touched by its sender after Send.
type Message interface {
	Family() Family
}

// Sender is the narrow handle a task holds for each peer it talks to.
type Sender interface {
	Send(msg Message)
}

// TimerExpired is delivered into a task's own mailbox when a timer it armed fires.
type TimerExpired struct {
	ID int
}

func (*TimerExpired) Family() Family { return FamilyTimer }
