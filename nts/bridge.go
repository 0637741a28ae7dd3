package nts

// BridgeToGnb is what the device RRC task hands to station RRC through the relay.
type BridgeToGnb interface {
	Message
	bridgeToGnb()
}

// BridgeInitialNas opens a relayed subscriber session on the station side.
type BridgeInitialNas struct {
	Handle Handle
	Pdu    []byte
}

// BridgeUplinkNas carries a NAS PDU of an established relayed session.
// Ids is the identifier pair known to the relay when it forwarded the PDU.
type BridgeUplinkNas struct {
	Handle Handle
	Ids    UeNgapIDs
	Pdu    []byte
}

// BridgeLocalRelease tells station RRC the device side dropped the session.
type BridgeLocalRelease struct {
	Handle Handle
}

func (*BridgeInitialNas) Family() Family   { return FamilyBridgeToGnb }
func (*BridgeUplinkNas) Family() Family    { return FamilyBridgeToGnb }
func (*BridgeLocalRelease) Family() Family { return FamilyBridgeToGnb }
func (*BridgeInitialNas) bridgeToGnb()     {}
func (*BridgeUplinkNas) bridgeToGnb()      {}
func (*BridgeLocalRelease) bridgeToGnb()   {}

// BridgeToUe is what station RRC hands to the device RRC task through the relay.
type BridgeToUe interface {
	Message
	bridgeToUe()
}

type BridgeDownlinkNas struct {
	Handle Handle
	Pdu    []byte
}

// BridgeConnectionRelease reports a station-initiated context release.
type BridgeConnectionRelease struct {
	Handle Handle
}

// BridgeSuspend moves the device session to INACTIVE while keeping its correlation.
type BridgeSuspend struct {
	Handle Handle
}

func (*BridgeDownlinkNas) Family() Family       { return FamilyBridgeToUe }
func (*BridgeConnectionRelease) Family() Family { return FamilyBridgeToUe }
func (*BridgeSuspend) Family() Family           { return FamilyBridgeToUe }
func (*BridgeDownlinkNas) bridgeToUe()          {}
func (*BridgeConnectionRelease) bridgeToUe()    {}
func (*BridgeSuspend) bridgeToUe()              {}
