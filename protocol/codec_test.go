package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/Mmx233/RGNB/nts"
	"github.com/Mmx233/RGNB/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDatagram(t *testing.T) {
	pdu := &PduTransmissionMsg{
		Sti:     7,
		PduType: PduTypeRrc,
		PduID:   3,
		Channel: nts.ChannelUlDcch,
		Payload: []byte{0x7e, 0x00, 0x41, 0xff},
	}
	datagram, err := EncodePduTransmission(pdu)
	require.NoError(t, err)
	assert.Equal(t, byte(MsgTypePduTransmission), datagram[0])
	assert.Equal(t, uint32(len(datagram)-HeaderSize), binary.BigEndian.Uint32(datagram[1:HeaderSize]))

	msgType, payload, err := ParseDatagram(datagram)
	require.NoError(t, err)
	assert.Equal(t, byte(MsgTypePduTransmission), msgType)

	var got PduTransmissionMsg
	require.NoError(t, DecodeMessage(payload, &got))
	assert.Equal(t, *pdu, got)
}

func TestParseDatagram_Malformed(t *testing.T) {
	valid, err := EncodeHeartbeat(1, 2)
	require.NoError(t, err)

	tests := []struct {
		name     string
		datagram []byte
	}{
		{"empty", nil},
		{"short header", []byte{MsgTypeHeartbeat, 0, 0}},
		{"truncated payload", valid[:len(valid)-1]},
		{"oversized length", []byte{MsgTypeHeartbeat, 0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseDatagram(tt.datagram); err == nil {
				t.Errorf("expected error for %s datagram", tt.name)
			}
		})
	}

	_, _, err = ParseDatagram(append(bytes.Clone(valid), 0x00))
	assert.True(t, errors.Is(err, ErrTrailingData), "expected ErrTrailingData, got %v", err)
}

func TestEncodeHeartbeatAck(t *testing.T) {
	ack := &HeartbeatAckMsg{
		Sti:    99,
		CellID: 1,
		Dbm:    -60,
		Cell: shared.CellDescription{
			Nci:     0x000000010,
			Plmn:    shared.Plmn{Mcc: 208, Mnc: 93},
			Tac:     1,
			GnbName: "rgnb",
		},
		Timestamp: 5,
	}
	datagram, err := EncodeHeartbeatAck(ack)
	require.NoError(t, err)

	msgType, payload, err := ParseDatagram(datagram)
	require.NoError(t, err)
	require.Equal(t, byte(MsgTypeHeartbeatAck), msgType)

	var got HeartbeatAckMsg
	require.NoError(t, DecodeMessage(payload, &got))
	assert.Equal(t, *ack, got)
}

func TestEncodeMessage_DoesNotAliasPool(t *testing.T) {
	a, err := EncodeHeartbeat(1, 1)
	require.NoError(t, err)
	snapshot := bytes.Clone(a)

	for i := 0; i < 16; i++ {
		_, err := EncodeError(uint32(i), "unknown sti")
		require.NoError(t, err)
	}
	assert.Equal(t, snapshot, a, "encoded datagram must not be reused by the pool")
}

func TestPduType_String(t *testing.T) {
	assert.Equal(t, "rrc", PduTypeRrc.String())
	assert.Equal(t, "data", PduTypeData.String())
	assert.Equal(t, "unknown", PduType(0).String())
}

func TestReadBufferPool(t *testing.T) {
	buf := GetReadBuffer()
	require.Len(t, *buf, ReadBufferSize)
	PutReadBuffer(buf)

	short := make([]byte, 10)
	PutReadBuffer(&short)
	PutReadBuffer(nil)
	assert.Len(t, *GetReadBuffer(), ReadBufferSize)
}

func BenchmarkEncodePduTransmission(b *testing.B) {
	msg := &PduTransmissionMsg{Sti: 1, PduType: PduTypeData, Psi: 1, Payload: make([]byte, 1400)}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := EncodePduTransmission(msg); err != nil {
			b.Fatalf("EncodePduTransmission failed: %v", err)
		}
	}
}
