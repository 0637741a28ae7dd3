package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

// json is a drop-in replacement for encoding/json with better performance
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Wire format: [1 byte type][4 bytes length][payload]
// On the link socket every datagram carries exactly one frame.

const (
	HeaderSize = 5
	MaxPayload = ReadBufferSize - HeaderSize
)

var ErrTrailingData = errors.New("trailing data after frame")

// EncodeMessage returns one frame as a freshly allocated datagram.
func EncodeMessage(msgType byte, payload interface{}) ([]byte, error) {
	buf := GetBuffer()
	defer PutBuffer(buf)

	if err := appendFrame(buf, msgType, payload); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.Bytes()), nil
}

func appendFrame(buf *bytes.Buffer, msgType byte, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	if len(data) > MaxPayload {
		return fmt.Errorf("payload too large: %d bytes", len(data))
	}

	header := [HeaderSize]byte{msgType}
	binary.BigEndian.PutUint32(header[1:], uint32(len(data)))
	buf.Write(header[:])
	buf.Write(data)
	return nil
}

// ReadMessage reads a message from the reader with optimized allocations.
// Uses a fixed header buffer to avoid allocations for header reading.
func ReadMessage(r io.Reader) (msgType byte, payload []byte, err error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("read header: %w", err)
	}

	msgType = header[0]
	length := binary.BigEndian.Uint32(header[1:])
	if length > MaxPayload {
		return 0, nil, fmt.Errorf("payload too large: %d bytes", length)
	}

	payload = make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read payload: %w", err)
	}
	return msgType, payload, nil
}

// ParseDatagram splits a datagram into its frame type and payload. The
// payload is copied, so the datagram buffer may be reused afterwards.
func ParseDatagram(datagram []byte) (msgType byte, payload []byte, err error) {
	r := bytes.NewReader(datagram)
	msgType, payload, err = ReadMessage(r)
	if err != nil {
		return 0, nil, err
	}
	if r.Len() != 0 {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, r.Len())
	}
	return msgType, payload, nil
}

// DecodeMessage decodes a payload into a message structure
func DecodeMessage(payload []byte, msg interface{}) error {
	if err := json.Unmarshal(payload, msg); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	return nil
}

// EncodeHeartbeat encodes a heartbeat datagram
func EncodeHeartbeat(sti uint64, timestamp int64) ([]byte, error) {
	return EncodeMessage(MsgTypeHeartbeat, HeartbeatMsg{Sti: sti, Timestamp: timestamp})
}

// EncodeHeartbeatAck encodes a heartbeat acknowledgment datagram
func EncodeHeartbeatAck(msg *HeartbeatAckMsg) ([]byte, error) {
	return EncodeMessage(MsgTypeHeartbeatAck, msg)
}

// EncodePduTransmission encodes an RRC or user-plane PDU datagram
func EncodePduTransmission(msg *PduTransmissionMsg) ([]byte, error) {
	return EncodeMessage(MsgTypePduTransmission, msg)
}

// EncodeError encodes an error datagram
func EncodeError(code uint32, message string) ([]byte, error) {
	return EncodeMessage(MsgTypeError, ErrorMsg{Code: code, Message: message})
}
