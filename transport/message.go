// Package transport defines the two datagram message classes (spec.md §6)
// as a single tagged struct, and the Sender/Receiver interfaces external
// code plugs a concrete network implementation into.
//
// Per design note §9, Message replaces the deep class-inheritance the
// original modeled ObjectStateMessage/ClientStateMessage with: one tagged
// sum type, switched on Class, rather than a type hierarchy.
package transport

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Class tags which variant a Message carries.
type Class uint8

const (
	// ClassObjectState is server->client: {id:16, time:64, payload-length,
	// payload}.
	ClassObjectState Class = iota
	// ClassClientState is client->server: {ackId:16, time:64,
	// controlBits:64}.
	ClassClientState
)

// ErrUnknownClass is returned by DecodeEnvelope for an unrecognized class
// byte.
var ErrUnknownClass = errors.New("transport: unknown message class")

// ErrTruncated is returned when a buffer is too short for its declared
// envelope.
var ErrTruncated = errors.New("transport: truncated envelope")

// ObjectStatePayload is the server->client envelope body (spec.md §6).
type ObjectStatePayload struct {
	ID      uint16
	Time    uint64
	Payload []byte // serialized wire.SentState
}

// ClientStatePayload is the client->server envelope body (spec.md §6).
type ClientStatePayload struct {
	AckID       uint16
	Time        uint64
	ControlBits uint64
}

// Message is the opaque datagram payload handed to the transport (spec.md
// §6): exactly one of ObjectState or ClientState is populated, selected by
// Class.
type Message struct {
	Class       Class
	ObjectState *ObjectStatePayload
	ClientState *ClientStatePayload
}

// EncodeEnvelope serializes m into its wire envelope. The class byte is
// not part of spec.md's bitstream (each datagram only ever carries one
// class per socket direction) but is included here so a single Sender
// implementation can multiplex both directions over one connection.
func EncodeEnvelope(m *Message) ([]byte, error) {
	switch m.Class {
	case ClassObjectState:
		p := m.ObjectState
		var lenBuf [binary.MaxVarintLen64]byte
		n := binary.PutUvarint(lenBuf[:], uint64(len(p.Payload)))
		out := make([]byte, 0, 1+2+8+n+len(p.Payload))
		out = append(out, byte(ClassObjectState))
		out = appendUint16(out, p.ID)
		out = appendUint64(out, p.Time)
		out = append(out, lenBuf[:n]...)
		out = append(out, p.Payload...)
		return out, nil
	case ClassClientState:
		p := m.ClientState
		out := make([]byte, 0, 1+2+8+8)
		out = append(out, byte(ClassClientState))
		out = appendUint16(out, p.AckID)
		out = appendUint64(out, p.Time)
		out = appendUint64(out, p.ControlBits)
		return out, nil
	default:
		return nil, ErrUnknownClass
	}
}

// DecodeEnvelope parses a datagram produced by EncodeEnvelope.
func DecodeEnvelope(buf []byte) (*Message, error) {
	if len(buf) < 1 {
		return nil, ErrTruncated
	}
	switch Class(buf[0]) {
	case ClassObjectState:
		if len(buf) < 1+2+8 {
			return nil, ErrTruncated
		}
		id := readUint16(buf[1:3])
		t := readUint64(buf[3:11])
		plen, n := binary.Uvarint(buf[11:])
		if n <= 0 {
			return nil, ErrTruncated
		}
		start := 11 + n
		if len(buf) < start+int(plen) {
			return nil, ErrTruncated
		}
		payload := make([]byte, plen)
		copy(payload, buf[start:start+int(plen)])
		return &Message{Class: ClassObjectState, ObjectState: &ObjectStatePayload{ID: id, Time: t, Payload: payload}}, nil
	case ClassClientState:
		if len(buf) < 1+2+8+8 {
			return nil, ErrTruncated
		}
		ack := readUint16(buf[1:3])
		t := readUint64(buf[3:11])
		ctrl := readUint64(buf[11:19])
		return &Message{Class: ClassClientState, ClientState: &ClientStatePayload{AckID: ack, Time: t, ControlBits: ctrl}}, nil
	default:
		return nil, ErrUnknownClass
	}
}

func appendUint16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func readUint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func readUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
