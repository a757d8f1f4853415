// SPDX-License-Identifier: GPL-3.0-or-later

// Package ctrlpkg implements the fixed-size control-plane frame used by
// the slaver to exchange heartbeats and the activation handshake with
// the master, before a connection is promoted into a raw data tunnel.
//
// A frame is exactly [PackageSize] bytes:
//
//	offset 0       1 byte  pkg_type
//	offset 1       23 bytes payload (zero-padded)
//	offset 24      8 bytes  integrity tag: xxhash64(secret ‖ pkg_type ‖ payload)
//
// The tag is a cheap shared-secret filter against accidental cross-traffic,
// not a cryptographic authenticator: it makes no claim of resistance to a
// motivated attacker. Compatibility with a given master peer requires an
// identical PackageSize, Type layout, and hash algorithm on both sides.
package ctrlpkg

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// Type enumerates the control-packet kinds understood by this package.
type Type byte

const (
	// HeartBeat keeps a spare connection alive while it waits for activation.
	HeartBeat Type = 0x01
	// HandshakeMasterToSlaver is sent by the master to activate a spare connection.
	HandshakeMasterToSlaver Type = 0x02
	// HandshakeSlaverToMaster acknowledges activation; raw bytes follow.
	HandshakeSlaverToMaster Type = 0x03
)

func (t Type) String() string {
	switch t {
	case HeartBeat:
		return "HEART_BEAT"
	case HandshakeMasterToSlaver:
		return "HS_M2S"
	case HandshakeSlaverToMaster:
		return "HS_S2M"
	default:
		return "RESERVED"
	}
}

const (
	// PackageSize is the fixed length, in bytes, of every control frame.
	PackageSize = 32

	tagSize     = 8
	payloadSize = PackageSize - 1 - tagSize
)

// Packet is a decoded, integrity-verified control frame.
type Packet struct {
	Type    Type
	Payload [payloadSize]byte
}

// Codec encodes and decodes [Packet] values using a shared secret.
//
// The zero value is not usable; construct one with [New]. Codec is safe
// for concurrent use by multiple goroutines because [Rekey] is expected
// to be called only once, before the pool controller starts (per the
// top-level configuration-state invariant).
type Codec struct {
	secret []byte
}

// New returns a [*Codec] keyed with secret.
func New(secret string) *Codec {
	c := &Codec{}
	c.Rekey(secret)
	return c
}

// Rekey replaces the secret used by subsequent [Codec.Encode] and
// [Codec.Decode] calls. Must be called before the pool controller starts;
// it is not safe to call concurrently with Encode/Decode.
func (c *Codec) Rekey(secret string) {
	c.secret = []byte(secret)
}

// Encode produces a padded, tagged [PackageSize]-byte frame for typ and
// payload. payload longer than the available space is truncated; the
// remainder is zero-filled.
func (c *Codec) Encode(typ Type, payload []byte) [PackageSize]byte {
	var frame [PackageSize]byte
	frame[0] = byte(typ)
	n := copy(frame[1:1+payloadSize], payload)
	_ = n
	tag := c.tag(typ, frame[1:1+payloadSize])
	binary.BigEndian.PutUint64(frame[1+payloadSize:], tag)
	return frame
}

// Decode verifies and parses a [PackageSize]-byte frame. ok is false iff
// the length is wrong or the integrity tag does not match a recomputation
// over the received bytes under the current secret; in that case the
// returned [Packet] is the zero value and must not be interpreted.
func (c *Codec) Decode(raw []byte) (pkt Packet, ok bool) {
	if len(raw) != PackageSize {
		return Packet{}, false
	}
	typ := Type(raw[0])
	body := raw[1 : 1+payloadSize]
	wantTag := binary.BigEndian.Uint64(raw[1+payloadSize:])
	gotTag := c.tag(typ, body)
	if wantTag != gotTag {
		return Packet{}, false
	}
	pkt.Type = typ
	copy(pkt.Payload[:], body)
	return pkt, true
}

// tag computes xxhash64(secret ‖ pkg_type ‖ payload).
func (c *Codec) tag(typ Type, payload []byte) uint64 {
	h := xxhash.New()
	h.Write(c.secret)
	h.Write([]byte{byte(typ)})
	h.Write(payload)
	return h.Sum64()
}

// HeartBeat returns a ready-to-send HEART_BEAT frame.
func (c *Codec) HeartBeat() [PackageSize]byte {
	return c.Encode(HeartBeat, nil)
}

// HandshakeMasterToSlaver returns a ready-to-send HS_M2S frame.
func (c *Codec) HandshakeMasterToSlaver() [PackageSize]byte {
	return c.Encode(HandshakeMasterToSlaver, nil)
}

// HandshakeSlaverToMaster returns a ready-to-send HS_S2M frame.
func (c *Codec) HandshakeSlaverToMaster() [PackageSize]byte {
	return c.Encode(HandshakeSlaverToMaster, nil)
}
