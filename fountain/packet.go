package fountain

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Packet is the wire form of an encoded block.
//
// Only the block index and payload are sent for the block itself;
// the neighbor set is always recomputed by the receiver.
// The transfer header rides along so that a receiver
// can begin decoding from whichever packet arrives first.
type Packet struct {
	_ struct{} `cbor:",toarray"`

	Header  Header
	Index   uint64
	Payload []byte
}

var (
	packetEncMode = mustEncMode()
	packetDecMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("BUG: failed to build cbor encoding mode: %w", err))
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Errorf("BUG: failed to build cbor decoding mode: %w", err))
	}
	return dm
}

// NewPacket returns the packet carrying b for the transfer described by h.
func NewPacket(h Header, b EncodedBlock) Packet {
	return Packet{
		Header:  h,
		Index:   b.Index,
		Payload: b.Payload,
	}
}

// Encode returns the CBOR encoding of p.
func (p Packet) Encode() ([]byte, error) {
	b, err := packetEncMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode packet %d: %w", p.Index, err)
	}
	return b, nil
}

// Block returns the encoded block carried by p.
// The neighbor set is left empty;
// decoders derive it from the header's [Sampler].
func (p Packet) Block() EncodedBlock {
	return EncodedBlock{
		Index:   p.Index,
		Payload: p.Payload,
	}
}

// DecodePacket parses a packet produced by [Packet.Encode].
// The header must be valid and the payload must be exactly one block long.
func DecodePacket(b []byte) (Packet, error) {
	var p Packet
	if err := packetDecMode.Unmarshal(b, &p); err != nil {
		return Packet{}, fmt.Errorf("failed to decode packet: %w", err)
	}
	if err := p.Header.Validate(); err != nil {
		return Packet{}, fmt.Errorf("packet %d has invalid header: %w", p.Index, err)
	}
	if len(p.Payload) != int(p.Header.BlockSize) {
		return Packet{}, fmt.Errorf(
			"packet %d payload is %d bytes, expected block size %d",
			p.Index, len(p.Payload), p.Header.BlockSize,
		)
	}
	return p, nil
}
