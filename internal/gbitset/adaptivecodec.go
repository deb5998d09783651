package gbitset

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
)

const (
	rawEncoding    byte = 0
	snappyEncoding byte = 1
)

// AdaptiveEncoder chooses between the raw and snappy encodings
// per bitset, and prefixes a one-byte header naming the choice.
type AdaptiveEncoder struct {
	se SnappyEncoder
}

// Encode returns the adaptive encoding of bs.
// The result is only valid until the next call to Encode.
func (e *AdaptiveEncoder) Encode(bs *bitset.BitSet) []byte {
	e.se.encode(bs, true)

	// Both buffers carry their own header byte,
	// so their lengths compare directly.
	if len(e.se.wordBuf) <= len(e.se.encBuf) {
		return e.se.wordBuf
	}
	return e.se.encBuf
}

// AdaptiveDecoder decodes the output of [*AdaptiveEncoder].
type AdaptiveDecoder struct {
	sd SnappyDecoder
	rd RawDecoder
}

// Decode overwrites bs with the bits encoded in b.
// bs must already have the length the encoder used.
func (d *AdaptiveDecoder) Decode(b []byte, bs *bitset.BitSet) error {
	if len(b) == 0 {
		return fmt.Errorf("missing type header for adaptive bitset")
	}

	switch b[0] {
	case rawEncoding:
		return d.rd.Decode(b[1:], bs)
	case snappyEncoding:
		return d.sd.Decode(b[1:], bs)
	default:
		return fmt.Errorf("unknown adaptive header byte 0x%x", b[0])
	}
}
