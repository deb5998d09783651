package gbitset

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/bits-and-blooms/bitset"
)

// RawEncoder encodes bitsets as their little endian words.
// The returned slices are reused across calls.
type RawEncoder struct {
	buf []byte
}

func (e *RawEncoder) encode(bs *bitset.BitSet, adaptive bool) {
	words := bs.Words()
	nBytes := 8 * len(words)
	if adaptive {
		nBytes++
	}

	if cap(e.buf) < nBytes {
		e.buf = make([]byte, nBytes)
	} else {
		e.buf = e.buf[:nBytes]
	}

	buf := e.buf
	if adaptive {
		buf[0] = rawEncoding
		buf = buf[1:]
	}
	putWords(buf, words)
}

// Encode returns the raw encoding of bs.
// The result is only valid until the next call to Encode.
func (e *RawEncoder) Encode(bs *bitset.BitSet) []byte {
	e.encode(bs, false)
	return e.buf
}

// RawDecoder decodes the output of [*RawEncoder].
type RawDecoder struct{}

// Decode overwrites bs with the bits encoded in b.
// bs must already have the length the encoder used.
func (RawDecoder) Decode(b []byte, bs *bitset.BitSet) error {
	if err := readWords(b, bs); err != nil {
		return fmt.Errorf("failed to decode raw bitset: %w", err)
	}
	return nil
}

func putWords(dst []byte, words []uint64) {
	for i, w := range words {
		// Little endian is more likely to match the host,
		// unlike the big endian used for the headers.
		binary.LittleEndian.PutUint64(dst[i*8:], w)
	}
}

// readWords copies the little endian words in b into bs,
// rejecting any set bit past bs.Len().
func readWords(b []byte, bs *bitset.BitSet) error {
	words := bs.Words()
	if len(b) != 8*len(words) {
		return fmt.Errorf("got %d bytes, expected %d for a %d-bit set", len(b), 8*len(words), bs.Len())
	}
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(b[i*8:])
	}

	if tail := bs.Len() % 64; tail != 0 && len(words) > 0 {
		if extra := words[len(words)-1] >> tail; extra != 0 {
			// Don't leave garbage in the caller's set.
			clear(words)
			return fmt.Errorf(
				"%d bits set beyond length %d", bits.OnesCount64(extra), bs.Len(),
			)
		}
	}
	return nil
}
