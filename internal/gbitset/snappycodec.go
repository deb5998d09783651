package gbitset

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/golang/snappy"
)

// SnappyEncoder encodes bitsets as their snappy-compressed raw encoding.
type SnappyEncoder struct {
	// The raw words of the last encoded bitset.
	// If encoded through the AdaptiveEncoder,
	// it also has a 1-byte prefix of the [rawEncoding] header.
	wordBuf []byte

	// The snappy-encoded version of wordBuf.
	// If encoded through the AdaptiveEncoder,
	// it has a 1-byte prefix of the [snappyEncoding] header.
	encBuf []byte
}

func (e *SnappyEncoder) encode(bs *bitset.BitSet, adaptive bool) {
	words := bs.Words()
	nWordBytes := 8 * len(words)
	nBytes := nWordBytes
	if adaptive {
		nBytes++
	}

	if cap(e.wordBuf) < nBytes {
		e.wordBuf = make([]byte, nBytes)
	} else {
		e.wordBuf = e.wordBuf[:nBytes]
	}

	maxEnc := snappy.MaxEncodedLen(nWordBytes)
	if adaptive {
		maxEnc++
	}
	if cap(e.encBuf) < maxEnc {
		e.encBuf = make([]byte, maxEnc)
	} else {
		e.encBuf = e.encBuf[:maxEnc]
	}

	wordBuf := e.wordBuf
	encBuf := e.encBuf
	if adaptive {
		wordBuf[0] = rawEncoding
		wordBuf = wordBuf[1:]
		encBuf[0] = snappyEncoding
		encBuf = encBuf[1:]
	}
	putWords(wordBuf, words)

	res := snappy.Encode(encBuf, wordBuf)
	n := len(res)
	if adaptive {
		n++
	}
	e.encBuf = e.encBuf[:n]
}

// Encode returns the snappy encoding of bs.
// The result is only valid until the next call to Encode.
func (e *SnappyEncoder) Encode(bs *bitset.BitSet) []byte {
	e.encode(bs, false)
	return e.encBuf
}

// SnappyDecoder decodes the output of [*SnappyEncoder].
type SnappyDecoder struct {
	wordBuf []byte
}

// Decode overwrites bs with the bits encoded in b.
// bs must already have the length the encoder used.
func (d *SnappyDecoder) Decode(b []byte, bs *bitset.BitSet) error {
	decSz, err := snappy.DecodedLen(b)
	if err != nil {
		return fmt.Errorf("failed to calculate snappy-decoded bitset length: %w", err)
	}
	if want := 8 * len(bs.Words()); decSz != want {
		return fmt.Errorf(
			"calculated decoded size of %d bytes but expected %d", decSz, want,
		)
	}

	wb, err := snappy.Decode(d.wordBuf, b)
	if err != nil {
		return fmt.Errorf("failed to decode snappy bitset: %w", err)
	}

	// wb could have been nil on error;
	// that's why we used the temporary variable.
	d.wordBuf = wb

	if err := readWords(d.wordBuf, bs); err != nil {
		return fmt.Errorf("failed to decode snappy bitset: %w", err)
	}
	return nil
}
