package fountain

import (
	"crypto/sha256"
	"encoding/binary"
	"math/bits"
)

// stream is the pseudorandom sequence behind one block's neighbor set.
//
// Output word j is taken from SHA-256(seed_be32 || index_be64 || ctr_be64),
// where each digest yields four big endian uint64 words
// and ctr counts digests from zero.
// Every derived value is defined here rather than by a library generator,
// so the neighbor sets are part of the wire format
// and stay fixed across Go releases and implementations.
type stream struct {
	in [20]byte

	buf [sha256.Size]byte
	off int
}

func newStream(seed uint32, index uint64) *stream {
	s := &stream{off: sha256.Size}
	binary.BigEndian.PutUint32(s.in[:4], seed)
	binary.BigEndian.PutUint64(s.in[4:12], index)
	return s
}

// Uint64 returns the next word of s.
func (s *stream) Uint64() uint64 {
	if s.off == sha256.Size {
		s.buf = sha256.Sum256(s.in[:])
		s.off = 0

		ctr := binary.BigEndian.Uint64(s.in[12:])
		binary.BigEndian.PutUint64(s.in[12:], ctr+1)
	}

	v := binary.BigEndian.Uint64(s.buf[s.off:])
	s.off += 8
	return v
}

// Float64 returns a value in [0, 1) built from the top 53 bits of one word.
func (s *stream) Float64() float64 {
	return float64(s.Uint64()>>11) / (1 << 53)
}

// IntN returns a uniform value in [0, n), for n > 0,
// by Lemire's multiply-and-reject method.
func (s *stream) IntN(n int) int {
	un := uint64(n)
	hi, lo := bits.Mul64(s.Uint64(), un)
	if lo < un {
		thresh := -un % un
		for lo < thresh {
			hi, lo = bits.Mul64(s.Uint64(), un)
		}
	}
	return int(hi)
}
