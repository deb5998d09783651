package fountain

import (
	"fmt"
	"math"
)

// HeaderVersion is the only [Header.Version] understood by this package.
const HeaderVersion = 1

// Limits on what a [Header] may describe.
// A header can arrive from an untrusted peer,
// so these bound the memory a decoder commits to up front.
const (
	MaxBlockSize    = 1 << 20
	MaxSourceBlocks = 1 << 20

	// Reed-Solomon over GF(2^8) supports at most 256 shards.
	maxPrecodeBlocks = 256
)

// Header is the metadata a decoder needs before it can use any block:
// the original message length, the block size,
// and the parameters that determine neighbor selection.
//
// An [Encoder] produces its header at construction,
// and every [Packet] carries a copy.
type Header struct {
	_ struct{} `cbor:",toarray"`

	Version uint8

	// Length of the original message in bytes, before padding.
	Length uint64

	BlockSize uint32

	// Shared seed for neighbor selection.
	Seed uint32

	// Number of Reed-Solomon parity blocks appended to the source blocks.
	// Zero disables the precode.
	NumParity uint32

	// CRC-32 (IEEE) of the original message.
	Checksum uint32

	// Robust soliton parameters.
	SolitonC, SolitonDelta float64
}

// NumSource is the number of source blocks in the message.
func (h Header) NumSource() int {
	return numBlocks(int(h.Length), int(h.BlockSize))
}

// NumIntermediate is the number of blocks that encoded blocks are drawn from:
// the source blocks followed by the parity blocks.
func (h Header) NumIntermediate() int {
	return h.NumSource() + int(h.NumParity)
}

// Validate reports an [InvalidConfigError]
// if h does not describe a transfer this package can decode.
func (h Header) Validate() error {
	if h.Version != HeaderVersion {
		return InvalidConfigError{
			Field:  "Version",
			Reason: fmt.Sprintf("unsupported version %d", h.Version),
		}
	}
	if h.BlockSize == 0 || h.BlockSize > MaxBlockSize {
		return InvalidConfigError{
			Field:  "BlockSize",
			Reason: fmt.Sprintf("must be in [1, %d] (got %d)", MaxBlockSize, h.BlockSize),
		}
	}
	if h.Length == 0 {
		return InvalidConfigError{Field: "Length", Reason: "must be positive"}
	}
	if h.Length > uint64(MaxSourceBlocks)*uint64(h.BlockSize) {
		return InvalidConfigError{
			Field:  "Length",
			Reason: fmt.Sprintf("%d bytes exceeds %d blocks of %d bytes", h.Length, MaxSourceBlocks, h.BlockSize),
		}
	}
	if h.NumParity > 0 && h.NumIntermediate() > maxPrecodeBlocks {
		return InvalidConfigError{
			Field: "NumParity",
			Reason: fmt.Sprintf(
				"%d source and %d parity blocks exceed the precode limit of %d",
				h.NumSource(), h.NumParity, maxPrecodeBlocks,
			),
		}
	}
	if !(h.SolitonC > 0) || math.IsInf(h.SolitonC, 0) {
		return InvalidConfigError{
			Field:  "SolitonC",
			Reason: fmt.Sprintf("must be positive and finite (got %g)", h.SolitonC),
		}
	}
	if !(h.SolitonDelta > 0 && h.SolitonDelta < 1) {
		return InvalidConfigError{
			Field:  "SolitonDelta",
			Reason: fmt.Sprintf("must be in (0, 1) (got %g)", h.SolitonDelta),
		}
	}
	return nil
}

// Sampler returns the neighbor sampler for the transfer h describes.
// The header must be valid.
func (h Header) Sampler() Sampler {
	return newSampler(h.Seed, h.NumIntermediate(), h.SolitonC, h.SolitonDelta)
}
