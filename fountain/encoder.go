package fountain

import (
	"crypto/subtle"
	"fmt"
	"hash/crc32"
	"math"
)

// EncoderConfig is the configuration for [NewEncoder].
type EncoderConfig struct {
	// Size in bytes of every source and encoded block.
	BlockSize int

	// Seed shared with the receiver, through the [Header].
	Seed uint32

	// ParityRatio is the desired ratio of Reed-Solomon parity blocks
	// to source blocks.
	// Zero disables the precode.
	// A positive ratio always produces at least one parity block,
	// and the parity count is otherwise rounded down.
	ParityRatio float32

	// Robust soliton distribution parameters.
	// Zero values select [DefaultSolitonC] and [DefaultSolitonDelta].
	SolitonC, SolitonDelta float64
}

// EncodedBlock is one output symbol of the fountain code.
type EncodedBlock struct {
	// Monotonic block counter which, with the transfer seed,
	// determines the neighbor set.
	Index uint64

	// Sorted intermediate block indices XORed into Payload.
	// Decoders ignore this field and recompute the set.
	Neighbors []int

	// XOR of the neighbor blocks; always one block long.
	Payload []byte
}

// Degree is the number of blocks combined into b.
func (b EncodedBlock) Degree() int {
	return len(b.Neighbors)
}

// Encoder produces an unbounded sequence of encoded blocks for one message.
type Encoder struct {
	header  Header
	sampler Sampler

	// Source blocks followed by parity blocks.
	blocks [][]byte

	next uint64
}

// NewEncoder partitions data and prepares an encoder for it.
//
// The encoder does not retain data.
func NewEncoder(data []byte, cfg EncoderConfig) (*Encoder, error) {
	if len(data) == 0 {
		return nil, InvalidConfigError{Field: "data", Reason: "message must not be empty"}
	}
	if cfg.BlockSize <= 0 || cfg.BlockSize > MaxBlockSize {
		return nil, InvalidConfigError{
			Field:  "BlockSize",
			Reason: fmt.Sprintf("must be in [1, %d] (got %d)", MaxBlockSize, cfg.BlockSize),
		}
	}
	if cfg.ParityRatio < 0 || math.IsNaN(float64(cfg.ParityRatio)) {
		return nil, InvalidConfigError{
			Field:  "ParityRatio",
			Reason: fmt.Sprintf("must be non-negative (got %g)", cfg.ParityRatio),
		}
	}

	nSource := numBlocks(len(data), cfg.BlockSize)
	nParity := 0
	if cfg.ParityRatio > 0 {
		nParity = max(1, int(cfg.ParityRatio*float32(nSource)))
	}

	h := Header{
		Version:      HeaderVersion,
		Length:       uint64(len(data)),
		BlockSize:    uint32(cfg.BlockSize),
		Seed:         cfg.Seed,
		NumParity:    uint32(nParity),
		Checksum:     crc32.ChecksumIEEE(data),
		SolitonC:     cfg.SolitonC,
		SolitonDelta: cfg.SolitonDelta,
	}
	if h.SolitonC == 0 {
		h.SolitonC = DefaultSolitonC
	}
	if h.SolitonDelta == 0 {
		h.SolitonDelta = DefaultSolitonDelta
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}

	src, err := Partition(data, cfg.BlockSize)
	if err != nil {
		return nil, err
	}

	blocks := make([][]byte, len(src), h.NumIntermediate())
	for i, b := range src {
		blocks[i] = b.Data
	}
	if nParity > 0 {
		parity, err := encodeParity(blocks, nParity)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, parity...)
	}

	return &Encoder{
		header:  h,
		sampler: h.Sampler(),
		blocks:  blocks,
	}, nil
}

// Header returns the transfer header for e's message.
func (e *Encoder) Header() Header {
	return e.header
}

// NextIndex is the index of the block the next call to [*Encoder.Next] returns.
func (e *Encoder) NextIndex() uint64 {
	return e.next
}

// Next returns the block at the current index and advances the index.
func (e *Encoder) Next() EncodedBlock {
	b := e.Block(e.next)
	e.next++
	return b
}

// Block returns the encoded block with the given index
// without affecting the sequence returned by Next.
func (e *Encoder) Block(index uint64) EncodedBlock {
	neighbors := e.sampler.Neighbors(index)
	payload := make([]byte, e.header.BlockSize)
	for _, n := range neighbors {
		subtle.XORBytes(payload, payload, e.blocks[n])
	}
	return EncodedBlock{
		Index:     index,
		Neighbors: neighbors,
		Payload:   payload,
	}
}
