package fountain

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

func newPrecoder(nSource, nParity, blockSize int) (reedsolomon.Encoder, error) {
	enc, err := reedsolomon.New(
		nSource, nParity,
		reedsolomon.WithAutoGoroutines(blockSize),
	)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to create reed-solomon precoder for %d source and %d parity blocks: %w",
			nSource, nParity, err,
		)
	}
	return enc, nil
}

// encodeParity returns nParity Reed-Solomon parity blocks for source.
// All source blocks must have the same length.
func encodeParity(source [][]byte, nParity int) ([][]byte, error) {
	blockSize := len(source[0])
	enc, err := newPrecoder(len(source), nParity, blockSize)
	if err != nil {
		return nil, err
	}

	shards := make([][]byte, len(source)+nParity)
	copy(shards, source)
	for i := len(source); i < len(shards); i++ {
		shards[i] = make([]byte, blockSize)
	}

	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("failed to encode parity blocks: %w", err)
	}
	return shards[len(source):], nil
}
