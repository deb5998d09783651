package fountain

import "fmt"

// Sampler derives the neighbor set of every encoded block in a transfer.
//
// The neighbor set of a block is a pure function of the transfer seed
// and the block index, so an encoder and a decoder
// built from the same [Header] always agree,
// regardless of which blocks either side has seen.
type Sampler struct {
	seed uint32

	// Number of intermediate blocks to sample from.
	k int

	cdf []float64
}

func newSampler(seed uint32, k int, c, delta float64) Sampler {
	if k <= 0 {
		panic(fmt.Errorf("BUG: sampler block count must be positive (got %d)", k))
	}
	return Sampler{
		seed: seed,
		k:    k,
		cdf:  robustSolitonCDF(k, c, delta),
	}
}

// Neighbors returns the sorted, distinct intermediate block indices
// combined into the encoded block with the given index.
func (s Sampler) Neighbors(index uint64) []int {
	rng := newStream(s.seed, index)
	d := pickDegree(rng, s.cdf)
	return sampleUniform(rng, d, s.k)
}

// BlockCount reports the number of intermediate blocks
// that neighbor indices are drawn from.
func (s Sampler) BlockCount() int {
	return s.k
}
