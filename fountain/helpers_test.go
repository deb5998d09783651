package fountain_test

import (
	"slices"
	"testing"

	"github.com/gordian-engine/geyser/fountain"
)

// findBlocks returns the first n block indices
// whose neighbor set under s is exactly want.
func findBlocks(t testing.TB, s fountain.Sampler, want []int, n int) []uint64 {
	t.Helper()

	var out []uint64
	for i := range uint64(100_000) {
		if slices.Equal(s.Neighbors(i), want) {
			out = append(out, i)
			if len(out) == n {
				return out
			}
		}
	}

	t.Fatalf("found only %d of %d blocks with neighbors %v", len(out), n, want)
	return nil
}

func findBlock(t testing.TB, s fountain.Sampler, want []int) uint64 {
	t.Helper()
	return findBlocks(t, s, want, 1)[0]
}

func mustEncoder(t testing.TB, data []byte, cfg fountain.EncoderConfig) *fountain.Encoder {
	t.Helper()

	enc, err := fountain.NewEncoder(data, cfg)
	if err != nil {
		t.Fatalf("failed to create encoder: %v", err)
	}
	return enc
}

func mustDecoder(t testing.TB, h fountain.Header) *fountain.Decoder {
	t.Helper()

	dec, err := fountain.NewDecoder(h)
	if err != nil {
		t.Fatalf("failed to create decoder: %v", err)
	}
	return dec
}
