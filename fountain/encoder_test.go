package fountain_test

import (
	"crypto/subtle"
	"hash/crc32"
	"math"
	"slices"
	"testing"

	"github.com/gordian-engine/geyser/fountain"
	"github.com/gordian-engine/geyser/internal/gtest"
	"github.com/stretchr/testify/require"
)

func TestNewEncoder_header(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 2500)
	enc := mustEncoder(t, data, fountain.EncoderConfig{BlockSize: 1000, Seed: 10})

	h := enc.Header()
	require.Equal(t, uint8(fountain.HeaderVersion), h.Version)
	require.Equal(t, uint64(2500), h.Length)
	require.Equal(t, uint32(1000), h.BlockSize)
	require.Equal(t, uint32(10), h.Seed)
	require.Zero(t, h.NumParity)
	require.Equal(t, crc32.ChecksumIEEE(data), h.Checksum)
	require.Equal(t, fountain.DefaultSolitonC, h.SolitonC)
	require.Equal(t, fountain.DefaultSolitonDelta, h.SolitonDelta)

	require.Equal(t, 3, h.NumSource())
	require.Equal(t, 3, h.NumIntermediate())
	require.NoError(t, h.Validate())
}

func TestNewEncoder_parityCount(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 1000)

	for _, tc := range []struct {
		ratio float32
		want  uint32
	}{
		{ratio: 0, want: 0},
		{ratio: 0.01, want: 1},
		{ratio: 0.25, want: 2},
		{ratio: 0.5, want: 5},
		{ratio: 1, want: 10},
	} {
		enc := mustEncoder(t, data, fountain.EncoderConfig{BlockSize: 100, ParityRatio: tc.ratio})
		require.Equal(t, tc.want, enc.Header().NumParity, "ratio %g", tc.ratio)
		require.Equal(t, 10+int(tc.want), enc.Header().Sampler().BlockCount())
	}
}

func TestNewEncoder_invalidConfig(t *testing.T) {
	t.Parallel()

	data := []byte("hello")

	for name, tc := range map[string]struct {
		data []byte
		cfg  fountain.EncoderConfig
	}{
		"empty data":         {data: nil, cfg: fountain.EncoderConfig{BlockSize: 16}},
		"zero block size":    {data: data, cfg: fountain.EncoderConfig{}},
		"negative block":     {data: data, cfg: fountain.EncoderConfig{BlockSize: -1}},
		"huge block":         {data: data, cfg: fountain.EncoderConfig{BlockSize: fountain.MaxBlockSize + 1}},
		"negative parity":    {data: data, cfg: fountain.EncoderConfig{BlockSize: 1, ParityRatio: -0.5}},
		"NaN parity":         {data: data, cfg: fountain.EncoderConfig{BlockSize: 1, ParityRatio: float32(math.NaN())}},
		"too many parity":    {data: make([]byte, 200), cfg: fountain.EncoderConfig{BlockSize: 1, ParityRatio: 0.5}},
		"delta out of range": {data: data, cfg: fountain.EncoderConfig{BlockSize: 1, SolitonDelta: 1.5}},
		"negative c":         {data: data, cfg: fountain.EncoderConfig{BlockSize: 1, SolitonC: -1}},
	} {
		_, err := fountain.NewEncoder(tc.data, tc.cfg)
		require.ErrorAs(t, err, new(fountain.InvalidConfigError), name)
	}
}

func TestEncoder_reproducible(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 2500)
	cfg := fountain.EncoderConfig{BlockSize: 1000, Seed: 10}

	a := mustEncoder(t, data, cfg)
	b := mustEncoder(t, data, cfg)

	for i := range uint64(3) {
		ab := a.Next()
		bb := b.Next()
		require.Equal(t, i, ab.Index)
		require.Equal(t, ab, bb)
	}

	// A different seed changes at least one of the first few neighbor sets.
	c := mustEncoder(t, data, fountain.EncoderConfig{BlockSize: 1000, Seed: 11})
	differs := false
	for i := range uint64(20) {
		if !slices.Equal(a.Block(i).Neighbors, c.Block(i).Neighbors) {
			differs = true
			break
		}
	}
	require.True(t, differs)
}

func TestEncoder_fixedOutput(t *testing.T) {
	t.Parallel()

	data := make([]byte, 2500)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}

	enc := mustEncoder(t, data, fountain.EncoderConfig{BlockSize: 1000, Seed: 10})
	h := enc.Header()
	require.Equal(t, uint64(2500), h.Length)
	require.Equal(t, uint32(0x4c357ded), h.Checksum)

	for _, want := range []struct {
		neighbors []int
		crc       uint32
		prefix    []byte
	}{
		{neighbors: []int{1, 2}, crc: 0x910ab640, prefix: []byte{0xe8, 0xd8, 0xa8, 0xb8}},
		{neighbors: []int{0, 2}, crc: 0xef2a7f95, prefix: []byte{0xb0, 0xb0, 0xd0, 0xd0}},
		{neighbors: []int{0, 2}, crc: 0xef2a7f95, prefix: []byte{0xb0, 0xb0, 0xd0, 0xd0}},
		{neighbors: []int{1}, crc: 0x699ce393, prefix: []byte{0x5b, 0x62, 0x69, 0x70}},
		{neighbors: []int{0, 1, 2}, crc: 0x80bd8b86, prefix: []byte{0xeb, 0xd2, 0xb9, 0xa0}},
	} {
		b := enc.Next()
		require.Equal(t, want.neighbors, b.Neighbors, "block %d", b.Index)
		require.Equal(t, want.neighbors, h.Sampler().Neighbors(b.Index), "block %d", b.Index)
		require.Equal(t, want.crc, crc32.ChecksumIEEE(b.Payload), "block %d", b.Index)
		require.Equal(t, want.prefix, b.Payload[:4], "block %d", b.Index)
	}
}

func TestEncoder_blockMatchesNext(t *testing.T) {
	t.Parallel()

	enc := mustEncoder(t, gtest.RandomDataForTest(t, 10_000), fountain.EncoderConfig{BlockSize: 512, Seed: 1})

	// Random access does not disturb the sequence.
	far := enc.Block(1_000_000)
	require.Equal(t, uint64(1_000_000), far.Index)
	require.Zero(t, enc.NextIndex())

	for i := range uint64(50) {
		require.Equal(t, i, enc.NextIndex())
		require.Equal(t, enc.Block(i), enc.Next())
	}
	require.Equal(t, uint64(50), enc.NextIndex())
}

func TestEncoder_payloadIsXORofNeighbors(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 5000)
	enc := mustEncoder(t, data, fountain.EncoderConfig{BlockSize: 300, Seed: 42})

	src, err := fountain.Partition(data, 300)
	require.NoError(t, err)

	for range 100 {
		b := enc.Next()
		require.NotEmpty(t, b.Neighbors)
		require.Equal(t, b.Degree(), len(b.Neighbors))
		require.Len(t, b.Payload, 300)

		want := make([]byte, 300)
		for _, n := range b.Neighbors {
			subtle.XORBytes(want, want, src[n].Data)
		}
		require.Equal(t, want, b.Payload, "block %d", b.Index)
	}
}

func TestEncoder_neighborsMatchSampler(t *testing.T) {
	t.Parallel()

	enc := mustEncoder(t, gtest.RandomDataForTest(t, 2000), fountain.EncoderConfig{
		BlockSize: 100, Seed: 7, ParityRatio: 0.2,
	})
	s := enc.Header().Sampler()

	for range 100 {
		b := enc.Next()
		ns := s.Neighbors(b.Index)
		require.Equal(t, ns, b.Neighbors)
		for _, n := range ns {
			require.Less(t, n, s.BlockCount())
		}
	}
}

func TestEncoder_doesNotRetainData(t *testing.T) {
	t.Parallel()

	data := gtest.RandomDataForTest(t, 64)
	orig := append([]byte(nil), data...)
	enc := mustEncoder(t, data, fountain.EncoderConfig{BlockSize: 64})

	clear(data)

	// A single source block: every encoded block is that block.
	require.Equal(t, orig, enc.Next().Payload)
}
