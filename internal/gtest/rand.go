package gtest

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"testing"
)

// RandForTest returns a ChaCha8-backed generator keyed by the test name and salt.
// Tests that need several independent streams pass distinct salts.
// The sequence is stable across runs, so failures reproduce.
func RandForTest(t testing.TB, salt uint64) *rand.Rand {
	h := sha256.New()
	_, _ = h.Write([]byte(t.Name()))

	var sb [8]byte
	binary.BigEndian.PutUint64(sb[:], salt)
	_, _ = h.Write(sb[:])

	var seed [32]byte
	h.Sum(seed[:0])
	return rand.New(rand.NewChaCha8(seed))
}

// RandomDataForTest returns sz pseudorandom bytes for a message payload.
// Different sizes within one test get unrelated contents.
func RandomDataForTest(t testing.TB, sz int) []byte {
	rng := RandForTest(t, uint64(sz))

	out := make([]byte, sz)
	var w [8]byte
	for i := 0; i < sz; i += len(w) {
		binary.LittleEndian.PutUint64(w[:], rng.Uint64())
		copy(out[i:], w[:])
	}
	return out
}
