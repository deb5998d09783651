package transfer

import (
	"fmt"
	"math/rand/v2"
)

// Channel carries serialized packets from the encoder side to the decoder side.
//
// Transmit returns the packet as received, or false if it was lost.
// The returned slice may alias the input.
type Channel interface {
	Transmit(packet []byte) ([]byte, bool)
}

// ChannelFunc adapts a function to the [Channel] interface.
type ChannelFunc func([]byte) ([]byte, bool)

func (f ChannelFunc) Transmit(packet []byte) ([]byte, bool) {
	return f(packet)
}

// LossyChannel drops each packet independently with a fixed probability.
// It is deterministic for a given seed.
type LossyChannel struct {
	rng      *rand.Rand
	dropRate float64

	sent, dropped uint64
}

// NewLossyChannel returns a channel that drops packets with probability dropRate,
// which must be in [0, 1).
func NewLossyChannel(seed uint64, dropRate float64) (*LossyChannel, error) {
	if !(dropRate >= 0 && dropRate < 1) {
		return nil, fmt.Errorf("drop rate must be in [0, 1) (got %g)", dropRate)
	}
	return &LossyChannel{
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		dropRate: dropRate,
	}, nil
}

func (c *LossyChannel) Transmit(packet []byte) ([]byte, bool) {
	c.sent++
	if c.dropRate > 0 && c.rng.Float64() < c.dropRate {
		c.dropped++
		return nil, false
	}
	return packet, true
}

// Stats reports how many packets were offered to c and how many it dropped.
func (c *LossyChannel) Stats() (sent, dropped uint64) {
	return c.sent, c.dropped
}
