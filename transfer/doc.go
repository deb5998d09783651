// Package transfer drives a fountain encoder and decoder pair
// through a packet channel until the decoder reconstructs the message.
//
// Each tick of a [Loop] takes the next encoded block,
// serializes it into a packet, passes the packet through the configured
// [Channel] (which may drop it), parses whatever arrives,
// and ingests it into the decoder.
// [Run] repeats ticks on a fixed cadence until completion,
// cancellation, or a configured limit.
package transfer
