// Package fountain implements the Luby Transform fountain code
// used by geyser transfers.
//
// A message is split into fixed-size source blocks by [Partition].
// An [Encoder] then produces an unbounded sequence of [EncodedBlock] values,
// each the XOR of a pseudo-randomly chosen subset of the source blocks.
// The subset for a block is a pure function of the transfer seed
// and the block index, so it is never transmitted:
// the [Decoder] recomputes it from the same [Sampler].
//
// The decoder is a peeling decoder.
// Every ingested block is reduced by the blocks already resolved;
// a block left with a single unknown neighbor resolves that neighbor,
// which in turn may reduce other pending blocks,
// until no further progress is possible.
//
// Optionally, the source blocks are extended with Reed-Solomon parity blocks
// before LT encoding (see [EncoderConfig.ParityRatio]).
// The decoder can then finish as soon as any NumSource
// of the intermediate blocks are known.
//
// Encoders and decoders are not safe for concurrent use.
package fountain
