package geyser

import (
	"fmt"
	"log/slog"

	"github.com/gordian-engine/geyser/fountain"
)

// Counters tracks the packets a decoding [Session] has seen.
type Counters struct {
	// Packets passed to IngestNext.
	In uint64

	// Packets ingested into the decoder.
	Processed uint64

	// Packets discarded: unparseable, from a different transfer,
	// or arriving after the message was complete.
	Dropped uint64
}

// Session holds the encoding or decoding state of one transfer.
// Calling InitEncode or InitDecode discards any previous state.
//
// A Session is not safe for concurrent use.
type Session struct {
	log *slog.Logger

	enc *fountain.Encoder
	out []byte

	dec     *fountain.Decoder
	header  fountain.Header
	decoded []byte

	counters Counters
}

// NewSession returns a session with no transfer in progress.
func NewSession(log *slog.Logger) *Session {
	return &Session{log: log}
}

// InitEncode prepares s to produce packets for data,
// split into blocks of blockSize bytes.
// The seed is carried in every packet header.
//
// data is copied; the caller may reuse it.
func (s *Session) InitEncode(data []byte, blockSize int, seed uint32) error {
	return s.InitEncodeConfig(data, fountain.EncoderConfig{
		BlockSize: blockSize,
		Seed:      seed,
	})
}

// InitEncodeConfig is like [*Session.InitEncode]
// but accepts the full encoder configuration.
func (s *Session) InitEncodeConfig(data []byte, cfg fountain.EncoderConfig) error {
	enc, err := fountain.NewEncoder(data, cfg)
	if err != nil {
		s.enc = nil
		return fmt.Errorf("failed to initialize encoding session: %w", err)
	}

	s.enc = enc
	s.out = nil

	h := enc.Header()
	s.log.Info(
		"Initialized encoding session",
		"length", h.Length,
		"block_size", h.BlockSize,
		"source_blocks", h.NumSource(),
		"parity_blocks", h.NumParity,
	)
	return nil
}

// NextEncoded returns the next packet of the transfer.
// The slice remains valid until the next call to NextEncoded.
func (s *Session) NextEncoded() ([]byte, error) {
	if s.enc == nil {
		return nil, NotInitializedError{Op: "encoding"}
	}

	raw, err := fountain.NewPacket(s.enc.Header(), s.enc.Next()).Encode()
	if err != nil {
		return nil, err
	}
	s.out = raw
	return s.out, nil
}

// InitDecode resets s to receive a new transfer.
// The transfer parameters are taken from the first valid packet.
func (s *Session) InitDecode() {
	s.dec = nil
	s.header = fountain.Header{}
	s.decoded = nil
	s.counters = Counters{}
}

// IngestNext feeds one received packet to the decoder.
// It returns 0 while the transfer is in progress,
// and the length of the reconstructed message once it is complete.
//
// Packets that do not parse, or whose header differs from the first packet's,
// are dropped and counted rather than reported as errors.
// An [fountain.IntegrityViolationError] is returned
// when packets contradict each other,
// after which the session must be reinitialized.
func (s *Session) IngestNext(packet []byte) (int, error) {
	s.counters.In++

	if s.decoded != nil {
		s.counters.Dropped++
		return len(s.decoded), nil
	}
	if s.dec != nil {
		if err := s.dec.Err(); err != nil {
			return 0, err
		}
	}

	p, err := fountain.DecodePacket(packet)
	if err != nil {
		s.counters.Dropped++
		s.log.Debug("Dropping unparseable packet", "err", err)
		return 0, nil
	}

	if s.dec == nil {
		dec, err := fountain.NewDecoder(p.Header)
		if err != nil {
			// DecodePacket already validated the header.
			panic(fmt.Errorf("BUG: failed to create decoder from validated header: %w", err))
		}
		s.dec = dec
		s.header = p.Header
		s.log.Info(
			"Started decoding transfer",
			"length", p.Header.Length,
			"block_size", p.Header.BlockSize,
			"source_blocks", p.Header.NumSource(),
			"parity_blocks", p.Header.NumParity,
		)
	} else if p.Header != s.header {
		s.counters.Dropped++
		s.log.Debug("Dropping packet from a different transfer", "index", p.Index)
		return 0, nil
	}

	st, err := s.dec.Ingest(p.Block())
	if err != nil {
		s.log.Warn("Decoding failed", "index", p.Index, "err", err)
		return 0, err
	}
	s.counters.Processed++

	if st != fountain.StatusComplete {
		return 0, nil
	}

	data, err := s.dec.Data()
	if err != nil {
		s.log.Warn("Reconstructed message is invalid", "err", err)
		return 0, err
	}
	s.decoded = data

	s.log.Info(
		"Decoding complete",
		"in", s.counters.In,
		"processed", s.counters.Processed,
		"dropped", s.counters.Dropped,
	)
	return len(data), nil
}

// Decoded returns the reconstructed message,
// or nil if IngestNext has not yet returned a nonzero length.
func (s *Session) Decoded() []byte {
	return s.decoded
}

// Counters returns the packet counters since the last InitDecode.
func (s *Session) Counters() Counters {
	return s.counters
}
