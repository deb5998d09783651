package gcontrol

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/fxamacker/cbor/v2"
	"github.com/gordian-engine/geyser/fountain"
	"github.com/gordian-engine/geyser/internal/gbitset"
)

// Kind identifies the meaning of a [Message].
type Kind uint8

const (
	// Nothing for zero.
	_ Kind = iota

	// The transfer started; Header is set.
	KindHeader

	// Periodic progress; Tick, Resolved, Total and Have are set.
	KindProgress

	// The receiver reconstructed the message; Tick and Resolved are set.
	KindComplete

	// The transfer stopped without completing; Tick and Reason are set.
	KindAbort
)

func (k Kind) String() string {
	switch k {
	case KindHeader:
		return "header"
	case KindProgress:
		return "progress"
	case KindComplete:
		return "complete"
	case KindAbort:
		return "abort"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Message is one control message.
// Which fields are meaningful depends on Kind.
type Message struct {
	Kind Kind

	Header fountain.Header

	// Number of ticks run so far.
	Tick uint64

	// Source blocks resolved, out of Total.
	Resolved, Total int

	// Resolved intermediate blocks.
	// Its length is Header.NumIntermediate() of the transfer.
	Have *bitset.BitSet

	Reason string
}

// wireMessage is the encoded form of [Message].
type wireMessage struct {
	_ struct{} `cbor:",toarray"`

	Kind     Kind
	Header   *fountain.Header
	Tick     uint64
	Resolved int
	Total    int

	// Length of the Have bitset, and its adaptive encoding.
	HaveLen uint32
	Have    []byte

	Reason string
}

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Errorf("BUG: failed to build cbor encoding mode: %w", err))
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic(fmt.Errorf("BUG: failed to build cbor decoding mode: %w", err))
	}
	return dm
}

// maxHaveLen bounds the bitset a decoded message may describe.
const maxHaveLen = fountain.MaxSourceBlocks + 256

// Encode returns the CBOR encoding of m.
func (m Message) Encode() ([]byte, error) {
	var enc gbitset.AdaptiveEncoder
	return m.encode(&enc)
}

func (m Message) encode(be *gbitset.AdaptiveEncoder) ([]byte, error) {
	w := wireMessage{
		Kind:     m.Kind,
		Tick:     m.Tick,
		Resolved: m.Resolved,
		Total:    m.Total,
		Reason:   m.Reason,
	}
	if m.Kind == KindHeader {
		h := m.Header
		w.Header = &h
	}
	if m.Have != nil {
		if m.Have.Len() > maxHaveLen {
			return nil, fmt.Errorf("have bitset length %d exceeds %d", m.Have.Len(), maxHaveLen)
		}
		w.HaveLen = uint32(m.Have.Len())
		w.Have = be.Encode(m.Have)
	}

	b, err := encMode.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", m.Kind, err)
	}
	return b, nil
}

// DecodeMessage parses a message produced by [Message.Encode].
func DecodeMessage(b []byte) (Message, error) {
	var dec gbitset.AdaptiveDecoder
	return decodeMessage(b, &dec)
}

func decodeMessage(b []byte, bd *gbitset.AdaptiveDecoder) (Message, error) {
	var w wireMessage
	if err := decMode.Unmarshal(b, &w); err != nil {
		return Message{}, fmt.Errorf("failed to decode control message: %w", err)
	}

	m := Message{
		Kind:     w.Kind,
		Tick:     w.Tick,
		Resolved: w.Resolved,
		Total:    w.Total,
		Reason:   w.Reason,
	}

	switch w.Kind {
	case KindHeader:
		if w.Header == nil {
			return Message{}, fmt.Errorf("header message without header")
		}
		if err := w.Header.Validate(); err != nil {
			return Message{}, fmt.Errorf("header message has invalid header: %w", err)
		}
		m.Header = *w.Header
	case KindProgress, KindComplete, KindAbort:
		// Other fields are plain values.
	default:
		return Message{}, fmt.Errorf("unknown control message kind %d", w.Kind)
	}

	if w.Have != nil {
		if w.HaveLen > maxHaveLen {
			return Message{}, fmt.Errorf("have bitset length %d exceeds %d", w.HaveLen, maxHaveLen)
		}
		m.Have = bitset.MustNew(uint(w.HaveLen))
		if err := bd.Decode(w.Have, m.Have); err != nil {
			return Message{}, fmt.Errorf("failed to decode have bitset: %w", err)
		}
	}

	return m, nil
}

// Encoder encodes messages, reusing its bitset buffers across calls.
// An Encoder is not safe for concurrent use.
type Encoder struct {
	be gbitset.AdaptiveEncoder
}

func (e *Encoder) Encode(m Message) ([]byte, error) {
	return m.encode(&e.be)
}

// Decoder decodes messages, reusing its bitset buffers across calls.
// A Decoder is not safe for concurrent use.
type Decoder struct {
	bd gbitset.AdaptiveDecoder
}

func (d *Decoder) Decode(b []byte) (Message, error) {
	return decodeMessage(b, &d.bd)
}
