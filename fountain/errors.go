package fountain

import "fmt"

// InvalidConfigError is returned when a transfer cannot be initialized
// from the given configuration or header.
type InvalidConfigError struct {
	Field  string
	Reason string
}

func (e InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// IntegrityViolationError is returned from [*Decoder.Ingest]
// when an encoded block implies a value for a source block
// that differs from the value already resolved for it.
//
// The decoder never chooses between conflicting values.
// Once this error has been returned,
// the decoder is failed and every later call to Ingest returns it again.
type IntegrityViolationError struct {
	// Index of the intermediate block that received conflicting values,
	// or -1 if two copies of the same encoded block disagree.
	SourceIndex int

	// Index of the encoded block that introduced the conflict.
	BlockIndex uint64
}

func (e IntegrityViolationError) Error() string {
	if e.SourceIndex < 0 {
		return fmt.Sprintf(
			"integrity violation: encoded block %d received twice with different payloads",
			e.BlockIndex,
		)
	}
	return fmt.Sprintf(
		"integrity violation: encoded block %d conflicts with resolved source block %d",
		e.BlockIndex, e.SourceIndex,
	)
}

// ChecksumMismatchError is returned from [*Decoder.Data]
// when the reconstructed message does not match the header checksum.
type ChecksumMismatchError struct {
	Want, Got uint32
}

func (e ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: header has %08x, reconstructed %08x", e.Want, e.Got)
}
