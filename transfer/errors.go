package transfer

import "fmt"

// TickLimitError is returned from [Run] when the configured
// maximum number of ticks passes without completing the transfer.
type TickLimitError struct {
	Ticks uint64

	Resolved, Total int
}

func (e TickLimitError) Error() string {
	return fmt.Sprintf(
		"tick limit of %d reached with %d of %d source blocks resolved",
		e.Ticks, e.Resolved, e.Total,
	)
}

// OverheadLimitError is returned from [Run] when the bytes sent
// exceed the configured multiple of the message length.
type OverheadLimitError struct {
	BytesSent uint64
	Length    uint64

	Max float64
}

func (e OverheadLimitError) Error() string {
	return fmt.Sprintf(
		"sent %d bytes for a %d-byte message, exceeding overhead limit of %g",
		e.BytesSent, e.Length, e.Max,
	)
}
