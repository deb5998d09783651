package transfer

import "github.com/gordian-engine/geyser/fountain"

// Progress is a snapshot of a running transfer.
type Progress struct {
	Tick uint64

	// Packets that survived the channel and reached the decoder.
	Delivered uint64

	BytesSent uint64

	// Source blocks resolved, out of Total.
	Resolved, Total int

	// Blocks held by the decoder awaiting more information.
	Pending int

	Status fountain.Status
}
