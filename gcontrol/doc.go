// Package gcontrol defines the control messages a transfer publishes
// alongside its data packets: the transfer header, periodic progress,
// and the final outcome.
//
// Messages are CBOR arrays.
// The progress bitset is carried in the adaptive raw-or-snappy encoding,
// since sparse and nearly-full sets compress well.
package gcontrol
