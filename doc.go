// Package geyser transfers a byte message over a lossy, unordered channel
// using a rateless fountain code.
//
// A [Session] is the host-facing boundary:
// one side initializes it to encode a message and pulls packets from it
// for as long as the receiver needs them;
// the other side initializes it to decode and pushes received packets into it
// until the message is reconstructed.
// Every packet carries the transfer header,
// so the receiver needs no metadata beyond the packets themselves.
//
// The fountain code lives in package fountain,
// the tick-driven encode/decode loop in package transfer,
// and the asynchronous control-message queue in package gpipe.
package geyser
