// Package gpubsub contains [Stream], a single-writer, many-reader
// sequence of values.
//
// A transfer publishes its progress snapshots to a Stream,
// and any number of observers follow along without coordinating
// with each other or slowing the writer down.
package gpubsub
