// Package gbitset contains compact byte encodings for bitsets
// whose length both sides already agree on.
//
// The raw encoding is the little endian words of the bitset.
// The snappy encoding is the raw encoding compressed with snappy.
// The adaptive encoding prefixes a one-byte type header
// and uses whichever of the two is smaller.
package gbitset
