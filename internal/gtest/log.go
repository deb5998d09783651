// Package gtest contains helpers shared by geyser tests.
package gtest

import (
	"log/slog"
	"testing"

	"github.com/neilotoole/slogt"
)

// NewLogger returns a logger that writes through t.Log,
// so output is attributed to the test and only shown on failure or -v.
func NewLogger(t testing.TB) *slog.Logger {
	return slogt.New(t)
}
