package gtest

import (
	"testing"
	"time"
)

// How long ReceiveSoon waits before failing the test.
// Generous, since goroutine scheduling on loaded CI machines is slow.
const soonTimeout = 2 * time.Second

// How long NotSending watches a channel.
const notSendingWindow = 20 * time.Millisecond

// ReceiveSoon returns the next value from ch,
// failing the test if none arrives promptly.
func ReceiveSoon[T any](t testing.TB, ch <-chan T) T {
	t.Helper()

	timer := time.NewTimer(soonTimeout)
	defer timer.Stop()

	select {
	case v := <-ch:
		return v
	case <-timer.C:
		t.Fatalf("no value received within %s", soonTimeout)
	}
	panic("unreachable")
}

// SendSoon sends v on ch,
// failing the test if the send does not complete promptly.
func SendSoon[T any](t testing.TB, ch chan<- T, v T) {
	t.Helper()

	timer := time.NewTimer(soonTimeout)
	defer timer.Stop()

	select {
	case ch <- v:
	case <-timer.C:
		t.Fatalf("value not sent within %s", soonTimeout)
	}
}

// NotSending fails the test if a value arrives on ch
// within a short observation window.
func NotSending[T any](t testing.TB, ch <-chan T) {
	t.Helper()

	timer := time.NewTimer(notSendingWindow)
	defer timer.Stop()

	select {
	case v := <-ch:
		t.Fatalf("expected no value but received %v", v)
	case <-timer.C:
	}
}
