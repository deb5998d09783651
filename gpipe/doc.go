// Package gpipe contains [Pipe], an asynchronous FIFO message queue
// with at most one waiting receiver.
//
// A pipe connects code that produces messages on its own schedule
// with a consumer that asks for one message at a time.
// Messages are never dropped and are delivered in the order sent.
// Delivery always happens on a separate goroutine,
// never inside the call to Send or Receive.
package gpipe
