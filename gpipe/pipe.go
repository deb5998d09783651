package gpipe

import (
	"context"
	"sync"
)

// Pipe is a FIFO queue of messages of type T.
//
// Any number of goroutines may call [*Pipe.Send] concurrently,
// but only one receiver may be waiting at a time.
// The zero value is ready to use.
type Pipe[T any] struct {
	mu sync.Mutex

	// Messages that have no receiver yet.
	// Only non-empty while waiter is nil.
	queue []T

	waiter *receiver[T]

	// Deliveries scheduled but not yet run, in scheduling order.
	scheduled   []delivery[T]
	dispatching bool
}

type receiver[T any] struct {
	cb func(T)
}

type delivery[T any] struct {
	r   *receiver[T]
	msg T
}

// ConcurrentReceiverError is the panic value when [*Pipe.Receive]
// is called while another receiver is still waiting.
type ConcurrentReceiverError struct{}

func (ConcurrentReceiverError) Error() string {
	return "gpipe: receive called while another receiver is waiting"
}

// New returns an empty pipe.
func New[T any]() *Pipe[T] {
	return new(Pipe[T])
}

// Send enqueues m.
// If a receiver is waiting, delivery of m to it is scheduled
// and the receiver is unregistered.
func (p *Pipe[T]) Send(m T) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.waiter != nil {
		r := p.waiter
		p.waiter = nil
		p.schedule(r, m)
		return
	}

	p.queue = append(p.queue, m)
}

// Receive arranges for cb to be called with the oldest message.
// If a message is already queued, delivery is scheduled immediately;
// otherwise cb waits for the next call to Send.
//
// cb is always called on another goroutine, after Receive returns,
// and callbacks run one at a time in the order they were scheduled.
//
// Receive panics with [ConcurrentReceiverError]
// if a previous receiver is still waiting.
func (p *Pipe[T]) Receive(cb func(T)) {
	p.register(cb)
}

func (p *Pipe[T]) register(cb func(T)) *receiver[T] {
	r := &receiver[T]{cb: cb}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.waiter != nil {
		panic(ConcurrentReceiverError{})
	}

	if len(p.queue) > 0 {
		m := p.queue[0]
		var zero T
		p.queue[0] = zero
		p.queue = p.queue[1:]
		p.schedule(r, m)
		return r
	}

	p.waiter = r
	return r
}

// withdraw unregisters r if it is still waiting,
// and reports whether it did.
func (p *Pipe[T]) withdraw(r *receiver[T]) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.waiter != r {
		return false
	}
	p.waiter = nil
	return true
}

// Recv blocks until a message is available or ctx is done.
//
// If ctx finishes first, the receiver is withdrawn
// and the error wraps the context's cause,
// unless delivery had already been scheduled,
// in which case the message is returned instead of being lost.
func (p *Pipe[T]) Recv(ctx context.Context) (T, error) {
	// Buffered so the dispatcher never blocks on a withdrawn receiver.
	ch := make(chan T, 1)
	r := p.register(func(m T) { ch <- m })

	select {
	case m := <-ch:
		return m, nil
	case <-ctx.Done():
	}

	if p.withdraw(r) {
		var zero T
		return zero, context.Cause(ctx)
	}

	return <-ch, nil
}

// Len is the number of queued messages not yet scheduled for delivery.
func (p *Pipe[T]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Reset discards every queued message that has not been scheduled
// for delivery, and returns how many were discarded.
// A waiting receiver stays registered.
func (p *Pipe[T]) Reset() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.queue)
	clear(p.queue)
	p.queue = p.queue[:0]
	return n
}

// schedule must be called with p.mu held.
func (p *Pipe[T]) schedule(r *receiver[T], m T) {
	p.scheduled = append(p.scheduled, delivery[T]{r: r, msg: m})
	if !p.dispatching {
		p.dispatching = true
		go p.dispatch()
	}
}

// dispatch runs scheduled deliveries until there are none left.
func (p *Pipe[T]) dispatch() {
	for {
		p.mu.Lock()
		if len(p.scheduled) == 0 {
			p.dispatching = false
			p.mu.Unlock()
			return
		}
		d := p.scheduled[0]
		p.scheduled[0] = delivery[T]{}
		p.scheduled = p.scheduled[1:]
		p.mu.Unlock()

		d.r.cb(d.msg)
	}
}
