package gpubsub

import "context"

// Stream is one node of a linked list of published values.
// Readers wait on Ready, then read Val and move to Next.
//
// A reader holding on to an old node keeps every later node reachable,
// so readers that stop consuming should drop their reference.
type Stream[T any] struct {
	Ready chan struct{}
	Next  *Stream[T]
	Val   T
}

// NewStream returns an empty stream ready for publishing.
func NewStream[T any]() *Stream[T] {
	return &Stream[T]{
		Ready: make(chan struct{}),
	}
}

// Publish sets s.Val, links a new empty s.Next,
// and closes s.Ready to release readers.
// The writer continues at s.Next.
//
// Publish panics if s was already published.
func (s *Stream[T]) Publish(v T) {
	s.Val = v
	s.Next = NewStream[T]()
	close(s.Ready)
}

// Wait blocks until s is published or ctx is done.
// On success it returns s.Val and s.Next.
func (s *Stream[T]) Wait(ctx context.Context) (T, *Stream[T], error) {
	select {
	case <-ctx.Done():
		var zero T
		return zero, s, context.Cause(ctx)
	case <-s.Ready:
		return s.Val, s.Next, nil
	}
}

// Published returns the values already published from s onward,
// without blocking, and the first unpublished node.
func (s *Stream[T]) Published() ([]T, *Stream[T]) {
	var out []T
	for {
		select {
		case <-s.Ready:
			out = append(out, s.Val)
			s = s.Next
		default:
			return out, s
		}
	}
}
