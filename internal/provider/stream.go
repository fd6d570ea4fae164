package provider

import "io"

// Stream is a pull-based sequence of completion events. Recv returns io.EOF
// after the finish event has been consumed.
type Stream struct {
	recv    func() (StreamEvent, error)
	closer  func() error
	stopped bool
}

// NewStream wraps a receive function and an optional closer into a Stream.
func NewStream(recv func() (StreamEvent, error), closer func() error) *Stream {
	return &Stream{recv: recv, closer: closer}
}

// StreamFromEvents returns a stream that replays a fixed event sequence.
// Intended for tests and fakes.
func StreamFromEvents(events ...StreamEvent) *Stream {
	i := 0
	return NewStream(func() (StreamEvent, error) {
		if i >= len(events) {
			return StreamEvent{}, io.EOF
		}
		ev := events[i]
		i++
		return ev, nil
	}, nil)
}

// Recv returns the next event, or io.EOF when the stream is exhausted.
func (s *Stream) Recv() (StreamEvent, error) {
	if s.stopped {
		return StreamEvent{}, io.EOF
	}
	ev, err := s.recv()
	if err != nil {
		s.stopped = true
	}
	return ev, err
}

// Close releases the underlying transport resources. Safe to call more
// than once.
func (s *Stream) Close() error {
	s.stopped = true
	if s.closer == nil {
		return nil
	}
	closer := s.closer
	s.closer = nil
	return closer()
}
