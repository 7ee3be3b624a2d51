package llm

import "context"

// eventStream adapts a producer function writing to a channel into the
// Stream interface, the way the teacher's engine.go wraps provider SDKs
// that expose push-style iteration.
type eventStream struct {
	events chan Event
	errc   chan error
	cancel context.CancelFunc
	err    error
	done   bool
}

func newEventStream(ctx context.Context, produce func(ctx context.Context, events chan<- Event) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		events: make(chan Event, 16),
		errc:   make(chan error, 1),
		cancel: cancel,
	}
	go func() {
		defer close(s.events)
		s.errc <- produce(ctx, s.events)
	}()
	return s
}

func (s *eventStream) Recv() (Event, error) {
	if s.err != nil {
		return Event{}, s.err
	}
	ev, ok := <-s.events
	if ok {
		return ev, nil
	}
	if err := <-s.errc; err != nil {
		s.err = err
		return Event{}, err
	}
	if !s.done {
		s.done = true
		return Event{Type: EventDone}, nil
	}
	return Event{}, errStreamClosed
}

func (s *eventStream) Close() error {
	s.cancel()
	return nil
}

var errStreamClosed = errClosedStream{}

type errClosedStream struct{}

func (errClosedStream) Error() string { return "llm: stream closed" }
