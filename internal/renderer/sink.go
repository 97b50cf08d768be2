package renderer

import "sync"

// LateSink is an EventSink whose receiver is bound after the driver exists,
// for wiring cycles where the driver is built before its consumer. Events
// arriving before Bind are dropped. Safe for concurrent use.
type LateSink struct {
	mu sync.Mutex
	fn EventSink
}

// Bind sets the receiver for subsequent events.
func (s *LateSink) Bind(fn EventSink) {
	s.mu.Lock()
	s.fn = fn
	s.mu.Unlock()
}

// Emit forwards the event to the bound receiver, if any.
func (s *LateSink) Emit(ev Event) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
