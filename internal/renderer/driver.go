// Package renderer abstracts the audio backend behind a small Driver
// interface and a stream of playback events, so the session logic never
// touches a decoder or pipeline directly.
package renderer

// EventKind identifies a playback event emitted by a driver.
type EventKind int

const (
	// EventPlay fires when the stream actually starts or resumes.
	EventPlay EventKind = iota
	// EventPause fires when the stream pauses.
	EventPause
	// EventEnded fires when the current stream reaches its end.
	EventEnded
	// EventTimeUpdate carries the current position in seconds.
	EventTimeUpdate
	// EventDurationChange carries the stream duration in seconds once known.
	EventDurationChange
)

// Event is a single playback notification. Seconds is meaningful only for
// EventTimeUpdate and EventDurationChange.
type Event struct {
	Kind    EventKind
	Seconds float64
}

// EventSink receives driver events. Drivers call it from their own
// goroutines; sinks must not call back into the driver synchronously.
type EventSink func(Event)

// Driver is a minimal audio backend. Positions are in milliseconds.
type Driver interface {
	// Play starts url from positionMS, replacing any current stream.
	Play(url string, positionMS int64) error
	// Pause pauses the current stream, keeping its position.
	Pause() error
	// Resume continues a paused stream.
	Resume() error
	// Stop tears down the current stream.
	Stop() error
	// Seek jumps the current stream to positionMS.
	Seek(positionMS int64) error
	// Position reports the current position and duration. ok is false when
	// no stream is loaded.
	Position() (positionMS, durationMS int64, ok bool)
}
