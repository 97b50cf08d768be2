//go:build !cgo

package renderer

import "go.uber.org/zap"

// AudioAvailable reports whether this build can produce sound. The beep
// backend needs cgo for the native audio libraries.
const AudioAvailable = false

// BeepDriver is a silent stand-in for builds without cgo. All operations
// succeed and no events are emitted.
type BeepDriver struct {
	log *zap.Logger
}

// NewBeepDriver creates the no-op driver.
func NewBeepDriver(log *zap.Logger, _ EventSink) *BeepDriver {
	log.Warn("audio disabled: built without cgo")
	return &BeepDriver{log: log}
}

func (d *BeepDriver) Play(url string, positionMS int64) error { return nil }
func (d *BeepDriver) Pause() error                            { return nil }
func (d *BeepDriver) Resume() error                           { return nil }
func (d *BeepDriver) Stop() error                             { return nil }
func (d *BeepDriver) Seek(positionMS int64) error             { return nil }

func (d *BeepDriver) Position() (positionMS, durationMS int64, ok bool) {
	return 0, 0, false
}
