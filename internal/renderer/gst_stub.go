//go:build !gstreamer

package renderer

import (
	"errors"

	"go.uber.org/zap"
)

// GstDriver is a stub when the gstreamer tag is not enabled.
type GstDriver struct{}

// NewGstDriver returns an error when the gstreamer build tag is missing.
func NewGstDriver(_ *zap.Logger, _ EventSink, _, _ string) (*GstDriver, error) {
	return nil, errors.New("gstreamer build tag not enabled")
}

func (d *GstDriver) Play(url string, positionMS int64) error { return errors.New("not available") }
func (d *GstDriver) Pause() error                            { return errors.New("not available") }
func (d *GstDriver) Resume() error                           { return errors.New("not available") }
func (d *GstDriver) Stop() error                             { return errors.New("not available") }
func (d *GstDriver) Seek(positionMS int64) error             { return errors.New("not available") }

func (d *GstDriver) Position() (positionMS, durationMS int64, ok bool) {
	return 0, 0, false
}
