//go:build gstreamer

package renderer

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
	"go.uber.org/zap"
)

var gstInitOnce sync.Once

// GstDriver plays streams through a GStreamer pipeline built from a
// template. Placeholders {url}, {device} and {start_ms} are substituted per
// track. Position is tracked against the wall clock since the pipeline
// started, which is accurate enough for the once-a-second updates the
// session consumes.
type GstDriver struct {
	mu       sync.Mutex
	log      *zap.Logger
	sink     EventSink
	template string
	device   string

	current   *gst.Element
	startedAt time.Time
	baseMS    int64
	paused    bool
	pausedAt  time.Time
	pollStop  chan struct{}
}

// NewGstDriver creates the GStreamer driver from a pipeline template.
//
// TODO: watch the pipeline bus for EOS to emit Ended instead of relying on
// the session's duration bookkeeping.
func NewGstDriver(log *zap.Logger, sink EventSink, template, device string) (*GstDriver, error) {
	if strings.TrimSpace(template) == "" {
		return nil, errors.New("pipeline template required")
	}
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})
	return &GstDriver{log: log, sink: sink, template: template, device: device}, nil
}

func (d *GstDriver) emit(ev Event) {
	if d.sink != nil {
		d.sink(ev)
	}
}

// Play builds a pipeline for url and starts it from positionMS.
func (d *GstDriver) Play(url string, positionMS int64) error {
	launch := d.template
	launch = strings.ReplaceAll(launch, "{url}", url)
	launch = strings.ReplaceAll(launch, "{device}", d.device)
	launch = strings.ReplaceAll(launch, "{start_ms}", fmt.Sprintf("%d", positionMS))

	pipeline, err := gst.ParseLaunch(launch)
	if err != nil {
		return fmt.Errorf("parse pipeline: %w", err)
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}

	d.mu.Lock()
	d.stopLocked()
	d.current = pipeline
	d.startedAt = time.Now()
	d.baseMS = positionMS
	d.paused = false
	stop := make(chan struct{})
	d.pollStop = stop
	d.mu.Unlock()

	go d.pollPosition(stop)
	d.log.Debug("pipeline started", zap.String("url", url), zap.Int64("position_ms", positionMS))
	go d.emit(Event{Kind: EventPlay})
	return nil
}

// Pause pauses the current pipeline.
func (d *GstDriver) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return nil
	}
	if err := d.current.SetState(gst.StatePaused); err != nil {
		return err
	}
	d.paused = true
	d.pausedAt = time.Now()
	go d.emit(Event{Kind: EventPause})
	return nil
}

// Resume continues a paused pipeline.
func (d *GstDriver) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return nil
	}
	if err := d.current.SetState(gst.StatePlaying); err != nil {
		return err
	}
	if d.paused {
		d.startedAt = d.startedAt.Add(time.Since(d.pausedAt))
		d.paused = false
	}
	go d.emit(Event{Kind: EventPlay})
	return nil
}

// Stop tears down the current pipeline.
func (d *GstDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	return nil
}

func (d *GstDriver) stopLocked() {
	if d.pollStop != nil {
		close(d.pollStop)
		d.pollStop = nil
	}
	if d.current != nil {
		_ = d.current.SetState(gst.StateNull)
		d.current = nil
	}
}

// Seek jumps the current pipeline to positionMS.
func (d *GstDriver) Seek(positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return nil
	}
	positionNS := positionMS * int64(time.Millisecond)
	if err := d.current.SeekSimple(gst.FormatTime, gst.SeekFlagFlush|gst.SeekFlagKeyUnit, positionNS); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	d.baseMS = positionMS
	d.startedAt = time.Now()
	if d.paused {
		d.pausedAt = d.startedAt
	}
	go d.emit(Event{Kind: EventTimeUpdate, Seconds: float64(positionMS) / 1000})
	return nil
}

// Position reports the tracked position. Duration is unknown to this
// backend, so it reports zero.
func (d *GstDriver) Position() (positionMS, durationMS int64, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == nil {
		return 0, 0, false
	}
	elapsed := time.Since(d.startedAt)
	if d.paused {
		elapsed = d.pausedAt.Sub(d.startedAt)
	}
	return d.baseMS + elapsed.Milliseconds(), 0, true
}

func (d *GstDriver) pollPosition(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			d.mu.Lock()
			paused := d.paused || d.current == nil
			d.mu.Unlock()
			if paused {
				continue
			}
			posMS, _, ok := d.Position()
			if !ok {
				return
			}
			d.emit(Event{Kind: EventTimeUpdate, Seconds: float64(posMS) / 1000})
		}
	}
}
