//go:build cgo

package renderer

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"go.uber.org/zap"
)

// AudioAvailable reports whether this build can produce sound. The beep
// backend needs cgo for the native audio libraries.
const AudioAvailable = true

// BeepDriver plays MP3 streams through the beep speaker. Tracks are
// downloaded fully into memory before decoding, which keeps seeking exact at
// the cost of a startup delay on large files.
type BeepDriver struct {
	mu sync.Mutex

	log        *zap.Logger
	http       *http.Client
	sink       EventSink
	sampleRate beep.SampleRate

	initialized bool
	streamer    beep.StreamSeekCloser
	format      beep.Format
	ctrl        *beep.Ctrl

	// generation guards against the ended callback of a torn-down stream
	// firing after a newer stream started.
	generation uint64
	pollStop   chan struct{}
}

// NewBeepDriver creates the beep-backed driver. Events are delivered to sink
// from driver-owned goroutines.
func NewBeepDriver(log *zap.Logger, sink EventSink) *BeepDriver {
	return &BeepDriver{
		log:        log,
		http:       &http.Client{Timeout: 5 * time.Minute},
		sink:       sink,
		sampleRate: beep.SampleRate(44100),
	}
}

func (d *BeepDriver) emit(ev Event) {
	if d.sink != nil {
		d.sink(ev)
	}
}

// Play tears down the current stream and starts loading url on its own
// goroutine, so callers never wait on the download. EventPlay and
// EventDurationChange fire once the stream is decoded; a load failure
// surfaces as EventPause.
func (d *BeepDriver) Play(url string, positionMS int64) error {
	d.mu.Lock()
	d.stopLocked()
	d.generation++
	generation := d.generation
	d.mu.Unlock()

	go d.load(generation, url, positionMS)
	return nil
}

func (d *BeepDriver) load(generation uint64, url string, positionMS int64) {
	streamer, format, err := d.fetchStream(url)
	if err != nil {
		d.mu.Lock()
		stale := generation != d.generation
		d.mu.Unlock()
		if stale {
			return
		}
		d.log.Warn("stream load failed", zap.String("url", url), zap.Error(err))
		d.emit(Event{Kind: EventPause})
		return
	}

	d.mu.Lock()
	if generation != d.generation {
		d.mu.Unlock()
		streamer.Close()
		return
	}

	if !d.initialized {
		if err := speaker.Init(d.sampleRate, d.sampleRate.N(time.Second/10)); err != nil {
			d.mu.Unlock()
			streamer.Close()
			d.log.Warn("init speaker", zap.Error(err))
			d.emit(Event{Kind: EventPause})
			return
		}
		d.initialized = true
	}

	d.streamer = streamer
	d.format = format
	if positionMS > 0 {
		if err := streamer.Seek(format.SampleRate.N(time.Duration(positionMS) * time.Millisecond)); err != nil {
			d.log.Warn("initial seek failed", zap.Error(err))
		}
	}

	resampled := beep.Resample(4, format.SampleRate, d.sampleRate, streamer)
	d.ctrl = &beep.Ctrl{Streamer: resampled}

	speaker.Play(beep.Seq(d.ctrl, beep.Callback(func() {
		// Runs on the speaker goroutine; hop off it before touching state.
		go d.streamEnded(generation)
	})))

	stop := make(chan struct{})
	d.pollStop = stop
	go d.pollPosition(stop)

	durationMS := format.SampleRate.D(streamer.Len()).Milliseconds()
	d.mu.Unlock()

	d.log.Debug("stream started", zap.String("url", url), zap.Int64("position_ms", positionMS))
	d.emit(Event{Kind: EventDurationChange, Seconds: float64(durationMS) / 1000})
	d.emit(Event{Kind: EventPlay})
}

func (d *BeepDriver) fetchStream(url string) (beep.StreamSeekCloser, beep.Format, error) {
	resp, err := d.http.Get(url)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("fetch stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, beep.Format{}, fmt.Errorf("fetch stream: %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("fetch stream: %w", err)
	}

	streamer, format, err := mp3.Decode(nopCloser{bytes.NewReader(data)})
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode stream: %w", err)
	}
	return streamer, format, nil
}

func (d *BeepDriver) streamEnded(generation uint64) {
	d.mu.Lock()
	stale := generation != d.generation
	if !stale {
		d.stopLocked()
	}
	d.mu.Unlock()
	if stale {
		return
	}
	d.emit(Event{Kind: EventEnded})
}

// pollPosition emits a time update every second while the stream lives.
func (d *BeepDriver) pollPosition(stop chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			posMS, _, ok := d.Position()
			if !ok {
				return
			}
			d.emit(Event{Kind: EventTimeUpdate, Seconds: float64(posMS) / 1000})
		}
	}
}

// Pause pauses the current stream.
func (d *BeepDriver) Pause() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctrl == nil {
		return nil
	}
	speaker.Lock()
	d.ctrl.Paused = true
	speaker.Unlock()
	go d.emit(Event{Kind: EventPause})
	return nil
}

// Resume continues a paused stream.
func (d *BeepDriver) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctrl == nil {
		return nil
	}
	speaker.Lock()
	d.ctrl.Paused = false
	speaker.Unlock()
	go d.emit(Event{Kind: EventPlay})
	return nil
}

// Stop tears down the current stream without emitting an ended event.
func (d *BeepDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.generation++
	d.stopLocked()
	return nil
}

func (d *BeepDriver) stopLocked() {
	if d.pollStop != nil {
		close(d.pollStop)
		d.pollStop = nil
	}
	if d.ctrl != nil {
		speaker.Lock()
		d.ctrl.Paused = true
		speaker.Unlock()
	}
	if d.streamer != nil {
		d.streamer.Close()
		d.streamer = nil
	}
	d.ctrl = nil
}

// Seek jumps the current stream to positionMS.
func (d *BeepDriver) Seek(positionMS int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streamer == nil {
		return nil
	}
	speaker.Lock()
	err := d.streamer.Seek(d.format.SampleRate.N(time.Duration(positionMS) * time.Millisecond))
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	go d.emit(Event{Kind: EventTimeUpdate, Seconds: float64(positionMS) / 1000})
	return nil
}

// Position reports the current position and duration in milliseconds.
func (d *BeepDriver) Position() (positionMS, durationMS int64, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streamer == nil {
		return 0, 0, false
	}
	speaker.Lock()
	pos := d.streamer.Position()
	total := d.streamer.Len()
	speaker.Unlock()
	return d.format.SampleRate.D(pos).Milliseconds(), d.format.SampleRate.D(total).Milliseconds(), true
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
