// Package session owns the playback state machine: the current playlist, the
// active track pointer, the play/pause/seek timeline and the transition rules
// between them. It drives a renderer.Driver and persists the pieces of state
// that survive a restart.
package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/tapedeck-player/tapedeck/internal/catalog"
	"github.com/tapedeck-player/tapedeck/internal/persist"
	"github.com/tapedeck-player/tapedeck/internal/renderer"
)

// NoSelection is the transient index used while a reload is in flight, so
// nothing can address a stale or shrinking playlist.
const NoSelection = -1

// Snapshot is an immutable copy of the observable session state, handed to
// the change listener after every transition.
type Snapshot struct {
	Items       []catalog.AudioItem
	Index       int
	Playing     bool
	CurrentTime float64
	Duration    float64
	Loading     bool
}

// Progress derives playback progress in percent, clamped to [0, 100].
func (s Snapshot) Progress() float64 {
	if s.Duration == 0 {
		return 0
	}
	p := s.CurrentTime / s.Duration * 100
	if p > 100 {
		return 100
	}
	return p
}

// Current returns the active item, ok=false when nothing is selected.
func (s Snapshot) Current() (catalog.AudioItem, bool) {
	if s.Index < 0 || s.Index >= len(s.Items) {
		return catalog.AudioItem{}, false
	}
	return s.Items[s.Index], true
}

// FetchFunc produces a fresh playlist, typically a catalog or feed fetch.
type FetchFunc func(ctx context.Context) ([]catalog.AudioItem, error)

// Session is the playback state machine. All exported methods are safe for
// concurrent use; driver events must arrive through Apply.
type Session struct {
	mu     sync.Mutex
	log    *zap.Logger
	driver renderer.Driver
	store  *persist.Store

	items       []catalog.AudioItem
	index       int
	playing     bool
	currentTime float64
	duration    float64

	// seeking suppresses time updates during a scrub gesture; interacted
	// gates time updates until the first real play, so garbage emitted
	// during media initialization never overwrites the persisted position.
	// awaitingPlay does the same per track switch: a position from the
	// previous stream landing late must not stick to the new track.
	seeking      bool
	interacted   bool
	awaitingPlay bool
	loading      bool

	// generation drops fetch results that a newer reload superseded.
	generation uint64

	onChange []func(Snapshot)
	pending  []Snapshot
	draining bool
}

// New creates a session over the given driver and store.
func New(log *zap.Logger, driver renderer.Driver, store *persist.Store) *Session {
	return &Session{log: log, driver: driver, store: store, index: 0}
}

// OnChange registers a change listener, invoked after every state
// transition.
func (s *Session) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

// Restore loads the cached playlist, index and position. The index is
// clamped into the restored list; loading stays set when no cache exists.
func (s *Session) Restore() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = persist.Get(s.store, persist.KeyPlaylist, []catalog.AudioItem(nil))
	s.index = persist.Get(s.store, persist.KeyIndex, 0)
	s.currentTime = persist.Get(s.store, persist.KeyTime, 0.0)
	if s.index < 0 || s.index >= len(s.items) {
		s.index = 0
	}
	s.loading = len(s.items) == 0
	s.log.Info("session restored",
		zap.Int("tracks", len(s.items)),
		zap.Int("index", s.index),
		zap.Float64("time", s.currentTime),
	)
	s.notifyLocked()
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	items := make([]catalog.AudioItem, len(s.items))
	copy(items, s.items)
	return Snapshot{
		Items:       items,
		Index:       s.index,
		Playing:     s.playing,
		CurrentTime: s.currentTime,
		Duration:    s.duration,
		Loading:     s.loading,
	}
}

// notifyLocked queues a snapshot for the listeners. A single drainer
// goroutine delivers queued snapshots in transition order, off the session
// lock so a listener can call back in freely.
func (s *Session) notifyLocked() {
	if len(s.onChange) == 0 {
		return
	}
	s.pending = append(s.pending, s.snapshotLocked())
	if s.draining {
		return
	}
	s.draining = true
	go s.drainNotifications()
}

func (s *Session) drainNotifications() {
	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		snap := s.pending[0]
		s.pending = s.pending[1:]
		listeners := s.onChange
		s.mu.Unlock()
		for _, fn := range listeners {
			fn(snap)
		}
	}
}

// SelectAndPlay makes index the active track and starts it. Re-selecting the
// current track restarts it from the beginning.
func (s *Session) SelectAndPlay(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectAndPlayLocked(index)
}

func (s *Session) selectAndPlayLocked(index int) {
	if index < 0 || index >= len(s.items) {
		return
	}
	if index == s.index && s.interacted {
		s.currentTime = 0
		s.playing = true
		if err := s.driver.Seek(0); err != nil {
			s.log.Warn("restart seek", zap.Error(err))
		}
		if err := s.driver.Resume(); err != nil {
			s.log.Warn("restart resume", zap.Error(err))
		}
		s.notifyLocked()
		return
	}

	s.index = index
	s.currentTime = 0
	s.duration = 0
	s.playing = true
	s.awaitingPlay = true
	persist.Set(s.store, persist.KeyIndex, s.index)
	persist.Set(s.store, persist.KeyTime, s.currentTime)
	if err := s.driver.Play(s.items[index].URL, 0); err != nil {
		s.log.Warn("play failed", zap.String("url", s.items[index].URL), zap.Error(err))
		s.playing = false
	}
	s.notifyLocked()
}

// Navigate moves the active track by step with wrap-around at both ends.
// A no-op while loading or with an empty playlist.
func (s *Session) Navigate(step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigateLocked(step)
}

func (s *Session) navigateLocked(step int) {
	n := len(s.items)
	if s.loading || s.index == NoSelection || n == 0 {
		return
	}
	s.selectAndPlayLocked(((s.index+step)%n + n) % n)
}

// Toggle flips play/pause without changing the active track or position.
func (s *Session) Toggle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == NoSelection || s.index >= len(s.items) {
		return
	}
	if s.playing {
		s.playing = false
		if err := s.driver.Pause(); err != nil {
			s.log.Warn("pause", zap.Error(err))
		}
		s.notifyLocked()
		return
	}
	s.playing = true
	if s.interacted {
		if err := s.driver.Resume(); err != nil {
			s.log.Warn("resume", zap.Error(err))
		}
	} else {
		// No stream loaded yet: start the restored track at the
		// remembered position.
		if err := s.driver.Play(s.items[s.index].URL, int64(s.currentTime*1000)); err != nil {
			s.log.Warn("play failed", zap.Error(err))
			s.playing = false
		}
	}
	s.notifyLocked()
}

// ForcePause pauses playback regardless of current state. Used by the sleep
// timer.
func (s *Session) ForcePause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.playing {
		return
	}
	s.playing = false
	if err := s.driver.Pause(); err != nil {
		s.log.Warn("force pause", zap.Error(err))
	}
	s.log.Info("playback force-paused")
	s.notifyLocked()
}

// Apply feeds one renderer event through the transition function.
func (s *Session) Apply(ev renderer.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Kind {
	case renderer.EventPlay:
		s.playing = true
		s.awaitingPlay = false
		if !s.interacted {
			s.interacted = true
			if s.currentTime > 0 {
				if err := s.driver.Seek(int64(s.currentTime * 1000)); err != nil {
					s.log.Warn("resume seek", zap.Error(err))
				}
			}
		}
	case renderer.EventPause:
		s.playing = false
	case renderer.EventEnded:
		s.navigateLocked(1)
		return
	case renderer.EventTimeUpdate:
		if s.seeking || !s.interacted || s.awaitingPlay {
			return
		}
		s.currentTime = ev.Seconds
		persist.Set(s.store, persist.KeyTime, s.currentTime)
	case renderer.EventDurationChange:
		s.duration = ev.Seconds
	}
	s.notifyLocked()
}

// SeekPreview updates the displayed position during a scrub gesture without
// touching the driver.
func (s *Session) SeekPreview(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeking = true
	s.currentTime = t
	s.notifyLocked()
}

// SeekCommit ends the scrub gesture at t, pushing the position to the driver
// or starting playback from it when paused.
func (s *Session) SeekCommit(t float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeking = false
	s.currentTime = t
	persist.Set(s.store, persist.KeyTime, s.currentTime)
	if !s.interacted {
		s.notifyLocked()
		return
	}
	if s.playing {
		if err := s.driver.Seek(int64(t * 1000)); err != nil {
			s.log.Warn("seek", zap.Error(err))
		}
	} else {
		s.playing = true
		if err := s.driver.Seek(int64(t * 1000)); err != nil {
			s.log.Warn("seek", zap.Error(err))
		}
		if err := s.driver.Resume(); err != nil {
			s.log.Warn("resume after seek", zap.Error(err))
		}
	}
	s.notifyLocked()
}

// Shuffle replaces the playlist with a random permutation, persists it and
// starts the first track.
func (s *Session) Shuffle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading || len(s.items) == 0 {
		return
	}
	s.items = shuffled(s.items)
	persist.Set(s.store, persist.KeyPlaylist, s.items)
	s.index = NoSelection
	s.interacted = false
	s.selectAndPlayLocked(0)
}

// Reload discards the current selection, runs fetch and commits its result.
// A reload started while another is in flight wins; the older result is
// dropped. On failure the previous playlist stays in place.
func (s *Session) Reload(ctx context.Context, fetch FetchFunc) error {
	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.index = NoSelection
	s.loading = true
	s.playing = false
	s.interacted = false
	if err := s.driver.Stop(); err != nil {
		s.log.Warn("stop before reload", zap.Error(err))
	}
	s.notifyLocked()
	s.mu.Unlock()

	items, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		s.log.Debug("dropping stale fetch result", zap.Uint64("generation", generation))
		return nil
	}
	if err != nil {
		s.loading = false
		if s.index == NoSelection && len(s.items) > 0 {
			s.index = 0
		}
		s.notifyLocked()
		return fmt.Errorf("reload: %w", err)
	}

	s.items = items
	persist.Set(s.store, persist.KeyPlaylist, s.items)
	s.loading = false
	s.log.Info("playlist reloaded", zap.Int("tracks", len(items)))
	if len(items) == 0 {
		s.index = NoSelection
		s.notifyLocked()
		return nil
	}
	s.index = NoSelection
	s.selectAndPlayLocked(0)
	return nil
}
