package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tapedeck-player/tapedeck/internal/catalog"
	"github.com/tapedeck-player/tapedeck/internal/persist"
	"github.com/tapedeck-player/tapedeck/internal/renderer"
)

type fakeDriver struct {
	mu    sync.Mutex
	calls []string
}

func (d *fakeDriver) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *fakeDriver) recorded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.calls))
	copy(out, d.calls)
	return out
}

func (d *fakeDriver) last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.calls) == 0 {
		return ""
	}
	return d.calls[len(d.calls)-1]
}

func (d *fakeDriver) Play(url string, positionMS int64) error {
	d.record(fmt.Sprintf("play %s @%d", url, positionMS))
	return nil
}
func (d *fakeDriver) Pause() error  { d.record("pause"); return nil }
func (d *fakeDriver) Resume() error { d.record("resume"); return nil }
func (d *fakeDriver) Stop() error   { d.record("stop"); return nil }
func (d *fakeDriver) Seek(positionMS int64) error {
	d.record(fmt.Sprintf("seek @%d", positionMS))
	return nil
}
func (d *fakeDriver) Position() (int64, int64, bool) { return 0, 0, false }

func testItems(n int) []catalog.AudioItem {
	items := make([]catalog.AudioItem, n)
	for i := range items {
		items[i] = catalog.AudioItem{
			Title:   fmt.Sprintf("track %d", i),
			URL:     fmt.Sprintf("http://x/%d", i),
			SortKey: int64(n - i),
		}
	}
	return items
}

func newTestSession(t *testing.T, n int) (*Session, *fakeDriver, *persist.Store) {
	t.Helper()
	store, err := persist.Open(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	driver := &fakeDriver{}
	s := New(zap.NewNop(), driver, store)
	if n > 0 {
		persist.Set(store, persist.KeyPlaylist, testItems(n))
	}
	s.Restore()
	return s, driver, store
}

func TestRestoreReleasesSessionLock(t *testing.T) {
	s, _, _ := newTestSession(t, 3)
	done := make(chan Snapshot, 1)
	go func() { done <- s.Snapshot() }()
	select {
	case snap := <-done:
		if len(snap.Items) != 3 {
			t.Fatalf("restored %d items, want 3", len(snap.Items))
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("session still locked after restore")
	}
}

func TestListenersObserveTransitionsInOrder(t *testing.T) {
	s, _, _ := newTestSession(t, 5)
	var mu sync.Mutex
	var order []int
	s.OnChange(func(snap Snapshot) {
		mu.Lock()
		order = append(order, snap.Index)
		mu.Unlock()
	})

	want := []int{0, 1, 2, 3, 4}
	for _, i := range want {
		s.SelectAndPlay(i)
	}

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(order)
		mu.Unlock()
		if n >= len(want) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("only %d of %d deliveries arrived", n, len(want))
		case <-time.After(time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for i, idx := range want {
		if order[i] != idx {
			t.Fatalf("delivery %d carried index %d, want %d (order %v)", i, order[i], idx, order)
		}
	}
}

func TestNavigateWrapsBackwards(t *testing.T) {
	s, _, _ := newTestSession(t, 3)
	s.Navigate(-1)
	if got := s.Snapshot().Index; got != 2 {
		t.Fatalf("index = %d, want 2", got)
	}
}

func TestNavigateFullCycleReturnsToStart(t *testing.T) {
	for _, step := range []int{1, -1, 2, 5, -7} {
		s, _, _ := newTestSession(t, 4)
		for i := 0; i < 4; i++ {
			s.Navigate(step)
			snap := s.Snapshot()
			if snap.Index < 0 || snap.Index >= 4 {
				t.Fatalf("step %d: index %d out of bounds", step, snap.Index)
			}
		}
		if got := s.Snapshot().Index; got != 0 {
			t.Fatalf("step %d: index = %d after full cycle, want 0", step, got)
		}
	}
}

func TestNavigateNoopWhileEmpty(t *testing.T) {
	s, driver, _ := newTestSession(t, 0)
	s.Navigate(1)
	if len(driver.recorded()) != 0 {
		t.Fatalf("driver touched with empty playlist: %v", driver.recorded())
	}
}

func TestSelectAndPlayStartsTrack(t *testing.T) {
	s, driver, _ := newTestSession(t, 3)
	s.SelectAndPlay(2)
	snap := s.Snapshot()
	if snap.Index != 2 || !snap.Playing {
		t.Fatalf("snapshot = %+v", snap)
	}
	if got := driver.last(); got != "play http://x/2 @0" {
		t.Fatalf("driver call = %q", got)
	}
}

func TestReselectRestartsTrack(t *testing.T) {
	s, driver, _ := newTestSession(t, 3)
	s.SelectAndPlay(1)
	s.Apply(renderer.Event{Kind: renderer.EventPlay})
	s.SelectAndPlay(1)
	calls := driver.recorded()
	if calls[len(calls)-2] != "seek @0" || calls[len(calls)-1] != "resume" {
		t.Fatalf("expected seek+resume restart, got %v", calls)
	}
	if got := s.Snapshot().CurrentTime; got != 0 {
		t.Fatalf("time = %v, want 0", got)
	}
}

func TestToggleResumesFromRememberedPosition(t *testing.T) {
	store, err := persist.Open(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	persist.Set(store, persist.KeyPlaylist, testItems(3))
	persist.Set(store, persist.KeyIndex, 1)
	persist.Set(store, persist.KeyTime, 42.5)
	driver := &fakeDriver{}
	s := New(zap.NewNop(), driver, store)
	s.Restore()

	s.Toggle()
	if got := driver.last(); got != "play http://x/1 @42500" {
		t.Fatalf("driver call = %q", got)
	}
	if !s.Snapshot().Playing {
		t.Fatalf("expected playing after toggle")
	}
}

func TestTogglePausesWhenPlaying(t *testing.T) {
	s, driver, _ := newTestSession(t, 3)
	s.SelectAndPlay(0)
	s.Apply(renderer.Event{Kind: renderer.EventPlay})
	s.Toggle()
	if got := driver.last(); got != "pause" {
		t.Fatalf("driver call = %q", got)
	}
	if s.Snapshot().Playing {
		t.Fatalf("still playing after toggle")
	}
}

func TestEndedAdvancesWithWrap(t *testing.T) {
	s, _, _ := newTestSession(t, 3)
	s.SelectAndPlay(2)
	s.Apply(renderer.Event{Kind: renderer.EventEnded})
	if got := s.Snapshot().Index; got != 0 {
		t.Fatalf("index = %d, want wrap to 0", got)
	}
}

func TestTimeUpdatesGatedOnInteraction(t *testing.T) {
	s, _, store := newTestSession(t, 3)
	s.Apply(renderer.Event{Kind: renderer.EventTimeUpdate, Seconds: 99})
	if got := s.Snapshot().CurrentTime; got != 0 {
		t.Fatalf("time updated before interaction: %v", got)
	}

	s.Apply(renderer.Event{Kind: renderer.EventPlay})
	s.Apply(renderer.Event{Kind: renderer.EventTimeUpdate, Seconds: 12.5})
	if got := s.Snapshot().CurrentTime; got != 12.5 {
		t.Fatalf("time = %v, want 12.5", got)
	}
	if got := persist.Get(store, persist.KeyTime, 0.0); got != 12.5 {
		t.Fatalf("persisted time = %v, want 12.5", got)
	}
}

func TestTimeUpdateFromPreviousStreamIgnoredAfterSwitch(t *testing.T) {
	s, _, store := newTestSession(t, 3)
	s.SelectAndPlay(0)
	s.Apply(renderer.Event{Kind: renderer.EventPlay})
	s.Apply(renderer.Event{Kind: renderer.EventTimeUpdate, Seconds: 50})

	s.SelectAndPlay(1)
	// A final position from the torn-down stream lands after the switch.
	s.Apply(renderer.Event{Kind: renderer.EventTimeUpdate, Seconds: 51})
	if got := s.Snapshot().CurrentTime; got != 0 {
		t.Fatalf("stale position applied: %v", got)
	}
	if got := persist.Get(store, persist.KeyTime, -1.0); got != 0 {
		t.Fatalf("stale position persisted: %v", got)
	}

	s.Apply(renderer.Event{Kind: renderer.EventPlay})
	s.Apply(renderer.Event{Kind: renderer.EventTimeUpdate, Seconds: 3})
	if got := s.Snapshot().CurrentTime; got != 3 {
		t.Fatalf("new stream position not applied: %v", got)
	}
}

func TestPlayEventSeeksToRememberedTime(t *testing.T) {
	store, err := persist.Open(t.TempDir(), zap.NewNop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	persist.Set(store, persist.KeyPlaylist, testItems(2))
	persist.Set(store, persist.KeyTime, 10.0)
	driver := &fakeDriver{}
	s := New(zap.NewNop(), driver, store)
	s.Restore()

	s.Apply(renderer.Event{Kind: renderer.EventPlay})
	if got := driver.last(); got != "seek @10000" {
		t.Fatalf("driver call = %q", got)
	}
}

func TestSeekGesture(t *testing.T) {
	s, driver, _ := newTestSession(t, 3)
	s.SelectAndPlay(0)
	s.Apply(renderer.Event{Kind: renderer.EventPlay})

	s.SeekPreview(30)
	s.Apply(renderer.Event{Kind: renderer.EventTimeUpdate, Seconds: 5})
	if got := s.Snapshot().CurrentTime; got != 30 {
		t.Fatalf("preview overwritten by time update: %v", got)
	}

	s.SeekCommit(45)
	if got := driver.last(); got != "seek @45000" {
		t.Fatalf("driver call = %q", got)
	}
	s.Apply(renderer.Event{Kind: renderer.EventTimeUpdate, Seconds: 46})
	if got := s.Snapshot().CurrentTime; got != 46 {
		t.Fatalf("time updates still suppressed after commit: %v", got)
	}
}

func TestSeekCommitWhilePausedStartsPlayback(t *testing.T) {
	s, driver, _ := newTestSession(t, 3)
	s.SelectAndPlay(0)
	s.Apply(renderer.Event{Kind: renderer.EventPlay})
	s.Toggle() // pause
	s.SeekCommit(20)
	calls := driver.recorded()
	if calls[len(calls)-2] != "seek @20000" || calls[len(calls)-1] != "resume" {
		t.Fatalf("expected seek+resume, got %v", calls)
	}
	if !s.Snapshot().Playing {
		t.Fatalf("expected playing after commit while paused")
	}
}

func TestForcePause(t *testing.T) {
	s, driver, _ := newTestSession(t, 3)
	s.SelectAndPlay(0)
	s.ForcePause()
	if got := driver.last(); got != "pause" {
		t.Fatalf("driver call = %q", got)
	}
	s.ForcePause() // idempotent while paused
	if got := driver.last(); got != "pause" {
		t.Fatalf("second force-pause touched driver: %q", got)
	}
}

func TestShuffleKeepsItemSetAndPlaysFirst(t *testing.T) {
	s, driver, store := newTestSession(t, 5)
	before := s.Snapshot().Items
	s.Shuffle()
	snap := s.Snapshot()
	if snap.Index != 0 || !snap.Playing {
		t.Fatalf("snapshot = %+v", snap)
	}
	if len(snap.Items) != len(before) {
		t.Fatalf("length changed: %d", len(snap.Items))
	}
	seen := make(map[string]bool, len(before))
	for _, item := range before {
		seen[item.URL] = true
	}
	for _, item := range snap.Items {
		if !seen[item.URL] {
			t.Fatalf("unknown item %q after shuffle", item.URL)
		}
	}
	if got := driver.last(); got != "play "+snap.Items[0].URL+" @0" {
		t.Fatalf("driver call = %q", got)
	}
	persisted := persist.Get(store, persist.KeyPlaylist, []catalog.AudioItem(nil))
	if len(persisted) != len(snap.Items) || persisted[0] != snap.Items[0] {
		t.Fatalf("shuffled playlist not persisted")
	}
}

func TestReloadCommitsAndPlaysFirst(t *testing.T) {
	s, driver, _ := newTestSession(t, 2)
	fresh := testItems(4)
	err := s.Reload(context.Background(), func(context.Context) ([]catalog.AudioItem, error) {
		return fresh, nil
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Items) != 4 || snap.Index != 0 || !snap.Playing || snap.Loading {
		t.Fatalf("snapshot = %+v", snap)
	}
	if got := driver.last(); got != "play http://x/0 @0" {
		t.Fatalf("driver call = %q", got)
	}
}

func TestReloadFailureKeepsPlaylist(t *testing.T) {
	s, _, _ := newTestSession(t, 3)
	err := s.Reload(context.Background(), func(context.Context) ([]catalog.AudioItem, error) {
		return nil, errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
	snap := s.Snapshot()
	if len(snap.Items) != 3 || snap.Index != 0 || snap.Loading {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestReloadEmptyResultCommits(t *testing.T) {
	s, _, store := newTestSession(t, 3)
	err := s.Reload(context.Background(), func(context.Context) ([]catalog.AudioItem, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Items) != 0 || snap.Index != NoSelection {
		t.Fatalf("snapshot = %+v", snap)
	}
	if got := persist.Get(store, persist.KeyPlaylist, testItems(1)); len(got) != 0 {
		t.Fatalf("empty snapshot not persisted")
	}
}

func TestReloadDropsStaleResult(t *testing.T) {
	s, _, _ := newTestSession(t, 1)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	stale := testItems(9)
	go func() {
		done <- s.Reload(context.Background(), func(context.Context) ([]catalog.AudioItem, error) {
			close(started)
			<-release
			return stale, nil
		})
	}()
	<-started

	fresh := testItems(2)
	if err := s.Reload(context.Background(), func(context.Context) ([]catalog.AudioItem, error) {
		return fresh, nil
	}); err != nil {
		t.Fatalf("reload: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("stale reload errored: %v", err)
	}
	if got := len(s.Snapshot().Items); got != 2 {
		t.Fatalf("stale result applied: %d items", got)
	}
}

func TestProgress(t *testing.T) {
	cases := []struct {
		time, duration, want float64
	}{
		{10, 0, 0},
		{0, 100, 0},
		{50, 100, 50},
		{100, 100, 100},
		{150, 100, 100},
	}
	for _, tc := range cases {
		snap := Snapshot{CurrentTime: tc.time, Duration: tc.duration}
		if got := snap.Progress(); got != tc.want {
			t.Fatalf("progress(%v/%v) = %v, want %v", tc.time, tc.duration, got, tc.want)
		}
	}
}
