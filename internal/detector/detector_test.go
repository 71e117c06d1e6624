package detector

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

var testCadence = domain.Cadence{Interval: 250 * time.Millisecond, PositionThreshold: time.Second}

// step is one scripted sample
type step struct {
	snap domain.Snapshot
	err  error
}

// scriptedSource replays steps in order and repeats the last one forever
type scriptedSource struct {
	mu    sync.Mutex
	steps []step
	i     int
	app   string
}

func (s *scriptedSource) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.steps[s.i]
	if s.i < len(s.steps)-1 {
		s.i++
	}
	return st.snap, st.err
}

func (s *scriptedSource) ActiveApp() (string, bool) {
	return s.app, s.app != ""
}

func newTestDetector(debounce time.Duration) *Detector {
	return New(zap.NewNop(), &scriptedSource{app: "spotify", steps: []step{{}}}, testCadence, debounce)
}

// feed runs the samples one tick apart starting at t0 and returns all published items
func feed(d *Detector, t0 time.Time, tick time.Duration, steps ...step) []domain.EventItem {
	var out []domain.EventItem
	for i, st := range steps {
		out = append(out, d.Observe(t0.Add(time.Duration(i)*tick), st.snap, st.err)...)
	}
	return out
}

func kinds(items []domain.EventItem) []domain.EventKind {
	var ks []domain.EventKind
	for _, it := range items {
		if it.Event != nil {
			ks = append(ks, it.Event.Kind())
		}
	}
	return ks
}

func equalKinds(a, b []domain.EventKind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestObserve_IdenticalTitlesCollapse(t *testing.T) {
	d := newTestDetector(0)
	items := feed(d, time.Unix(0, 0), testCadence.Interval,
		step{snap: domain.Snapshot{Title: "A"}},
		step{snap: domain.Snapshot{Title: "A"}},
		step{snap: domain.Snapshot{Title: "B"}},
	)

	var titles []string
	for _, it := range items {
		if m, ok := it.Event.(domain.MetadataChanged); ok {
			titles = append(titles, m.Snapshot.Title)
		}
	}
	if len(titles) != 2 || titles[0] != "A" || titles[1] != "B" {
		t.Fatalf("expected metadata events [A B], got %v", titles)
	}
}

func TestObserve_SessionAppears(t *testing.T) {
	d := newTestDetector(domain.DefaultDebounce)
	items := feed(d, time.Unix(0, 0), testCadence.Interval,
		step{err: domain.NoSession()},
		step{snap: domain.Snapshot{Title: "X", Status: domain.StatusPlaying}},
		step{snap: domain.Snapshot{Title: "X", Status: domain.StatusPlaying}},
		step{snap: domain.Snapshot{Title: "X", Status: domain.StatusPlaying}},
	)

	want := []domain.EventKind{domain.KindSessionOpened, domain.KindMetadataChanged}
	if got := kinds(items); !equalKinds(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if open := items[0].Event.(domain.SessionOpened); open.AppName != "spotify" {
		t.Errorf("expected app name spotify, got %q", open.AppName)
	}
	if meta := items[1].Event.(domain.MetadataChanged); meta.Snapshot.Title != "X" {
		t.Errorf("expected title X, got %q", meta.Snapshot.Title)
	}
}

func TestObserve_Idempotence(t *testing.T) {
	d := newTestDetector(0)
	snap := domain.Snapshot{
		Title:    "Song",
		Artist:   "Band",
		Status:   domain.StatusPaused,
		Position: domain.Ptr(30 * time.Second),
		Volume:   domain.Ptr(0.5),
		Repeat:   domain.Ptr(domain.RepeatAll),
		Shuffle:  domain.Ptr(true),
	}

	t0 := time.Unix(100, 0)
	// Let the detector settle: open, metadata, then the remaining fields one per tick
	for i := 0; i < 6; i++ {
		d.Observe(t0.Add(time.Duration(i)*time.Second), snap, nil)
	}
	for i := 6; i < 50; i++ {
		if items := d.Observe(t0.Add(time.Duration(i)*time.Second), snap, nil); len(items) != 0 {
			t.Fatalf("tick %d: expected no events for identical snapshot, got %v", i, kinds(items))
		}
	}
}

func TestObserve_Precedence(t *testing.T) {
	tests := []struct {
		name string
		next domain.Snapshot
		want domain.EventKind
	}{
		{
			name: "Title and status change yields metadata only",
			next: domain.Snapshot{Title: "New", Artist: "Band", Status: domain.StatusPaused, Position: domain.Ptr(90 * time.Second)},
			want: domain.KindMetadataChanged,
		},
		{
			name: "Artist change is metadata",
			next: domain.Snapshot{Title: "Old", Artist: "Other", Status: domain.StatusPlaying},
			want: domain.KindMetadataChanged,
		},
		{
			name: "Status beats position",
			next: domain.Snapshot{Title: "Old", Artist: "Band", Status: domain.StatusPaused, Position: domain.Ptr(90 * time.Second)},
			want: domain.KindPlaybackStatusChanged,
		},
		{
			name: "Position jump",
			next: domain.Snapshot{Title: "Old", Artist: "Band", Status: domain.StatusPlaying, Position: domain.Ptr(90 * time.Second)},
			want: domain.KindPositionChanged,
		},
		{
			name: "Artwork reference",
			next: domain.Snapshot{Title: "Old", Artist: "Band", Status: domain.StatusPlaying, Position: domain.Ptr(10 * time.Second), ThumbnailURL: "file:///cover.png"},
			want: domain.KindArtworkChanged,
		},
		{
			name: "Volume",
			next: domain.Snapshot{Title: "Old", Artist: "Band", Status: domain.StatusPlaying, Position: domain.Ptr(10 * time.Second), Volume: domain.Ptr(0.3)},
			want: domain.KindVolumeChanged,
		},
		{
			name: "Shuffle",
			next: domain.Snapshot{Title: "Old", Artist: "Band", Status: domain.StatusPlaying, Position: domain.Ptr(10 * time.Second), Shuffle: domain.Ptr(true)},
			want: domain.KindRepeatModeChanged,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector(0)
			t0 := time.Unix(0, 0)
			base := domain.Snapshot{Title: "Old", Artist: "Band", Status: domain.StatusPlaying, Position: domain.Ptr(10 * time.Second)}
			// open + metadata, then status settles on the next tick
			d.Observe(t0, base, nil)
			d.Observe(t0.Add(time.Second), base, nil)

			items := d.Observe(t0.Add(2*time.Second), tt.next, nil)
			if len(items) != 1 {
				t.Fatalf("expected exactly one event, got %v", kinds(items))
			}
			if items[0].Event.Kind() != tt.want {
				t.Errorf("expected %v, got %v", tt.want, items[0].Event.Kind())
			}
		})
	}
}

func TestObserve_PositionJumpThreshold(t *testing.T) {
	d := newTestDetector(0)
	t0 := time.Unix(0, 0)
	at := func(pos time.Duration) domain.Snapshot {
		return domain.Snapshot{Title: "T", Status: domain.StatusPlaying, Position: domain.Ptr(pos)}
	}

	d.Observe(t0, at(10*time.Second), nil) // open + metadata, reference = 10s
	d.Observe(t0.Add(time.Second), at(10*time.Second), nil)

	if items := d.Observe(t0.Add(2*time.Second), at(10500*time.Millisecond), nil); len(items) != 0 {
		t.Fatalf("sub-threshold move should not emit, got %v", kinds(items))
	}

	items := d.Observe(t0.Add(3*time.Second), at(12*time.Second), nil)
	if len(items) != 1 {
		t.Fatalf("expected one position event, got %v", kinds(items))
	}
	pc, ok := items[0].Event.(domain.PositionChanged)
	if !ok {
		t.Fatalf("expected PositionChanged, got %T", items[0].Event)
	}
	if pc.Position != 12*time.Second {
		t.Errorf("position: want 12s, got %s", pc.Position)
	}
	if pc.OldPosition == nil || *pc.OldPosition != 10*time.Second {
		t.Errorf("old position: want 10s, got %v", pc.OldPosition)
	}

	// The reference moved to 12s
	if items := d.Observe(t0.Add(4*time.Second), at(12500*time.Millisecond), nil); len(items) != 0 {
		t.Errorf("expected no event near the new reference, got %v", kinds(items))
	}

	// Backwards seek is a jump too
	items = d.Observe(t0.Add(5*time.Second), at(2*time.Second), nil)
	if len(items) != 1 || items[0].Event.Kind() != domain.KindPositionChanged {
		t.Errorf("expected backwards seek to emit, got %v", kinds(items))
	}
}

func TestObserve_DebounceSuppressesAndDrops(t *testing.T) {
	d := newTestDetector(time.Second)
	t0 := time.Unix(0, 0)

	items := d.Observe(t0, domain.Snapshot{Title: "A"}, nil)
	if got := kinds(items); !equalKinds(got, []domain.EventKind{domain.KindSessionOpened, domain.KindMetadataChanged}) {
		t.Fatalf("unexpected opening events %v", got)
	}

	// Inside the window: dropped, but the cache moves to B
	if items := d.Observe(t0.Add(200*time.Millisecond), domain.Snapshot{Title: "B"}, nil); len(items) != 0 {
		t.Fatalf("expected suppression, got %v", kinds(items))
	}
	// Still B after the window: nothing to report since B is cached
	if items := d.Observe(t0.Add(1500*time.Millisecond), domain.Snapshot{Title: "B"}, nil); len(items) != 0 {
		t.Fatalf("dropped event must not be replayed, got %v", kinds(items))
	}
	// A fresh change after the window is emitted
	items = d.Observe(t0.Add(1600*time.Millisecond), domain.Snapshot{Title: "C"}, nil)
	if len(items) != 1 || items[0].Event.(domain.MetadataChanged).Snapshot.Title != "C" {
		t.Fatalf("expected MetadataChanged(C), got %v", kinds(items))
	}
}

func TestObserve_StructuralEventsBypassDebounce(t *testing.T) {
	d := newTestDetector(10 * time.Second)
	t0 := time.Unix(0, 0)

	var all []domain.EventItem
	all = append(all, d.Observe(t0, domain.Snapshot{Title: "A"}, nil)...)
	all = append(all, d.Observe(t0.Add(100*time.Millisecond), domain.Snapshot{}, domain.NoSession())...)
	all = append(all, d.Observe(t0.Add(200*time.Millisecond), domain.Snapshot{Title: "A"}, nil)...)
	all = append(all, d.Observe(t0.Add(300*time.Millisecond), domain.Snapshot{}, domain.NoSession())...)

	want := []domain.EventKind{
		domain.KindSessionOpened,
		domain.KindMetadataChanged,
		domain.KindSessionClosed,
		domain.KindSessionOpened,
		domain.KindMetadataChanged,
		domain.KindSessionClosed,
	}
	if got := kinds(all); !equalKinds(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestObserve_ReopenInsideWindowReportsNewTrack(t *testing.T) {
	d := newTestDetector(domain.DefaultDebounce)
	items := feed(d, time.Unix(0, 0), testCadence.Interval,
		step{snap: domain.Snapshot{Title: "A"}},
		step{err: domain.NoSession()},
		step{snap: domain.Snapshot{Title: "X"}},
		step{snap: domain.Snapshot{Title: "X"}},
	)

	want := []domain.EventKind{
		domain.KindSessionOpened,
		domain.KindMetadataChanged,
		domain.KindSessionClosed,
		domain.KindSessionOpened,
		domain.KindMetadataChanged,
	}
	if got := kinds(items); !equalKinds(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if meta := items[4].Event.(domain.MetadataChanged); meta.Snapshot.Title != "X" {
		t.Errorf("expected title X, got %q", meta.Snapshot.Title)
	}
}

func TestObserve_NoSessionWhileIdleIsSilent(t *testing.T) {
	d := newTestDetector(0)
	for i := 0; i < 5; i++ {
		if items := d.Observe(time.Unix(int64(i), 0), domain.Snapshot{}, domain.NoSession()); len(items) != 0 {
			t.Fatalf("expected nothing while idle, got %v", kinds(items))
		}
	}
}

func TestObserve_TransientErrorKeepsState(t *testing.T) {
	d := newTestDetector(0)
	t0 := time.Unix(0, 0)
	snap := domain.Snapshot{Title: "A", Status: domain.StatusPlaying}

	d.Observe(t0, snap, nil)
	d.Observe(t0.Add(time.Second), snap, nil)

	busErr := domain.BusError("get metadata", errors.New("connection reset"))
	items := d.Observe(t0.Add(2*time.Second), domain.Snapshot{}, busErr)
	if len(items) != 1 || items[0].Err == nil || items[0].Event != nil {
		t.Fatalf("expected a single error item, got %+v", items)
	}
	if !errors.Is(items[0].Err, domain.ErrBus) {
		t.Errorf("expected bus error, got %v", items[0].Err)
	}

	if items := d.Observe(t0.Add(3*time.Second), snap, nil); len(items) != 0 {
		t.Errorf("state should survive a failed sample, got %v", kinds(items))
	}
}

// TestObserve_DebounceLaw checks that two non-structural emissions within one session
// are never closer than the debounce window.
func TestObserve_DebounceLaw(t *testing.T) {
	const debounce = 700 * time.Millisecond
	d := newTestDetector(debounce)
	rng := rand.New(rand.NewSource(42))

	titles := []string{"A", "B", "C"}
	statuses := []domain.PlaybackStatus{domain.StatusPlaying, domain.StatusPaused}
	now := time.Unix(0, 0)
	last := map[domain.EventKind]time.Time{}

	for i := 0; i < 2000; i++ {
		now = now.Add(time.Duration(50+rng.Intn(300)) * time.Millisecond)
		var items []domain.EventItem
		if rng.Intn(20) == 0 {
			items = d.Observe(now, domain.Snapshot{}, domain.NoSession())
		} else {
			items = d.Observe(now, domain.Snapshot{
				Title:    titles[rng.Intn(len(titles))],
				Status:   statuses[rng.Intn(len(statuses))],
				Position: domain.Ptr(time.Duration(rng.Intn(200)) * time.Second),
			}, nil)
		}
		for _, it := range items {
			k := it.Event.Kind()
			if k == domain.KindSessionClosed {
				clear(last)
			}
			if k.Structural() {
				continue
			}
			for other, at := range last {
				if it.At.Sub(at) < debounce {
					t.Fatalf("tick %d: %v emitted %s after %v", i, k, it.At.Sub(at), other)
				}
			}
			last[k] = it.At
		}
	}
}

func TestRun_DeliversInOrderAndStopsOnClose(t *testing.T) {
	src := &scriptedSource{
		app: "vlc",
		steps: []step{
			{err: domain.NoSession()},
			{snap: domain.Snapshot{Title: "First"}},
			{snap: domain.Snapshot{Title: "Second"}},
		},
	}
	d := New(zap.NewNop(), src, domain.Cadence{Interval: 5 * time.Millisecond, PositionThreshold: time.Second}, 0)
	sub := Start(context.Background(), d, nil)

	var got []domain.EventKind
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case it, ok := <-sub.Events():
			if !ok {
				t.Fatal("stream closed early")
			}
			got = append(got, it.Event.Kind())
		case <-timeout:
			t.Fatalf("timeout, got %v", got)
		}
	}

	want := []domain.EventKind{domain.KindSessionOpened, domain.KindMetadataChanged, domain.KindMetadataChanged}
	if !equalKinds(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	sub.Close()
	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("sampling goroutine did not stop after Close")
	}
	for range sub.Events() {
		// drain until closed
	}
}

func TestRun_NudgeTriggersEarlySample(t *testing.T) {
	src := &scriptedSource{
		steps: []step{
			{snap: domain.Snapshot{Title: "A"}},
			{snap: domain.Snapshot{Title: "B"}},
		},
	}
	// An hour-long interval: only the nudge can trigger the second sample
	d := New(zap.NewNop(), src, domain.Cadence{Interval: time.Hour, PositionThreshold: time.Second}, 0)
	nudges := make(chan struct{}, 1)
	sub := Start(context.Background(), d, nudges)
	defer sub.Close()

	expectTitle := func(title string) {
		t.Helper()
		for {
			select {
			case it := <-sub.Events():
				if m, ok := it.Event.(domain.MetadataChanged); ok {
					if m.Snapshot.Title != title {
						t.Fatalf("expected %s, got %s", title, m.Snapshot.Title)
					}
					return
				}
			case <-time.After(time.Second):
				t.Fatalf("timeout waiting for %s", title)
			}
		}
	}

	expectTitle("A")
	nudges <- struct{}{}
	expectTitle("B")
}
