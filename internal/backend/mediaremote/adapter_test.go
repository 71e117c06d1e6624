package mediaremote

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

// scriptRunner answers each osascript call by matching the application named in the script
type scriptRunner struct {
	mu      sync.Mutex
	answers map[string]string // application name -> output
	errs    map[string]error
	scripts []string
}

func (r *scriptRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	script := args[len(args)-1]
	r.scripts = append(r.scripts, script)
	for app, err := range r.errs {
		if strings.Contains(script, `"`+app+`"`) {
			return nil, err
		}
	}
	for app, out := range r.answers {
		if strings.Contains(script, `"`+app+`"`) {
			return []byte(out), nil
		}
	}
	return []byte(notRunningMarker), nil
}

func (r *scriptRunner) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scripts[len(r.scripts)-1]
}

func line(fields ...string) string {
	return strings.Join(fields, "\t") + "\n"
}

func TestSnapshot(t *testing.T) {
	tests := []struct {
		name    string
		answers map[string]string
		errs    map[string]error
		wantApp string
		wantErr error
		check   func(*testing.T, domain.Snapshot)
	}{
		{
			name: "Music Playing",
			answers: map[string]string{
				"Music": line("playing", "Song", "Band", "Record", "245,5", "12.25", "4", "1", "Rock", "1999", ""),
			},
			wantApp: "Music",
			check: func(t *testing.T, s domain.Snapshot) {
				if s.Title != "Song" || s.Artist != "Band" || s.Album != "Record" {
					t.Errorf("unexpected metadata: %+v", s)
				}
				if s.Duration == nil || *s.Duration != 245500*time.Millisecond {
					t.Errorf("duration: got %v", s.Duration)
				}
				if s.Position == nil || *s.Position != 12250*time.Millisecond {
					t.Errorf("position: got %v", s.Position)
				}
				if s.Year != 1999 || s.Genre != "Rock" || s.TrackNumber != 4 || s.DiscNumber != 1 {
					t.Errorf("extended metadata: %+v", s)
				}
			},
		},
		{
			name: "Spotify Duration In Milliseconds",
			answers: map[string]string{
				"Spotify": line("paused", "Track", "Artist", "Album", "200000", "3", "1", "1", "", "0", "https://i.scdn.co/image/abc"),
			},
			wantApp: "Spotify",
			check: func(t *testing.T, s domain.Snapshot) {
				if s.Duration == nil || *s.Duration != 200*time.Second {
					t.Errorf("duration: got %v", s.Duration)
				}
				if s.Status != domain.StatusPaused {
					t.Errorf("status: got %v", s.Status)
				}
				if s.ThumbnailURL != "https://i.scdn.co/image/abc" {
					t.Errorf("thumbnail: got %q", s.ThumbnailURL)
				}
			},
		},
		{
			name: "Music Stopped Falls Through To Spotify",
			answers: map[string]string{
				"Music":   stoppedMarker,
				"Spotify": line("playing", "Track", "Artist", "Album", "1000", "0", "1", "1", "", "0", ""),
			},
			wantApp: "Spotify",
			check:   func(*testing.T, domain.Snapshot) {},
		},
		{
			name: "Probe Error Is Skipped",
			errs: map[string]error{"Music": errors.New("execution error")},
			answers: map[string]string{
				"Spotify": line("playing", "Track", "Artist", "Album", "1000", "0", "1", "1", "", "0", ""),
			},
			wantApp: "Spotify",
			check:   func(*testing.T, domain.Snapshot) {},
		},
		{
			name:    "Nothing Running",
			answers: map[string]string{},
			wantErr: domain.ErrNoSession,
		},
		{
			name:    "Malformed Output",
			answers: map[string]string{"Music": "playing|Song"},
			wantErr: domain.ErrNativeCall,
		},
		{
			name:    "Deadline Passes Through",
			errs:    map[string]error{"Music": context.DeadlineExceeded},
			wantErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := New(zap.NewNop(), &scriptRunner{answers: tt.answers, errs: tt.errs}, nil)

			snap, err := a.Snapshot(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if app, ok := a.ActiveApp(); !ok || app != tt.wantApp {
				t.Errorf("ActiveApp: got %q, %v; want %q", app, ok, tt.wantApp)
			}
			tt.check(t, snap)
		})
	}
}

func TestSnapshot_DetachesWhenPlayerQuits(t *testing.T) {
	runner := &scriptRunner{answers: map[string]string{
		"Spotify": line("playing", "Track", "Artist", "Album", "1000", "0", "1", "1", "", "0", ""),
	}}
	a := New(zap.NewNop(), runner, nil)

	if _, err := a.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	runner.mu.Lock()
	runner.answers["Spotify"] = notRunningMarker
	runner.mu.Unlock()

	if _, err := a.Snapshot(context.Background()); !errors.Is(err, domain.ErrNoSession) {
		t.Fatalf("expected no session, got %v", err)
	}
	if _, ok := a.ActiveApp(); ok {
		t.Error("player should be detached")
	}
}

func TestCommands(t *testing.T) {
	tests := []struct {
		name       string
		player     string
		call       func(*Adapter) error
		wantScript string
	}{
		{"Play", "Music", func(a *Adapter) error { return a.Play(context.Background()) }, `tell application "Music" to play`},
		{"Toggle", "Spotify", func(a *Adapter) error { return a.PlayPause(context.Background()) }, `tell application "Spotify" to playpause`},
		{"Music Stop", "Music", func(a *Adapter) error { return a.Stop(context.Background()) }, `tell application "Music" to stop`},
		{"Spotify Stop Pauses", "Spotify", func(a *Adapter) error { return a.Stop(context.Background()) }, `tell application "Spotify" to pause`},
		{"Next", "Music", func(a *Adapter) error { return a.Next(context.Background()) }, `tell application "Music" to next track`},
		{"Previous", "Spotify", func(a *Adapter) error { return a.Previous(context.Background()) }, `tell application "Spotify" to previous track`},
		{"Seek", "Music", func(a *Adapter) error { return a.Seek(context.Background(), 1500*time.Millisecond) }, `set player position to 1.500`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptRunner{answers: map[string]string{
				tt.player: line("playing", "T", "A", "B", "1000", "0", "1", "1", "", "0", ""),
			}}
			a := New(zap.NewNop(), runner, nil)

			if err := tt.call(a); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := runner.last(); !strings.Contains(got, tt.wantScript) {
				t.Errorf("last script %q does not contain %q", got, tt.wantScript)
			}
		})
	}
}

func TestCommands_NoSession(t *testing.T) {
	a := New(zap.NewNop(), &scriptRunner{answers: map[string]string{}}, nil)
	if err := a.Next(context.Background()); !errors.Is(err, domain.ErrNoSession) {
		t.Errorf("expected no session, got %v", err)
	}
}

func TestPropertyCommands_Unsupported(t *testing.T) {
	a := New(zap.NewNop(), &scriptRunner{}, nil)
	ctx := context.Background()

	for name, err := range map[string]error{
		"volume":  a.SetVolume(ctx, 0.3),
		"repeat":  a.SetRepeatMode(ctx, domain.RepeatAll),
		"shuffle": a.SetShuffle(ctx, true),
	} {
		if !errors.Is(err, domain.ErrBackend) {
			t.Errorf("%s: expected backend error, got %v", name, err)
		}
	}
}

type stubFetcher struct {
	url  string
	data []byte
}

func (f *stubFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.url = url
	return f.data, nil
}

func TestArtwork_UsesLastArtworkURL(t *testing.T) {
	fetcher := &stubFetcher{data: []byte{0xFF, 0xD8, 0xFF}}
	runner := &scriptRunner{answers: map[string]string{
		"Spotify": line("playing", "T", "A", "B", "1000", "0", "1", "1", "", "0", "https://i.scdn.co/image/abc"),
	}}
	a := New(zap.NewNop(), runner, fetcher)

	if data, err := a.Artwork(context.Background()); err != nil || data != nil {
		t.Fatalf("expected no artwork before the first probe, got %v, %v", data, err)
	}
	if _, err := a.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	data, err := a.Artwork(context.Background())
	if err != nil {
		t.Fatalf("Artwork: %v", err)
	}
	if fetcher.url != "https://i.scdn.co/image/abc" || len(data) != 3 {
		t.Errorf("unexpected fetch %q -> %v", fetcher.url, data)
	}
}
