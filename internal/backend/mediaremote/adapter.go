package mediaremote

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

const (
	// Platform is the name reported by the adapter
	Platform = "macos"

	// Shell is the interpreter the probe scripts run in
	Shell = "osascript"
)

// Cadence for the AppleScript probe
var Cadence = domain.Cadence{
	Interval:          500 * time.Millisecond,
	PositionThreshold: time.Second,
}

// Adapter implements domain.Backend for macOS by scripting Music and Spotify through osascript
type Adapter struct {
	logger  *zap.Logger
	runner  domain.Runner
	fetcher domain.Fetcher

	mu      sync.RWMutex
	current *player // Cache the player commands go to
	artURL  string  // Artwork URL reported by the last probe
}

// New creates an adapter; fetcher resolves Spotify artwork URLs and may be nil
func New(logger *zap.Logger, runner domain.Runner, fetcher domain.Fetcher) *Adapter {
	return &Adapter{
		logger:  logger.Named("mediaremote"),
		runner:  runner,
		fetcher: fetcher,
	}
}

// Platform implements domain.Backend
func (a *Adapter) Platform() string { return Platform }

// Cadence implements domain.Backend
func (a *Adapter) Cadence() domain.Cadence { return Cadence }

// ActiveApp returns the player found by the last probe
func (a *Adapter) ActiveApp() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return "", false
	}
	return a.current.name, true
}

func (a *Adapter) runScript(ctx context.Context, script string) (string, error) {
	out, err := a.runner.Run(ctx, Shell, "-e", script)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\r\n"), nil
}

// candidates returns the attached player first, then the rest in priority order
func (a *Adapter) candidates() []player {
	a.mu.RLock()
	current := a.current
	a.mu.RUnlock()

	if current == nil {
		return players
	}
	ordered := []player{*current}
	for _, p := range players {
		if p.name != current.name {
			ordered = append(ordered, p)
		}
	}
	return ordered
}

func (a *Adapter) attach(p *player, artURL string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch {
	case p == nil && a.current != nil:
		a.logger.Info("Player detached", zap.String("player", a.current.name))
	case p != nil && (a.current == nil || a.current.name != p.name):
		a.logger.Info("Player attached", zap.String("player", p.name))
	}
	a.current = p
	a.artURL = artURL
}

// Snapshot probes the players in order and returns the first one with a loaded track
func (a *Adapter) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	var lastErr error
	for _, p := range a.candidates() {
		out, err := a.runScript(ctx, p.probeScript())
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return domain.Snapshot{}, err
			}
			// Usually the application is not installed
			a.logger.Debug("Player probe failed", zap.String("player", p.name), zap.Error(err))
			lastErr = err
			continue
		}
		if out == notRunningMarker || out == stoppedMarker {
			continue
		}

		snap, err := parseProbe(out, p.durationUnit)
		if err != nil {
			return domain.Snapshot{}, domain.NativeCallError("snapshot", err)
		}
		a.attach(&p, snap.ThumbnailURL)
		return snap, nil
	}

	a.attach(nil, "")
	if lastErr != nil {
		a.logger.Debug("No player answered", zap.Error(lastErr))
	}
	return domain.Snapshot{}, domain.NoSession()
}

// Artwork fetches the artwork URL of the last probe; Music exposes none this way
func (a *Adapter) Artwork(ctx context.Context) ([]byte, error) {
	a.mu.RLock()
	url := a.artURL
	a.mu.RUnlock()

	if url == "" || a.fetcher == nil {
		return nil, nil
	}
	return a.fetcher.Fetch(ctx, url)
}

// target returns the attached player, probing once if nothing is attached
func (a *Adapter) target(ctx context.Context) (player, error) {
	a.mu.RLock()
	current := a.current
	a.mu.RUnlock()
	if current != nil {
		return *current, nil
	}

	if _, err := a.Snapshot(ctx); err != nil {
		return player{}, err
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return player{}, domain.NoSession()
	}
	return *a.current, nil
}

func (a *Adapter) command(ctx context.Context, op string, script func(player) string) error {
	p, err := a.target(ctx)
	if err != nil {
		return err
	}
	if _, err := a.runScript(ctx, script(p)); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return domain.NativeCallError(op, err)
	}
	a.logger.Debug("Command sent", zap.String("command", op), zap.String("player", p.name))
	return nil
}

func verb(v string) func(player) string {
	return func(p player) string { return p.commandScript(v) }
}

func (a *Adapter) Play(ctx context.Context) error {
	return a.command(ctx, "Play", verb("play"))
}

func (a *Adapter) Pause(ctx context.Context) error {
	return a.command(ctx, "Pause", verb("pause"))
}

func (a *Adapter) PlayPause(ctx context.Context) error {
	return a.command(ctx, "PlayPause", verb("playpause"))
}

// Stop halts Music; Spotify has no stop verb and is paused instead
func (a *Adapter) Stop(ctx context.Context) error {
	return a.command(ctx, "Stop", func(p player) string { return p.commandScript(p.stop) })
}

func (a *Adapter) Next(ctx context.Context) error {
	return a.command(ctx, "Next", verb("next track"))
}

func (a *Adapter) Previous(ctx context.Context) error {
	return a.command(ctx, "Previous", verb("previous track"))
}

func (a *Adapter) Seek(ctx context.Context, position time.Duration) error {
	return a.command(ctx, "Seek", func(p player) string { return p.seekScript(position) })
}

func (a *Adapter) SetVolume(ctx context.Context, volume float64) error {
	return domain.Unsupported(Platform, "volume control")
}

func (a *Adapter) SetRepeatMode(ctx context.Context, mode domain.RepeatMode) error {
	return domain.Unsupported(Platform, "repeat mode control")
}

func (a *Adapter) SetShuffle(ctx context.Context, enabled bool) error {
	return domain.Unsupported(Platform, "shuffle control")
}

// Close has nothing to release; every probe is its own process
func (a *Adapter) Close() error {
	a.logger.Debug("macOS adapter closed")
	return nil
}

// parseProbe splits the tab-separated probe line
func parseProbe(out string, durationUnit time.Duration) (domain.Snapshot, error) {
	parts := strings.Split(out, "\t")
	if len(parts) != probeFields {
		return domain.Snapshot{}, fmt.Errorf("unexpected metadata format: %d fields", len(parts))
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	snap := domain.Snapshot{
		Status:       parseState(parts[0]),
		Title:        parts[1],
		Artist:       parts[2],
		Album:        parts[3],
		TrackNumber:  atoi(parts[6]),
		DiscNumber:   atoi(parts[7]),
		Genre:        parts[8],
		Year:         atoi(parts[9]),
		ThumbnailURL: parts[10],
	}
	if d, ok := parseNumber(parts[4]); ok && d > 0 {
		snap.Duration = domain.Ptr(time.Duration(d * float64(durationUnit)))
	}
	if pos, ok := parseNumber(parts[5]); ok && pos >= 0 {
		snap.Position = domain.Ptr(time.Duration(pos * float64(time.Second)))
	}
	return snap, nil
}

func parseState(s string) domain.PlaybackStatus {
	switch s {
	case "playing":
		return domain.StatusPlaying
	case "paused":
		return domain.StatusPaused
	case "stopped":
		return domain.StatusStopped
	default:
		// fast forwarding, rewinding
		return domain.StatusTransitioning
	}
}

// parseNumber accepts the locale-dependent decimal comma AppleScript may produce
func parseNumber(s string) (float64, bool) {
	if s == "" || s == "missing value" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
