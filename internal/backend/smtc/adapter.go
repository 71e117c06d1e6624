package smtc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

const (
	// Platform is the name reported by the adapter
	Platform = "windows"

	// Shell is the interpreter the probe scripts run in
	Shell = "powershell.exe"

	noSessionMarker = "nosession"
	// SMTC timeline values are expressed in 100ns ticks
	tickDuration = 100 * time.Nanosecond
)

// Cadence samples faster than MPRIS since SMTC has no push channel here
var Cadence = domain.Cadence{
	Interval:          250 * time.Millisecond,
	PositionThreshold: time.Second,
}

// Native GlobalSystemMediaTransportControlsSessionPlaybackStatus values
const (
	nativeClosed = iota
	nativeOpened
	nativeChanging
	nativeStopped
	nativePlaying
	nativePaused
)

// Native MediaPlaybackAutoRepeatMode values
const (
	nativeRepeatNone = iota
	nativeRepeatTrack
	nativeRepeatList
)

// probeResult mirrors the JSON printed by snapshotScript
type probeResult struct {
	App           string   `json:"app"`
	Title         string   `json:"title"`
	Artist        string   `json:"artist"`
	Album         string   `json:"album"`
	TrackNumber   int      `json:"trackNumber"`
	Genres        []string `json:"genres"`
	Status        int      `json:"status"`
	Repeat        *int     `json:"repeat"`
	Shuffle       *bool    `json:"shuffle"`
	PositionTicks int64    `json:"positionTicks"`
	EndTicks      int64    `json:"endTicks"`
}

// Adapter implements domain.Backend over the Windows global media transport controls.
// Every call runs a short PowerShell script; the session manager keeps at most one current session.
type Adapter struct {
	logger *zap.Logger
	runner domain.Runner

	mu  sync.RWMutex
	app string // SourceAppUserModelId of the last sampled session
}

// New creates an adapter that runs its probes through runner
func New(logger *zap.Logger, runner domain.Runner) *Adapter {
	return &Adapter{
		logger: logger.Named("smtc"),
		runner: runner,
	}
}

// Platform implements domain.Backend
func (a *Adapter) Platform() string { return Platform }

// Cadence implements domain.Backend
func (a *Adapter) Cadence() domain.Cadence { return Cadence }

// ActiveApp returns the app id seen by the last successful probe
func (a *Adapter) ActiveApp() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.app, a.app != ""
}

func (a *Adapter) setApp(app string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.app != app {
		a.logger.Debug("Current session changed", zap.String("old", a.app), zap.String("new", app))
		a.app = app
	}
}

// run executes script and returns its trimmed output. A "nosession" answer becomes NoSession.
func (a *Adapter) run(ctx context.Context, op, script string) ([]byte, error) {
	out, err := a.runner.Run(ctx, Shell, "-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command", script)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, domain.NativeCallError(op, err)
	}
	out = bytes.TrimSpace(out)
	if string(out) == noSessionMarker {
		a.setApp("")
		return nil, domain.NoSession()
	}
	return out, nil
}

// Snapshot implements domain.Backend
func (a *Adapter) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	out, err := a.run(ctx, "snapshot", snapshotScript)
	if err != nil {
		return domain.Snapshot{}, err
	}

	var res probeResult
	if err := json.Unmarshal(out, &res); err != nil {
		return domain.Snapshot{}, domain.NativeCallError("snapshot", fmt.Errorf("decode probe output: %w", err))
	}

	a.setApp(appName(res.App))
	return res.snapshot(), nil
}

func (r probeResult) snapshot() domain.Snapshot {
	snap := domain.Snapshot{
		Title:       r.Title,
		Artist:      r.Artist,
		Album:       r.Album,
		TrackNumber: r.TrackNumber,
		Status:      parseStatus(r.Status),
		Shuffle:     r.Shuffle,
	}
	if len(r.Genres) > 0 {
		snap.Genre = strings.Join(r.Genres, ", ")
	}
	if end, ok := ticks(r.EndTicks); ok && r.EndTicks > 0 {
		snap.Duration = domain.Ptr(end)
	}
	if pos, ok := ticks(r.PositionTicks); ok && (r.EndTicks > 0 || r.PositionTicks > 0) {
		snap.Position = domain.Ptr(pos)
	}
	if r.Repeat != nil {
		if mode, ok := parseRepeat(*r.Repeat); ok {
			snap.Repeat = &mode
		}
	}
	return snap
}

// Artwork decodes the base64 thumbnail printed by artworkScript
func (a *Adapter) Artwork(ctx context.Context) ([]byte, error) {
	out, err := a.run(ctx, "artwork", artworkScript)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	data, err := base64.StdEncoding.DecodeString(string(out))
	if err != nil {
		return nil, domain.InvalidArtwork(fmt.Sprintf("thumbnail is not valid base64: %v", err))
	}
	return data, nil
}

// command runs a Try*Async call; a false answer means the session refused it
func (a *Adapter) command(ctx context.Context, op, call string) error {
	out, err := a.run(ctx, op, commandScript(call))
	if err != nil {
		return err
	}
	if string(out) != "ok" {
		return domain.NativeCallError(op, fmt.Errorf("session rejected the request (%s)", out))
	}
	a.logger.Debug("Command accepted", zap.String("command", op))
	return nil
}

func (a *Adapter) Play(ctx context.Context) error {
	return a.command(ctx, "Play", "TryPlayAsync()")
}

func (a *Adapter) Pause(ctx context.Context) error {
	return a.command(ctx, "Pause", "TryPauseAsync()")
}

func (a *Adapter) PlayPause(ctx context.Context) error {
	return a.command(ctx, "PlayPause", "TryTogglePlayPauseAsync()")
}

func (a *Adapter) Stop(ctx context.Context) error {
	return a.command(ctx, "Stop", "TryStopAsync()")
}

func (a *Adapter) Next(ctx context.Context) error {
	return a.command(ctx, "Next", "TrySkipNextAsync()")
}

func (a *Adapter) Previous(ctx context.Context) error {
	return a.command(ctx, "Previous", "TrySkipPreviousAsync()")
}

// Seek converts position to ticks for TryChangePlaybackPositionAsync
func (a *Adapter) Seek(ctx context.Context, position time.Duration) error {
	return a.command(ctx, "Seek", fmt.Sprintf("TryChangePlaybackPositionAsync([long]%d)", int64(position/tickDuration)))
}

// SetVolume is not exposed by the transport controls
func (a *Adapter) SetVolume(ctx context.Context, volume float64) error {
	return domain.Unsupported(Platform, "volume control")
}

func (a *Adapter) SetRepeatMode(ctx context.Context, mode domain.RepeatMode) error {
	return a.command(ctx, "SetRepeatMode", fmt.Sprintf(
		"TryChangeAutoRepeatModeAsync([Windows.Media.MediaPlaybackAutoRepeatMode]%d)", nativeRepeat(mode)))
}

func (a *Adapter) SetShuffle(ctx context.Context, enabled bool) error {
	flag := "$false"
	if enabled {
		flag = "$true"
	}
	return a.command(ctx, "SetShuffle", fmt.Sprintf("TryChangeShuffleActiveAsync(%s)", flag))
}

// Close has nothing to release; every probe is its own process
func (a *Adapter) Close() error {
	a.logger.Debug("SMTC adapter closed")
	return nil
}

// ticks converts a timeline value; negative or unrepresentable values count as absent
func ticks(n int64) (time.Duration, bool) {
	if n < 0 || n > math.MaxInt64/int64(tickDuration) {
		return 0, false
	}
	return time.Duration(n) * tickDuration, true
}

func parseStatus(native int) domain.PlaybackStatus {
	switch native {
	case nativePlaying:
		return domain.StatusPlaying
	case nativePaused:
		return domain.StatusPaused
	case nativeStopped, nativeClosed:
		return domain.StatusStopped
	default:
		// Opened and Changing
		return domain.StatusTransitioning
	}
}

func parseRepeat(native int) (domain.RepeatMode, bool) {
	switch native {
	case nativeRepeatNone:
		return domain.RepeatNone, true
	case nativeRepeatTrack:
		return domain.RepeatOne, true
	case nativeRepeatList:
		return domain.RepeatAll, true
	}
	return domain.RepeatNone, false
}

func nativeRepeat(mode domain.RepeatMode) int {
	switch mode {
	case domain.RepeatOne:
		return nativeRepeatTrack
	case domain.RepeatAll:
		return nativeRepeatList
	default:
		return nativeRepeatNone
	}
}

// appName shortens an AppUserModelId: "Spotify.exe" -> "Spotify",
// "Microsoft.ZuneMusic_8wekyb3d8bbwe!Microsoft.ZuneMusic" -> "Microsoft.ZuneMusic"
func appName(id string) string {
	if i := strings.LastIndex(id, "!"); i >= 0 {
		id = id[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSuffix(id, ".exe"), ".EXE")
}
