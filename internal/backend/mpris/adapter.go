package mpris

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	// Platform is the name reported by the adapter
	Platform = "linux"

	servicePrefix   = "org.mpris.MediaPlayer2."
	objectPath      = "/org/mpris/MediaPlayer2"
	playerInterface = "org.mpris.MediaPlayer2.Player"

	// startupTimeout bounds the initial player scan
	startupTimeout = 5 * time.Second
)

// Cadence is the MPRIS sampling interval; push nudges from PropertiesChanged fill the gaps
var Cadence = domain.Cadence{
	Interval:          500 * time.Millisecond,
	PositionThreshold: time.Second,
}

// Adapter implements domain.Backend and domain.ChangeNotifier over the MPRIS D-Bus interface
type Adapter struct {
	logger  *zap.Logger
	conn    DBusClient // Interface for testability
	fetcher domain.Fetcher

	mu          sync.RWMutex
	playerNames map[string]string // Maps unique bus names (:1.45) to well-known names (org.mpris.MediaPlayer2.spotify)
	current     string            // Well-known name of the player commands go to

	subsMu sync.Mutex
	subs   map[chan struct{}]struct{}
	closed bool

	cancel context.CancelFunc
	wg     sync.WaitGroup // Tracks the signal goroutine
}

// New connects to the session bus and starts tracking players.
// fetcher resolves mpris:artUrl; pass nil to disable artwork.
func New(logger *zap.Logger, fetcher domain.Fetcher) (*Adapter, error) {
	conn, err := NewStdDBusClient()
	if err != nil {
		return nil, domain.BackendError(Platform, fmt.Sprintf("session bus connection failed: %v", err))
	}
	return NewWithClient(logger, conn, fetcher)
}

// NewWithClient builds an adapter on an existing client, installs the match rules and starts the signal loop
func NewWithClient(logger *zap.Logger, conn DBusClient, fetcher domain.Fetcher) (*Adapter, error) {
	a := newAdapter(logger, conn, fetcher)
	if err := a.start(); err != nil {
		if cerr := conn.Close(); cerr != nil {
			a.logger.Warn("Failed to close D-Bus connection", zap.Error(cerr))
		}
		return nil, err
	}
	return a, nil
}

func newAdapter(logger *zap.Logger, conn DBusClient, fetcher domain.Fetcher) *Adapter {
	return &Adapter{
		logger:      logger.Named("mpris"),
		conn:        conn,
		fetcher:     fetcher,
		playerNames: make(map[string]string),
		subs:        make(map[chan struct{}]struct{}),
	}
}

func (a *Adapter) start() error {
	detectCtx, cancelDetect := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelDetect()
	if err := a.detectExistingPlayers(detectCtx); err != nil {
		a.logger.Warn("Failed to detect existing players", zap.Error(err))
	}

	// Add match rule for PropertiesChanged signals on MPRIS interface
	if err := a.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(objectPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return domain.BackendError(Platform, fmt.Sprintf("failed to add match signal: %v", err))
	}

	// Add match rule for NameOwnerChanged to track new/removed players dynamically
	if err := a.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		// Non-fatal, polling still notices players coming and going
		a.logger.Warn("Failed to add NameOwnerChanged match signal", zap.Error(err))
	} else {
		a.logger.Debug("Dynamic player tracking enabled via NameOwnerChanged")
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	signals := make(chan *dbus.Signal, 10)
	a.conn.Signal(signals)

	a.wg.Add(1)
	go a.monitorSignals(ctx, signals)

	a.logger.Info("MPRIS adapter started")
	return nil
}

// Platform implements domain.Backend
func (a *Adapter) Platform() string {
	return Platform
}

// Cadence implements domain.Backend
func (a *Adapter) Cadence() domain.Cadence {
	return Cadence
}

// detectExistingPlayers queries D-Bus for currently running MPRIS players
func (a *Adapter) detectExistingPlayers(ctx context.Context) error {
	names, err := a.conn.ListNames(ctx)
	if err != nil {
		return fmt.Errorf("failed to list bus names: %w", err)
	}

	playerCount := 0
	for _, name := range names {
		if !strings.HasPrefix(name, servicePrefix) {
			continue
		}
		playerCount++
		a.logger.Debug("Detected MPRIS player", zap.String("name", name))

		// Get the unique bus name for this well-known name
		uniqueName, err := a.conn.GetNameOwner(ctx, name)
		if err != nil {
			continue
		}
		a.mu.Lock()
		a.playerNames[uniqueName] = name
		a.mu.Unlock()
	}

	a.logger.Info("Player detection complete", zap.Int("count", playerCount))
	return nil
}

// listPlayers returns the MPRIS bus names in a stable order
func (a *Adapter) listPlayers(ctx context.Context) ([]string, error) {
	names, err := a.conn.ListNames(ctx)
	if err != nil {
		return nil, domain.BusError("list bus names", err)
	}
	var players []string
	for _, name := range names {
		if strings.HasPrefix(name, servicePrefix) {
			players = append(players, name)
		}
	}
	sort.Strings(players)
	return players, nil
}

// selectPlayer picks the player to talk to: the current one if it is still playing,
// else the first playing one, else the current one if it still exists, else the first.
func (a *Adapter) selectPlayer(ctx context.Context) (string, error) {
	players, err := a.listPlayers(ctx)
	if err != nil {
		return "", err
	}

	a.mu.RLock()
	current := a.current
	a.mu.RUnlock()

	var chosen string
	switch len(players) {
	case 0:
	case 1:
		chosen = players[0]
	default:
		chosen = a.preferPlaying(ctx, players, current)
	}

	a.setCurrent(chosen)
	if chosen == "" {
		return "", domain.NoSession()
	}
	return chosen, nil
}

func (a *Adapter) preferPlaying(ctx context.Context, players []string, current string) string {
	var firstPlaying string
	currentPresent := false
	for _, p := range players {
		if p == current {
			currentPresent = true
		}
		v, err := a.conn.GetProperty(ctx, p, objectPath, playerInterface+".PlaybackStatus")
		if err != nil {
			continue
		}
		if s, _ := v.Value().(string); s == "Playing" {
			if p == current {
				return p
			}
			if firstPlaying == "" {
				firstPlaying = p
			}
		}
	}
	switch {
	case firstPlaying != "":
		return firstPlaying
	case currentPresent:
		return current
	}
	return players[0]
}

func (a *Adapter) setCurrent(name string) {
	a.mu.Lock()
	prev := a.current
	a.current = name
	a.mu.Unlock()

	if prev != name {
		a.logger.Info("Active MPRIS player changed",
			zap.String("from", prev),
			zap.String("to", name))
	}
}

// ActiveApp implements domain.Backend. It answers from the cached player name without a bus round trip.
func (a *Adapter) ActiveApp() (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.current == "" {
		return "", false
	}
	return appName(a.current), true
}

// appName strips the MPRIS prefix and any instance suffix ("vlc.instance1234" -> "vlc")
func appName(busName string) string {
	name := strings.TrimPrefix(busName, servicePrefix)
	if i := strings.Index(name, ".instance"); i > 0 {
		name = name[:i]
	}
	return name
}

// Snapshot implements domain.Backend with a single GetAll round trip
func (a *Adapter) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	player, err := a.selectPlayer(ctx)
	if err != nil {
		return domain.Snapshot{}, err
	}

	props, err := a.conn.GetAllProperties(ctx, player, objectPath, playerInterface)
	if err != nil {
		return domain.Snapshot{}, a.mapError("get player properties", err)
	}
	return parseProperties(props), nil
}

// Artwork implements domain.Backend by resolving mpris:artUrl through the fetcher
func (a *Adapter) Artwork(ctx context.Context) ([]byte, error) {
	if a.fetcher == nil {
		return nil, nil
	}

	player, err := a.selectPlayer(ctx)
	if err != nil {
		return nil, err
	}
	metadata, err := a.metadata(ctx, player)
	if err != nil {
		return nil, err
	}

	artURL := stringValue(metadata["mpris:artUrl"])
	if artURL == "" {
		return nil, nil
	}

	data, err := a.fetcher.Fetch(ctx, artURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch artwork: %w", err)
	}
	return data, nil
}

func (a *Adapter) metadata(ctx context.Context, player string) (map[string]dbus.Variant, error) {
	v, err := a.conn.GetProperty(ctx, player, objectPath, playerInterface+".Metadata")
	if err != nil {
		return nil, a.mapError("get metadata", err)
	}
	// Some players return an empty or non-map variant when nothing is loaded
	metadata, _ := v.Value().(map[string]dbus.Variant)
	return metadata, nil
}

func (a *Adapter) Play(ctx context.Context) error      { return a.call(ctx, "Play") }
func (a *Adapter) Pause(ctx context.Context) error     { return a.call(ctx, "Pause") }
func (a *Adapter) PlayPause(ctx context.Context) error { return a.call(ctx, "PlayPause") }
func (a *Adapter) Stop(ctx context.Context) error      { return a.call(ctx, "Stop") }
func (a *Adapter) Next(ctx context.Context) error      { return a.call(ctx, "Next") }
func (a *Adapter) Previous(ctx context.Context) error  { return a.call(ctx, "Previous") }

// Seek implements domain.Backend through SetPosition(trackid, microseconds)
func (a *Adapter) Seek(ctx context.Context, position time.Duration) error {
	player, err := a.selectPlayer(ctx)
	if err != nil {
		return err
	}
	metadata, err := a.metadata(ctx, player)
	if err != nil {
		return err
	}

	track, ok := trackID(metadata)
	if !ok {
		// Without a track id SetPosition is ignored by compliant players; fall back to the object path
		track = dbus.ObjectPath(objectPath)
	}

	if err := a.conn.Call(ctx, player, objectPath, playerInterface+".SetPosition", track, position.Microseconds()); err != nil {
		return a.mapError("call SetPosition", err)
	}
	return nil
}

// SetVolume implements domain.Backend
func (a *Adapter) SetVolume(ctx context.Context, volume float64) error {
	return a.setProperty(ctx, "Volume", volume)
}

// SetRepeatMode implements domain.Backend via LoopStatus
func (a *Adapter) SetRepeatMode(ctx context.Context, mode domain.RepeatMode) error {
	return a.setProperty(ctx, "LoopStatus", loopStatus(mode))
}

// SetShuffle implements domain.Backend
func (a *Adapter) SetShuffle(ctx context.Context, enabled bool) error {
	return a.setProperty(ctx, "Shuffle", enabled)
}

func (a *Adapter) call(ctx context.Context, method string) error {
	player, err := a.selectPlayer(ctx)
	if err != nil {
		return err
	}
	if err := a.conn.Call(ctx, player, objectPath, playerInterface+"."+method); err != nil {
		return a.mapError("call "+method, err)
	}
	a.logger.Debug("Player method called", zap.String("player", player), zap.String("method", method))
	return nil
}

func (a *Adapter) setProperty(ctx context.Context, prop string, value interface{}) error {
	player, err := a.selectPlayer(ctx)
	if err != nil {
		return err
	}
	if err := a.conn.SetProperty(ctx, player, objectPath, playerInterface+"."+prop, value); err != nil {
		return a.mapError("set "+prop, err)
	}
	return nil
}

// mapError turns a vanished player into NoSession and everything else into a bus error
func (a *Adapter) mapError(op string, err error) error {
	switch errorName(err) {
	case "org.freedesktop.DBus.Error.ServiceUnknown", "org.freedesktop.DBus.Error.NameHasNoOwner":
		a.setCurrent("")
		return domain.NoSession()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return domain.BusError(op, err)
}

// errorName returns the D-Bus error name; godbus hands out both values and pointers
func errorName(err error) string {
	var v dbus.Error
	if errors.As(err, &v) {
		return v.Name
	}
	var p *dbus.Error
	if errors.As(err, &p) && p != nil {
		return p.Name
	}
	return ""
}

// Close stops the signal loop, closes subscriber channels and the bus connection
func (a *Adapter) Close() error {
	a.subsMu.Lock()
	if a.closed {
		a.subsMu.Unlock()
		return nil
	}
	a.closed = true
	a.subsMu.Unlock()

	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()

	a.subsMu.Lock()
	for ch := range a.subs {
		close(ch)
		delete(a.subs, ch)
	}
	a.subsMu.Unlock()

	if err := a.conn.Close(); err != nil {
		return domain.BusError("close connection", err)
	}
	a.logger.Info("MPRIS adapter shutdown complete")
	return nil
}
