package detector

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/zap"
)

// volumeEpsilon ignores float noise some players add when reporting volume
const volumeEpsilon = 0.01

// Source is what the detector samples. domain.Backend satisfies it.
type Source interface {
	Snapshot(ctx context.Context) (domain.Snapshot, error)
	ActiveApp() (string, bool)
}

// state is the detector's private view: NoSession when hasSession is false,
// HasSession(last, lastEmit) otherwise.
type state struct {
	hasSession bool
	last       domain.Snapshot
	lastEmit   time.Time
	// refPosition is the last emitted (or first observed) position used for jump detection
	refPosition *time.Duration
}

// Detector turns periodic snapshots into an ordered, de-duplicated event stream.
// A Detector belongs to exactly one subscription and is not safe for concurrent Observe calls.
type Detector struct {
	logger   *zap.Logger
	source   Source
	cadence  domain.Cadence
	debounce time.Duration
	now      func() time.Time
	state    state
}

// Option customizes a Detector
type Option func(*Detector)

// WithClock replaces time.Now, mainly for tests
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

// New creates a detector sampling source at the given cadence.
// A zero debounce disables suppression entirely.
func New(logger *zap.Logger, source Source, cadence domain.Cadence, debounce time.Duration, opts ...Option) *Detector {
	d := &Detector{
		logger:   logger.Named("detector"),
		source:   source,
		cadence:  cadence,
		debounce: debounce,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe feeds one sample into the state machine and returns the items to publish, in order.
// err is the result of the sampling call; an ErrNoSession error means the session is gone.
func (d *Detector) Observe(now time.Time, snap domain.Snapshot, err error) []domain.EventItem {
	if err != nil {
		if !errors.Is(err, domain.ErrNoSession) {
			// Transient: keep the cached state and report the failure in-band
			d.logger.Debug("Sample failed, will retry on next tick", zap.Error(err))
			return []domain.EventItem{{Err: err, At: now}}
		}
		if !d.state.hasSession {
			return nil
		}
		d.logger.Info("Media session closed")
		d.state = state{}
		return []domain.EventItem{{Event: domain.SessionClosed{}, At: now}}
	}

	var out []domain.EventItem
	prev := d.state.last

	if !d.state.hasSession {
		app, _ := d.source.ActiveApp()
		d.logger.Info("Media session opened", zap.String("app", app))
		d.state.hasSession = true
		// Diff the first snapshot against an empty one so the opening track is reported
		prev = domain.Snapshot{}
		out = append(out, domain.EventItem{Event: domain.SessionOpened{AppName: app}, At: now})
	}

	if ev := d.classify(prev, snap); ev != nil {
		if d.suppressed(now) {
			d.logger.Debug("Event suppressed by debounce window",
				zap.Stringer("kind", ev.Kind()),
				zap.Duration("sinceLast", now.Sub(d.state.lastEmit)))
		} else {
			d.state.lastEmit = now
			d.commit(ev, snap)
			out = append(out, domain.EventItem{Event: ev, At: now})
		}
	}

	if d.state.refPosition == nil && snap.Position != nil {
		d.state.refPosition = domain.Ptr(*snap.Position)
	}
	d.state.last = snap
	return out
}

// suppressed reports whether a spam-prone event at now falls inside the debounce window
func (d *Detector) suppressed(now time.Time) bool {
	if d.debounce <= 0 || d.state.lastEmit.IsZero() {
		return false
	}
	return now.Sub(d.state.lastEmit) < d.debounce
}

// classify picks at most one event, in strict precedence order
func (d *Detector) classify(prev, cur domain.Snapshot) domain.SessionEvent {
	if cur.Title != prev.Title || cur.Artist != prev.Artist {
		return domain.MetadataChanged{Snapshot: cur.Clone()}
	}
	if cur.Status != prev.Status {
		return domain.PlaybackStatusChanged{Status: cur.Status}
	}
	if cur.Position != nil && d.state.refPosition != nil {
		delta := *cur.Position - *d.state.refPosition
		if delta < 0 {
			delta = -delta
		}
		if delta > d.cadence.PositionThreshold {
			return domain.PositionChanged{
				Position:    *cur.Position,
				OldPosition: domain.Ptr(*d.state.refPosition),
			}
		}
	}
	if cur.ThumbnailURL != prev.ThumbnailURL {
		return domain.ArtworkChanged{}
	}
	if cur.Volume != nil && (prev.Volume == nil || math.Abs(*cur.Volume-*prev.Volume) > volumeEpsilon) {
		return domain.VolumeChanged{Volume: *cur.Volume}
	}
	if repeatChanged(prev, cur) {
		ev := domain.RepeatModeChanged{}
		if cur.Repeat != nil {
			ev.Repeat = *cur.Repeat
		}
		if cur.Shuffle != nil {
			ev.Shuffle = *cur.Shuffle
		}
		return ev
	}
	return nil
}

func repeatChanged(prev, cur domain.Snapshot) bool {
	if cur.Repeat != nil && (prev.Repeat == nil || *cur.Repeat != *prev.Repeat) {
		return true
	}
	return cur.Shuffle != nil && (prev.Shuffle == nil || *cur.Shuffle != *prev.Shuffle)
}

// commit updates the jump-detection reference after an emission
func (d *Detector) commit(ev domain.SessionEvent, snap domain.Snapshot) {
	switch e := ev.(type) {
	case domain.PositionChanged:
		d.state.refPosition = domain.Ptr(e.Position)
	case domain.MetadataChanged:
		// New track: measure jumps from where it starts
		d.state.refPosition = nil
		if snap.Position != nil {
			d.state.refPosition = domain.Ptr(*snap.Position)
		}
	}
}

// Run samples the source until ctx is done, publishing items on out in emission order.
// out is closed when Run returns. Pass a non-nil nudges channel to sample early on push hints.
func (d *Detector) Run(ctx context.Context, out chan<- domain.EventItem, nudges <-chan struct{}) {
	defer close(out)

	ticker := time.NewTicker(d.cadence.Interval)
	defer ticker.Stop()

	d.logger.Info("Detector loop started",
		zap.Duration("interval", d.cadence.Interval),
		zap.Duration("debounce", d.debounce))

	for {
		if !d.sample(ctx, out) {
			break
		}

		select {
		case <-ctx.Done():
			d.logger.Info("Detector loop stopped")
			return
		case <-ticker.C:
		case _, ok := <-nudges:
			if !ok {
				nudges = nil
			}
		}
	}
	d.logger.Info("Detector loop stopped")
}

// sample performs one tick; it returns false once ctx is cancelled
func (d *Detector) sample(ctx context.Context, out chan<- domain.EventItem) bool {
	snap, err := d.source.Snapshot(ctx)
	if ctx.Err() != nil {
		return false
	}

	for _, item := range d.Observe(d.now(), snap, err) {
		select {
		case out <- item:
		case <-ctx.Done():
			return false
		}
	}
	return true
}
