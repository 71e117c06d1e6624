// Package sessions is the entry point for observing and controlling the host's media session.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/genricoloni/nowplaying/internal/detector"
	"github.com/genricoloni/nowplaying/internal/dispatch"
	"github.com/genricoloni/nowplaying/internal/domain"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sessions owns the settings and the platform adapter.
// All methods are safe for concurrent use.
type Sessions struct {
	logger     *zap.Logger
	settings   domain.Settings
	backend    domain.Backend
	processor  domain.ImageProcessor
	dispatcher *dispatch.Dispatcher

	mu     sync.Mutex
	subs   map[*detector.Subscription]struct{}
	closed bool
}

// New builds the facade around backend. processor may be nil, in which case
// artwork bytes are handed out as the adapter returned them.
func New(logger *zap.Logger, settings domain.Settings, backend domain.Backend, processor domain.ImageProcessor) *Sessions {
	return &Sessions{
		logger:     logger.Named("sessions"),
		settings:   settings,
		backend:    backend,
		processor:  processor,
		dispatcher: dispatch.New(logger, backend, settings.OperationTimeout()),
		subs:       make(map[*detector.Subscription]struct{}),
	}
}

// Settings returns the configuration the facade was built with
func (s *Sessions) Settings() domain.Settings {
	return s.settings
}

// Platform returns the adapter's platform name
func (s *Sessions) Platform() string {
	return s.backend.Platform()
}

// Stats reports the last and the slowest adapter call durations
func (s *Sessions) Stats() (lastDuration, maxDuration time.Duration) {
	return s.dispatcher.Stats()
}

// ActiveApp returns the attached player's name. It is not deadline-bound.
func (s *Sessions) ActiveApp() (string, bool) {
	return s.backend.ActiveApp()
}

// Current returns the session snapshot, or nil when no session is active.
// With artwork enabled the bytes are fetched in the same deadline; artwork failures leave Artwork empty.
func (s *Sessions) Current(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := dispatch.Query(ctx, s.dispatcher, "current", func(ctx context.Context, b domain.Backend) (domain.Snapshot, error) {
		snap, err := b.Snapshot(ctx)
		if err != nil {
			return snap, err
		}
		if s.settings.ArtworkEnabled() && snap.Artwork == nil {
			snap.Artwork = s.artwork(ctx, b)
		}
		return snap, nil
	})
	if errors.Is(err, domain.ErrNoSession) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (s *Sessions) artwork(ctx context.Context, b domain.Backend) []byte {
	data, err := b.Artwork(ctx)
	if err != nil {
		s.logger.Debug("Artwork unavailable", zap.Error(err))
		return nil
	}
	if len(data) == 0 || s.processor == nil {
		return data
	}

	processed, err := s.processor.Process(ctx, data)
	if err != nil {
		s.logger.Warn("Discarding artwork", zap.Error(err))
		return nil
	}
	return processed
}

// dispatchedSource routes the detector's samples through the dispatcher
type dispatchedSource struct {
	dispatcher *dispatch.Dispatcher
}

func (d dispatchedSource) Snapshot(ctx context.Context) (domain.Snapshot, error) {
	return dispatch.Query(ctx, d.dispatcher, "sample", func(ctx context.Context, b domain.Backend) (domain.Snapshot, error) {
		return b.Snapshot(ctx)
	})
}

func (d dispatchedSource) ActiveApp() (string, bool) {
	return d.dispatcher.Backend().ActiveApp()
}

// Watch starts a sampling loop and returns its subscription.
// The stream ends when ctx is done, the subscription is closed or the facade is closed.
func (s *Sessions) Watch(ctx context.Context) (*detector.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.BackendError(s.backend.Platform(), "sessions closed")
	}

	watchCtx, cancel := context.WithCancel(ctx)

	var nudges <-chan struct{}
	if notifier, ok := s.backend.(domain.ChangeNotifier); ok {
		ch, err := notifier.Subscribe(watchCtx)
		if err != nil {
			cancel()
			return nil, err
		}
		nudges = ch
	}

	det := detector.New(s.logger, dispatchedSource{dispatcher: s.dispatcher}, s.backend.Cadence(), s.settings.Debounce())
	sub := detector.Start(watchCtx, det, nudges)
	s.subs[sub] = struct{}{}

	go func() {
		<-sub.Done()
		cancel()
		s.mu.Lock()
		delete(s.subs, sub)
		s.mu.Unlock()
	}()

	s.logger.Info("Watch started", zap.Int("subscriptions", len(s.subs)), zap.Bool("push", nudges != nil))
	return sub, nil
}

func (s *Sessions) do(ctx context.Context, name string, op func(context.Context, domain.Backend) error) error {
	err := s.dispatcher.Do(ctx, name, op)
	if err != nil {
		s.logger.Debug("Command failed", zap.String("command", name), zap.Error(err))
	}
	return err
}

func (s *Sessions) Play(ctx context.Context) error {
	return s.do(ctx, "play", func(ctx context.Context, b domain.Backend) error { return b.Play(ctx) })
}

func (s *Sessions) Pause(ctx context.Context) error {
	return s.do(ctx, "pause", func(ctx context.Context, b domain.Backend) error { return b.Pause(ctx) })
}

func (s *Sessions) PlayPause(ctx context.Context) error {
	return s.do(ctx, "play_pause", func(ctx context.Context, b domain.Backend) error { return b.PlayPause(ctx) })
}

func (s *Sessions) Stop(ctx context.Context) error {
	return s.do(ctx, "stop", func(ctx context.Context, b domain.Backend) error { return b.Stop(ctx) })
}

func (s *Sessions) Next(ctx context.Context) error {
	return s.do(ctx, "next", func(ctx context.Context, b domain.Backend) error { return b.Next(ctx) })
}

func (s *Sessions) Previous(ctx context.Context) error {
	return s.do(ctx, "previous", func(ctx context.Context, b domain.Backend) error { return b.Previous(ctx) })
}

// Seek moves to position. Negative positions are rejected up front; positions past the
// known track duration fail with SeekOutOfRange without reaching the player.
func (s *Sessions) Seek(ctx context.Context, position time.Duration) error {
	if position < 0 {
		return domain.InvalidArg(fmt.Sprintf("seek position must not be negative, got %s", position))
	}
	return s.do(ctx, "seek", func(ctx context.Context, b domain.Backend) error {
		snap, err := b.Snapshot(ctx)
		if err != nil {
			return err
		}
		if snap.Duration != nil && *snap.Duration > 0 && position > *snap.Duration {
			return domain.SeekOutOfRange(position, *snap.Duration)
		}
		return b.Seek(ctx, position)
	})
}

// SetVolume accepts values in [0, 1]
func (s *Sessions) SetVolume(ctx context.Context, volume float64) error {
	if math.IsNaN(volume) || volume < 0 || volume > 1 {
		return domain.InvalidArg(fmt.Sprintf("volume must be between 0.0 and 1.0, got %v", volume))
	}
	return s.do(ctx, "set_volume", func(ctx context.Context, b domain.Backend) error { return b.SetVolume(ctx, volume) })
}

func (s *Sessions) SetRepeatMode(ctx context.Context, mode domain.RepeatMode) error {
	switch mode {
	case domain.RepeatNone, domain.RepeatOne, domain.RepeatAll:
	default:
		return domain.InvalidArg(fmt.Sprintf("unknown repeat mode %d", mode))
	}
	return s.do(ctx, "set_repeat_mode", func(ctx context.Context, b domain.Backend) error { return b.SetRepeatMode(ctx, mode) })
}

func (s *Sessions) SetShuffle(ctx context.Context, enabled bool) error {
	return s.do(ctx, "set_shuffle", func(ctx context.Context, b domain.Backend) error { return b.SetShuffle(ctx, enabled) })
}

// Close stops every running subscription and releases the adapter.
// Subscriptions still sampling after the operation timeout are reported but not waited for.
func (s *Sessions) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	subs := make([]*detector.Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	var errs error
	waitCtx, cancel := context.WithTimeout(context.Background(), s.settings.OperationTimeout())
	defer cancel()
	for _, sub := range subs {
		sub.Close()
	}
	for _, sub := range subs {
		select {
		case <-sub.Done():
		case <-waitCtx.Done():
			errs = multierr.Append(errs, fmt.Errorf("subscription did not stop within %s", s.settings.OperationTimeout()))
		}
	}

	if err := s.backend.Close(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("failed to close %s backend: %w", s.backend.Platform(), err))
	}

	s.logger.Info("Sessions closed", zap.Int("subscriptions", len(subs)), zap.Error(errs))
	return errs
}
