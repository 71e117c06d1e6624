package domain

import (
	"context"
	"time"
)

// Cadence describes how a backend wants to be sampled.
// Interval must stay below PositionThreshold so that jump detection remains meaningful.
type Cadence struct {
	Interval          time.Duration
	PositionThreshold time.Duration
}

// Backend is the uniform contract every platform adapter implements.
// Implementations must be safe for concurrent use: the facade calls them from many goroutines.
//
//go:generate mockgen -destination=mocks/backend_mock.go -package=mocks github.com/genricoloni/nowplaying/internal/domain Backend
type Backend interface {
	// Platform returns the short platform name ("linux", "windows", "macos")
	Platform() string

	// Cadence returns the fixed sampling interval and position jump threshold
	Cadence() Cadence

	// Snapshot fetches the current session state.
	// It returns an ErrNoSession error when no session is active.
	Snapshot(ctx context.Context) (Snapshot, error)

	// Artwork returns raw image bytes, or nil when the session has none
	Artwork(ctx context.Context) ([]byte, error)

	// ActiveApp returns the name of the attached player without a round trip
	ActiveApp() (string, bool)

	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	PlayPause(ctx context.Context) error
	Stop(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Seek(ctx context.Context, position time.Duration) error

	// SetVolume, SetRepeatMode and SetShuffle return a Backend error on platforms
	// that cannot control the property
	SetVolume(ctx context.Context, volume float64) error
	SetRepeatMode(ctx context.Context, mode RepeatMode) error
	SetShuffle(ctx context.Context, enabled bool) error

	// Close releases native resources
	Close() error
}

// ChangeNotifier is implemented by push-capable backends.
// Every value received on the returned channel is a hint that the session changed;
// the channel is closed once ctx is done.
type ChangeNotifier interface {
	Subscribe(ctx context.Context) (<-chan struct{}, error)
}

// Fetcher defines the interface for retrieving album artwork
type Fetcher interface {
	// Fetch downloads or reads image data from a URL or local path
	// Returns the raw image bytes or an error
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImageProcessor validates and normalizes artwork bytes
type ImageProcessor interface {
	// Process decodes imageData, downscales it when needed and returns the bytes to hand out.
	// Undecodable input yields an InvalidArtwork error.
	Process(ctx context.Context, imageData []byte) ([]byte, error)
}

// Runner executes external programs for probes that have no in-process binding
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}
