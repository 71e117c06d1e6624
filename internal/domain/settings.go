package domain

import (
	"fmt"
	"time"
)

const (
	DefaultDebounce         = 800 * time.Millisecond
	DefaultOperationTimeout = 5 * time.Second
	DefaultArtworkMaxEdge   = 512

	MaxDebounce         = 60 * time.Second
	MaxOperationTimeout = 300 * time.Second
)

// Settings is the validated, immutable facade configuration
type Settings struct {
	debounce       time.Duration
	timeout        time.Duration
	enableArtwork  bool
	artworkMaxEdge int
}

// NewSettings validates the ranges and returns an InvalidConfig error instead of aborting
func NewSettings(debounce, timeout time.Duration, enableArtwork bool, artworkMaxEdge int) (Settings, error) {
	if debounce <= 0 || debounce > MaxDebounce {
		return Settings{}, InvalidConfig(fmt.Sprintf("debounce duration must be in (0, %s], got %s", MaxDebounce, debounce))
	}
	if timeout <= 0 || timeout > MaxOperationTimeout {
		return Settings{}, InvalidConfig(fmt.Sprintf("operation timeout must be in (0, %s], got %s", MaxOperationTimeout, timeout))
	}
	if artworkMaxEdge < 0 {
		return Settings{}, InvalidConfig(fmt.Sprintf("artwork max edge must not be negative, got %d", artworkMaxEdge))
	}
	return Settings{
		debounce:       debounce,
		timeout:        timeout,
		enableArtwork:  enableArtwork,
		artworkMaxEdge: artworkMaxEdge,
	}, nil
}

// DefaultSettings returns 800ms debounce, 5s timeout, artwork enabled
func DefaultSettings() Settings {
	return Settings{
		debounce:       DefaultDebounce,
		timeout:        DefaultOperationTimeout,
		enableArtwork:  true,
		artworkMaxEdge: DefaultArtworkMaxEdge,
	}
}

func (s Settings) Debounce() time.Duration         { return s.debounce }
func (s Settings) OperationTimeout() time.Duration { return s.timeout }
func (s Settings) ArtworkEnabled() bool            { return s.enableArtwork }

// ArtworkMaxEdge is the longest allowed artwork side in pixels; 0 disables downscaling
func (s Settings) ArtworkMaxEdge() int { return s.artworkMaxEdge }
