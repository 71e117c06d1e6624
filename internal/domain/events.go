package domain

import "time"

// EventKind identifies a SessionEvent variant
type EventKind int

const (
	KindMetadataChanged EventKind = iota
	KindPlaybackStatusChanged
	KindPositionChanged
	KindSessionOpened
	KindSessionClosed
	KindArtworkChanged
	KindVolumeChanged
	KindRepeatModeChanged
)

func (k EventKind) String() string {
	switch k {
	case KindMetadataChanged:
		return "metadata_changed"
	case KindPlaybackStatusChanged:
		return "playback_status_changed"
	case KindPositionChanged:
		return "position_changed"
	case KindSessionOpened:
		return "session_opened"
	case KindSessionClosed:
		return "session_closed"
	case KindArtworkChanged:
		return "artwork_changed"
	case KindVolumeChanged:
		return "volume_changed"
	case KindRepeatModeChanged:
		return "repeat_mode_changed"
	}
	return "unknown"
}

// Structural reports whether the kind marks a session opening or closing.
// Structural events are never debounced.
func (k EventKind) Structural() bool {
	return k == KindSessionOpened || k == KindSessionClosed
}

// SessionEvent is the closed set of changes the detector can report.
// Only the types in this file implement it.
type SessionEvent interface {
	Kind() EventKind
	sessionEvent()
}

// MetadataChanged carries the full snapshot that introduced a new title or artist
type MetadataChanged struct {
	Snapshot Snapshot
}

// PlaybackStatusChanged is emitted when the player transitions between states
type PlaybackStatusChanged struct {
	Status PlaybackStatus
}

// PositionChanged is emitted on seeks and on natural progress beyond the jump threshold.
// OldPosition is nil when no earlier position was known.
type PositionChanged struct {
	Position    time.Duration
	OldPosition *time.Duration
}

// SessionOpened is emitted when a player becomes the active session
type SessionOpened struct {
	AppName string
}

// SessionClosed is emitted when the active session disappears
type SessionClosed struct{}

// ArtworkChanged signals that the artwork reference changed; fetch it with Current
type ArtworkChanged struct{}

// VolumeChanged carries the new volume (0.0-1.0)
type VolumeChanged struct {
	Volume float64
}

// RepeatModeChanged carries the new loop and shuffle settings
type RepeatModeChanged struct {
	Repeat  RepeatMode
	Shuffle bool
}

func (MetadataChanged) Kind() EventKind       { return KindMetadataChanged }
func (PlaybackStatusChanged) Kind() EventKind { return KindPlaybackStatusChanged }
func (PositionChanged) Kind() EventKind       { return KindPositionChanged }
func (SessionOpened) Kind() EventKind         { return KindSessionOpened }
func (SessionClosed) Kind() EventKind         { return KindSessionClosed }
func (ArtworkChanged) Kind() EventKind        { return KindArtworkChanged }
func (VolumeChanged) Kind() EventKind         { return KindVolumeChanged }
func (RepeatModeChanged) Kind() EventKind     { return KindRepeatModeChanged }

func (MetadataChanged) sessionEvent()       {}
func (PlaybackStatusChanged) sessionEvent() {}
func (PositionChanged) sessionEvent()       {}
func (SessionOpened) sessionEvent()         {}
func (SessionClosed) sessionEvent()         {}
func (ArtworkChanged) sessionEvent()        {}
func (VolumeChanged) sessionEvent()         {}
func (RepeatModeChanged) sessionEvent()     {}

// EventItem is one element of a watch stream: either an event or a transient sampling error
type EventItem struct {
	Event SessionEvent
	Err   error
	At    time.Time
}
