package domain

import (
	"fmt"
	"time"
)

// PlaybackStatus represents the current state of the media player
type PlaybackStatus int

const (
	// StatusStopped indicates the media is stopped (zero value)
	StatusStopped PlaybackStatus = iota
	// StatusPlaying indicates the media is currently playing
	StatusPlaying
	// StatusPaused indicates the media is paused
	StatusPaused
	// StatusTransitioning is used for any native state an adapter cannot map confidently
	StatusTransitioning
)

// String returns the lower-case name of the status
func (s PlaybackStatus) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	default:
		return "transitioning"
	}
}

// RepeatMode is the loop setting of a player
type RepeatMode int

const (
	RepeatNone RepeatMode = iota
	RepeatOne
	RepeatAll
)

func (r RepeatMode) String() string {
	switch r {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "none"
	}
}

// ParseRepeatMode accepts "none", "one" or "all"
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch s {
	case "none", "off":
		return RepeatNone, nil
	case "one", "track":
		return RepeatOne, nil
	case "all", "playlist":
		return RepeatAll, nil
	}
	return RepeatNone, InvalidArg(fmt.Sprintf("unknown repeat mode %q", s))
}

// Snapshot is the adapter-normalized view of a session at one point in time.
// Empty strings, zero numbers and nil pointers mean the native source did not report the field.
// Position may exceed Duration; use Progress to get a clamped fraction.
type Snapshot struct {
	// Title of the currently playing track
	Title string
	// Artist name (multiple artists are joined with ", ")
	Artist string
	// Album name
	Album string
	// Duration of the track
	Duration *time.Duration
	// Position inside the track
	Position *time.Duration
	// Status is the current playback status
	Status PlaybackStatus
	// Artwork holds raw image bytes when the adapter or facade attached them
	Artwork []byte
	// TrackNumber within the album
	TrackNumber int
	// DiscNumber for multi-disc albums
	DiscNumber int
	// Genre classification
	Genre string
	// Year of release
	Year int
	// URL of the playing resource
	URL string
	// ThumbnailURL is the URL or local path to the album artwork
	ThumbnailURL string
	// Volume in the range 0.0-1.0
	Volume *float64
	// Repeat mode, nil when the player does not expose it
	Repeat *RepeatMode
	// Shuffle flag, nil when the player does not expose it
	Shuffle *bool
}

// Progress returns position/duration clamped to [0, 1].
// It returns 0 when either value is missing or the duration is zero.
func (s Snapshot) Progress() float64 {
	if s.Duration == nil || s.Position == nil || *s.Duration <= 0 {
		return 0
	}
	p := s.Position.Seconds() / s.Duration.Seconds()
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// DisplayString formats the snapshot as "Artist - Title"
func (s Snapshot) DisplayString() string {
	switch {
	case s.Artist == "":
		return s.Title
	case s.Title == "":
		return s.Artist
	}
	return s.Artist + " - " + s.Title
}

func (s Snapshot) String() string {
	out := s.DisplayString()
	if s.Album != "" {
		out += " (" + s.Album + ")"
	}
	if s.Year != 0 {
		out += fmt.Sprintf(" [%d]", s.Year)
	}
	return out
}

// ArtworkFormat sniffs the artwork bytes and returns "PNG", "JPEG", "GIF", "WEBP" or ""
func (s Snapshot) ArtworkFormat() string {
	return ImageFormat(s.Artwork)
}

// ImageFormat detects a handful of image formats by their magic bytes
func ImageFormat(data []byte) string {
	switch {
	case len(data) >= 4 && data[0] == 0x89 && data[1] == 'P' && data[2] == 'N' && data[3] == 'G':
		return "PNG"
	case len(data) >= 3 && data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "JPEG"
	case len(data) >= 4 && string(data[:4]) == "GIF8":
		return "GIF"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "WEBP"
	}
	return ""
}

// Clone returns a deep copy so events can own their payload
func (s Snapshot) Clone() Snapshot {
	c := s
	if s.Duration != nil {
		d := *s.Duration
		c.Duration = &d
	}
	if s.Position != nil {
		p := *s.Position
		c.Position = &p
	}
	if s.Artwork != nil {
		c.Artwork = append([]byte(nil), s.Artwork...)
	}
	if s.Volume != nil {
		v := *s.Volume
		c.Volume = &v
	}
	if s.Repeat != nil {
		r := *s.Repeat
		c.Repeat = &r
	}
	if s.Shuffle != nil {
		b := *s.Shuffle
		c.Shuffle = &b
	}
	return c
}

// Ptr is a small helper for building optional snapshot fields
func Ptr[T any](v T) *T {
	return &v
}
