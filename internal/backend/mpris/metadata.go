package mpris

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/godbus/dbus/v5"
)

// parseStatus maps MPRIS PlaybackStatus strings; anything unknown is Transitioning
func parseStatus(status string) domain.PlaybackStatus {
	switch status {
	case "Playing":
		return domain.StatusPlaying
	case "Paused":
		return domain.StatusPaused
	case "Stopped":
		return domain.StatusStopped
	}
	return domain.StatusTransitioning
}

func parseLoopStatus(loop string) (domain.RepeatMode, bool) {
	switch loop {
	case "None":
		return domain.RepeatNone, true
	case "Track":
		return domain.RepeatOne, true
	case "Playlist":
		return domain.RepeatAll, true
	}
	return domain.RepeatNone, false
}

func loopStatus(mode domain.RepeatMode) string {
	switch mode {
	case domain.RepeatOne:
		return "Track"
	case domain.RepeatAll:
		return "Playlist"
	}
	return "None"
}

// parseProperties converts the Player interface properties into a Snapshot.
// Missing or mistyped entries leave the corresponding field empty.
func parseProperties(props map[string]dbus.Variant) domain.Snapshot {
	var snap domain.Snapshot

	if v, ok := props["PlaybackStatus"]; ok {
		if s, ok := v.Value().(string); ok {
			snap.Status = parseStatus(s)
		}
	}
	if v, ok := props["Position"]; ok {
		if us, ok := asInt64(v.Value()); ok {
			if pos, ok := microseconds(us); ok {
				snap.Position = domain.Ptr(pos)
			}
		}
	}
	if v, ok := props["Volume"]; ok {
		if vol, ok := v.Value().(float64); ok {
			snap.Volume = domain.Ptr(vol)
		}
	}
	if v, ok := props["LoopStatus"]; ok {
		if s, ok := v.Value().(string); ok {
			if mode, ok := parseLoopStatus(s); ok {
				snap.Repeat = domain.Ptr(mode)
			}
		}
	}
	if v, ok := props["Shuffle"]; ok {
		if b, ok := v.Value().(bool); ok {
			snap.Shuffle = domain.Ptr(b)
		}
	}
	if v, ok := props["Metadata"]; ok {
		if metadata, ok := v.Value().(map[string]dbus.Variant); ok {
			parseMetadata(metadata, &snap)
		}
	}

	return snap
}

// parseMetadata fills the xesam/mpris metadata fields
func parseMetadata(metadata map[string]dbus.Variant, snap *domain.Snapshot) {
	snap.Title = stringValue(metadata["xesam:title"])
	snap.Artist = joinedValue(metadata["xesam:artist"])
	snap.Album = stringValue(metadata["xesam:album"])
	snap.Genre = joinedValue(metadata["xesam:genre"])
	snap.URL = stringValue(metadata["xesam:url"])
	// Some players (browsers, local files) send an empty artUrl, which is the same as none
	snap.ThumbnailURL = stringValue(metadata["mpris:artUrl"])

	if v, ok := metadata["mpris:length"]; ok {
		if us, ok := asInt64(v.Value()); ok && us > 0 {
			if length, ok := microseconds(us); ok {
				snap.Duration = domain.Ptr(length)
			}
		}
	}
	if v, ok := metadata["xesam:trackNumber"]; ok {
		if n, ok := asInt64(v.Value()); ok {
			snap.TrackNumber = int(n)
		}
	}
	if v, ok := metadata["xesam:discNumber"]; ok {
		if n, ok := asInt64(v.Value()); ok {
			snap.DiscNumber = int(n)
		}
	}
	snap.Year = parseYear(stringValue(metadata["xesam:contentCreated"]))
}

// trackID extracts mpris:trackid, which SetPosition requires
func trackID(metadata map[string]dbus.Variant) (dbus.ObjectPath, bool) {
	v, ok := metadata["mpris:trackid"]
	if !ok {
		return "", false
	}
	switch id := v.Value().(type) {
	case dbus.ObjectPath:
		return id, id.IsValid()
	case string:
		// Non-compliant players send a plain string
		p := dbus.ObjectPath(id)
		return p, p.IsValid()
	}
	return "", false
}

func stringValue(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}

// joinedValue accepts a string list as well as a bare string
func joinedValue(v dbus.Variant) string {
	switch val := v.Value().(type) {
	case []string:
		return strings.Join(val, ", ")
	case string:
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, p := range val {
			if s, ok := p.(string); ok {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}
	return ""
}

// maxMicroseconds is the largest µs value a time.Duration can hold
const maxMicroseconds = math.MaxInt64 / int64(time.Microsecond)

// microseconds converts an MPRIS µs value; negative or unrepresentable values count as absent
func microseconds(us int64) (time.Duration, bool) {
	if us < 0 || us > maxMicroseconds {
		return 0, false
	}
	return time.Duration(us) * time.Microsecond, true
}

// asInt64 normalizes the integer widths players use for lengths and counters
func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int32:
		return int64(n), true
	case uint32:
		return int64(n), true
	case int16:
		return int64(n), true
	case uint16:
		return int64(n), true
	case byte:
		return int64(n), true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// parseYear reads the leading year of an ISO 8601 date such as "2007-04-30T00:00:00Z"
func parseYear(date string) int {
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil || y <= 0 {
		return 0
	}
	return y
}
