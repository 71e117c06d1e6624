package mediaremote

import (
	"fmt"
	"time"
)

// player describes a scriptable macOS music application
type player struct {
	name string
	// durationUnit is what "duration of current track" is expressed in
	durationUnit time.Duration
	// extras appends genre, year and artwork url (in that order) to the probe output
	extras string
	// stop is the verb that halts playback
	stop string
}

// Priority order used when no player is attached yet
var players = []player{
	{
		name:         "Music",
		durationUnit: time.Second,
		extras:       `(genre of t) & tab & (year of t as string) & tab & ""`,
		stop:         "stop",
	},
	{
		name:         "Spotify",
		durationUnit: time.Millisecond,
		extras:       `"" & tab & "0" & tab & (artwork url of t)`,
		stop:         "pause",
	},
}

const (
	notRunningMarker = "notrunning"
	stoppedMarker    = "stopped"
	probeFields      = 11
)

// probeScript prints one tab-separated line:
// state, title, artist, album, duration, position, track, disc, genre, year, artwork url
func (p player) probeScript() string {
	return fmt.Sprintf(`if application "%[1]s" is not running then return "%[2]s"
tell application "%[1]s"
	if player state is stopped then return "%[3]s"
	set t to current track
	return (player state as string) & tab & (name of t) & tab & (artist of t) & tab & (album of t) & tab & (duration of t as string) & tab & (player position as string) & tab & (track number of t as string) & tab & (disc number of t as string) & tab & %[4]s
end tell`, p.name, notRunningMarker, stoppedMarker, p.extras)
}

func (p player) commandScript(verb string) string {
	return fmt.Sprintf(`tell application "%s" to %s`, p.name, verb)
}

func (p player) seekScript(position time.Duration) string {
	return fmt.Sprintf(`tell application "%s" to set player position to %.3f`, p.name, position.Seconds())
}
