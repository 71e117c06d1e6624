package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/genricoloni/nowplaying/internal/domain"
)

const barWidth = 28

var (
	accent = lipgloss.Color("2")

	highlight  = lipgloss.NewStyle().Foreground(accent)
	labelStyle = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

var borderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(accent).
	Padding(0, 1)

// renderSnapshot draws the current track inside a rounded box
func renderSnapshot(snap *domain.Snapshot, app string) string {
	if snap == nil {
		return borderStyle.Render(mutedStyle.Render("Nothing playing"))
	}

	var b strings.Builder
	header := "Now Playing"
	if app != "" {
		header += " " + dimStyle.Render("("+app+")")
	}
	b.WriteString(highlight.Render(header) + "\n\n")

	addLine := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-7s", label)), value)
		}
	}

	addLine("Title", snap.Title)
	addLine("Artist", snap.Artist)
	album := snap.Album
	if album != "" && snap.Year != 0 {
		album = fmt.Sprintf("%s (%d)", album, snap.Year)
	}
	addLine("Album", album)
	addLine("Status", snap.Status.String())
	if snap.Volume != nil {
		addLine("Volume", fmt.Sprintf("%.0f%%", *snap.Volume*100))
	}
	if snap.Repeat != nil {
		addLine("Repeat", snap.Repeat.String())
	}
	if snap.Shuffle != nil {
		addLine("Shuffle", onOff(*snap.Shuffle))
	}
	if format := snap.ArtworkFormat(); format != "" {
		addLine("Artwork", fmt.Sprintf("%s, %d bytes", format, len(snap.Artwork)))
	}

	if snap.Duration != nil && snap.Position != nil {
		b.WriteString("\n" + progressLine(snap))
	}

	return borderStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func progressLine(snap *domain.Snapshot) string {
	filled := int(float64(barWidth) * snap.Progress())
	bar := highlight.Render(strings.Repeat("█", filled)) +
		mutedStyle.Render(strings.Repeat("─", barWidth-filled))
	return fmt.Sprintf("%s %s/%s", bar, formatTime(*snap.Position), formatTime(*snap.Duration))
}

// renderEvent formats one watch item on a single line
func renderEvent(item domain.EventItem) string {
	stamp := dimStyle.Render(item.At.Format("15:04:05"))
	if item.Err != nil {
		return stamp + " " + errorStyle.Render("Error: "+item.Err.Error())
	}

	var detail string
	switch ev := item.Event.(type) {
	case domain.SessionOpened:
		detail = ev.AppName
	case domain.SessionClosed:
	case domain.MetadataChanged:
		detail = ev.Snapshot.String()
	case domain.PlaybackStatusChanged:
		detail = ev.Status.String()
	case domain.PositionChanged:
		detail = formatTime(ev.Position)
		if ev.OldPosition != nil {
			detail = formatTime(*ev.OldPosition) + " -> " + detail
		}
	case domain.ArtworkChanged:
	case domain.VolumeChanged:
		detail = fmt.Sprintf("%.0f%%", ev.Volume*100)
	case domain.RepeatModeChanged:
		detail = fmt.Sprintf("repeat %s, shuffle %s", ev.Repeat, onOff(ev.Shuffle))
	}

	line := stamp + " " + labelStyle.Render(item.Event.Kind().String())
	if detail != "" {
		line += " " + detail
	}
	return line
}

// formatTime renders m:ss, or h:mm:ss for long tracks
func formatTime(d time.Duration) string {
	total := int64(d / time.Second)
	if total < 0 {
		total = 0
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
