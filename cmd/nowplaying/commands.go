package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/sessions"
)

type command struct {
	args string
	help string
	run  func(ctx context.Context, s *sessions.Sessions, args []string, out io.Writer) error
}

var commands = map[string]command{
	"current":  {help: "show the current track", run: runCurrent},
	"active":   {help: "print the attached player", run: runActive},
	"play":     {help: "resume playback", run: transport((*sessions.Sessions).Play)},
	"pause":    {help: "pause playback", run: transport((*sessions.Sessions).Pause)},
	"toggle":   {help: "toggle play/pause", run: transport((*sessions.Sessions).PlayPause)},
	"stop":     {help: "stop playback", run: transport((*sessions.Sessions).Stop)},
	"next":     {help: "skip to the next track", run: transport((*sessions.Sessions).Next)},
	"previous": {help: "go back to the previous track", run: transport((*sessions.Sessions).Previous)},
	"seek":     {args: "<seconds>", help: "jump to a position", run: runSeek},
	"volume":   {args: "<0..1>", help: "set the player volume", run: runVolume},
	"repeat":   {args: "none|one|all", help: "set the repeat mode", run: runRepeat},
	"shuffle":  {args: "on|off", help: "toggle shuffle", run: runShuffle},
	"watch":    {help: "stream session events until interrupted", run: runWatch},
}

func usage() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(&b, "  %-22s %s\n", strings.TrimSpace(name+" "+c.args), c.help)
	}
	return b.String()
}

// execute runs the command named by args[0]
func execute(ctx context.Context, s *sessions.Sessions, args []string, out io.Writer) error {
	if len(args) == 0 {
		return domain.InvalidArg("missing command")
	}
	c, ok := commands[args[0]]
	if !ok {
		return domain.InvalidArg(fmt.Sprintf("unknown command %q", args[0]))
	}
	return c.run(ctx, s, args[1:], out)
}

func oneArg(args []string, name string) (string, error) {
	if len(args) != 1 {
		return "", domain.InvalidArg(fmt.Sprintf("%s expects exactly one argument", name))
	}
	return args[0], nil
}

func transport(op func(*sessions.Sessions, context.Context) error) func(context.Context, *sessions.Sessions, []string, io.Writer) error {
	return func(ctx context.Context, s *sessions.Sessions, _ []string, _ io.Writer) error {
		return op(s, ctx)
	}
}

func runCurrent(ctx context.Context, s *sessions.Sessions, _ []string, out io.Writer) error {
	snap, err := s.Current(ctx)
	if err != nil {
		return err
	}
	app, _ := s.ActiveApp()
	fmt.Fprintln(out, renderSnapshot(snap, app))
	return nil
}

func runActive(_ context.Context, s *sessions.Sessions, _ []string, out io.Writer) error {
	app, ok := s.ActiveApp()
	if !ok {
		fmt.Fprintln(out, mutedStyle.Render("No active player"))
		return nil
	}
	fmt.Fprintln(out, app)
	return nil
}

func runSeek(ctx context.Context, s *sessions.Sessions, args []string, _ io.Writer) error {
	arg, err := oneArg(args, "seek")
	if err != nil {
		return err
	}
	seconds, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return domain.InvalidArg(fmt.Sprintf("invalid position %q", arg))
	}
	return s.Seek(ctx, time.Duration(seconds*float64(time.Second)))
}

func runVolume(ctx context.Context, s *sessions.Sessions, args []string, _ io.Writer) error {
	arg, err := oneArg(args, "volume")
	if err != nil {
		return err
	}
	volume, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return domain.InvalidArg(fmt.Sprintf("invalid volume %q", arg))
	}
	return s.SetVolume(ctx, volume)
}

func runRepeat(ctx context.Context, s *sessions.Sessions, args []string, _ io.Writer) error {
	arg, err := oneArg(args, "repeat")
	if err != nil {
		return err
	}
	mode, err := domain.ParseRepeatMode(arg)
	if err != nil {
		return err
	}
	return s.SetRepeatMode(ctx, mode)
}

func runShuffle(ctx context.Context, s *sessions.Sessions, args []string, _ io.Writer) error {
	arg, err := oneArg(args, "shuffle")
	if err != nil {
		return err
	}
	switch arg {
	case "on", "true":
		return s.SetShuffle(ctx, true)
	case "off", "false":
		return s.SetShuffle(ctx, false)
	}
	return domain.InvalidArg(fmt.Sprintf("shuffle expects on or off, got %q", arg))
}

// runWatch prints events until ctx is done
func runWatch(ctx context.Context, s *sessions.Sessions, _ []string, out io.Writer) error {
	sub, err := s.Watch(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	for item := range sub.Events() {
		fmt.Fprintln(out, renderEvent(item))
	}
	return nil
}
