package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/genricoloni/nowplaying/internal/config"
	"github.com/genricoloni/nowplaying/internal/domain"
	"github.com/genricoloni/nowplaying/internal/sessions"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, starts the app, executes one command and returns the process exit code
func run(args []string, stdout, stderr io.Writer, extra ...fx.Option) int {
	flags := pflag.NewFlagSet("nowplaying", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	config.RegisterFlags(flags)
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Usage: nowplaying [flags] <command> [args]\n\nCommands:\n%s\nFlags:\n%s", usage(), flags.FlagUsages())
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return int(domain.CodeInvalidArg)
	}
	if flags.NArg() == 0 {
		flags.Usage()
		return int(domain.CodeInvalidArg)
	}

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var facade *sessions.Sessions
	opts := append([]fx.Option{AppOptions, fx.Supply(flags), fx.Populate(&facade)}, extra...)
	app := fx.New(opts...)

	// Start the application
	if err := app.Start(ctx); err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("Error: "+err.Error()))
		return exitCode(err)
	}

	err := execute(ctx, facade, flags.Args(), stdout)

	// Stop the application gracefully
	if stopErr := app.Stop(context.Background()); stopErr != nil {
		fmt.Fprintln(stderr, errorStyle.Render("Error: "+stopErr.Error()))
	}

	if err != nil {
		fmt.Fprintln(stderr, errorStyle.Render("Error: "+err.Error()))
		return exitCode(err)
	}
	return 0
}

// exitCode reuses the ABI result codes so scripts can tell "nothing playing" from failures
func exitCode(err error) int {
	return int(domain.CodeOf(err))
}
