package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/canvasevents/internal/app"
	"github.com/dshills/canvasevents/internal/command"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error.
	ExitCodeError = 1
	// ExitCodeInit indicates the application could not be started, usually
	// because of a bad config file or Lua script.
	ExitCodeInit = 2
	// ExitCodeStep indicates a command step was malformed.
	ExitCodeStep = 3
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd(out io.Writer) *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "canvasevents",
		Short: "Observe canvas operations as named events",
		Long: `canvasevents wraps the operations of an open canvas and publishes a
named event before or after each one. Subscribers can be Lua scripts,
metrics collectors or the event log printed by the run command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
	}
	root.SetOut(out)
	root.SetErr(out)
	root.SetVersionTemplate(`{{printf "canvasevents version %s\n" .Version}}`)

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (.toml, .yaml or .json)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newEventsCmd(),
		newRunCmd(&flags),
		newReplCmd(&flags),
	)
	return root
}

// execute runs the CLI and maps the error to an exit code.
func execute(args []string) int {
	root := newRootCmd(os.Stdout)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return getExitCode(err)
	}
	return ExitCodeSuccess
}

// getExitCode determines the exit code for err.
func getExitCode(err error) int {
	var initErr *app.InitError
	if errors.As(err, &initErr) {
		return ExitCodeInit
	}
	if errors.Is(err, command.ErrUsage) || errors.Is(err, command.ErrUnknownOp) ||
		errors.Is(err, command.ErrEmptyStep) || errors.Is(err, command.ErrUnterminatedQuote) {
		return ExitCodeStep
	}
	return ExitCodeError
}

// newApp starts the application with the global flags applied.
func newApp(ctx context.Context, flags *globalFlags, opts app.Options) (*app.Application, error) {
	opts.ConfigPath = flags.configPath
	opts.LogLevel = flags.logLevel
	return app.New(ctx, opts)
}
