package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/canvasevents/internal/app"
	"github.com/dshills/canvasevents/internal/command"
	"github.com/dshills/canvasevents/internal/event"
)

type runFlags struct {
	script string
	lua    []string
	watch  bool
	quiet  bool
}

func newRunCmd(global *globalFlags) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run <file.canvas>",
		Short: "Open a canvas, apply a step script and print every event",
		Long: `Open a canvas file, apply the steps of a YAML script to it and print
each canvas event as it is published. A summary of the collected counters
is printed at the end.

With --watch the command keeps running and reloads the canvas whenever the
file changes on disk, until interrupted.`,
		Example: `  canvasevents run board.canvas --script steps.yaml
  canvasevents run board.canvas --lua audit.lua --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runCanvas(ctx, cmd.OutOrStdout(), global, flags, args[0])
		},
	}
	cmd.Flags().StringVarP(&flags.script, "script", "s", "", "YAML step script to apply")
	cmd.Flags().StringArrayVar(&flags.lua, "lua", nil, "Lua script subscribing to events (repeatable)")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "reload the canvas when the file changes")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "do not print events")
	return cmd
}

func runCanvas(ctx context.Context, out io.Writer, global *globalFlags, flags runFlags, path string) error {
	var steps []command.Step
	if flags.script != "" {
		var err error
		if steps, err = command.LoadScript(flags.script); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, global, app.Options{Scripts: flags.lua, Watch: flags.watch})
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if !flags.quiet {
		// Steps and watcher reloads both run on this goroutine, so events
		// arrive one at a time.
		if err := a.OnEvent(func(env event.Envelope) { printEvent(out, env) }); err != nil {
			return err
		}
	}

	if _, err := a.Open(ctx, path); err != nil {
		return err
	}
	logger := a.Logger()
	if err := command.Run(ctx, a.Workspace(), steps, func(s command.Step, result string) {
		logger.Debug().Str("op", s.Op).Msg(result)
	}); err != nil {
		return err
	}

	if flags.watch {
		fmt.Fprintf(out, "watching %s, press Ctrl+C to stop\n", path)
		if err := a.Watch(ctx); err != nil && ctx.Err() == nil {
			return err
		}
	}

	return printSummary(out, a)
}

func printSummary(out io.Writer, a *app.Application) error {
	if a.Metrics() == nil {
		return nil
	}
	snap, err := a.Metrics().Snapshot()
	if err != nil {
		return err
	}
	renderMetrics(out, snap)
	return nil
}
