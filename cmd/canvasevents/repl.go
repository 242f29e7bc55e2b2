package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/dshills/canvasevents/internal/app"
	"github.com/dshills/canvasevents/internal/command"
	"github.com/dshills/canvasevents/internal/event"
)

const replHelp = `Commands:
  <op> [args...]   apply a canvas step (see the list below)
  events           list event identifiers
  stats            print collected counters
  help             show this help
  exit, quit       leave the REPL

Steps:`

var errExit = errors.New("exit")

func newReplCmd(global *globalFlags) *cobra.Command {
	var lua []string
	cmd := &cobra.Command{
		Use:   "repl [file.canvas]",
		Short: "Apply canvas steps interactively and watch the events",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), global, app.Options{Scripts: lua})
			if err != nil {
				return err
			}
			defer a.Shutdown()

			out := cmd.OutOrStdout()
			if err := a.OnEvent(func(env event.Envelope) { printEvent(out, env) }); err != nil {
				return err
			}
			if len(args) == 1 {
				if _, err := a.Open(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			return repl(cmd.Context(), out, a)
		},
	}
	cmd.Flags().StringArrayVar(&lua, "lua", nil, "Lua script subscribing to events (repeatable)")
	return cmd
}

func opNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, usage := range command.Ops() {
		name, _, _ := strings.Cut(usage, " ")
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func newCompleter() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("help"),
		readline.PcItem("events"),
		readline.PcItem("stats"),
		readline.PcItem("exit"),
		readline.PcItem("quit"),
	}
	for _, name := range opNames() {
		items = append(items, readline.PcItem(name))
	}
	return readline.NewPrefixCompleter(items...)
}

func repl(ctx context.Context, out io.Writer, a *app.Application) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "canvas> ",
		HistoryFile:       filepath.Join(os.TempDir(), ".canvasevents_history"),
		AutoComplete:      newCompleter(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdout:            out,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		} else if errors.Is(err, io.EOF) {
			return nil
		} else if err != nil {
			return fmt.Errorf("readline error: %w", err)
		}

		if err := evalLine(ctx, out, a, line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}

// evalLine handles one line of REPL input.
func evalLine(ctx context.Context, out io.Writer, a *app.Application, line string) error {
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return nil
	case "exit", "quit":
		return errExit
	case "help":
		fmt.Fprintln(out, replHelp)
		for _, usage := range command.Ops() {
			fmt.Fprintf(out, "  %s\n", usage)
		}
		return nil
	case "events":
		renderCatalog(out)
		return nil
	case "stats":
		if a.Metrics() == nil {
			return errors.New("metrics are disabled")
		}
		return printSummary(out, a)
	}

	s, err := command.ParseLine(line)
	if errors.Is(err, command.ErrEmptyStep) {
		return nil
	}
	if err != nil {
		return err
	}
	msg, err := a.Apply(ctx, s)
	if err != nil {
		return err
	}
	if msg != "" {
		fmt.Fprintln(out, msg)
	}
	return nil
}
