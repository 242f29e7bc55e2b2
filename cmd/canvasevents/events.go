package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/dshills/canvasevents/internal/canvasevent"
	"github.com/dshills/canvasevents/internal/event"
	"github.com/dshills/canvasevents/internal/metrics"
	"github.com/dshills/canvasevents/internal/patcher"
)

func newEventsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List every canvas event identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(canvasevent.Taxonomy())
			}
			renderCatalog(cmd.OutOrStdout())
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the nested taxonomy as JSON")
	return cmd
}

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

func renderCatalog(out io.Writer) {
	t := newTable(out)
	t.AppendHeader(table.Row{"IDENTIFIER", "PHASE", "PAYLOAD", "DESCRIPTION"})
	for _, e := range canvasevent.Catalog() {
		t.AppendRow(table.Row{e.ID, e.Phase, e.Payload, e.Description})
	}
	t.AppendFooter(table.Row{"", "", "TOTAL", len(canvasevent.Catalog())})
	t.Render()
}

func renderMetrics(out io.Writer, snap metrics.Snapshot) {
	t := newTable(out)
	t.SetTitle("Events")
	t.AppendHeader(table.Row{"EVENT", "PHASE", "COUNT"})
	for _, e := range snap.Events {
		t.AppendRow(table.Row{e.Event, e.Phase, e.Count})
	}
	if snap.Unknown > 0 {
		t.AppendRow(table.Row{"(unknown)", "", snap.Unknown})
	}
	t.AppendFooter(table.Row{"", "TOTAL", snap.Total()})
	t.Render()

	r := newTable(out)
	r.SetTitle("Controller")
	r.AppendHeader(table.Row{"OUTCOME", "COUNT"})
	for _, o := range []patcher.Outcome{patcher.OutcomeInstalled, patcher.OutcomeNoop, patcher.OutcomeUnavailable, patcher.OutcomeFailed} {
		r.AppendRow(table.Row{o, snap.Refresh[string(o)]})
	}
	r.Render()
}

// printEvent writes one line per event: phase marker, identifier and the
// payload as JSON.
func printEvent(out io.Writer, env event.Envelope) {
	marker := " "
	if entry, ok := canvasevent.Lookup(env.Topic); ok {
		switch entry.Phase {
		case canvasevent.PhaseBefore:
			marker = text.FgYellow.Sprint("<")
		case canvasevent.PhaseAfter:
			marker = text.FgGreen.Sprint(">")
		}
	}
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		payload = []byte(fmt.Sprintf("%q", err.Error()))
	}
	name := strings.TrimPrefix(env.Topic.String(), canvasevent.Namespace+":")
	fmt.Fprintf(out, "%s %s %s\n", marker, text.FgHiCyan.Sprint(name), payload)
}
