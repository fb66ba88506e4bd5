package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-inbox/internal/cli"
	"github.com/Veraticus/spice-inbox/internal/syncer"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push queued operations to the ledger",
		Long: `Probe the ledger and, when it is reachable, apply every queued operation in
the order it was queued. Failed operations are retried on later syncs and
dropped after sync.max_retries attempts.`,
		RunE: runSync,
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	pending, err := a.queue.Len(ctx)
	if err != nil {
		return err
	}
	if !a.ledgerOK {
		_, err = fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("No ledger configured, %d operations stay queued", pending)))
		return err
	}

	a.probe(ctx)
	report, err := a.engine.DrainAll(ctx)
	switch {
	case errors.Is(err, syncer.ErrOffline):
		_, err = fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("Ledger unreachable, %d operations stay queued", pending)))
		return err
	case err != nil:
		return fmt.Errorf("sync failed: %w", err)
	}

	rows := [][]string{
		{"Started", strconv.Itoa(report.Started)},
		{"Applied", strconv.Itoa(report.Applied)},
		{"Failed", strconv.Itoa(report.Failed)},
		{"Dropped", strconv.Itoa(report.Dropped)},
		{"Remaining", strconv.Itoa(report.Remaining)},
	}
	if report.Halted != nil {
		rows = append(rows, []string{"Halted", report.Halted.Error()})
	}
	if _, err := fmt.Fprintln(out, cli.RenderBox(cli.SyncIcon+" Sync", cli.RenderTable([]string{"", ""}, rows))); err != nil {
		return err
	}

	if report.Success {
		_, err = fmt.Fprintln(out, cli.FormatSuccess("Queue drained"))
	} else {
		_, err = fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%d operations remain queued", report.Remaining)))
	}
	return err
}
