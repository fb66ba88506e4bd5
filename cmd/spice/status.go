package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-inbox/internal/cli"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show connectivity, queue depth and rule count",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	state := a.probe(ctx)

	var depth string
	if n, err := a.queue.Len(ctx); err != nil {
		depth = cli.FormatError(err.Error())
	} else {
		depth = strconv.Itoa(n)
	}

	var ruleCount string
	if rules, err := a.rules.List(ctx); err != nil {
		ruleCount = cli.FormatError(err.Error())
	} else {
		ruleCount = strconv.Itoa(len(rules))
	}

	ledgerState := cli.FormatSuccess("configured")
	if !a.ledgerOK {
		ledgerState = cli.FormatWarning("not configured")
	}

	rows := [][]string{
		{"Connectivity", cli.FormatState(string(state))},
		{"Ledger", ledgerState},
		{"Sync", cli.FormatState(string(a.engine.Status()))},
		{"Queued operations", depth},
		{"Merchant rules", ruleCount},
		{"Database", cli.SubtleStyle.Render(a.config.DatabasePath)},
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.RenderBox(cli.SpiceIcon+" Status", cli.RenderTable([]string{"", ""}, rows)))
	return err
}
