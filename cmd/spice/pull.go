package main

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-inbox/internal/cli"
	"github.com/Veraticus/spice-inbox/internal/model"
)

// summaryColumns are shown in the table view; --json prints every column.
var summaryColumns = map[model.EntityType][]string{
	model.EntityTransaction: {"id", "date", "amount", "direction", "merchant", "category"},
}

func pullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull [transaction|bank_account|budget|category]",
		Short: "List ledger records merged with queued local records",
		Long: `List the ledger's records for an entity type. Records that were created
locally but are still queued are included; where both sides have a record
the ledger's copy wins.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"transaction", "bank_account", "budget", "category"},
		RunE:      runPull,
	}
	cmd.Flags().Bool("json", false, "Print records as JSON lines")
	cmd.Flags().Bool("needs-review", false, "Only transactions waiting for a manual category")
	return cmd
}

func runPull(cmd *cobra.Command, args []string) error {
	entity := model.EntityTransaction
	if len(args) == 1 {
		entity = model.EntityType(args[0])
	}
	columns := model.Columns(entity)
	if columns == nil {
		return fmt.Errorf("%w: %q", model.ErrUnknownEntity, entity)
	}
	asJSON, _ := cmd.Flags().GetBool("json")
	needsReview, _ := cmd.Flags().GetBool("needs-review")

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	a.probe(ctx)
	records, err := a.engine.Pull(ctx, entity)
	if err != nil {
		return err
	}
	if needsReview {
		records = slices.DeleteFunc(records, func(r model.Record) bool {
			return r["needs_review"] != "true"
		})
	}

	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	}

	if len(records) == 0 {
		_, err = fmt.Fprintln(out, cli.FormatInfo("No "+string(entity)+" records"))
		return err
	}

	if summary, ok := summaryColumns[entity]; ok {
		columns = summary
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, c := range columns {
			row[i] = rec[c]
		}
		rows = append(rows, row)
	}
	_, err = fmt.Fprintln(out, cli.RenderTable(columns, rows))
	return err
}
