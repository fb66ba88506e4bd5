package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-inbox/internal/cli"
	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/model"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect or clear queued ledger operations",
	}
	cmd.AddCommand(queueListCmd())
	cmd.AddCommand(queueClearCmd())
	return cmd
}

func queueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued operations in the order they will be applied",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			ops, err := a.queue.List(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(ops) == 0 {
				_, err = fmt.Fprintln(out, cli.FormatSuccess("Queue is empty"))
				return err
			}

			rows := make([][]string, 0, len(ops))
			for _, op := range ops {
				rows = append(rows, []string{
					op.ID,
					string(op.Kind),
					string(op.EntityType()),
					op.Payload.RecordID(),
					describePayload(op.Payload),
					fmt.Sprintf("%d/%d", op.RetryCount, a.queue.MaxRetries()),
					op.CreatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			_, err = fmt.Fprintln(out, cli.RenderTable(
				[]string{"ID", "Kind", "Entity", "Record", "Summary", "Retries", "Queued"}, rows))
			return err
		},
	}
}

// describePayload summarizes a payload in a few words for tables.
func describePayload(p model.Payload) string {
	if txn, ok := p.(model.Transaction); ok {
		return fmt.Sprintf("₹%s %s %s", txn.Amount.StringFixed(2), merchantOrDash(txn.Merchant), txn.Category)
	}
	return ""
}

func queueClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard every queued operation",
		Long: `Discard every queued operation, including a queue document that can no
longer be decoded. Discarded operations are never written to the ledger.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			force, _ := cmd.Flags().GetBool("force")
			if !force {
				return common.NewUserError("queue clear discards operations that were never synced; rerun with --force", nil)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			n, err := a.queue.Clear(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Discarded "+strconv.Itoa(n)+" queued operations"))
			return err
		},
	}
	cmd.Flags().Bool("force", false, "Confirm discarding queued operations")
	return cmd
}
