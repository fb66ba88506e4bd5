package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-inbox/internal/cli"
	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/model"
)

func categorizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categorize <transaction-id> <category>",
		Short: "Assign a category to a transaction by hand",
		Long: `Set a transaction's category and queue the update for the ledger. When the
merchant name is usable as a rule, a merchant rule is saved so later
transactions from the same merchant are categorized automatically.

Transactions are looked up in the queue first and then on the ledger.`,
		Example: `  spice pull --needs-review
  spice categorize 6f1c9a52-0d7e-4d47-9a35-0f0c1e0b6a7e food`,
		Args: cobra.ExactArgs(2),
		RunE: runCategorize,
	}
}

func runCategorize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	a.probe(ctx)
	txn, err := a.findTransaction(ctx, args[0])
	if err != nil {
		return err
	}

	res, err := a.orch.AssignCategory(ctx, txn, args[1])
	if err != nil {
		return err
	}

	state := "queued"
	if res.Synced {
		state = "synced"
	}
	if _, err := fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s → %s (%s)",
		merchantOrDash(txn.Merchant), res.Transaction.Category, state))); err != nil {
		return err
	}

	if res.Rule != nil {
		_, err = fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("Rule saved: %q → %s", res.Rule.Pattern, res.Rule.Category)))
	} else {
		_, err = fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("No rule saved: %v", res.RuleErr)))
	}
	return err
}

// findTransaction returns the newest queued version of a transaction, or the
// ledger's copy when nothing is queued for it.
func (a *app) findTransaction(ctx context.Context, id string) (model.Transaction, error) {
	ops, err := a.queue.List(ctx)
	if err != nil {
		return model.Transaction{}, err
	}
	for i := len(ops) - 1; i >= 0; i-- {
		if txn, ok := ops[i].Payload.(model.Transaction); ok && txn.ID == id && ops[i].Kind != model.OperationDelete {
			return txn, nil
		}
	}

	records, err := a.engine.Pull(ctx, model.EntityTransaction)
	if err != nil {
		return model.Transaction{}, common.NewUserError("Transaction "+id+" is not queued and the ledger could not be read", err)
	}
	for _, rec := range records {
		if rec.ID() == id {
			return model.TransactionFromRecord(rec)
		}
	}
	return model.Transaction{}, common.NewUserError("Transaction "+id+" was not found in the queue or on the ledger", common.ErrNotFound)
}
