package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-inbox/internal/cli"
	"github.com/Veraticus/spice-inbox/internal/common"
	"github.com/Veraticus/spice-inbox/internal/ingest"
	"github.com/Veraticus/spice-inbox/internal/model"
)

func ingestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a bank SMS or payment notification",
		Long: `Run one message, or a JSONL file of messages, through the pipeline:
extraction, duplicate detection, categorization and queueing. Each accepted
transaction is pushed to the ledger right away when it is reachable and stays
queued otherwise.

JSONL lines use the fields sender, body, channel (sms or push), app_package
and received_at.`,
		Example: `  spice ingest --sender VM-HDFCBK --body "Rs.500.00 debited from A/c XX1234 at SWIGGY"
  spice ingest --channel push --app com.phonepe.app --sender "Paid to Ravi" --body "₹80 paid"
  spice ingest --file messages.jsonl`,
		RunE: runIngest,
	}

	cmd.Flags().String("body", "", "Message text")
	cmd.Flags().String("sender", "", "SMS sender id or notification title")
	cmd.Flags().String("channel", string(model.ChannelSMS), "Message channel (sms, push)")
	cmd.Flags().String("app", "", "Package name of the notifying app (push only)")
	cmd.Flags().StringP("file", "f", "", "JSONL file of messages, - for stdin")
	cmd.MarkFlagsMutuallyExclusive("body", "file")

	return cmd
}

func runIngest(cmd *cobra.Command, _ []string) error {
	body, _ := cmd.Flags().GetString("body")
	file, _ := cmd.Flags().GetString("file")
	if body == "" && file == "" {
		return common.NewUserError("either --body or --file is required", nil)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	a.probe(ctx)

	if file != "" {
		return ingestFile(ctx, cmd.OutOrStdout(), a, file)
	}

	sender, _ := cmd.Flags().GetString("sender")
	channel, _ := cmd.Flags().GetString("channel")
	app, _ := cmd.Flags().GetString("app")
	msg := model.RawMessage{
		Sender:     sender,
		Body:       body,
		Channel:    model.Channel(channel),
		AppPackage: app,
	}
	if !msg.Channel.Valid() {
		return common.NewUserError(fmt.Sprintf("unknown channel %q, use sms or push", channel), nil)
	}

	res := a.orch.Ingest(ctx, msg)
	_, err = fmt.Fprintln(cmd.OutOrStdout(), describeResult(res))
	return err
}

// describeResult renders one ingestion outcome as a styled line.
func describeResult(res ingest.Result) string {
	txn := res.Transaction
	switch res.Outcome {
	case ingest.OutcomeSynced, ingest.OutcomeQueued:
		line := fmt.Sprintf("%s ₹%s %s → %s (%s)",
			txn.Direction, txn.Amount.StringFixed(2), merchantOrDash(txn.Merchant), txn.Category, res.Outcome)
		if txn.NeedsReview {
			return cli.FormatWarning(line + " needs review, run: spice categorize " + txn.ID + " <category>")
		}
		return cli.FormatSuccess(line)
	case ingest.OutcomeDuplicate:
		return cli.FormatInfo("Duplicate of an already processed transaction (" + string(res.Fingerprint) + ")")
	case ingest.OutcomeRejected:
		return cli.FormatInfo("Not a transaction: " + string(res.Reason))
	default:
		return cli.FormatError(fmt.Sprintf("Ingestion failed: %v", res.Err))
	}
}

func merchantOrDash(m string) string {
	if m == "" {
		return "-"
	}
	return m
}

func ingestFile(ctx context.Context, out io.Writer, a *app, path string) error {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read messages: %w", err)
	}

	handler := cli.NewInterruptHandler(out, "Ingestion")
	ctx, stop := handler.HandleInterrupts(ctx)
	defer stop()

	bar := cli.NewProgress(out, cli.CountMessages(data), "Ingesting messages...")
	reader := cli.NewMessageReader(bytes.NewReader(data))
	counts := make(map[ingest.Outcome]int)
	malformed := 0

	for {
		msg, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, cli.ErrInputCancelled) {
			break
		}
		if err != nil {
			a.logger.Warn("Skipping malformed message", "error", err)
			malformed++
			_ = bar.Add(1)
			continue
		}

		res := a.orch.Ingest(ctx, msg)
		counts[res.Outcome]++
		if res.Outcome == ingest.OutcomeFailed {
			a.logger.Error("Ingestion failed", "line", reader.Line(), "error", res.Err)
		}
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	outcomes := []ingest.Outcome{
		ingest.OutcomeSynced,
		ingest.OutcomeQueued,
		ingest.OutcomeDuplicate,
		ingest.OutcomeRejected,
		ingest.OutcomeFailed,
	}
	rows := make([][]string, 0, len(outcomes)+1)
	for _, o := range outcomes {
		rows = append(rows, []string{cli.FormatState(string(o)), strconv.Itoa(counts[o])})
	}
	if malformed > 0 {
		rows = append(rows, []string{cli.FormatState("failed") + " (malformed)", strconv.Itoa(malformed)})
	}

	_, err = fmt.Fprintln(out, cli.RenderBox(cli.InboxIcon+" Ingestion summary", cli.RenderTable([]string{"Outcome", "Count"}, rows)))
	return err
}
