package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Veraticus/spice-inbox/internal/categorize"
	"github.com/Veraticus/spice-inbox/internal/cli"
	"github.com/Veraticus/spice-inbox/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage merchant categorization rules",
		Long: `Merchant rules map a merchant name to a category and take precedence over
the built-in tables. Rules are created automatically by spice categorize.`,
	}
	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())
	cmd.AddCommand(rulesDeleteCmd())
	return cmd
}

func rulesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List merchant rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			rules, err := a.rules.List(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rules) == 0 {
				_, err = fmt.Fprintln(out, cli.FormatInfo("No merchant rules yet"))
				return err
			}

			rows := make([][]string, 0, len(rules))
			for _, r := range rules {
				rows = append(rows, []string{
					r.Pattern,
					r.Category,
					string(r.MatchType),
					r.UpdatedAt.Local().Format("2006-01-02"),
					cli.SubtleStyle.Render(r.ID),
				})
			}
			_, err = fmt.Fprintln(out, cli.RenderTable([]string{"Pattern", "Category", "Match", "Updated", "ID"}, rows))
			return err
		},
	}
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <pattern> <category>",
		Short: "Create or update a merchant rule",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, category := args[0], args[1]

			matchType := categorize.MatchTypeFor(pattern)
			if m, _ := cmd.Flags().GetString("match"); m != "" {
				matchType = model.MatchType(m)
			}

			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			rule, err := a.rules.Upsert(ctx, pattern, category, matchType)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(),
				cli.FormatSuccess(fmt.Sprintf("%q → %s (%s)", rule.Pattern, rule.Category, rule.MatchType)))
			return err
		},
	}
	cmd.Flags().String("match", "", "Match type (exact, contains); chosen from the pattern length when empty")
	return cmd
}

func rulesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|pattern>",
		Short: "Delete a merchant rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			if err := a.rules.Delete(ctx, args[0]); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Deleted rule "+args[0]))
			return err
		},
	}
}
