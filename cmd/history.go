package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/provchain/internal/presentation"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse recorded validation runs",
	Long: `Every validate, check and inspect run is recorded in the history database
(history.db_path) together with its full report.

Runs are addressed by their id or any unique prefix of it.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		repo, closeDB, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = closeDB() }()

		runs, err := repo.List(cmd.Context(), historyLimit)
		if err != nil {
			return err
		}
		return newFormatter(cmd.OutOrStdout()).FormatRuns(runs)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the report of a recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = closeDB() }()

		run, err := repo.FindByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return newFormatter(cmd.OutOrStdout()).FormatRun(run)
	},
}

var historyDiffCmd = &cobra.Command{
	Use:   "diff <from-id> <to-id>",
	Short: "Compare the findings of two recorded runs",
	Long: `Line-diff the errors and warnings of two recorded runs. Added lines are
findings present only in the second run; removed lines were fixed.

Example:
  provchain history diff 3f2a9c1e 81bd0c44 -o text`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeDB, err := openHistory()
		if err != nil {
			return err
		}
		defer func() { _ = closeDB() }()

		ctx := cmd.Context()
		from, err := repo.FindByID(ctx, args[0])
		if err != nil {
			return err
		}
		to, err := repo.FindByID(ctx, args[1])
		if err != nil {
			return err
		}

		fromReport, err := presentation.ReportFromRun(from)
		if err != nil {
			return err
		}
		toReport, err := presentation.ReportFromRun(to)
		if err != nil {
			return err
		}

		diff := presentation.DiffReports(from.ShortID(), fromReport, to.ShortID(), toReport)
		if err := newFormatter(cmd.OutOrStdout()).FormatDiff(diff); err != nil {
			return fmt.Errorf("writing diff: %w", err)
		}
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs (0 for all)")
	historyCmd.AddCommand(historyListCmd, historyShowCmd, historyDiffCmd)
	rootCmd.AddCommand(historyCmd)
}
