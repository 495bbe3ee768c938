package cmd

import (
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir|file...]",
	Short: "Validate every reference across a set of documents",
	Long: `Load every document under the given directories and files and validate
them as one set. Each plan, receipt and envelope parent is checked against
the other documents of the set, and every envelope is checked internally.

With no arguments the configured documents_dir is used. Hidden directories are
skipped; files named explicitly are loaded whatever their extension.

Exit status is 0 when the set is valid, 2 when it has reference or structural
errors and 1 on any other failure.

Examples:
  provchain validate
  provchain validate ./evidence
  provchain validate envelopes/ plans/ receipt-42.yaml
  provchain validate -o text ./evidence`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	paths := args
	if len(paths) == 0 {
		paths = []string{cfg.DocumentsDir}
	}

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	report, err := rt.service.ValidateDirectory(cmd.Context(), paths...)
	if err != nil {
		return rt.writeLoadError(err)
	}
	return rt.writeReport(report)
}
