package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zjrosen/provchain/internal/domain/provenance"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <envelope-file>",
	Short: "Check the references inside a single envelope",
	Long: `Check that every finding's evidence refs name artifacts of the same envelope,
and that the envelope does not name itself as its parent. No other documents
are consulted; a declared parent is reported as unverified.

Example:
  provchain inspect -o text envelope-1.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]

	rt, err := newRuntime(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	ctx := cmd.Context()
	loaded, err := rt.loader.LoadFile(ctx, path)
	if err != nil {
		return rt.writeLoadError(err)
	}
	doc, err := singleDocument(loaded.Set, string(provenance.KindEnvelope))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	report, err := rt.service.InspectEnvelope(ctx, path, doc.(*provenance.Envelope))
	if err != nil {
		return err
	}
	return rt.writeReport(report)
}
