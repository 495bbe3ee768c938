package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	appprov "github.com/zjrosen/provchain/internal/application/provenance"
	"github.com/zjrosen/provchain/internal/domain/provenance"
)

var (
	checkKind    string
	checkAgainst string
)

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Validate one new document against an existing set",
	Long: `Validate a single document against the documents already under --against
without adding it to them. An envelope's parent, a plan's source envelope and a
receipt's plan must already exist in that set. A receipt's source envelope is
not looked up. When <file> itself lives under --against it is left out of
the set it is checked against.

The file must hold exactly one document. --kind asserts its kind; without it
the kind is taken from the document.

Examples:
  provchain check --against ./evidence receipt-43.yaml
  provchain check --kind plan --against ./evidence plan-7.json`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkKind, "kind", "k", "", "document kind: envelope, plan or receipt")
	checkCmd.Flags().StringVarP(&checkAgainst, "against", "a", "", "directory holding the existing documents (default: documents_dir)")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	path := args[0]
	against := checkAgainst
	if against == "" {
		against = cfg.DocumentsDir
	}

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
	doc, err := singleDocument(loaded.Set, checkKind)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if _, err := rt.service.LoadBaselineExcluding(ctx, []string{path}, against); err != nil {
		return rt.writeLoadError(err)
	}

	report, err := rt.service.CheckDocument(ctx, path, doc)
	if err != nil {
		return err
	}
	return rt.writeReport(report)
}

// singleDocument picks the only document in set, checking it against kind when one is given.
func singleDocument(set provenance.DocumentSet, kind string) (provenance.Document, error) {
	if kind != "" {
		k, err := provenance.ParseKind(kind)
		if err != nil {
			return nil, err
		}
		return appprov.SingleDocument(set, k)
	}

	switch {
	case len(set.Envelopes) == 1 && set.Len() == 1:
		return appprov.SingleDocument(set, provenance.KindEnvelope)
	case len(set.Plans) == 1 && set.Len() == 1:
		return appprov.SingleDocument(set, provenance.KindPlan)
	case len(set.Receipts) == 1 && set.Len() == 1:
		return appprov.SingleDocument(set, provenance.KindReceipt)
	default:
		return nil, fmt.Errorf("expected exactly one document, found %d", set.Len())
	}
}
