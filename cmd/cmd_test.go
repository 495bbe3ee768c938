package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/provchain/internal/config"
	"github.com/zjrosen/provchain/internal/presentation"
	"github.com/zjrosen/provchain/internal/testutil"
)

// executeCommand runs the root command with fresh flag and config state.
func executeCommand(ctx context.Context, t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	viper.Reset()
	cfg = config.Config{}
	resetFlags(rootCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	_ = teardown(rootCmd, nil)
	return stdout.String(), stderr.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// writeConfig writes a config file with history in a temp dir and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "no_color: true\n" +
		"history:\n" +
		"  enabled: true\n" +
		"  db_path: " + filepath.Join(dir, "history.db") + "\n" +
		extra
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const (
	planDoc = `schema: procedure-plan
plan_id: P-1
source_envelope_id: E-root
`
	orphanReceiptDoc = `schema: receipt
receipt_id: R-2
plan_id: P-404
`
)

func validDocs(t *testing.T) string {
	t.Helper()
	return testutil.NewBuilder(t, t.TempDir()).WithStandardChain().Build()
}

func decodeReport(t *testing.T, out string) presentation.ReportDTO {
	t.Helper()
	var dto presentation.ReportDTO
	require.NoError(t, json.Unmarshal([]byte(out), &dto), out)
	return dto
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Equal(t, code, exitErr.Code)
}

func TestValidate_ValidSet(t *testing.T) {
	cfgPath := writeConfig(t, "")
	dir := validDocs(t)

	out, _, err := executeCommand(context.Background(), t, "validate", "-c", cfgPath, dir)
	require.NoError(t, err)

	report := decodeReport(t, out)
	require.True(t, report.Valid)
	require.Equal(t, "batch", report.Mode)
	require.Equal(t, 2, report.Documents.Envelopes)
	require.Equal(t, 1, report.Documents.Plans)
	require.Equal(t, 1, report.Documents.Receipts)
	require.Empty(t, report.Errors)
	require.NotEmpty(t, report.RunID, "run is recorded in history")
}

func TestValidate_MissingPlanExitsInvalid(t *testing.T) {
	cfgPath := writeConfig(t, "")
	dir := validDocs(t)
	writeFile(t, dir, "receipts/r2.yaml", orphanReceiptDoc)

	out, _, err := executeCommand(context.Background(), t, "validate", "-c", cfgPath, dir)
	requireExitCode(t, err, ExitInvalid)

	report := decodeReport(t, out)
	require.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
	require.Equal(t, "missing_reference", string(report.Errors[0].Type))
	require.Equal(t, "R-2", report.Errors[0].SourceID)
	require.Equal(t, "P-404", report.Errors[0].TargetID)
	require.Equal(t, "plan_id", report.Errors[0].Field)
}

func TestValidate_StructuralErrorExitsInvalid(t *testing.T) {
	cfgPath := writeConfig(t, "")
	dir := validDocs(t)
	writeFile(t, dir, "broken.yaml", "schema: receipt\nreceipt_id: R-9\nunexpected: true\n")

	out, _, err := executeCommand(context.Background(), t, "validate", "-c", cfgPath, dir)
	requireExitCode(t, err, ExitInvalid)

	var dto presentation.StructuralDTO
	require.NoError(t, json.Unmarshal([]byte(out), &dto))
	require.Len(t, dto.StructuralErrors, 1)
	require.Equal(t, filepath.Join(dir, "broken.yaml"), dto.StructuralErrors[0].Path)
}

func TestValidate_TextOutput(t *testing.T) {
	cfgPath := writeConfig(t, "")
	dir := validDocs(t)

	out, _, err := executeCommand(context.Background(), t, "validate", "-c", cfgPath, "-o", "text", dir)
	require.NoError(t, err)
	require.Contains(t, out, "✓ valid  batch "+dir)
	require.NotContains(t, out, "\x1b[")
}

func TestValidate_DocumentsDirFromConfig(t *testing.T) {
	dir := validDocs(t)
	cfgPath := writeConfig(t, "documents_dir: "+dir+"\n")

	out, _, err := executeCommand(context.Background(), t, "validate", "-c", cfgPath)
	require.NoError(t, err)
	require.Equal(t, dir, decodeReport(t, out).Source)
}

func TestValidate_MissingPathFails(t *testing.T) {
	cfgPath := writeConfig(t, "")

	_, _, err := executeCommand(context.Background(), t, "validate", "-c", cfgPath, filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	var exitErr *ExitError
	require.NotErrorAs(t, err, &exitErr)
}

func TestValidate_InvalidConfig(t *testing.T) {
	cfgPath := writeConfig(t, "output: xml\n")

	_, _, err := executeCommand(context.Background(), t, "validate", "-c", cfgPath, t.TempDir())
	require.ErrorContains(t, err, "invalid configuration")
}

func TestValidate_WritesMetricsTextfile(t *testing.T) {
	metricsPath := filepath.Join(t.TempDir(), "provchain.prom")
	cfgPath := writeConfig(t, "metrics:\n  file: "+metricsPath+"\n")

	_, _, err := executeCommand(context.Background(), t, "validate", "-c", cfgPath, validDocs(t))
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	require.Contains(t, string(data), "provchain_")
}

func TestCheck_AgainstBaseline(t *testing.T) {
	cfgPath := writeConfig(t, "")
	dir := validDocs(t)
	newReceipt := writeFile(t, t.TempDir(), "r3.yaml", "schema: receipt\nreceipt_id: R-3\nplan_id: P-1\nsource_envelope_id: E-root\n")

	out, _, err := executeCommand(context.Background(), t, "check", "-c", cfgPath, "--against", dir, "--kind", "receipt", newReceipt)
	require.NoError(t, err)

	report := decodeReport(t, out)
	require.True(t, report.Valid)
	require.Equal(t, "incremental", report.Mode)
	require.Equal(t, 1, report.Documents.Receipts)
}

func TestCheck_FileInsideBaselineIsLeftOut(t *testing.T) {
	cfgPath := writeConfig(t, "")
	dir := validDocs(t)
	selfParent := writeFile(t, dir, "envelopes/E-self.yaml", `schema: evidence-envelope
envelope_id: E-self
provenance:
  parent_envelope_id: E-self
`)

	out, _, err := executeCommand(context.Background(), t, "check", "-c", cfgPath, "--against", dir, selfParent)
	require.NoError(t, err)

	report := decodeReport(t, out)
	require.True(t, report.Valid)
	require.Len(t, report.Warnings, 2, "internal and registry parent warnings")
}

func TestCheck_InfersKind(t *testing.T) {
	cfgPath := writeConfig(t, "")
	dir := validDocs(t)
	orphan := writeFile(t, t.TempDir(), "r2.yaml", orphanReceiptDoc)

	out, _, err := executeCommand(context.Background(), t, "check", "-c", cfgPath, "--against", dir, orphan)
	requireExitCode(t, err, ExitInvalid)
	require.Equal(t, "P-404", decodeReport(t, out).Errors[0].TargetID)
}

func TestCheck_KindMismatch(t *testing.T) {
	cfgPath := writeConfig(t, "")
	plan := writeFile(t, t.TempDir(), "p.yaml", planDoc)

	_, _, err := executeCommand(context.Background(), t, "check", "-c", cfgPath, "--against", validDocs(t), "--kind", "receipt", plan)
	require.ErrorContains(t, err, "expected a receipt document")
}

func TestCheck_UnknownKind(t *testing.T) {
	cfgPath := writeConfig(t, "")
	plan := writeFile(t, t.TempDir(), "p.yaml", planDoc)

	_, _, err := executeCommand(context.Background(), t, "check", "-c", cfgPath, "--against", validDocs(t), "--kind", "incident", plan)
	require.ErrorContains(t, err, "unknown document kind")
}

func TestInspect_DanglingEvidenceRef(t *testing.T) {
	cfgPath := writeConfig(t, "")
	env := writeFile(t, t.TempDir(), "env.yaml", `schema: evidence-envelope
envelope_id: E-7
findings:
  - finding_id: F-1
    evidence_refs: [A-missing]
`)

	out, _, err := executeCommand(context.Background(), t, "inspect", "-c", cfgPath, env)
	requireExitCode(t, err, ExitInvalid)

	report := decodeReport(t, out)
	require.Equal(t, "inspect", report.Mode)
	require.Len(t, report.Errors, 1)
	require.Equal(t, "A-missing", report.Errors[0].TargetID)
}

func TestInspect_RejectsNonEnvelope(t *testing.T) {
	cfgPath := writeConfig(t, "")
	plan := writeFile(t, t.TempDir(), "p.yaml", planDoc)

	_, _, err := executeCommand(context.Background(), t, "inspect", "-c", cfgPath, plan)
	require.ErrorContains(t, err, "expected a envelope document")
}

func TestHistory_ListShowDiff(t *testing.T) {
	cfgPath := writeConfig(t, "")
	dir := validDocs(t)
	orphan := writeFile(t, dir, "receipts/r2.yaml", orphanReceiptDoc)

	out, _, err := executeCommand(context.Background(), t, "validate", "-c", cfgPath, dir)
	requireExitCode(t, err, ExitInvalid)
	first := decodeReport(t, out).RunID

	require.NoError(t, os.Remove(orphan))
	out, _, err = executeCommand(context.Background(), t, "validate", "-c", cfgPath, dir)
	require.NoError(t, err)
	second := decodeReport(t, out).RunID

	out, _, err = executeCommand(context.Background(), t, "history", "list", "-c", cfgPath)
	require.NoError(t, err)
	var runs []presentation.RunDTO
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
	require.Equal(t, second, runs[0].ID, "newest first")
	require.Equal(t, first, runs[1].ID)
	require.Equal(t, 1, runs[1].ErrorCount)

	out, _, err = executeCommand(context.Background(), t, "history", "show", "-c", cfgPath, first[:8])
	require.NoError(t, err)
	shown := decodeReport(t, out)
	require.Equal(t, first, shown.RunID)
	require.False(t, shown.Valid)

	out, _, err = executeCommand(context.Background(), t, "history", "diff", "-c", cfgPath, first, second)
	require.NoError(t, err)
	var diff presentation.ReportDiff
	require.NoError(t, json.Unmarshal([]byte(out), &diff))
	require.Equal(t, 1, diff.Removed)
	require.Equal(t, 0, diff.Added)
}

func TestHistory_ListLimit(t *testing.T) {
	cfgPath := writeConfig(t, "")
	dir := validDocs(t)
	for i := 0; i < 3; i++ {
		_, _, err := executeCommand(context.Background(), t, "validate", "-c", cfgPath, dir)
		require.NoError(t, err)
	}

	out, _, err := executeCommand(context.Background(), t, "history", "list", "-c", cfgPath, "--limit", "2")
	require.NoError(t, err)
	var runs []presentation.RunDTO
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 2)
}

func TestHistory_ShowUnknownRun(t *testing.T) {
	cfgPath := writeConfig(t, "")

	_, _, err := executeCommand(context.Background(), t, "history", "show", "-c", cfgPath, "deadbeef")
	require.ErrorContains(t, err, "not found")
}

func TestHistory_Disabled(t *testing.T) {
	cfgPath := writeConfig(t, "")
	require.NoError(t, config.SetValue(cfgPath, "history.enabled", "false"))

	_, _, err := executeCommand(context.Background(), t, "history", "list", "-c", cfgPath)
	require.ErrorContains(t, err, "history is disabled")
}

func TestValidate_HistoryDisabledOmitsRunID(t *testing.T) {
	cfgPath := writeConfig(t, "")
	require.NoError(t, config.SetValue(cfgPath, "history.enabled", "false"))

	out, _, err := executeCommand(context.Background(), t, "validate", "-c", cfgPath, validDocs(t))
	require.NoError(t, err)
	require.Empty(t, decodeReport(t, out).RunID)
}

func TestConfig_SetAndPath(t *testing.T) {
	cfgPath := writeConfig(t, "")

	out, _, err := executeCommand(context.Background(), t, "config", "path", "-c", cfgPath)
	require.NoError(t, err)
	require.Equal(t, cfgPath+"\n", out)

	_, _, err = executeCommand(context.Background(), t, "config", "set", "-c", cfgPath, "output", "text")
	require.NoError(t, err)

	out, _, err = executeCommand(context.Background(), t, "validate", "-c", cfgPath, validDocs(t))
	require.NoError(t, err)
	require.Contains(t, out, "✓ valid")
}

func TestConfig_SetUnknownKey(t *testing.T) {
	cfgPath := writeConfig(t, "")

	_, _, err := executeCommand(context.Background(), t, "config", "set", "-c", cfgPath, "colour", "red")
	require.ErrorContains(t, err, "unknown config key")
}

func TestConfig_SetRepairsInvalidConfig(t *testing.T) {
	cfgPath := writeConfig(t, "output: xml\n")

	_, _, err := executeCommand(context.Background(), t, "config", "set", "-c", cfgPath, "output", "json")
	require.NoError(t, err)

	_, _, err = executeCommand(context.Background(), t, "validate", "-c", cfgPath, validDocs(t))
	require.NoError(t, err)
}

func TestConfig_Init(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "nested", "config.yaml")

	out, _, err := executeCommand(context.Background(), t, "config", "init", "-c", cfgPath)
	require.NoError(t, err)
	require.Equal(t, cfgPath+"\n", out)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfigTemplate(), string(data))

	require.NoError(t, config.SetValue(cfgPath, "output", "text"))
	_, _, err = executeCommand(context.Background(), t, "config", "init", "-c", cfgPath)
	require.ErrorContains(t, err, "already exists")

	_, _, err = executeCommand(context.Background(), t, "config", "init", "-c", cfgPath, "--force")
	require.NoError(t, err)
}

func TestWatch_ValidatesUntilCancelled(t *testing.T) {
	cfgPath := writeConfig(t, "watch:\n  debounce: 20ms\n")
	dir := validDocs(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, _, err := executeCommand(ctx, t, "watch", "-c", cfgPath, dir)
	require.NoError(t, err)
	require.Contains(t, out, `"valid": true`)
	require.Contains(t, out, `"mode": "batch"`)
}

func TestWatch_MissingDirectory(t *testing.T) {
	cfgPath := writeConfig(t, "")

	_, _, err := executeCommand(context.Background(), t, "watch", "-c", cfgPath, filepath.Join(t.TempDir(), "nope"))
	require.ErrorContains(t, err, "starting watcher")
}

func TestExitError(t *testing.T) {
	require.Equal(t, "exit status 2", (&ExitError{Code: ExitInvalid}).Error())

	inner := os.ErrNotExist
	err := &ExitError{Code: ExitFailure, Err: inner}
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Equal(t, inner.Error(), err.Error())
}
