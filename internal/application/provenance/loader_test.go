package provenance

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/provchain/internal/metrics"
)

func docsFS() fstest.MapFS {
	return fstest.MapFS{
		"b/plan.yaml":            {Data: []byte("schema: procedure-plan\nplan_id: P-1\nsource_envelope_id: E-1\n")},
		"a/env.yaml":             {Data: []byte("schema: evidence-envelope\nenvelope_id: E-1\n")},
		"c/more.json":            {Data: []byte(`{"envelopes":[{"envelope_id":"E-2"},{"envelope_id":"E-3"}]}`)},
		"README.md":              {Data: []byte("# not a document")},
		".provchain/config.yaml": {Data: []byte("output: text\n")},
	}
}

func TestLoader_LoadFS_LexicalOrder(t *testing.T) {
	res, err := NewLoader().LoadFS(context.Background(), "docs", docsFS())
	require.NoError(t, err)

	require.Equal(t, []string{
		filepath.Join("docs", "a", "env.yaml"),
		filepath.Join("docs", "b", "plan.yaml"),
		filepath.Join("docs", "c", "more.json"),
	}, res.Files, "hidden directories and non-document files are skipped")

	require.Len(t, res.Set.Envelopes, 3)
	require.Equal(t, "E-1", res.Set.Envelopes[0].ID)
	require.Equal(t, "E-2", res.Set.Envelopes[1].ID)
	require.Equal(t, "E-3", res.Set.Envelopes[2].ID)
	require.Len(t, res.Set.Plans, 1)
}

func TestLoader_LoadFS_DeterministicUnderConcurrency(t *testing.T) {
	fsys := fstest.MapFS{}
	for i := 0; i < 40; i++ {
		name := filepath.ToSlash(filepath.Join("envs", string(rune('a'+i%26))+string(rune('a'+i/26))+".yaml"))
		fsys[name] = &fstest.MapFile{Data: []byte("schema: evidence-envelope\nenvelope_id: " + name + "\n")}
	}

	first, err := NewLoader(WithConcurrency(1)).LoadFS(context.Background(), "x", fsys)
	require.NoError(t, err)
	second, err := NewLoader(WithConcurrency(16)).LoadFS(context.Background(), "x", fsys)
	require.NoError(t, err)

	require.Equal(t, first.Set, second.Set)
	require.Equal(t, first.Files, second.Files)
}

func TestLoader_LoadFS_CollectsEveryStructuralError(t *testing.T) {
	fsys := docsFS()
	fsys["a/bad.yaml"] = &fstest.MapFile{Data: []byte("schema: receipt\n")}
	fsys["d/worse.yaml"] = &fstest.MapFile{Data: []byte("schema: incident\n")}

	res, err := NewLoader().LoadFS(context.Background(), "docs", fsys)
	require.Nil(t, res)
	require.ErrorIs(t, err, ErrStructural)

	se, ok := AsStructuralErrors(err)
	require.True(t, ok)
	require.Len(t, se, 2)
	require.Equal(t, filepath.Join("docs", "a", "bad.yaml"), se[0].Path)
	require.Equal(t, filepath.Join("docs", "d", "worse.yaml"), se[1].Path)
}

func TestLoader_LoadFS_Empty(t *testing.T) {
	res, err := NewLoader().LoadFS(context.Background(), "empty", fstest.MapFS{})
	require.NoError(t, err)
	require.Zero(t, res.Set.Len())
	require.Empty(t, res.Files)
}

func TestLoader_Cache_SkipsUnchangedFiles(t *testing.T) {
	m := metrics.New()
	l := NewLoader(
		WithCache(NewDecodeCache(time.Minute, time.Minute), time.Minute),
		WithLoaderMetrics(m),
	)
	fsys := docsFS()

	_, err := l.LoadFS(context.Background(), "docs", fsys)
	require.NoError(t, err)
	_, err = l.LoadFS(context.Background(), "docs", fsys)
	require.NoError(t, err)

	require.Equal(t, 3.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.DocumentsLoaded.WithLabelValues("envelope")), "cached files are not decoded again")

	// A changed file gets a new key
	fsys["a/env.yaml"] = &fstest.MapFile{Data: []byte("schema: evidence-envelope\nenvelope_id: E-1b\n")}
	res, err := l.LoadFS(context.Background(), "docs", fsys)
	require.NoError(t, err)
	require.Equal(t, "E-1b", res.Set.Envelopes[0].ID)
	require.Equal(t, 4.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
}

func TestLoader_LoadPaths_FilesAndDirs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "docs", "e.yaml"), []byte("schema: evidence-envelope\nenvelope_id: E-1\n"), 0o644))
	single := filepath.Join(dir, "receipt.txt")
	require.NoError(t, os.WriteFile(single, []byte("schema: receipt\nreceipt_id: R-1\nplan_id: P-9\n"), 0o644))

	res, err := NewLoader().LoadPaths(context.Background(), filepath.Join(dir, "docs"), single)
	require.NoError(t, err)
	require.Len(t, res.Set.Envelopes, 1)
	require.Len(t, res.Set.Receipts, 1, "explicit files load regardless of extension")
	require.Equal(t, []string{filepath.Join(dir, "docs", "e.yaml"), single}, res.Files)
}

func TestLoader_LoadPathsExcluding(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "docs"), 0o755))
	kept := filepath.Join(dir, "docs", "e1.yaml")
	dropped := filepath.Join(dir, "docs", "e2.yaml")
	require.NoError(t, os.WriteFile(kept, []byte("schema: evidence-envelope\nenvelope_id: E-1\n"), 0o644))
	require.NoError(t, os.WriteFile(dropped, []byte("schema: evidence-envelope\nenvelope_id: E-2\n"), 0o644))

	res, err := NewLoader().LoadPathsExcluding(context.Background(), []string{dropped}, filepath.Join(dir, "docs"))
	require.NoError(t, err)
	require.Equal(t, []string{kept}, res.Files)
	require.Len(t, res.Set.Envelopes, 1)
	require.Equal(t, "E-1", res.Set.Envelopes[0].ID)

	// Named directly, the excluded file is skipped as well
	res, err = NewLoader().LoadPathsExcluding(context.Background(), []string{dropped}, dropped, kept)
	require.NoError(t, err)
	require.Equal(t, []string{kept}, res.Files)
}

func TestLoader_LoadPaths_Missing(t *testing.T) {
	_, err := NewLoader().LoadPaths(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.ErrorContains(t, err, "stat")
	_, ok := AsStructuralErrors(err)
	require.False(t, ok)
}

func TestLoader_LoadFS_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader().LoadFS(ctx, "docs", docsFS())
	require.ErrorIs(t, err, context.Canceled)
}

func TestSingleDocument(t *testing.T) {
	set, err := StrictYAMLValidator{}.Decode("p.yaml", []byte("schema: procedure-plan\nplan_id: P-1\n"))
	require.NoError(t, err)

	doc, err := SingleDocument(set, "plan")
	require.NoError(t, err)
	require.Equal(t, "P-1", doc.DocumentID())

	_, err = SingleDocument(set, "receipt")
	require.ErrorContains(t, err, `expected a receipt document, found plan "P-1"`)

	bundle, err := StrictYAMLValidator{}.Decode("b.yaml", []byte("envelopes: [{envelope_id: E-1}, {envelope_id: E-2}]\n"))
	require.NoError(t, err)
	_, err = SingleDocument(bundle, "envelope")
	require.ErrorContains(t, err, "expected exactly one document, found 2")
}

func TestIsDocumentFile(t *testing.T) {
	require.True(t, IsDocumentFile("a.yaml"))
	require.True(t, IsDocumentFile("a.YML"))
	require.True(t, IsDocumentFile("dir/a.json"))
	require.False(t, IsDocumentFile("a.md"))
	require.False(t, IsDocumentFile("yaml"))
}
