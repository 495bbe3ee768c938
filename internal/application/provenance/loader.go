package provenance

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/zjrosen/provchain/internal/cachemanager"
	"github.com/zjrosen/provchain/internal/domain/provenance"
	"github.com/zjrosen/provchain/internal/log"
	"github.com/zjrosen/provchain/internal/metrics"
	"github.com/zjrosen/provchain/internal/tracing"
)

// DocumentExtensions are the file extensions the loader reads.
var DocumentExtensions = []string{".yaml", ".yml", ".json"}

const defaultConcurrency = 8

// LoadResult is the assembled document set of a load plus the files it came from.
type LoadResult struct {
	Set   provenance.DocumentSet
	Files []string
}

// FileKey identifies one version of a file: path, size and modification time.
type FileKey string

func newFileKey(path string, info fs.FileInfo) FileKey {
	return FileKey(fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano()))
}

type fileInput struct {
	fsys fs.FS
	name string // name within fsys
	path string // display path
}

// Loader discovers and decodes document files.
type Loader struct {
	validator   StructuralValidator
	cache       *cachemanager.ReadThroughCache[FileKey, provenance.DocumentSet, fileInput]
	ttl         time.Duration
	concurrency int
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithValidator replaces the default StrictYAMLValidator.
func WithValidator(v StructuralValidator) LoaderOption {
	return func(l *Loader) { l.validator = v }
}

// WithCache caches decoded files for ttl. Without it every load re-reads every file.
func WithCache(cache cachemanager.CacheManager[FileKey, provenance.DocumentSet], ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		l.cache = cachemanager.NewReadThroughCache[FileKey, provenance.DocumentSet, fileInput](
			cache, l.decodeFile, cachemanager.WithSlidingExpiration())
		l.ttl = ttl
	}
}

// WithConcurrency bounds how many files are decoded at once. Values <= 0 use the default.
func WithConcurrency(n int) LoaderOption {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithLoaderMetrics records decoded documents and cache lookups.
func WithLoaderMetrics(m *metrics.Metrics) LoaderOption {
	return func(l *Loader) { l.metrics = m }
}

// WithLoaderTracer wraps loads in spans.
func WithLoaderTracer(t trace.Tracer) LoaderOption {
	return func(l *Loader) { l.tracer = t }
}

// NewDecodeCache returns an in-memory cache suitable for WithCache.
func NewDecodeCache(ttl, cleanupInterval time.Duration) cachemanager.CacheManager[FileKey, provenance.DocumentSet] {
	return cachemanager.NewInMemoryCacheManager[FileKey, provenance.DocumentSet]("decoded-documents", ttl, cleanupInterval)
}

// NewLoader creates a loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		validator:   StrictYAMLValidator{},
		concurrency: defaultConcurrency,
		tracer:      noop.NewTracerProvider().Tracer("noop"),
	}
	// Without a cache every lookup goes straight to decodeFile
	l.cache = cachemanager.NewReadThroughCache[FileKey, provenance.DocumentSet, fileInput](nil, l.decodeFile)
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsDocumentFile reports whether name has a document extension.
func IsDocumentFile(name string) bool {
	return slices.Contains(DocumentExtensions, strings.ToLower(filepath.Ext(name)))
}

// LoadPaths loads every given file or directory, in argument order.
func (l *Loader) LoadPaths(ctx context.Context, paths ...string) (*LoadResult, error) {
	return l.LoadPathsExcluding(ctx, nil, paths...)
}

// LoadPathsExcluding is LoadPaths that skips every file in exclude, whether it is
// named directly or found inside one of the directories.
func (l *Loader) LoadPathsExcluding(ctx context.Context, exclude []string, paths ...string) (*LoadResult, error) {
	skip := newPathSet(exclude)
	out := &LoadResult{Files: []string{}}
	var structural StructuralErrors

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}

		var res *LoadResult
		switch {
		case info.IsDir():
			res, err = l.loadTree(ctx, p, os.DirFS(p), skip)
		case skip.has(p):
			log.Debug(log.CatLoad, "excluded file", "path", p)
			continue
		default:
			res, err = l.LoadFile(ctx, p)
		}
		if se, ok := AsStructuralErrors(err); ok {
			// Keep going so every malformed file is reported at once
			structural = append(structural, se...)
			continue
		}
		if err != nil {
			return nil, err
		}
		out.Set.Append(res.Set)
		out.Files = append(out.Files, res.Files...)
	}

	if len(structural) > 0 {
		return nil, structural
	}
	return out, nil
}

// LoadDir loads every document file below dir.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*LoadResult, error) {
	return l.LoadFS(ctx, dir, os.DirFS(dir))
}

// LoadFile loads a single file regardless of its extension.
func (l *Loader) LoadFile(ctx context.Context, path string) (*LoadResult, error) {
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	return l.loadFiles(ctx, filepath.Clean(dir), os.DirFS(dir), []string{name})
}

// LoadFS loads every document file in fsys. root prefixes display paths and cache keys.
func (l *Loader) LoadFS(ctx context.Context, root string, fsys fs.FS) (*LoadResult, error) {
	return l.loadTree(ctx, root, fsys, nil)
}

func (l *Loader) loadTree(ctx context.Context, root string, fsys fs.FS, skip pathSet) (*LoadResult, error) {
	var names []string
	// WalkDir visits entries in lexical order
	err := fs.WalkDir(fsys, ".", func(name string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if !IsDocumentFile(name) {
			return nil
		}
		if skip.has(filepath.Join(root, filepath.FromSlash(name))) {
			log.Debug(log.CatLoad, "excluded file", "path", name)
			return nil
		}
		names = append(names, name)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	return l.loadFiles(ctx, root, fsys, names)
}

// pathSet matches file paths after making them absolute.
type pathSet map[string]struct{}

func newPathSet(paths []string) pathSet {
	if len(paths) == 0 {
		return nil
	}
	set := make(pathSet, len(paths))
	for _, p := range paths {
		set[absPath(p)] = struct{}{}
	}
	return set
}

func (s pathSet) has(path string) bool {
	if len(s) == 0 {
		return false
	}
	_, ok := s[absPath(path)]
	return ok
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

func (l *Loader) loadFiles(ctx context.Context, root string, fsys fs.FS, names []string) (*LoadResult, error) {
	ctx, span := tracing.StartSpan(ctx, l.tracer, tracing.SpanLoadDirectory,
		attribute.String(tracing.AttrSource, root),
		attribute.Int(tracing.AttrFiles, len(names)),
	)
	defer span.End()

	sets := make([]provenance.DocumentSet, len(names))
	failures := make([]StructuralErrors, len(names))
	paths := make([]string, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	for i, name := range names {
		paths[i] = filepath.Join(root, filepath.FromSlash(name))
		g.Go(func() error {
			set, err := l.loadOne(gctx, fsys, name, paths[i])
			if se, ok := AsStructuralErrors(err); ok {
				failures[i] = se
				return nil
			}
			if err != nil {
				return err
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	var structural StructuralErrors
	for _, f := range failures {
		structural = append(structural, f...)
	}
	if len(structural) > 0 {
		span.AddEvent(tracing.EventStructuralFailed, trace.WithAttributes(attribute.Int("count", len(structural))))
		log.Warn(log.CatLoad, "structural validation failed", "root", root, "defects", len(structural))
		return nil, structural
	}

	res := &LoadResult{Files: paths}
	for _, s := range sets {
		res.Set.Append(s)
	}
	span.SetAttributes(
		attribute.Int(tracing.AttrEnvelopes, len(res.Set.Envelopes)),
		attribute.Int(tracing.AttrPlans, len(res.Set.Plans)),
		attribute.Int(tracing.AttrReceipts, len(res.Set.Receipts)),
	)
	log.Debug(log.CatLoad, "loaded documents", "root", root, "files", len(paths), "documents", res.Set.Len())
	return res, nil
}

func (l *Loader) loadOne(ctx context.Context, fsys fs.FS, name, path string) (provenance.DocumentSet, error) {
	if err := ctx.Err(); err != nil {
		return provenance.DocumentSet{}, err
	}

	info, err := fs.Stat(fsys, name)
	if err != nil {
		return provenance.DocumentSet{}, fmt.Errorf("stat %s: %w", path, err)
	}

	set, hit, err := l.cache.Get(ctx, newFileKey(path, info), fileInput{fsys: fsys, name: name, path: path}, l.ttl)
	if err == nil && l.cache.Enabled() {
		l.metrics.CacheHit(hit)
	}
	return set, err
}

// decodeFile reads and structurally validates one file. Errors are never cached.
func (l *Loader) decodeFile(_ context.Context, in fileInput) (provenance.DocumentSet, error) {
	data, err := fs.ReadFile(in.fsys, in.name)
	if err != nil {
		return provenance.DocumentSet{}, fmt.Errorf("read %s: %w", in.path, err)
	}

	set, err := l.validator.Decode(in.path, data)
	if err != nil {
		return provenance.DocumentSet{}, err
	}

	l.metrics.AddDocuments(string(provenance.KindEnvelope), len(set.Envelopes))
	l.metrics.AddDocuments(string(provenance.KindPlan), len(set.Plans))
	l.metrics.AddDocuments(string(provenance.KindReceipt), len(set.Receipts))
	return set, nil
}

// SingleDocument returns the only document of set, which must be of kind.
func SingleDocument(set provenance.DocumentSet, kind provenance.Kind) (provenance.Document, error) {
	if set.Len() != 1 {
		return nil, fmt.Errorf("expected exactly one document, found %d", set.Len())
	}

	var doc provenance.Document
	switch {
	case len(set.Envelopes) == 1:
		doc = &set.Envelopes[0]
	case len(set.Plans) == 1:
		doc = &set.Plans[0]
	default:
		doc = &set.Receipts[0]
	}

	if doc.Kind() != kind {
		return nil, fmt.Errorf("expected a %s document, found %s %q", kind, doc.Kind(), doc.DocumentID())
	}
	return doc, nil
}
