package provenance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/provchain/internal/domain/provenance"
	"github.com/zjrosen/provchain/internal/history"
	"github.com/zjrosen/provchain/internal/log"
	"github.com/zjrosen/provchain/internal/metrics"
	"github.com/zjrosen/provchain/internal/pubsub"
	"github.com/zjrosen/provchain/internal/tracing"
)

// Service runs validations against a session registry and records every run.
// The registry is owned by the service; batch runs replace its contents and
// incremental checks read it.
type Service struct {
	mu       sync.Mutex
	registry *provenance.Registry

	loader      *Loader
	broker      *pubsub.Broker[Report]
	tracer      trace.Tracer
	metrics     *metrics.Metrics
	metricsFile string
	history     history.Repository
	now         func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithTracer wraps every run in a span.
func WithTracer(t trace.Tracer) ServiceOption {
	return func(s *Service) { s.tracer = t }
}

// WithMetrics records run metrics and, when textfile is set, rewrites it after every run.
func WithMetrics(m *metrics.Metrics, textfile string) ServiceOption {
	return func(s *Service) {
		s.metrics = m
		s.metricsFile = textfile
	}
}

// WithHistory saves every run to repo.
func WithHistory(repo history.Repository) ServiceOption {
	return func(s *Service) { s.history = repo }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService creates a service with an empty registry.
func NewService(loader *Loader, opts ...ServiceOption) *Service {
	if loader == nil {
		loader = NewLoader()
	}
	s := &Service{
		registry: provenance.NewRegistry(),
		loader:   loader,
		broker:   pubsub.NewBroker[Report](),
		tracer:   noop.NewTracerProvider().Tracer("noop"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe returns a channel of published reports, closed when ctx is cancelled.
// Batch runs publish ValidatedEvent; checks and inspections publish CheckedEvent.
func (s *Service) Subscribe(ctx context.Context, types ...pubsub.EventType) <-chan pubsub.Event[Report] {
	return s.broker.Subscribe(ctx, types...)
}

// Close shuts down subscriptions.
func (s *Service) Close() {
	s.broker.Close()
}

// Baseline returns a read-only view of the session registry.
func (s *Service) Baseline() provenance.RegistryReader {
	return s.registry
}

// ValidateSet clears the registry and runs batch validation over set.
func (s *Service) ValidateSet(ctx context.Context, source string, set provenance.DocumentSet) (Report, error) {
	if err := ctx.Err(); err != nil {
		return Report{}, err
	}

	started := s.now()
	ctx, span := tracing.StartSpan(ctx, s.tracer, tracing.SpanValidateSet,
		attribute.String(tracing.AttrSource, source),
		attribute.Int(tracing.AttrEnvelopes, len(set.Envelopes)),
		attribute.Int(tracing.AttrPlans, len(set.Plans)),
		attribute.Int(tracing.AttrReceipts, len(set.Receipts)),
	)
	defer span.End()

	s.mu.Lock()
	s.registry.Clear()
	span.AddEvent(tracing.EventRegistryCleared)
	result := provenance.ValidateCrossReferences(s.registry, set)
	s.mu.Unlock()

	report := Report{
		Mode:      history.ModeBatch,
		Source:    source,
		Documents: countDocuments(set),
		Result:    result,
		StartedAt: started,
	}
	return s.finish(ctx, span, report, pubsub.ValidatedEvent), nil
}

// ValidateDirectory loads every document under paths and validates them as one set.
// Structural failures are returned as StructuralErrors and nothing is registered.
func (s *Service) ValidateDirectory(ctx context.Context, paths ...string) (Report, error) {
	started := s.now()
	source := strings.Join(paths, ",")

	loaded, err := s.loader.LoadPaths(ctx, paths...)
	if err != nil {
		s.metrics.ObserveRun(history.ModeBatch, "failed", s.now().Sub(started))
		s.writeMetrics()
		log.ErrorErr(log.CatValidate, "load failed", err, "source", source)
		return Report{}, err
	}

	return s.ValidateSet(ctx, source, loaded.Set)
}

// LoadBaseline clears the registry and registers every document under paths without validating.
func (s *Service) LoadBaseline(ctx context.Context, paths ...string) (DocumentCounts, error) {
	return s.LoadBaselineExcluding(ctx, nil, paths...)
}

// LoadBaselineExcluding is LoadBaseline without the files in exclude, so a document
// stored under paths can still be checked as a newcomer.
func (s *Service) LoadBaselineExcluding(ctx context.Context, exclude []string, paths ...string) (DocumentCounts, error) {
	loaded, err := s.loader.LoadPathsExcluding(ctx, exclude, paths...)
	if err != nil {
		return DocumentCounts{}, fmt.Errorf("load baseline: %w", err)
	}

	s.mu.Lock()
	s.registry.Clear()
	provenance.RegisterAll(s.registry, loaded.Set)
	s.mu.Unlock()

	counts := countDocuments(loaded.Set)
	log.Info(log.CatRegistry, "baseline registered",
		"envelopes", counts.Envelopes, "plans", counts.Plans, "receipts", counts.Receipts)
	return counts, nil
}

// CheckDocument validates doc against the current baseline without registering it.
func (s *Service) CheckDocument(ctx context.Context, source string, doc provenance.Document) (Report, error) {
	if doc == nil {
		return Report{}, fmt.Errorf("check document: nil document")
	}

	started := s.now()
	ctx, span := tracing.StartSpan(ctx, s.tracer, tracing.SpanValidateDocument,
		attribute.String(tracing.AttrSource, source),
		attribute.String(tracing.AttrKind, doc.Kind().String()),
		attribute.String(tracing.AttrDocumentID, doc.DocumentID()),
	)
	defer span.End()

	s.mu.Lock()
	result := provenance.ValidateDocument(s.registry, doc)
	s.mu.Unlock()

	report := Report{
		Mode:      history.ModeIncremental,
		Source:    source,
		Documents: countKind(doc.Kind()),
		Result:    result,
		StartedAt: started,
	}
	return s.finish(ctx, span, report, pubsub.CheckedEvent), nil
}

// InspectEnvelope runs the internal-only check on env. The registry is not consulted.
func (s *Service) InspectEnvelope(ctx context.Context, source string, env *provenance.Envelope) (Report, error) {
	if env == nil {
		return Report{}, fmt.Errorf("inspect envelope: nil envelope")
	}

	started := s.now()
	ctx, span := tracing.StartSpan(ctx, s.tracer, tracing.SpanInspectEnvelope,
		attribute.String(tracing.AttrSource, source),
		attribute.String(tracing.AttrDocumentID, env.ID),
	)
	defer span.End()

	report := Report{
		Mode:      history.ModeInspect,
		Source:    source,
		Documents: DocumentCounts{Envelopes: 1},
		Result:    provenance.ValidateInternalReferences(env),
		StartedAt: started,
	}
	return s.finish(ctx, span, report, pubsub.CheckedEvent), nil
}

func countKind(kind provenance.Kind) DocumentCounts {
	switch kind {
	case provenance.KindEnvelope:
		return DocumentCounts{Envelopes: 1}
	case provenance.KindPlan:
		return DocumentCounts{Plans: 1}
	default:
		return DocumentCounts{Receipts: 1}
	}
}

// finish stamps the duration, then records and publishes the report.
func (s *Service) finish(ctx context.Context, span trace.Span, report Report, event pubsub.EventType) Report {
	report.Duration = s.now().Sub(report.StartedAt)
	res := report.Result

	tracing.RecordOutcome(span, res.Valid, len(res.Errors), len(res.Warnings))

	s.metrics.ObserveRun(report.Mode, report.Outcome(), report.Duration)
	for _, e := range res.Errors {
		s.metrics.AddReferenceErrors(string(e.Type), 1)
	}
	for _, w := range res.Warnings {
		s.metrics.AddWarnings(string(w.Type), 1)
	}
	s.writeMetrics()

	report.RunID = s.record(ctx, report)

	log.Info(log.CatValidate, "validation finished",
		"mode", report.Mode,
		"source", report.Source,
		"valid", res.Valid,
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
		"duration", report.Duration)

	s.broker.Publish(event, report)
	return report
}

// record saves the run to history and returns its id.
// Failures are logged and leave the id empty.
func (s *Service) record(ctx context.Context, report Report) string {
	if s.history == nil {
		return ""
	}

	ctx, span := tracing.StartSpan(ctx, s.tracer, tracing.SpanRecordHistory)
	defer span.End()

	run := history.NewRun(report.Mode, report.Source, report.StartedAt)
	run.Valid = report.Result.Valid
	run.Documents = report.Documents.Total()
	run.ErrorCount = len(report.Result.Errors)
	run.WarningCount = len(report.Result.Warnings)
	run.Duration = report.Duration

	report.RunID = run.ID
	data, err := json.Marshal(report)
	if err != nil {
		tracing.RecordError(span, err)
		log.ErrorErr(log.CatDB, "failed to encode report", err, "run", run.ID)
		return ""
	}
	run.Report = data

	if err := s.history.Save(ctx, run); err != nil {
		tracing.RecordError(span, err)
		log.ErrorErr(log.CatDB, "failed to record run", err, "run", run.ID)
		return ""
	}
	return run.ID
}

func (s *Service) writeMetrics() {
	if err := s.metrics.WriteTextfile(s.metricsFile); err != nil {
		log.ErrorErr(log.CatMetrics, "failed to write metrics textfile", err, "path", s.metricsFile)
	}
}
