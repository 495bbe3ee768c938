package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys for validation tracing.
const (
	AttrSource       = "validation.source"
	AttrKind         = "validation.kind"
	AttrDocumentID   = "validation.document_id"
	AttrValid        = "validation.valid"
	AttrErrorCount   = "validation.errors"
	AttrWarningCount = "validation.warnings"

	AttrEnvelopes = "documents.envelopes"
	AttrPlans     = "documents.plans"
	AttrReceipts  = "documents.receipts"
	AttrFiles     = "documents.files"

	AttrErrorMessage = "error.message"
)

// Span names.
const (
	SpanValidateSet      = "provenance.validate_set"
	SpanValidateDocument = "provenance.validate_document"
	SpanInspectEnvelope  = "provenance.inspect_envelope"
	SpanLoadDirectory    = "loader.load_directory"
	SpanDecodeFile       = "loader.decode_file"
	SpanRecordHistory    = "history.record"
)

// Event names for span events.
const (
	EventRegistryCleared  = "registry.cleared"
	EventStructuralFailed = "structural.failed"
)

// StartSpan starts a span on tracer with the given attributes.
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError marks span as failed. A nil err leaves the span untouched.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
}

// RecordOutcome sets the validation counters on span and its status.
func RecordOutcome(span trace.Span, valid bool, errs, warnings int) {
	span.SetAttributes(
		attribute.Bool(AttrValid, valid),
		attribute.Int(AttrErrorCount, errs),
		attribute.Int(AttrWarningCount, warnings),
	)
	if valid {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.SetStatus(codes.Error, "reference errors")
}
