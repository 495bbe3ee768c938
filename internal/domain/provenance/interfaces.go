package provenance

// RegistryReader defines read-only access to a Registry.
// Incremental validation only needs this view, so callers can pass a registry
// that is shared with a long-lived session without risking mutation.
type RegistryReader interface {
	// HasEnvelope reports whether an envelope with id is known.
	HasEnvelope(id string) bool

	// HasPlan reports whether a plan with id is known.
	HasPlan(id string) bool

	// HasReceipt reports whether a receipt with id is known.
	HasReceipt(id string) bool

	// HasArtifact reports whether any known envelope declares the artifact.
	HasArtifact(id string) bool

	// GetEnvelope returns the stored envelope projection, or false if unknown.
	GetEnvelope(id string) (EnvelopeProjection, bool)
}

// Compile-time check that Registry implements RegistryReader.
var _ RegistryReader = (*Registry)(nil)
