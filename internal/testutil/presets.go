package testutil

// WithStandardChain adds a small fully-linked set:
// a root envelope with one cited artifact, a child envelope,
// a plan drawn from the root and the receipt executing it.
func (b *Builder) WithStandardChain() *Builder {
	return b.
		WithEnvelope("E-root",
			Tool("collector"), Artifact("A-1"), Finding("F-1", "A-1")).
		WithEnvelope("E-child",
			Parent("E-root"), Artifact("A-2"), Finding("F-2", "A-2")).
		WithPlan("P-1", "E-root", PlanReceipt("R-1"), Title("Rotate credentials")).
		WithReceipt("R-1", "P-1", SourceEnvelope("E-root"), Status("completed"))
}
