package provenance

import "fmt"

// ValidateDocument checks one document against an already populated registry
// without registering anything. A nil document is valid; a nil registry knows nothing.
func ValidateDocument(reg RegistryReader, doc Document) Result {
	res := newResult()
	if doc == nil {
		return res
	}
	if reg == nil {
		reg = NewRegistry()
	}
	doc.checkAgainst(reg, &res)
	return res
}

// checkAgainst runs the internal checks, then looks up the parent. An unknown parent
// is only a warning here: the registry may not hold the envelope's full history.
func (e *Envelope) checkAgainst(reg RegistryReader, res *Result) {
	res.merge(ValidateInternalReferences(e))

	parent, ok := e.ParentEnvelopeID()
	if !ok || reg.HasEnvelope(parent) {
		return
	}
	res.addWarning(ReferenceWarning{
		Type:    UnverifiedReference,
		Message: fmt.Sprintf("envelope %q declares parent envelope %q which is not in the registry", e.ID, parent),
	})
}

func (p *Plan) checkAgainst(reg RegistryReader, res *Result) {
	checkPlanSource(reg, p, res)
}

// checkAgainst only resolves the plan reference. The batch validator also checks
// the envelope reference; the two paths intentionally differ.
func (r *Receipt) checkAgainst(reg RegistryReader, res *Result) {
	checkReceiptPlan(reg, r, res)
}
