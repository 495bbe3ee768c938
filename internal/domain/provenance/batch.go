package provenance

import "fmt"

// ValidateCrossReferences registers every document of set into reg and then checks
// all cross-document references.
//
// Registration completes before any check, so references between documents of the
// same set resolve regardless of list order. Errors and warnings are ordered by
// envelopes, then plans, then receipts, each in input order.
func ValidateCrossReferences(reg *Registry, set DocumentSet) Result {
	RegisterAll(reg, set)

	res := newResult()
	for i := range set.Envelopes {
		checkEnvelopeLineage(reg, &set.Envelopes[i], &res)
	}
	for i := range set.Plans {
		checkPlanSource(reg, &set.Plans[i], &res)
	}
	for i := range set.Receipts {
		checkReceiptReferences(reg, &set.Receipts[i], &res)
	}
	return res
}

// checkEnvelopeLineage runs the batch checks for one envelope: unknown parent,
// self-parent, then the internal finding checks.
func checkEnvelopeLineage(reg RegistryReader, env *Envelope, res *Result) {
	if parent, ok := env.ParentEnvelopeID(); ok {
		if !reg.HasEnvelope(parent) {
			res.addError(ReferenceError{
				Type:         MissingReference,
				SourceSchema: SchemaEnvelope,
				SourceID:     env.ID,
				TargetSchema: SchemaEnvelope,
				TargetID:     parent,
				Field:        fieldParentEnvelope,
				Message:      fmt.Sprintf("envelope %q declares parent envelope %q which is not registered", env.ID, parent),
			})
		}
		if parent == env.ID {
			res.addError(ReferenceError{
				Type:         CircularReference,
				SourceSchema: SchemaEnvelope,
				SourceID:     env.ID,
				TargetSchema: SchemaEnvelope,
				TargetID:     parent,
				Field:        fieldParentEnvelope,
				Message:      fmt.Sprintf("envelope %q declares itself as its parent", env.ID),
			})
		}
	}

	res.merge(ValidateInternalReferences(env))
}

func checkPlanSource(reg RegistryReader, plan *Plan, res *Result) {
	if plan.SourceEnvelopeID == "" || reg.HasEnvelope(plan.SourceEnvelopeID) {
		return
	}
	res.addError(ReferenceError{
		Type:         MissingReference,
		SourceSchema: SchemaPlan,
		SourceID:     plan.ID,
		TargetSchema: SchemaEnvelope,
		TargetID:     plan.SourceEnvelopeID,
		Field:        "source_envelope_id",
		Message:      fmt.Sprintf("plan %q references source envelope %q which is not registered", plan.ID, plan.SourceEnvelopeID),
	})
}

func checkReceiptPlan(reg RegistryReader, rcpt *Receipt, res *Result) {
	if rcpt.PlanID == "" || reg.HasPlan(rcpt.PlanID) {
		return
	}
	res.addError(ReferenceError{
		Type:         MissingReference,
		SourceSchema: SchemaReceipt,
		SourceID:     rcpt.ID,
		TargetSchema: SchemaPlan,
		TargetID:     rcpt.PlanID,
		Field:        "plan_id",
		Message:      fmt.Sprintf("receipt %q references plan %q which is not registered", rcpt.ID, rcpt.PlanID),
	})
}

func checkReceiptEnvelope(reg RegistryReader, rcpt *Receipt, res *Result) {
	if rcpt.EnvelopeID == "" || reg.HasEnvelope(rcpt.EnvelopeID) {
		return
	}
	res.addError(ReferenceError{
		Type:         MissingReference,
		SourceSchema: SchemaReceipt,
		SourceID:     rcpt.ID,
		TargetSchema: SchemaEnvelope,
		TargetID:     rcpt.EnvelopeID,
		Field:        "source_envelope_id",
		Message:      fmt.Sprintf("receipt %q references source envelope %q which is not registered", rcpt.ID, rcpt.EnvelopeID),
	})
}

// checkReceiptReferences runs both receipt checks; a receipt can collect two errors.
func checkReceiptReferences(reg RegistryReader, rcpt *Receipt, res *Result) {
	checkReceiptPlan(reg, rcpt, res)
	checkReceiptEnvelope(reg, rcpt, res)
}
