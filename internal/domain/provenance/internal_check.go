package provenance

import "fmt"

const fieldParentEnvelope = "provenance.parent_envelope_id"

// ValidateInternalReferences checks that every evidence reference of every finding
// resolves to an artifact declared by the same envelope.
//
// It has no registry, so a declared parent envelope is reported as an
// unverified_reference warning rather than resolved. A nil envelope is valid.
func ValidateInternalReferences(env *Envelope) Result {
	res := newResult()
	if env == nil {
		return res
	}

	artifacts := make(map[string]bool, len(env.Artifacts))
	for _, id := range env.ArtifactIDs() {
		artifacts[id] = true
	}

	for i, finding := range env.Findings {
		for j, ref := range finding.EvidenceRefs {
			if artifacts[ref] {
				continue
			}
			res.addError(ReferenceError{
				Type:         MissingReference,
				SourceSchema: SchemaEnvelope,
				SourceID:     env.ID,
				TargetSchema: SchemaArtifact,
				TargetID:     ref,
				Field:        fmt.Sprintf("findings[%d].evidence_refs[%d]", i, j),
				Message: fmt.Sprintf("finding %s references artifact %q which is not declared by envelope %q",
					findingLabel(finding, i), ref, env.ID),
			})
		}
	}

	if parent, ok := env.ParentEnvelopeID(); ok {
		res.addWarning(ReferenceWarning{
			Type: UnverifiedReference,
			Message: fmt.Sprintf("envelope %q declares parent envelope %q which cannot be confirmed without a registry",
				env.ID, parent),
		})
	}

	return res
}

// findingLabel names a finding by id, or by position when it has none.
func findingLabel(f Finding, index int) string {
	if f.ID != "" {
		return fmt.Sprintf("%q", f.ID)
	}
	return fmt.Sprintf("#%d", index)
}
