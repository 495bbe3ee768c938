package provenance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// envelope builds an envelope owning the given artifacts with one finding citing refs.
func envelope(id string, artifacts []string, refs ...string) Envelope {
	env := Envelope{ID: id}
	for _, a := range artifacts {
		env.Artifacts = append(env.Artifacts, Artifact{ID: a, EnvelopeID: id})
	}
	if len(refs) > 0 {
		env.Findings = []Finding{{ID: "F1", EvidenceRefs: refs}}
	}
	return env
}

func withParent(env Envelope, parent string) Envelope {
	env.Provenance = &Provenance{ParentEnvelopeID: parent}
	return env
}

func TestValidateInternalReferences_ResolvedEvidence(t *testing.T) {
	env := envelope("E1", []string{"A1"}, "A1")

	res := ValidateInternalReferences(&env)

	require.True(t, res.Valid)
	require.Empty(t, res.Errors)
	require.Empty(t, res.Warnings)
}

func TestValidateInternalReferences_DanglingEvidence(t *testing.T) {
	env := envelope("E1", nil, "A1")

	res := ValidateInternalReferences(&env)

	require.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	got := res.Errors[0]
	require.Equal(t, MissingReference, got.Type)
	require.Equal(t, SchemaEnvelope, got.SourceSchema)
	require.Equal(t, "E1", got.SourceID)
	require.Equal(t, SchemaArtifact, got.TargetSchema)
	require.Equal(t, "A1", got.TargetID)
	require.Equal(t, "findings[0].evidence_refs[0]", got.Field)
	require.Contains(t, got.Message, `"F1"`)
	require.Contains(t, got.Message, `"A1"`)
}

func TestValidateInternalReferences_NoFindings(t *testing.T) {
	env := envelope("E1", []string{"A1", "A2"})

	res := ValidateInternalReferences(&env)

	require.True(t, res.Valid)
	require.Empty(t, res.Errors)
	require.NotNil(t, res.Errors)
	require.NotNil(t, res.Warnings)
}

func TestValidateInternalReferences_Nil(t *testing.T) {
	res := ValidateInternalReferences(nil)
	require.True(t, res.Valid)
	require.Empty(t, res.Errors)
}

func TestValidateInternalReferences_MultipleFindingsAccumulate(t *testing.T) {
	env := Envelope{
		ID:        "E1",
		Artifacts: []Artifact{{ID: "A1"}},
		Findings: []Finding{
			{ID: "F1", EvidenceRefs: []string{"A1", "A9"}},
			{EvidenceRefs: []string{"A8"}},
		},
	}

	res := ValidateInternalReferences(&env)

	require.Len(t, res.Errors, 2)
	require.Equal(t, "A9", res.Errors[0].TargetID)
	require.Equal(t, "findings[0].evidence_refs[1]", res.Errors[0].Field)
	require.Equal(t, "A8", res.Errors[1].TargetID)
	require.Equal(t, "findings[1].evidence_refs[0]", res.Errors[1].Field)
	require.Contains(t, res.Errors[1].Message, "#1")
}

func TestValidateInternalReferences_NoCrossEnvelopeArtifacts(t *testing.T) {
	// A1 belongs to another envelope; the internal check only sees E2's own artifacts
	env := envelope("E2", []string{"A2"}, "A1")

	res := ValidateInternalReferences(&env)

	require.False(t, res.Valid)
	require.Equal(t, "A1", res.Errors[0].TargetID)
}

func TestValidateInternalReferences_EmptyArtifactIDNeverResolves(t *testing.T) {
	env := Envelope{
		ID:        "E1",
		Artifacts: []Artifact{{ID: ""}},
		Findings:  []Finding{{ID: "F1", EvidenceRefs: []string{""}}},
	}

	res := ValidateInternalReferences(&env)

	require.Len(t, res.Errors, 1)
	require.Empty(t, res.Errors[0].TargetID)
}

func TestValidateInternalReferences_ParentIsOnlyAWarning(t *testing.T) {
	env := withParent(envelope("E1", []string{"A1"}, "A1"), "E0")

	res := ValidateInternalReferences(&env)

	require.True(t, res.Valid)
	require.Empty(t, res.Errors)
	require.Len(t, res.Warnings, 1)
	require.Equal(t, UnverifiedReference, res.Warnings[0].Type)
	require.Contains(t, res.Warnings[0].Message, `"E0"`)
}
