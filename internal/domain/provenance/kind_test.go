package provenance

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, want := range Kinds() {
		got, err := ParseKind(string(want))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
}

func TestParseKind_Unknown(t *testing.T) {
	for _, tag := range []string{"", "Envelope", "finding", "artifact", "evidence-envelope"} {
		_, err := ParseKind(tag)
		require.ErrorIs(t, err, ErrUnknownKind, "tag %q", tag)
	}
}

func TestKind_Schema(t *testing.T) {
	require.Equal(t, "evidence-envelope", KindEnvelope.Schema())
	require.Equal(t, "procedure-plan", KindPlan.Schema())
	require.Equal(t, "receipt", KindReceipt.Schema())
	require.Empty(t, Kind("bogus").Schema())
}

func TestKindForSchema_RoundTrip(t *testing.T) {
	for _, k := range Kinds() {
		got, err := KindForSchema(k.Schema())
		require.NoError(t, err)
		require.Equal(t, k, got)
	}

	_, err := KindForSchema("artifact")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestDocument_KindAndID(t *testing.T) {
	docs := []Document{
		&Envelope{ID: "E1"},
		&Plan{ID: "P1"},
		&Receipt{ID: "R1"},
	}

	require.Equal(t, KindEnvelope, docs[0].Kind())
	require.Equal(t, KindPlan, docs[1].Kind())
	require.Equal(t, KindReceipt, docs[2].Kind())
	require.Equal(t, "E1", docs[0].DocumentID())
	require.Equal(t, "P1", docs[1].DocumentID())
	require.Equal(t, "R1", docs[2].DocumentID())
}

func TestEnvelope_ArtifactIDs_DedupesAndDropsEmpty(t *testing.T) {
	env := &Envelope{
		ID: "E1",
		Artifacts: []Artifact{
			{ID: "A2"}, {ID: ""}, {ID: "A1"}, {ID: "A2"},
		},
	}

	require.Equal(t, []string{"A2", "A1"}, env.ArtifactIDs())
}

func TestEnvelope_ParentEnvelopeID(t *testing.T) {
	_, ok := (&Envelope{ID: "E1"}).ParentEnvelopeID()
	require.False(t, ok, "nil provenance")

	_, ok = (&Envelope{ID: "E1", Provenance: &Provenance{}}).ParentEnvelopeID()
	require.False(t, ok, "empty parent")

	parent, ok := (&Envelope{ID: "E1", Provenance: &Provenance{ParentEnvelopeID: "E0"}}).ParentEnvelopeID()
	require.True(t, ok)
	require.Equal(t, "E0", parent)
}

func TestDocumentSet_LenAndAppend(t *testing.T) {
	var set DocumentSet
	require.Zero(t, set.Len())

	set.Append(DocumentSet{Envelopes: []Envelope{{ID: "E1"}}, Plans: []Plan{{ID: "P1"}}})
	set.Append(DocumentSet{Receipts: []Receipt{{ID: "R1"}}, Envelopes: []Envelope{{ID: "E2"}}})

	require.Equal(t, 4, set.Len())
	require.Equal(t, "E1", set.Envelopes[0].ID)
	require.Equal(t, "E2", set.Envelopes[1].ID)
}
