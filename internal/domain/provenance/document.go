package provenance

// Artifact is an evidence item owned by the envelope that produced it.
type Artifact struct {
	ID         string
	EnvelopeID string
}

// Finding is a conclusion drawn from artifacts of its own envelope.
type Finding struct {
	ID           string
	EvidenceRefs []string
}

// Provenance holds the optional lineage metadata of an envelope.
type Provenance struct {
	ParentEnvelopeID string
}

// Envelope is the root provenance document.
type Envelope struct {
	ID         string
	Artifacts  []Artifact
	Findings   []Finding
	Provenance *Provenance
}

// Plan is a remediation procedure tied to a source envelope.
type Plan struct {
	ID               string
	SourceEnvelopeID string
	ReceiptID        string
}

// Receipt is proof that a plan was executed against its source envelope.
type Receipt struct {
	ID         string
	PlanID     string
	EnvelopeID string
}

// DocumentSet groups documents for batch validation. Nil slices are treated as empty.
type DocumentSet struct {
	Envelopes []Envelope
	Plans     []Plan
	Receipts  []Receipt
}

// Len returns the number of documents in the set.
func (s DocumentSet) Len() int {
	return len(s.Envelopes) + len(s.Plans) + len(s.Receipts)
}

// Append adds every document of other to s, keeping order.
func (s *DocumentSet) Append(other DocumentSet) {
	s.Envelopes = append(s.Envelopes, other.Envelopes...)
	s.Plans = append(s.Plans, other.Plans...)
	s.Receipts = append(s.Receipts, other.Receipts...)
}

// Document is implemented by *Envelope, *Plan and *Receipt only.
type Document interface {
	Kind() Kind
	DocumentID() string

	// checkAgainst runs the incremental check for this kind.
	checkAgainst(reg RegistryReader, res *Result)
}

var (
	_ Document = (*Envelope)(nil)
	_ Document = (*Plan)(nil)
	_ Document = (*Receipt)(nil)
)

// Kind returns KindEnvelope.
func (e *Envelope) Kind() Kind { return KindEnvelope }

// DocumentID returns the envelope identifier.
func (e *Envelope) DocumentID() string { return e.ID }

// ParentEnvelopeID returns the declared parent, if any.
func (e *Envelope) ParentEnvelopeID() (string, bool) {
	if e.Provenance == nil || e.Provenance.ParentEnvelopeID == "" {
		return "", false
	}
	return e.Provenance.ParentEnvelopeID, true
}

// ArtifactIDs returns the deduplicated, non-empty artifact identifiers in declaration order.
func (e *Envelope) ArtifactIDs() []string {
	seen := make(map[string]bool, len(e.Artifacts))
	ids := make([]string, 0, len(e.Artifacts))
	for _, a := range e.Artifacts {
		if a.ID == "" || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		ids = append(ids, a.ID)
	}
	return ids
}

// Projection returns the reference-relevant view stored in the registry.
func (e *Envelope) Projection() EnvelopeProjection {
	parent, _ := e.ParentEnvelopeID()
	return EnvelopeProjection{
		ArtifactIDs:      e.ArtifactIDs(),
		ParentEnvelopeID: parent,
	}
}

// Kind returns KindPlan.
func (p *Plan) Kind() Kind { return KindPlan }

// DocumentID returns the plan identifier.
func (p *Plan) DocumentID() string { return p.ID }

// Projection returns the reference-relevant view stored in the registry.
func (p *Plan) Projection() PlanProjection {
	return PlanProjection{
		SourceEnvelopeID: p.SourceEnvelopeID,
		ReceiptID:        p.ReceiptID,
	}
}

// Kind returns KindReceipt.
func (r *Receipt) Kind() Kind { return KindReceipt }

// DocumentID returns the receipt identifier.
func (r *Receipt) DocumentID() string { return r.ID }

// Projection returns the reference-relevant view stored in the registry.
func (r *Receipt) Projection() ReceiptProjection {
	return ReceiptProjection{
		PlanID:     r.PlanID,
		EnvelopeID: r.EnvelopeID,
	}
}
