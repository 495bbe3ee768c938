package testutil

type artifactData struct {
	id   string
	kind string
}

type findingData struct {
	id           string
	evidenceRefs []string
}

// envelopeData holds everything written for one envelope.
type envelopeData struct {
	id        string
	parentID  string
	tool      string
	artifacts []artifactData
	findings  []findingData
}

func (e envelopeData) document() map[string]any {
	doc := map[string]any{
		"schema":      "evidence-envelope",
		"envelope_id": e.id,
	}
	if len(e.artifacts) > 0 {
		artifacts := make([]map[string]any, len(e.artifacts))
		for i, a := range e.artifacts {
			artifacts[i] = map[string]any{"artifact_id": a.id, "kind": a.kind}
		}
		doc["artifacts"] = artifacts
	}
	if len(e.findings) > 0 {
		findings := make([]map[string]any, len(e.findings))
		for i, f := range e.findings {
			findings[i] = map[string]any{"finding_id": f.id, "evidence_refs": f.evidenceRefs}
		}
		doc["findings"] = findings
	}
	if e.parentID != "" || e.tool != "" {
		prov := map[string]any{}
		if e.parentID != "" {
			prov["parent_envelope_id"] = e.parentID
		}
		if e.tool != "" {
			prov["tool"] = e.tool
		}
		doc["provenance"] = prov
	}
	return doc
}

// EnvelopeOption configures an envelope during builder setup.
type EnvelopeOption func(*envelopeData)

// Parent sets provenance.parent_envelope_id.
func Parent(id string) EnvelopeOption {
	return func(e *envelopeData) { e.parentID = id }
}

// Tool sets provenance.tool.
func Tool(name string) EnvelopeOption {
	return func(e *envelopeData) { e.tool = name }
}

// Artifact adds an artifact owned by the envelope.
func Artifact(id string) EnvelopeOption {
	return func(e *envelopeData) { e.artifacts = append(e.artifacts, artifactData{id: id, kind: "file"}) }
}

// Finding adds a finding citing the given artifacts.
func Finding(id string, evidenceRefs ...string) EnvelopeOption {
	return func(e *envelopeData) {
		if evidenceRefs == nil {
			evidenceRefs = []string{}
		}
		e.findings = append(e.findings, findingData{id: id, evidenceRefs: evidenceRefs})
	}
}

// planData holds everything written for one plan.
type planData struct {
	id               string
	sourceEnvelopeID string
	receiptID        string
	title            string
}

func (p planData) document() map[string]any {
	doc := map[string]any{
		"schema":  "procedure-plan",
		"plan_id": p.id,
	}
	if p.sourceEnvelopeID != "" {
		doc["source_envelope_id"] = p.sourceEnvelopeID
	}
	if p.receiptID != "" {
		doc["receipt_id"] = p.receiptID
	}
	if p.title != "" {
		doc["title"] = p.title
	}
	return doc
}

// PlanOption configures a plan during builder setup.
type PlanOption func(*planData)

// PlanReceipt sets the plan's forward receipt_id.
func PlanReceipt(id string) PlanOption {
	return func(p *planData) { p.receiptID = id }
}

// Title sets the plan title.
func Title(title string) PlanOption {
	return func(p *planData) { p.title = title }
}

// receiptData holds everything written for one receipt.
type receiptData struct {
	id               string
	planID           string
	sourceEnvelopeID string
	status           string
}

func (r receiptData) document() map[string]any {
	doc := map[string]any{
		"schema":     "receipt",
		"receipt_id": r.id,
	}
	if r.planID != "" {
		doc["plan_id"] = r.planID
	}
	if r.sourceEnvelopeID != "" {
		doc["source_envelope_id"] = r.sourceEnvelopeID
	}
	if r.status != "" {
		doc["status"] = r.status
	}
	return doc
}

// ReceiptOption configures a receipt during builder setup.
type ReceiptOption func(*receiptData)

// SourceEnvelope sets the receipt's source_envelope_id.
func SourceEnvelope(id string) ReceiptOption {
	return func(r *receiptData) { r.sourceEnvelopeID = id }
}

// Status sets the receipt status.
func Status(status string) ReceiptOption {
	return func(r *receiptData) { r.status = status }
}
