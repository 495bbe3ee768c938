package provenance

import (
	"github.com/zjrosen/provchain/internal/domain/provenance"
)

// EnvelopeDef is an evidence envelope as written on disk.
type EnvelopeDef struct {
	Schema     string         `yaml:"schema,omitempty"`
	EnvelopeID string         `yaml:"envelope_id"`
	CreatedAt  string         `yaml:"created_at,omitempty"`
	Summary    string         `yaml:"summary,omitempty"`
	Artifacts  []ArtifactDef  `yaml:"artifacts,omitempty"`
	Findings   []FindingDef   `yaml:"findings,omitempty"`
	Provenance *ProvenanceDef `yaml:"provenance,omitempty"`
}

// ArtifactDef is one artifact entry of an envelope.
type ArtifactDef struct {
	ArtifactID string `yaml:"artifact_id"`
	EnvelopeID string `yaml:"envelope_id,omitempty"` // Owning envelope; defaults to the enclosing one
	Kind       string `yaml:"kind,omitempty"`
	Path       string `yaml:"path,omitempty"`
	SHA256     string `yaml:"sha256,omitempty"`
}

// FindingDef is one finding entry of an envelope.
type FindingDef struct {
	FindingID    string   `yaml:"finding_id"`
	Severity     string   `yaml:"severity,omitempty"`
	Summary      string   `yaml:"summary,omitempty"`
	EvidenceRefs []string `yaml:"evidence_refs,omitempty"`
}

// ProvenanceDef is the lineage block of an envelope.
type ProvenanceDef struct {
	ParentEnvelopeID string `yaml:"parent_envelope_id,omitempty"`
	Tool             string `yaml:"tool,omitempty"`
	Host             string `yaml:"host,omitempty"`
	CollectedAt      string `yaml:"collected_at,omitempty"`
}

// PlanDef is a procedure plan as written on disk.
type PlanDef struct {
	Schema           string   `yaml:"schema,omitempty"`
	PlanID           string   `yaml:"plan_id"`
	SourceEnvelopeID string   `yaml:"source_envelope_id,omitempty"`
	ReceiptID        string   `yaml:"receipt_id,omitempty"`
	Title            string   `yaml:"title,omitempty"`
	Steps            []string `yaml:"steps,omitempty"`
}

// ReceiptDef is an execution receipt as written on disk.
type ReceiptDef struct {
	Schema           string `yaml:"schema,omitempty"`
	ReceiptID        string `yaml:"receipt_id"`
	PlanID           string `yaml:"plan_id,omitempty"`
	SourceEnvelopeID string `yaml:"source_envelope_id,omitempty"`
	Status           string `yaml:"status,omitempty"`
	ExecutedAt       string `yaml:"executed_at,omitempty"`
	Notes            string `yaml:"notes,omitempty"`
}

// BundleDef groups documents of every kind in one file.
type BundleDef struct {
	Envelopes []EnvelopeDef `yaml:"envelopes,omitempty"`
	Plans     []PlanDef     `yaml:"plans,omitempty"`
	Receipts  []ReceiptDef  `yaml:"receipts,omitempty"`
}

// toDomain converts the definition into the reference view the engine checks.
func (d EnvelopeDef) toDomain() provenance.Envelope {
	env := provenance.Envelope{ID: d.EnvelopeID}

	if len(d.Artifacts) > 0 {
		env.Artifacts = make([]provenance.Artifact, 0, len(d.Artifacts))
		for _, a := range d.Artifacts {
			owner := a.EnvelopeID
			if owner == "" {
				owner = d.EnvelopeID
			}
			env.Artifacts = append(env.Artifacts, provenance.Artifact{ID: a.ArtifactID, EnvelopeID: owner})
		}
	}

	if len(d.Findings) > 0 {
		env.Findings = make([]provenance.Finding, 0, len(d.Findings))
		for _, f := range d.Findings {
			env.Findings = append(env.Findings, provenance.Finding{
				ID:           f.FindingID,
				EvidenceRefs: append([]string(nil), f.EvidenceRefs...),
			})
		}
	}

	if d.Provenance != nil {
		env.Provenance = &provenance.Provenance{ParentEnvelopeID: d.Provenance.ParentEnvelopeID}
	}
	return env
}

func (d PlanDef) toDomain() provenance.Plan {
	return provenance.Plan{
		ID:               d.PlanID,
		SourceEnvelopeID: d.SourceEnvelopeID,
		ReceiptID:        d.ReceiptID,
	}
}

func (d ReceiptDef) toDomain() provenance.Receipt {
	return provenance.Receipt{
		ID:         d.ReceiptID,
		PlanID:     d.PlanID,
		EnvelopeID: d.SourceEnvelopeID,
	}
}

// toDomain converts every document of the bundle, keeping order.
func (b BundleDef) toDomain() provenance.DocumentSet {
	var set provenance.DocumentSet
	for _, e := range b.Envelopes {
		set.Envelopes = append(set.Envelopes, e.toDomain())
	}
	for _, p := range b.Plans {
		set.Plans = append(set.Plans, p.toDomain())
	}
	for _, r := range b.Receipts {
		set.Receipts = append(set.Receipts, r.toDomain())
	}
	return set
}
