package provenance

import "slices"

// EnvelopeProjection is what the registry keeps of an envelope.
type EnvelopeProjection struct {
	ArtifactIDs      []string
	ParentEnvelopeID string
}

// PlanProjection is what the registry keeps of a plan.
type PlanProjection struct {
	SourceEnvelopeID string
	ReceiptID        string
}

// ReceiptProjection is what the registry keeps of a receipt.
type ReceiptProjection struct {
	PlanID     string
	EnvelopeID string
}

// Registry indexes the identifiers known to one validation pass.
// It is not safe for concurrent mutation; one pass owns it at a time.
type Registry struct {
	envelopes map[string]EnvelopeProjection
	plans     map[string]PlanProjection
	receipts  map[string]ReceiptProjection
	artifacts map[string]string // artifact id -> owning envelope id
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		envelopes: make(map[string]EnvelopeProjection),
		plans:     make(map[string]PlanProjection),
		receipts:  make(map[string]ReceiptProjection),
		artifacts: make(map[string]string),
	}
}

// RegisterEnvelope stores the envelope projection and indexes its artifacts.
// A previous registration under the same id is replaced, including its artifacts.
// An artifact dropped by the new registration stays known while any other
// registered envelope still declares it.
func (r *Registry) RegisterEnvelope(id string, p EnvelopeProjection) {
	var released []string
	if prev, ok := r.envelopes[id]; ok {
		for _, aid := range prev.ArtifactIDs {
			if r.artifacts[aid] == id {
				delete(r.artifacts, aid)
				released = append(released, aid)
			}
		}
	}

	p.ArtifactIDs = slices.Clone(p.ArtifactIDs)
	r.envelopes[id] = p
	for _, aid := range p.ArtifactIDs {
		if aid == "" {
			continue
		}
		r.artifacts[aid] = id
	}

	for _, aid := range released {
		if _, ok := r.artifacts[aid]; ok {
			continue
		}
		if owner, ok := r.declaringEnvelope(aid); ok {
			r.artifacts[aid] = owner
		}
	}
}

// declaringEnvelope finds a registered envelope that declares aid.
// The lowest id wins so the owner does not depend on map order.
func (r *Registry) declaringEnvelope(aid string) (string, bool) {
	owner, found := "", false
	for eid, proj := range r.envelopes {
		if !slices.Contains(proj.ArtifactIDs, aid) {
			continue
		}
		if !found || eid < owner {
			owner, found = eid, true
		}
	}
	return owner, found
}

// RegisterPlan stores the plan projection, replacing any previous entry.
func (r *Registry) RegisterPlan(id string, p PlanProjection) {
	r.plans[id] = p
}

// RegisterReceipt stores the receipt projection, replacing any previous entry.
func (r *Registry) RegisterReceipt(id string, p ReceiptProjection) {
	r.receipts[id] = p
}

// HasEnvelope reports whether an envelope with id was registered.
func (r *Registry) HasEnvelope(id string) bool {
	_, ok := r.envelopes[id]
	return ok
}

// HasPlan reports whether a plan with id was registered.
func (r *Registry) HasPlan(id string) bool {
	_, ok := r.plans[id]
	return ok
}

// HasReceipt reports whether a receipt with id was registered.
func (r *Registry) HasReceipt(id string) bool {
	_, ok := r.receipts[id]
	return ok
}

// HasArtifact reports whether a registered envelope declares the artifact.
func (r *Registry) HasArtifact(id string) bool {
	_, ok := r.artifacts[id]
	return ok
}

// GetEnvelope returns the stored projection and false when the id is unknown.
func (r *Registry) GetEnvelope(id string) (EnvelopeProjection, bool) {
	p, ok := r.envelopes[id]
	if !ok {
		return EnvelopeProjection{}, false
	}
	p.ArtifactIDs = slices.Clone(p.ArtifactIDs)
	return p, true
}

// Clear empties every index. Safe on an empty registry.
func (r *Registry) Clear() {
	clear(r.envelopes)
	clear(r.plans)
	clear(r.receipts)
	clear(r.artifacts)
}

// RegisterAll registers every document of set: envelopes, then plans, then receipts.
func RegisterAll(reg *Registry, set DocumentSet) {
	for i := range set.Envelopes {
		env := &set.Envelopes[i]
		reg.RegisterEnvelope(env.ID, env.Projection())
	}
	for i := range set.Plans {
		plan := &set.Plans[i]
		reg.RegisterPlan(plan.ID, plan.Projection())
	}
	for i := range set.Receipts {
		rcpt := &set.Receipts[i]
		reg.RegisterReceipt(rcpt.ID, rcpt.Projection())
	}
}
