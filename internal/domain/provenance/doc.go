// Package provenance implements the referential-integrity engine for provenance documents.
//
// This package follows the same layering as the rest of the domain code:
//   - Contains only pure Go code with standard library imports (no external dependencies)
//   - Defines the document types (Envelope, Plan, Receipt) and their reference projections
//   - Implements the reference checks (missing targets, self-parenting, dangling evidence)
//   - Has no knowledge of infrastructure concerns (file I/O, YAML parsing, databases)
//
// # Documents
//
// Envelope is the root provenance unit. It owns Artifacts, carries Findings that point at
// those artifacts, and may name a parent envelope. Plan points at its source envelope.
// Receipt points at the plan it executed and at the source envelope.
//
// Identifiers are opaque. An empty identifier means the reference was not declared.
//
// # Registry
//
// Registry is the index of known identifiers for one validation pass. An identifier is
// known only after a document of the matching kind has been registered. Registering the
// same identifier again replaces the previous entry.
//
// # Validators
//
//   - ValidateInternalReferences: single envelope, no registry (findings -> artifacts)
//   - ValidateCrossReferences: registers a DocumentSet, then checks every reference
//   - ValidateDocument: one document against an already populated registry
//
// All validators return a Result. Defects in the data are reported as ReferenceError or
// ReferenceWarning records; they are never returned as Go errors.
package provenance
