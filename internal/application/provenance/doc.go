// Package provenance implements the application layer for provenance validation.
//
// This package bridges the pure reference-integrity engine in
// internal/domain/provenance to the outside world:
//   - Discovers and decodes document files (YAML or JSON) from a directory tree
//   - Rejects structurally malformed files before anything is registered
//   - Runs batch, incremental and internal-only validation through a Service
//   - Records every run in tracing, metrics and run history, and publishes it
//
// # Architecture
//
// The application layer depends on:
//   - Domain layer (internal/domain/provenance): documents, registry, validators
//   - Infrastructure: fs.FS for file access, yaml.v3 for decoding,
//     cachemanager for decoded-file caching, history.Repository for persistence
//
// # Document files
//
// A file holds either one document with a top-level schema key
// (evidence-envelope, procedure-plan or receipt) or a bundle with
// envelopes, plans and receipts lists. Files are read in lexical path order
// and documents keep their order inside a file, so the assembled DocumentSet
// and every report derived from it are deterministic.
//
// # Import Aliasing
//
// This package has the same name as the domain package. When importing both,
// alias one of them:
//
//	import (
//	    "github.com/zjrosen/provchain/internal/domain/provenance"
//	    appprov "github.com/zjrosen/provchain/internal/application/provenance"
//	)
package provenance
