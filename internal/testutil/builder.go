// Package testutil provides fixture builders for provenance document trees.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// fileData is one file to be written by Build.
type fileData struct {
	name string
	doc  map[string]any
	raw  string
}

// Builder accumulates documents and writes them as one file each.
type Builder struct {
	t     *testing.T
	dir   string
	files []fileData
}

// NewBuilder creates a builder writing below dir.
func NewBuilder(t *testing.T, dir string) *Builder {
	t.Helper()
	return &Builder{t: t, dir: dir}
}

// WithEnvelope adds an evidence envelope at envelopes/<id>.yaml.
func (b *Builder) WithEnvelope(id string, opts ...EnvelopeOption) *Builder {
	env := envelopeData{id: id}
	for _, opt := range opts {
		opt(&env)
	}
	b.files = append(b.files, fileData{name: EnvelopeFile(id), doc: env.document()})
	return b
}

// WithPlan adds a procedure plan at plans/<id>.yaml.
func (b *Builder) WithPlan(id, sourceEnvelopeID string, opts ...PlanOption) *Builder {
	plan := planData{id: id, sourceEnvelopeID: sourceEnvelopeID}
	for _, opt := range opts {
		opt(&plan)
	}
	b.files = append(b.files, fileData{name: PlanFile(id), doc: plan.document()})
	return b
}

// WithReceipt adds a receipt at receipts/<id>.yaml.
func (b *Builder) WithReceipt(id, planID string, opts ...ReceiptOption) *Builder {
	rcpt := receiptData{id: id, planID: planID}
	for _, opt := range opts {
		opt(&rcpt)
	}
	b.files = append(b.files, fileData{name: ReceiptFile(id), doc: rcpt.document()})
	return b
}

// WithRawFile adds a file with literal content, for malformed input.
func (b *Builder) WithRawFile(name, content string) *Builder {
	b.files = append(b.files, fileData{name: name, raw: content})
	return b
}

// Build writes every accumulated file and returns the root directory.
func (b *Builder) Build() string {
	b.t.Helper()
	for _, f := range b.files {
		b.write(f)
	}
	return b.dir
}

// Path returns the absolute path of a file name relative to the root.
func (b *Builder) Path(name string) string {
	return filepath.Join(b.dir, filepath.FromSlash(name))
}

func (b *Builder) write(f fileData) {
	b.t.Helper()
	content := []byte(f.raw)
	if f.doc != nil {
		var err error
		content, err = yaml.Marshal(f.doc)
		require.NoError(b.t, err)
	}

	path := b.Path(f.name)
	require.NoError(b.t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(b.t, os.WriteFile(path, content, 0o600))
}

// EnvelopeFile is the relative file name WithEnvelope uses.
func EnvelopeFile(id string) string { return "envelopes/" + id + ".yaml" }

// PlanFile is the relative file name WithPlan uses.
func PlanFile(id string) string { return "plans/" + id + ".yaml" }

// ReceiptFile is the relative file name WithReceipt uses.
func ReceiptFile(id string) string { return "receipts/" + id + ".yaml" }
