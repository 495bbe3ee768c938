package provenance

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/zjrosen/provchain/internal/domain/provenance"
)

// ErrStructural matches every structural failure via errors.Is.
var ErrStructural = errors.New("structural validation failed")

// StructuralError is a shape defect in one document file.
type StructuralError struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// Unwrap lets errors.Is(err, ErrStructural) match.
func (e *StructuralError) Unwrap() error {
	return ErrStructural
}

// StructuralErrors collects the structural defects of one or more files, in file order.
type StructuralErrors []*StructuralError

func (e StructuralErrors) Error() string {
	msgs := make([]string, len(e))
	for i, se := range e {
		msgs[i] = se.Error()
	}
	return strings.Join(msgs, "; ")
}

// Unwrap exposes each defect to errors.Is and errors.As.
func (e StructuralErrors) Unwrap() []error {
	errs := make([]error, len(e))
	for i, se := range e {
		errs[i] = se
	}
	return errs
}

// AsStructuralErrors extracts the structural defects carried by err.
func AsStructuralErrors(err error) (StructuralErrors, bool) {
	var many StructuralErrors
	if errors.As(err, &many) {
		return many, true
	}
	var one *StructuralError
	if errors.As(err, &one) {
		return StructuralErrors{one}, true
	}
	return nil, false
}

// StructuralValidator turns raw file content into structurally valid documents.
// It is the only gate between disk and the reference engine: anything it
// returns is assumed well-formed by the domain validators.
type StructuralValidator interface {
	Decode(path string, data []byte) (provenance.DocumentSet, error)
}

// StrictYAMLValidator decodes YAML or JSON with unknown fields rejected.
type StrictYAMLValidator struct{}

var _ StructuralValidator = StrictYAMLValidator{}

// bundleKeys are the top-level keys that mark a file as a bundle.
var bundleKeys = []string{"envelopes", "plans", "receipts"}

// Decode implements StructuralValidator.
func (StrictYAMLValidator) Decode(path string, data []byte) (provenance.DocumentSet, error) {
	fail := func(format string, args ...any) (provenance.DocumentSet, error) {
		return provenance.DocumentSet{}, StructuralErrors{{Path: path, Reason: fmt.Sprintf(format, args...)}}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return fail("empty document")
	}

	var probe map[string]any
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return fail("%s", yamlReason(err))
	}

	if rawSchema, ok := probe["schema"]; ok {
		schema, isString := rawSchema.(string)
		if !isString {
			return fail("schema must be a string")
		}
		kind, err := provenance.KindForSchema(schema)
		if err != nil {
			return fail("unknown schema %q (want %s, %s or %s)", schema,
				provenance.SchemaEnvelope, provenance.SchemaPlan, provenance.SchemaReceipt)
		}
		return decodeSingle(path, data, kind)
	}

	for _, key := range bundleKeys {
		if _, ok := probe[key]; ok {
			return decodeBundle(path, data)
		}
	}
	return fail("missing schema key and no envelopes, plans or receipts list")
}

func decodeSingle(path string, data []byte, kind provenance.Kind) (provenance.DocumentSet, error) {
	var set provenance.DocumentSet
	var errs StructuralErrors

	switch kind {
	case provenance.KindEnvelope:
		var def EnvelopeDef
		if err := strictDecode(data, &def); err != nil {
			return set, StructuralErrors{{Path: path, Reason: yamlReason(err)}}
		}
		errs = append(errs, checkEnvelopeDef(path, "", def)...)
		set.Envelopes = append(set.Envelopes, def.toDomain())
	case provenance.KindPlan:
		var def PlanDef
		if err := strictDecode(data, &def); err != nil {
			return set, StructuralErrors{{Path: path, Reason: yamlReason(err)}}
		}
		errs = append(errs, checkPlanDef(path, "", def)...)
		set.Plans = append(set.Plans, def.toDomain())
	case provenance.KindReceipt:
		var def ReceiptDef
		if err := strictDecode(data, &def); err != nil {
			return set, StructuralErrors{{Path: path, Reason: yamlReason(err)}}
		}
		errs = append(errs, checkReceiptDef(path, "", def)...)
		set.Receipts = append(set.Receipts, def.toDomain())
	}

	if len(errs) > 0 {
		return provenance.DocumentSet{}, errs
	}
	return set, nil
}

func decodeBundle(path string, data []byte) (provenance.DocumentSet, error) {
	var bundle BundleDef
	if err := strictDecode(data, &bundle); err != nil {
		return provenance.DocumentSet{}, StructuralErrors{{Path: path, Reason: yamlReason(err)}}
	}

	var errs StructuralErrors
	for i, def := range bundle.Envelopes {
		errs = append(errs, checkEnvelopeDef(path, fmt.Sprintf("envelopes[%d].", i), def)...)
	}
	for i, def := range bundle.Plans {
		errs = append(errs, checkPlanDef(path, fmt.Sprintf("plans[%d].", i), def)...)
	}
	for i, def := range bundle.Receipts {
		errs = append(errs, checkReceiptDef(path, fmt.Sprintf("receipts[%d].", i), def)...)
	}
	if len(errs) > 0 {
		return provenance.DocumentSet{}, errs
	}
	return bundle.toDomain(), nil
}

// strictDecode decodes exactly one YAML document into out, rejecting unknown fields.
func strictDecode(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return err
	}

	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return fmt.Errorf("file holds more than one YAML document")
	}
	return nil
}

func checkEnvelopeDef(path, prefix string, def EnvelopeDef) StructuralErrors {
	var errs StructuralErrors
	if def.Schema != "" && def.Schema != provenance.SchemaEnvelope {
		errs = append(errs, &StructuralError{Path: path, Reason: fmt.Sprintf("%sschema: %q in envelopes list", prefix, def.Schema)})
	}
	if def.EnvelopeID == "" {
		errs = append(errs, &StructuralError{Path: path, Reason: prefix + "envelope_id: required"})
	}
	return errs
}

func checkPlanDef(path, prefix string, def PlanDef) StructuralErrors {
	var errs StructuralErrors
	if def.Schema != "" && def.Schema != provenance.SchemaPlan {
		errs = append(errs, &StructuralError{Path: path, Reason: fmt.Sprintf("%sschema: %q in plans list", prefix, def.Schema)})
	}
	if def.PlanID == "" {
		errs = append(errs, &StructuralError{Path: path, Reason: prefix + "plan_id: required"})
	}
	return errs
}

func checkReceiptDef(path, prefix string, def ReceiptDef) StructuralErrors {
	var errs StructuralErrors
	if def.Schema != "" && def.Schema != provenance.SchemaReceipt {
		errs = append(errs, &StructuralError{Path: path, Reason: fmt.Sprintf("%sschema: %q in receipts list", prefix, def.Schema)})
	}
	if def.ReceiptID == "" {
		errs = append(errs, &StructuralError{Path: path, Reason: prefix + "receipt_id: required"})
	}
	return errs
}

// yamlReason flattens a yaml error into a single line without the "yaml: " prefix.
func yamlReason(err error) string {
	var typeErr *yaml.TypeError
	if errors.As(err, &typeErr) {
		return strings.Join(typeErr.Errors, "; ")
	}
	return strings.TrimPrefix(err.Error(), "yaml: ")
}
