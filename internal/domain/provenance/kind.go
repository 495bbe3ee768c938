package provenance

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned by ParseKind for anything other than envelope, plan or receipt.
var ErrUnknownKind = errors.New("unknown document kind")

// Kind identifies one of the three top-level document kinds.
type Kind string

const (
	KindEnvelope Kind = "envelope"
	KindPlan     Kind = "plan"
	KindReceipt  Kind = "receipt"
)

// Schema names used as source_schema / target_schema in reference records.
const (
	SchemaEnvelope = "evidence-envelope"
	SchemaPlan     = "procedure-plan"
	SchemaReceipt  = "receipt"
	SchemaArtifact = "artifact"
)

// Kinds returns every document kind in registration order.
func Kinds() []Kind {
	return []Kind{KindEnvelope, KindPlan, KindReceipt}
}

// ParseKind converts a kind tag into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindEnvelope, KindPlan, KindReceipt:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q (want envelope, plan or receipt)", ErrUnknownKind, s)
	}
}

// KindForSchema maps a schema name back to its Kind.
func KindForSchema(schema string) (Kind, error) {
	switch schema {
	case SchemaEnvelope:
		return KindEnvelope, nil
	case SchemaPlan:
		return KindPlan, nil
	case SchemaReceipt:
		return KindReceipt, nil
	default:
		return "", fmt.Errorf("%w: schema %q", ErrUnknownKind, schema)
	}
}

// Schema returns the schema name for the kind.
func (k Kind) Schema() string {
	switch k {
	case KindEnvelope:
		return SchemaEnvelope
	case KindPlan:
		return SchemaPlan
	case KindReceipt:
		return SchemaReceipt
	default:
		return ""
	}
}

func (k Kind) String() string {
	return string(k)
}
