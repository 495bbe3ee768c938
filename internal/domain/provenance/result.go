package provenance

// ErrorType classifies a reference error.
type ErrorType string

const (
	MissingReference  ErrorType = "missing_reference"
	InvalidReference  ErrorType = "invalid_reference" // reserved, no producer yet
	CircularReference ErrorType = "circular_reference"
)

// WarningType classifies a reference warning.
type WarningType string

const (
	UnverifiedReference WarningType = "unverified_reference"
	StaleReference      WarningType = "stale_reference" // reserved, no producer yet
)

// ReferenceError is a hard defect in the reference graph.
type ReferenceError struct {
	Type         ErrorType `json:"type"`
	SourceSchema string    `json:"source_schema"`
	SourceID     string    `json:"source_id"`
	TargetSchema string    `json:"target_schema"`
	TargetID     string    `json:"target_id"`
	Field        string    `json:"field"`
	Message      string    `json:"message"`
}

// ReferenceWarning is a reference that could not be confirmed either way.
type ReferenceWarning struct {
	Type    WarningType `json:"type"`
	Message string      `json:"message"`
}

// Result is the outcome of a validation entry point.
// Valid is true exactly when Errors is empty; warnings never affect it.
type Result struct {
	Valid    bool               `json:"valid"`
	Errors   []ReferenceError   `json:"errors"`
	Warnings []ReferenceWarning `json:"warnings"`
}

// newResult returns an empty, valid result with non-nil lists.
func newResult() Result {
	return Result{
		Valid:    true,
		Errors:   []ReferenceError{},
		Warnings: []ReferenceWarning{},
	}
}

func (r *Result) addError(e ReferenceError) {
	r.Errors = append(r.Errors, e)
	r.Valid = false
}

func (r *Result) addWarning(w ReferenceWarning) {
	r.Warnings = append(r.Warnings, w)
}

// merge appends other's errors and warnings, in order.
func (r *Result) merge(other Result) {
	for _, e := range other.Errors {
		r.addError(e)
	}
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// ErrorsOfType returns the errors with the given type, in order.
func (r Result) ErrorsOfType(t ErrorType) []ReferenceError {
	var out []ReferenceError
	for _, e := range r.Errors {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// WarningsOfType returns the warnings with the given type, in order.
func (r Result) WarningsOfType(t WarningType) []ReferenceWarning {
	var out []ReferenceWarning
	for _, w := range r.Warnings {
		if w.Type == t {
			out = append(out, w)
		}
	}
	return out
}
