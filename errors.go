package tempora

import (
	"errors"
	"fmt"
)

// ErrorKind represents the category of error raised by the merge pipeline.
type ErrorKind string

const (
	ErrKindEraNotFound                  ErrorKind = "era_not_found"
	ErrKindRangeDomainUnsupported       ErrorKind = "range_domain_unsupported"
	ErrKindMissingInterval              ErrorKind = "missing_interval"
	ErrKindAmbiguousInterval            ErrorKind = "ambiguous_interval"
	ErrKindInvalidInterval              ErrorKind = "invalid_interval"
	ErrKindConflictingFoundingLookup    ErrorKind = "conflicting_founding_lookup"
	ErrKindConflictingIdentityResolution ErrorKind = "conflicting_identity_resolution"
	ErrKindInputNotSorted               ErrorKind = "input_not_sorted"
	ErrKindPlannerInvariantViolation     ErrorKind = "planner_invariant_violation"
	ErrKindValidation                    ErrorKind = "validation"
	ErrKindExecution                     ErrorKind = "execution"
	ErrKindTimeout                       ErrorKind = "timeout"
	ErrKindInternal                      ErrorKind = "internal"
)

// TemporalMergeError is the single error type surfaced by every component
// of the merge pipeline.
type TemporalMergeError struct {
	Kind      ErrorKind      `json:"kind"`
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Entity    string         `json:"entity,omitempty"`
	Operation string         `json:"operation,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

func (e *TemporalMergeError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("[%s:%s] entity %s: %s", e.Kind, e.Code, e.Entity, e.Message)
	}
	if e.Operation != "" {
		return fmt.Sprintf("[%s:%s] operation %s: %s", e.Kind, e.Code, e.Operation, e.Message)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Kind, e.Code, e.Message)
}

func (e *TemporalMergeError) Unwrap() error {
	return e.Cause
}

// WithDetails merges details into the error.
func (e *TemporalMergeError) WithDetails(details map[string]any) *TemporalMergeError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail adds a single detail to the error.
func (e *TemporalMergeError) WithDetail(key string, value any) *TemporalMergeError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause attaches a wrapped cause.
func (e *TemporalMergeError) WithCause(cause error) *TemporalMergeError {
	e.Cause = cause
	return e
}

// WithEntity attaches entity context (grouping key or business-key tuple rendered as text).
func (e *TemporalMergeError) WithEntity(entity string) *TemporalMergeError {
	e.Entity = entity
	return e
}

// WithOperation attaches the planner/executor operation name that raised the error.
func (e *TemporalMergeError) WithOperation(operation string) *TemporalMergeError {
	e.Operation = operation
	return e
}

func newErr(kind ErrorKind, code, message string) *TemporalMergeError {
	return &TemporalMergeError{Kind: kind, Code: code, Message: message}
}

// Constructors for the error taxonomy of the merge pipeline.

func NewEraNotFoundError(schema, table, era string) *TemporalMergeError {
	return newErr(ErrKindEraNotFound, "ERA_NOT_FOUND",
		fmt.Sprintf("no era descriptor for %s.%s (era %q)", schema, table, era))
}

func NewRangeDomainUnsupportedError(domain string) *TemporalMergeError {
	return newErr(ErrKindRangeDomainUnsupported, "RANGE_DOMAIN_UNSUPPORTED",
		fmt.Sprintf("range domain %q is not supported", domain))
}

func NewMissingIntervalError(rowRef string) *TemporalMergeError {
	return newErr(ErrKindMissingInterval, "MISSING_INTERVAL",
		fmt.Sprintf("row %s has no resolvable valid-time interval", rowRef))
}

func NewAmbiguousIntervalError(rowRef string) *TemporalMergeError {
	return newErr(ErrKindAmbiguousInterval, "AMBIGUOUS_INTERVAL",
		fmt.Sprintf("row %s supplies more than one candidate interval representation", rowRef))
}

func NewInvalidIntervalError(rowRef string, from, until string) *TemporalMergeError {
	return newErr(ErrKindInvalidInterval, "INVALID_INTERVAL",
		fmt.Sprintf("row %s has invalid interval [%s, %s)", rowRef, from, until)).
		WithDetail("valid_from", from).WithDetail("valid_until", until)
}

func NewConflictingFoundingLookupError(foundingID string) *TemporalMergeError {
	return newErr(ErrKindConflictingFoundingLookup, "CONFLICTING_FOUNDING_LOOKUP",
		fmt.Sprintf("founding_id %s resolves to more than one lookup-key tuple", foundingID))
}

func NewConflictingIdentityResolutionError(groupingKey string) *TemporalMergeError {
	return newErr(ErrKindConflictingIdentityResolution, "CONFLICTING_IDENTITY_RESOLUTION",
		fmt.Sprintf("grouping key %s resolves to more than one target entity", groupingKey))
}

func NewInputNotSortedError(entity string) *TemporalMergeError {
	return newErr(ErrKindInputNotSorted, "INPUT_NOT_SORTED",
		fmt.Sprintf("source rows for entity %s are not sorted by valid_from", entity)).
		WithEntity(entity)
}

func NewPlannerInvariantViolationError(detail string) *TemporalMergeError {
	return newErr(ErrKindPlannerInvariantViolation, "PLANNER_INVARIANT_VIOLATION", detail)
}

func NewValidationError(message string) *TemporalMergeError {
	return newErr(ErrKindValidation, "VALIDATION_FAILED", message)
}

func NewExecutionError(message string, cause error) *TemporalMergeError {
	return newErr(ErrKindExecution, "EXECUTION_FAILED", message).WithCause(cause)
}

func NewInternalError(message string, cause error) *TemporalMergeError {
	return newErr(ErrKindInternal, "INTERNAL_ERROR", message).WithCause(cause)
}

// IsKind reports whether err (or any error it wraps) is a TemporalMergeError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var tme *TemporalMergeError
	if errors.As(err, &tme) {
		return tme.Kind == kind
	}
	return false
}

func IsEraNotFound(err error) bool              { return IsKind(err, ErrKindEraNotFound) }
func IsMissingInterval(err error) bool          { return IsKind(err, ErrKindMissingInterval) }
func IsAmbiguousInterval(err error) bool        { return IsKind(err, ErrKindAmbiguousInterval) }
func IsInvalidInterval(err error) bool          { return IsKind(err, ErrKindInvalidInterval) }
func IsConflictingFoundingLookup(err error) bool {
	return IsKind(err, ErrKindConflictingFoundingLookup)
}
func IsConflictingIdentityResolution(err error) bool {
	return IsKind(err, ErrKindConflictingIdentityResolution)
}
func IsInputNotSorted(err error) bool            { return IsKind(err, ErrKindInputNotSorted) }
func IsPlannerInvariantViolation(err error) bool  { return IsKind(err, ErrKindPlannerInvariantViolation) }
