package tempora

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessageVariantsByContext(t *testing.T) {
	base := NewValidationError("bad payload")
	if got := base.Error(); got != `[validation:VALIDATION_FAILED] bad payload` {
		t.Fatalf("unexpected plain error message: %q", got)
	}

	withEntity := NewInputNotSortedError("emp-1")
	if got := withEntity.Error(); got != `[input_not_sorted:INPUT_NOT_SORTED] entity emp-1: source rows for entity emp-1 are not sorted by valid_from` {
		t.Fatalf("unexpected entity error message: %q", got)
	}

	withOperation := NewPlannerInvariantViolationError("broken invariant").WithOperation("plan")
	if got := withOperation.Error(); got != `[planner_invariant_violation:PLANNER_INVARIANT_VIOLATION] operation plan: broken invariant` {
		t.Fatalf("unexpected operation error message: %q", got)
	}
}

func TestErrorUnwrapAndCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	wrapped := NewExecutionError("insert failed", cause)

	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected errors.Is to find the wrapped cause")
	}
	if wrapped.Unwrap() != cause {
		t.Fatalf("expected Unwrap to return the original cause")
	}
}

func TestWithDetailsMerges(t *testing.T) {
	err := NewValidationError("bad payload").
		WithDetail("column", "name").
		WithDetails(map[string]any{"row_id": int64(42)})

	if err.Details["column"] != "name" || err.Details["row_id"] != int64(42) {
		t.Fatalf("expected both details to be present, got %+v", err.Details)
	}
}

func TestIsKindPredicatesMatchWrappedErrors(t *testing.T) {
	base := NewEraNotFoundError("public", "employees", "valid")
	wrapped := fmt.Errorf("resolving metadata: %w", base)

	if !IsEraNotFound(wrapped) {
		t.Fatalf("expected IsEraNotFound to see through fmt.Errorf wrapping")
	}
	if IsInputNotSorted(wrapped) {
		t.Fatalf("expected IsInputNotSorted to be false for an era-not-found error")
	}
}

func TestIsKindFalseForPlainError(t *testing.T) {
	if IsKind(errors.New("plain error"), ErrKindValidation) {
		t.Fatalf("expected IsKind to be false for a non-TemporalMergeError")
	}
}

func TestInvalidIntervalErrorCarriesBoundsInDetails(t *testing.T) {
	err := NewInvalidIntervalError("row-7", "2024-01-01", "2023-01-01")
	if err.Details["valid_from"] != "2024-01-01" || err.Details["valid_until"] != "2023-01-01" {
		t.Fatalf("expected interval bounds recorded in details, got %+v", err.Details)
	}
	if !IsInvalidInterval(err) {
		t.Fatalf("expected IsInvalidInterval to be true")
	}
}
