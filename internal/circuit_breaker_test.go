package internal

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute, time.Second)

	if cb.IsOpen() {
		t.Fatalf("expected a fresh breaker to be closed")
	}

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.IsOpen() {
		t.Fatalf("expected breaker to stay closed below the failure threshold")
	}

	cb.RecordFailure()
	if !cb.IsOpen() {
		t.Fatalf("expected breaker to open once the threshold is reached")
	}
}

func TestCircuitBreakerRecordSuccessResets(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute, time.Second)
	cb.RecordFailure()
	cb.RecordFailure()
	if !cb.IsOpen() {
		t.Fatalf("expected breaker to be open before reset")
	}

	cb.RecordSuccess()
	if cb.IsOpen() {
		t.Fatalf("expected RecordSuccess to close the breaker")
	}
}

func TestCircuitBreakerNilIsSafe(t *testing.T) {
	var cb *CircuitBreaker
	cb.RecordFailure()
	cb.RecordSuccess()
	if cb.IsOpen() {
		t.Fatalf("expected a nil breaker to always report closed")
	}
}

func TestGlobalDuckDBCircuitBreakerRoundTrip(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute, time.Second)
	SetGlobalDuckDBCircuitBreaker(cb)
	defer SetGlobalDuckDBCircuitBreaker(nil)

	if GetDuckDBCircuitBreaker() != cb {
		t.Fatalf("expected GetDuckDBCircuitBreaker to return the registered instance")
	}
}
