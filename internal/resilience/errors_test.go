package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	if !IsTransient(NewTransientError(errors.New("worker lost"))) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_WrappedTransientError(t *testing.T) {
	wrapped := fmt.Errorf("unit 3: %w", NewTransientError(errors.New("worker lost")))
	if !IsTransient(wrapped) {
		t.Error("expected wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	if IsTransient(errors.New("malformed record")) {
		t.Error("regular error should not be transient")
	}
}

func TestRecovered(t *testing.T) {
	if Recovered(nil) != nil {
		t.Error("nil panic value should produce nil error")
	}

	err := Recovered("index out of range")
	if !IsTransient(err) {
		t.Error("recovered panic should be transient")
	}
	if err.Error() != "worker panic: index out of range" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"transient", NewTransientError(errors.New("x")), "transient"},
		{"panic", Recovered(1), "transient"},
		{"permanent", errors.New("x"), "permanent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}
