package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResult_IsSuccess(t *testing.T) {
	tests := []struct {
		name     string
		result   Result
		expected bool
	}{
		{"success", Result{}, true},
		{"error", Result{Error: errors.New("error")}, false},
		{"panic", Result{Panicked: true}, false},
	}

	for _, tt := range tests {
		tt := tt // per-iteration copy (go 1.21 loop semantics)
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.IsSuccess(); got != tt.expected {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestExecutor_Success(t *testing.T) {
	e := NewExecutor()

	called := false
	result := e.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		time.Sleep(time.Millisecond)
		return nil
	})

	if !called {
		t.Error("expected function to be called")
	}
	if !result.IsSuccess() {
		t.Errorf("expected success, got %+v", result)
	}
	if result.Duration <= 0 {
		t.Error("expected positive duration")
	}
}

func TestExecutor_Error(t *testing.T) {
	e := NewExecutor()
	want := errors.New("handler failed")

	result := e.Execute(context.Background(), func(ctx context.Context) error {
		return want
	})

	if result.IsSuccess() || result.IsPanic() {
		t.Fatalf("expected error result, got %+v", result)
	}
	if !errors.Is(result.Error, want) {
		t.Errorf("expected %v, got %v", want, result.Error)
	}
}

func TestExecutor_Panic(t *testing.T) {
	var gotValue any
	var gotStack []byte
	e := NewExecutor(WithPanicHandler(func(v any, stack []byte) {
		gotValue = v
		gotStack = stack
	}))

	result := e.Execute(context.Background(), func(ctx context.Context) error {
		panic("test panic")
	})

	if !result.IsPanic() {
		t.Fatal("expected panic result")
	}
	if result.PanicValue != "test panic" {
		t.Errorf("expected panic value 'test panic', got %v", result.PanicValue)
	}
	if len(result.PanicStack) == 0 {
		t.Error("expected stack trace")
	}
	if gotValue != "test panic" || len(gotStack) == 0 {
		t.Error("expected panic handler to be called with value and stack")
	}
}

func TestExecutor_PanicHandlerPanics(t *testing.T) {
	e := NewExecutor(WithPanicHandler(func(any, []byte) {
		panic("handler panic")
	}))

	result := e.Execute(context.Background(), func(ctx context.Context) error {
		panic("original")
	})

	if !result.IsPanic() {
		t.Error("expected panic result")
	}
}

func TestExecutor_CanceledContextStillRuns(t *testing.T) {
	e := NewExecutor()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	result := e.Execute(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})

	if !called || !result.IsSuccess() {
		t.Error("expected handler to run with a canceled context")
	}
}

func TestExecutor_NilFunc(t *testing.T) {
	result := NewExecutor().Execute(context.Background(), nil)
	if !errors.Is(result.Error, ErrNilFunc) {
		t.Errorf("expected ErrNilFunc, got %v", result.Error)
	}
}
