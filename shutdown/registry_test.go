package shutdown

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestRegistry_Order(t *testing.T) {
	registry := NewRegistry()

	var order []string
	record := func(name string) Func {
		return func(ctx context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	registry.Register("logger", PriorityLogger, record("logger"))
	registry.Register("handles", PriorityHandles, record("handles"))
	registry.Register("history", PriorityHistory, record("history"))
	registry.Register("metrics", PriorityMetrics, record("metrics"))
	registry.Register("metrics-2", PriorityMetrics, record("metrics-2"))

	want := []string{"handles", "metrics", "metrics-2", "history", "logger"}
	if got := registry.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	if errs := registry.Shutdown(context.Background()); len(errs) != 0 {
		t.Fatalf("Shutdown() errors = %v", errs)
	}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("execution order = %v, want %v", order, want)
	}
}

func TestRegistry_ErrorsDoNotStopLaterSteps(t *testing.T) {
	registry := NewRegistry()
	boom := errors.New("boom")

	ran := false
	registry.Register("first", 1, func(ctx context.Context) error { return boom })
	registry.Register("second", 2, func(ctx context.Context) error {
		ran = true
		return nil
	})

	errs := registry.Shutdown(context.Background())
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
	if !errors.Is(errs[0], boom) {
		t.Errorf("errs[0] = %v, want wrapped boom", errs[0])
	}
	if errs[0].Error() != "first: boom" {
		t.Errorf("errs[0] = %q, want %q", errs[0].Error(), "first: boom")
	}
	if !ran {
		t.Error("second step did not run after first failed")
	}
}

func TestRegistry_ShutdownOnce(t *testing.T) {
	registry := NewRegistry()

	calls := 0
	registry.Register("step", 1, func(ctx context.Context) error {
		calls++
		return nil
	})

	registry.Shutdown(context.Background())
	registry.Shutdown(context.Background())
	registry.Register("late", 1, func(ctx context.Context) error {
		calls++
		return nil
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !registry.IsClosed() {
		t.Error("IsClosed() = false after Shutdown")
	}
	if registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1", registry.Count())
	}
}

func TestRegistry_PassesContext(t *testing.T) {
	registry := NewRegistry()
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var got context.Context
	registry.Register("step", 1, func(c context.Context) error {
		got = c
		return nil
	})
	registry.Register("nil", 2, nil)

	registry.Shutdown(ctx)
	if got != ctx {
		t.Error("step did not receive the shutdown context")
	}
	if registry.Count() != 1 {
		t.Errorf("Count() = %d, want 1 (nil step ignored)", registry.Count())
	}
}
