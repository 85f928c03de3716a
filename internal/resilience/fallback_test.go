package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newGroup() *FallbackGroup[string] {
	fg := NewFallbackGroup("whisper", "whisper", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	fg.AddFallback("openai", "openai")
	return fg
}

func TestFallbackGroup_PrimarySuccess(t *testing.T) {
	fg := newGroup()

	var called []string
	err := fg.Execute(context.Background(), func(v string) error {
		called = append(called, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(called) != 1 || called[0] != "whisper" {
		t.Fatalf("called = %v, want [whisper]", called)
	}
}

func TestFallbackGroup_Failover(t *testing.T) {
	fg := newGroup()

	got, err := ExecuteWithResult(context.Background(), fg, func(v string) (string, error) {
		if v == "whisper" {
			return "", errTest
		}
		return "from " + v, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from openai" {
		t.Fatalf("result = %q, want %q", got, "from openai")
	}
}

func TestFallbackGroup_AllFail(t *testing.T) {
	fg := newGroup()

	err := fg.Execute(context.Background(), func(string) error { return errTest })
	if !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errTest) {
		t.Fatalf("err = %v, want wrapped errTest", err)
	}
}

func TestFallbackGroup_SkipsOpenBreaker(t *testing.T) {
	fg := newGroup()

	for range 2 {
		_ = fg.Execute(context.Background(), func(v string) error {
			if v == "whisper" {
				return errTest
			}
			return nil
		})
	}

	var called []string
	err := fg.Execute(context.Background(), func(v string) error {
		called = append(called, v)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(called) != 1 || called[0] != "openai" {
		t.Fatalf("called = %v, want [openai] (primary circuit open)", called)
	}
}

func TestFallbackGroup_CancelledContextStops(t *testing.T) {
	fg := newGroup()
	ctx, cancel := context.WithCancel(context.Background())

	var called []string
	err := fg.Execute(ctx, func(v string) error {
		called = append(called, v)
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(called) != 1 {
		t.Fatalf("called = %v, want only the primary", called)
	}
	if s := fg.entries[0].breaker.State(); s != StateClosed {
		t.Fatalf("primary breaker = %v, cancellation must not count as failure", s)
	}
}

func TestFallbackGroup_Names(t *testing.T) {
	fg := newGroup()
	names := fg.Names()
	if len(names) != 2 || names[0] != "whisper" || names[1] != "openai" {
		t.Fatalf("Names() = %v", names)
	}
	if fg.Primary() != "whisper" {
		t.Fatalf("Primary() = %q", fg.Primary())
	}
}
