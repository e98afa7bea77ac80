package diagnostics

import (
	"context"
	"errors"
	"testing"
)

func TestClassifyMatchesRegisteredFamily(t *testing.T) {
	c := NewClassifier()
	if err := c.AddRule("timeout", `(?i)timed out`, Fix{Kind: FixRetryWithTimeout, TimeoutMS: 1000}); err != nil {
		t.Fatalf("AddRule: %v", err)
	}
	got := c.Classify("Error: connection timed out after 30s")
	if len(got) != 1 || got[0].Family != "timeout" {
		t.Fatalf("expected one timeout match, got %+v", got)
	}
}

func TestDefaultClassifierMatchesNetworkTimeout(t *testing.T) {
	c := DefaultClassifier()
	got := c.Classify("dial tcp 10.0.0.1:443: i/o timeout")
	if len(got) == 0 {
		t.Fatal("expected at least one family to match an i/o timeout")
	}
}

func TestRetrySucceedsAfterApplyingFix(t *testing.T) {
	c := NewClassifier()
	_ = c.AddRule("flaky", `flaky`, Fix{Kind: FixRetryWithTimeout, TimeoutMS: 5000})

	attemptN := 0
	applied := 0

	outcome := Retry(context.Background(), c, 3,
		func(ctx context.Context) (string, error) {
			attemptN++
			if attemptN < 2 {
				return "transient flaky failure", errors.New("failed")
			}
			return "", nil
		},
		func(ctx context.Context, fix Fix) error {
			applied++
			return nil
		},
	)

	if !outcome.Succeeded {
		t.Fatalf("expected eventual success, got %+v", outcome)
	}
	if attemptN != 2 {
		t.Fatalf("expected 2 attempts, got %d", attemptN)
	}
	if applied != 1 {
		t.Fatalf("expected exactly 1 fix applied, got %d", applied)
	}
}

func TestRetryNeverAppliesSameKindTwice(t *testing.T) {
	c := NewClassifier()
	_ = c.AddRule("always_flaky", `always`, Fix{Kind: FixRetryWithTimeout, TimeoutMS: 1000})

	var appliedKinds []FixKind
	outcome := Retry(context.Background(), c, 5,
		func(ctx context.Context) (string, error) {
			return "always broken", errors.New("failed")
		},
		func(ctx context.Context, fix Fix) error {
			appliedKinds = append(appliedKinds, fix.Kind)
			return nil
		},
	)

	if outcome.Succeeded {
		t.Fatal("expected eventual exhaustion, not success")
	}
	if !errors.Is(outcome.LastError, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", outcome.LastError)
	}
	if len(appliedKinds) != 1 {
		t.Fatalf("expected exactly one fix application before exhaustion, got %v", appliedKinds)
	}
}

func TestRetryStopsAtMaxAttemptsWithNoMatchingFamily(t *testing.T) {
	c := NewClassifier() // no rules registered: never finds a fix
	attemptN := 0
	outcome := Retry(context.Background(), c, 2,
		func(ctx context.Context) (string, error) {
			attemptN++
			return "totally unclassified failure", errors.New("nope")
		},
		func(ctx context.Context, fix Fix) error { return nil },
	)
	if outcome.Succeeded {
		t.Fatal("expected failure")
	}
	if attemptN != 1 {
		t.Fatalf("expected to stop after the first unclassified failure, got %d attempts", attemptN)
	}
}
