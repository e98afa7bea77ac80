package diagnostics

import (
	"context"
	"errors"
	"fmt"
)

// DefaultMaxAttempts is the retry budget Retry uses when the caller
// doesn't override it.
const DefaultMaxAttempts = 3

// ErrExhausted is returned when Retry uses up its attempt budget, or runs
// out of never-yet-applied fixes, without the operation succeeding.
var ErrExhausted = errors.New("diagnostics: retry budget exhausted")

// Attempt is one operation invocation: it runs the thing that might fail
// and returns its stderr (empty on success) alongside any error.
type Attempt func(ctx context.Context) (stderr string, err error)

// ApplyFix performs the side effect a Fix describes (setting an env var,
// rewriting a mirror config, etc.) before the next Attempt.
type ApplyFix func(ctx context.Context, fix Fix) error

// Outcome records one Retry run's history for callers that want to show
// the user what was tried.
type Outcome struct {
	Succeeded bool
	Attempts  int
	Applied   []Fix
	LastError error
	LastStderr string
}

// Retry runs attempt up to maxAttempts times (DefaultMaxAttempts if <= 0),
// classifying each failure's stderr with classifier and applying, via
// apply, the first fix (across matched families, in registration order)
// whose kind has not been applied this run, one fix per failed attempt,
// before retrying. It never applies two fixes of the same FixKind within
// one Retry call; once every matched family's fixes are exhausted (or the
// attempt budget runs out) it returns ErrExhausted via Outcome.LastError
// wrapped, so the caller can fall back to asking the user.
func Retry(ctx context.Context, classifier *Classifier, maxAttempts int, attempt Attempt, apply ApplyFix) Outcome {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	appliedKinds := make(map[FixKind]bool)
	out := Outcome{}

	for out.Attempts < maxAttempts {
		out.Attempts++
		stderr, err := attempt(ctx)
		if err == nil {
			out.Succeeded = true
			return out
		}
		out.LastError = err
		out.LastStderr = stderr

		fix, found := nextFix(classifier.Classify(stderr), appliedKinds)
		if !found {
			out.LastError = fmt.Errorf("%w: %v", ErrExhausted, err)
			return out
		}

		if applyErr := apply(ctx, fix); applyErr != nil {
			out.LastError = fmt.Errorf("diagnostics: apply fix %s: %w", fix.Kind, applyErr)
			return out
		}
		appliedKinds[fix.Kind] = true
		out.Applied = append(out.Applied, fix)
	}

	out.LastError = fmt.Errorf("%w: %v", ErrExhausted, out.LastError)
	return out
}

// nextFix returns the first fix across classifications whose kind hasn't
// already been applied this run.
func nextFix(classifications []Classification, applied map[FixKind]bool) (Fix, bool) {
	for _, c := range classifications {
		for _, fix := range c.Fixes {
			if !applied[fix.Kind] {
				return fix, true
			}
		}
	}
	return Fix{}, false
}
