package health

import (
	"context"
	"time"
)

// CheckType represents the type of preflight check
type CheckType string

const (
	CheckTypeTCP     CheckType = "tcp"
	CheckTypeDir     CheckType = "dir"
	CheckTypeSession CheckType = "session"
)

// Result represents the outcome of a check
type Result struct {
	Type      CheckType
	Target    string
	Healthy   bool
	Message   string
	CheckedAt time.Time
	Duration  time.Duration
}

// Checker is the interface that all checkers must implement
type Checker interface {
	// Check performs the check and returns the result
	Check(ctx context.Context) Result

	// Type returns the type of check
	Type() CheckType
}

// RunAll runs the checkers in order and reports whether all passed. A
// failed check does not stop the remaining ones.
func RunAll(ctx context.Context, checkers ...Checker) ([]Result, bool) {
	results := make([]Result, 0, len(checkers))
	ok := true
	for _, c := range checkers {
		r := c.Check(ctx)
		if r.Type == "" {
			r.Type = c.Type()
		}
		if !r.Healthy {
			ok = false
		}
		results = append(results, r)
	}
	return results, ok
}

func result(t CheckType, target string, start time.Time, err error, okMsg string) Result {
	r := Result{
		Type:      t,
		Target:    target,
		Healthy:   err == nil,
		Message:   okMsg,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
	if err != nil {
		r.Message = err.Error()
	}
	return r
}
