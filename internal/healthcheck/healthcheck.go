package healthcheck

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Check probes one external dependency and returns a short detail line.
type Check struct {
	Name string
	Run  func(ctx context.Context) (string, error)
}

type Result struct {
	Name     string
	Detail   string
	Err      error
	Duration time.Duration
}

func (r Result) OK() bool { return r.Err == nil }

// RunAll runs every check concurrently, each bounded by timeout, and returns
// the results in the order the checks were given. A failing check never
// cancels the others.
func RunAll(ctx context.Context, timeout time.Duration, checks ...Check) []Result {
	results := make([]Result, len(checks))

	var g errgroup.Group
	g.SetLimit(4)
	for i, c := range checks {
		g.Go(func() error {
			checkCtx := ctx
			if timeout > 0 {
				var cancel context.CancelFunc
				checkCtx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			start := time.Now()
			detail, err := c.Run(checkCtx)
			results[i] = Result{
				Name:     c.Name,
				Detail:   detail,
				Err:      err,
				Duration: time.Since(start),
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Healthy reports whether every result passed.
func Healthy(results []Result) bool {
	for _, r := range results {
		if !r.OK() {
			return false
		}
	}
	return true
}
