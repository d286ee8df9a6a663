/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: runner.go
Description: Runner fans out several independent Lanes concurrently. Each
Lane stays single-threaded internally; the Runner only shards across
Lanes, mirroring the teacher's worker-pool shape while using errgroup so
a lane's error cancels its siblings instead of being silently dropped.
*/

package engine

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Runner drives N independent Lanes concurrently.
type Runner struct {
	lanes []*Lane
}

// NewRunner builds a runner over the given lanes.
func NewRunner(lanes ...*Lane) *Runner {
	return &Runner{lanes: lanes}
}

// Lanes returns the runner's lanes, for stats collection after Run
// returns.
func (r *Runner) Lanes() []*Lane {
	return r.lanes
}

// Run executes stepFn on every lane in a dedicated goroutine until ctx is
// cancelled or any lane returns a non-nil error, at which point all
// siblings are cancelled and the first error is returned.
func (r *Runner) Run(ctx context.Context, stepFn func(ctx context.Context, lane *Lane) error) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, lane := range r.lanes {
		lane := lane
		g.Go(func() error {
			return stepFn(ctx, lane)
		})
	}

	return g.Wait()
}

// RunUntilCancel repeatedly calls Step on every lane until ctx is
// cancelled or any lane's Step returns an error, which cancels every
// sibling lane via the shared errgroup context.
func (r *Runner) RunUntilCancel(ctx context.Context, onStepError func(lane *Lane, err error)) error {
	return r.Run(ctx, func(ctx context.Context, lane *Lane) error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if _, err := lane.Step(); err != nil {
				if onStepError != nil {
					onStepError(lane, err)
				}
				return err
			}
		}
	})
}
