package erasure_code

import (
	"context"
	"time"

	"github.com/journeymidnight/ecplanner/utils"
	"github.com/journeymidnight/ecplanner/wire_errors"
	"github.com/journeymidnight/ecplanner/xlog"
	"github.com/pkg/errors"
)

// StripeResult is the outcome of planning one group. Exactly one of Step
// and Err is set.
type StripeResult struct {
	Step    *CodingStep
	Err     error
	Elapsed time.Duration
}

// StripeRunner plans many block groups on one initialized coder, one
// goroutine per worker.
type StripeRunner struct {
	coder   ErasureCoder
	workers int
}

func NewStripeRunner(coder ErasureCoder, workers int) *StripeRunner {
	if workers <= 0 {
		workers = 1
	}
	return &StripeRunner{coder: coder, workers: workers}
}

// Plan returns one result per group, in the order of groups. Groups not yet
// planned when ctx is cancelled get ctx's error.
func (r *StripeRunner) Plan(ctx context.Context, groups []*BlockGroup) []StripeResult {
	results := make([]StripeResult, len(groups))
	done := make([]bool, len(groups))

	work := make(chan int)
	stopper := utils.NewStopper(ctx)
	stopper.RunWorkers(utils.Min(r.workers, utils.Max(len(groups), 1)), func(worker int) {
		for i := range work {
			start := time.Now()
			step, err := r.coder.CalculateCoding(groups[i])
			elapsed := time.Since(start)
			//each index is handed to exactly one worker
			results[i] = StripeResult{Step: step, Err: err, Elapsed: elapsed}
			done[i] = true
			observe(step, err, elapsed)
		}
	})

feed:
	for i := range groups {
		select {
		case work <- i:
		case <-stopper.ShouldStop():
			break feed
		}
	}
	close(work)
	stopper.Wait()
	stopper.Close()

	for i := range results {
		if !done[i] {
			results[i].Err = errors.Wrapf(ctx.Err(), "stripe %d not planned", i)
		}
	}
	return results
}

func observe(step *CodingStep, err error, elapsed time.Duration) {
	planLatencies.Observe(elapsed.Seconds())
	if err == nil {
		stepsPlanned.WithLabelValues(step.Codec(), step.Kind().String()).Inc()
		return
	}
	code, _ := wire_errors.ConvertToCode(err)
	planFailures.WithLabelValues(code.String()).Inc()
	if code == wire_errors.Code_UnrecoverableStripe {
		xlog.Logger.Warnf("stripe lost: %v", err)
	}
}
