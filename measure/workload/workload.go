package workload

import (
	"context"
	"time"
)

type Result struct {
	Success    bool
	Elapsed    time.Duration
	Diagnostic string
	// UsefulWork is the amount of work done, used for energy efficiency.
	// Zero or negative is read as one unit.
	UsefulWork float64
}

// Workload runs once under a time bound. Run must honour ctx and return
// shortly after it is cancelled.
type Workload interface {
	Run(ctx context.Context, timeout time.Duration) Result
}

// Func adapts a plain function. The function receives a ctx that already
// carries the timeout. Elapsed is filled in when the function leaves it zero.
type Func func(ctx context.Context) Result

func (f Func) Run(ctx context.Context, timeout time.Duration) Result {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	start := time.Now()
	res := f(ctx)
	if res.Elapsed == 0 {
		res.Elapsed = time.Since(start)
	}
	if ctx.Err() == context.DeadlineExceeded && res.Success {
		res.Success = false
		res.Diagnostic = "timeout"
	}
	return res
}
