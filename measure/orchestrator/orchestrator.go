package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/greenbench/greenbench-sdk-go/internal/utils"
	"github.com/greenbench/greenbench-sdk-go/measure/accounting"
	"github.com/greenbench/greenbench-sdk-go/measure/calibrator"
	"github.com/greenbench/greenbench-sdk-go/measure/common"
	"github.com/greenbench/greenbench-sdk-go/measure/logger"
	"github.com/greenbench/greenbench-sdk-go/measure/sensors"
	"github.com/greenbench/greenbench-sdk-go/measure/workload"
)

const (
	DefaultRepetitions     = 3
	DefaultRetryLimit      = 3
	DefaultWorkloadTimeout = 10 * time.Minute
)

type Config struct {
	Repetitions int
	// RetryLimit is the number of attempts a repetition slot gets in total.
	RetryLimit      int
	WorkloadTimeout time.Duration
	GridIntensity   float64

	Logger       logger.Logger
	Reporter     Reporter
	OnTransition func(from, to State)
}

// Orchestrator runs one session at a time: calibrate once, then repeat the
// workload with the sensors framing every attempt.
type Orchestrator struct {
	cfg        Config
	group      *sensors.Group
	calibrator *calibrator.Calibrator
	logger     logger.Logger
	reporter   Reporter

	state int32
}

func New(cfg Config, group *sensors.Group, cal *calibrator.Calibrator) *Orchestrator {
	if cfg.Repetitions <= 0 {
		cfg.Repetitions = DefaultRepetitions
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = DefaultRetryLimit
	}
	if cfg.WorkloadTimeout <= 0 {
		cfg.WorkloadTimeout = DefaultWorkloadTimeout
	}
	if cfg.Reporter == nil {
		cfg.Reporter = NoopReporter{}
	}
	return &Orchestrator{
		cfg:        cfg,
		group:      group,
		calibrator: cal,
		logger:     logger.OrNoop(cfg.Logger),
		reporter:   cfg.Reporter,
	}
}

func (o *Orchestrator) State() State {
	return State(atomic.LoadInt32(&o.state))
}

func (o *Orchestrator) transition(to State) {
	from := State(atomic.SwapInt32(&o.state, int32(to)))
	o.logger.Debug("[Orchestrator.transition] %s -> %s", from, to)
	if o.cfg.OnTransition != nil {
		o.cfg.OnTransition(from, to)
	}
}

// Run measures one workload. It never returns nil; a session that could not
// be measured carries Err and no records.
func (o *Orchestrator) Run(ctx context.Context, key common.SessionKey, w workload.Workload) *common.Session {
	session := &common.Session{
		ID:        utils.NewSessionID(),
		Key:       key,
		StartedAt: time.Now(),
	}
	defer func() {
		session.FinishedAt = time.Now()
		o.transition(StateSessionComplete)
		o.transition(StateIdle)
	}()

	o.transition(StateCalibrating)
	calStart := time.Now()
	baseline, err := o.calibrator.Calibrate(ctx, o.group)
	if err != nil {
		o.logger.Error("[Orchestrator.Run] calibration fail. session=%s key=%s err=%v", session.ID, key, err)
		session.Err = err
		return session
	}
	_ = o.reporter.EmitTimer(metricCalibration, float64(time.Since(calStart).Milliseconds()), nil)
	session.Baseline = baseline

	for i := 0; i < o.cfg.Repetitions; i++ {
		o.transition(StateAwaitingRepetition)
		if err := ctx.Err(); err != nil {
			o.logger.Info("[Orchestrator.Run] session cancelled. session=%s done=%d err=%v", session.ID, i, err)
			session.Err = err
			return session
		}
		rec := o.runSlot(ctx, session, i, w)
		session.Records = append(session.Records, rec)
		_ = o.reporter.EmitCounter(metricRepetition, 1, map[string]string{"status": string(rec.Status)})
	}
	return session
}

func (o *Orchestrator) runSlot(ctx context.Context, session *common.Session, index int, w workload.Workload) common.RepetitionRecord {
	var (
		lastDiag string
		attempts int
	)
	for attempt := 1; attempt <= o.cfg.RetryLimit; attempt++ {
		attempts = attempt
		attemptID := utils.NewAttemptID()
		_ = o.reporter.EmitCounter(metricAttempt, 1, nil)

		o.transition(StateRunning)
		o.group.Start()
		workloadStart := time.Now()
		res := o.runWorkload(ctx, w)
		workloadEnd := time.Now()
		windows := o.group.Stop()

		o.transition(StateAccounting)
		o.logger.Debug("[Orchestrator.runSlot] attempt finished. session=%s rep=%d attempt=%d id=%s success=%v elapsed=%v",
			session.ID, index, attempt, attemptID, res.Success, res.Elapsed)
		if !res.Success {
			lastDiag = res.Diagnostic
			o.logger.Info("[Orchestrator.runSlot] workload failed, data discarded. session=%s rep=%d attempt=%d/%d id=%s diag=%s",
				session.ID, index, attempt, o.cfg.RetryLimit, attemptID, firstLine(res.Diagnostic))
			if ctx.Err() != nil {
				break
			}
			if attempt < o.cfg.RetryLimit {
				_ = o.reporter.EmitCounter(metricRetry, 1, nil)
				o.transition(StateRetryPending)
			}
			continue
		}

		rec := o.account(session, index, attempt, res, windows)
		rec.WorkloadStart = workloadStart
		rec.WorkloadEnd = workloadEnd
		_ = o.reporter.EmitTimer(metricRepetitionTimer, float64(res.Elapsed.Milliseconds()), nil)
		o.transition(StateRepetitionComplete)
		return rec
	}

	o.logger.Error("[Orchestrator.runSlot] repetition failed. session=%s rep=%d attempts=%d", session.ID, index, attempts)
	o.transition(StateRepetitionComplete)
	return common.RepetitionRecord{
		Index:      index,
		Attempts:   attempts,
		Status:     common.StatusFailed,
		Diagnostic: fmt.Sprintf("%v: %s", common.ErrWorkloadFailure, lastDiag),
	}
}

// runWorkload bounds the workload by the configured timeout. A workload
// that panics or reports success after its deadline counts as failed. One
// that ignores its ctx is abandoned at the deadline and left to finish
// detached; its result is dropped.
func (o *Orchestrator) runWorkload(ctx context.Context, w workload.Workload) workload.Result {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.WorkloadTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan workload.Result, 1)
	go func() {
		var res workload.Result
		defer func() {
			if p := recover(); p != nil {
				o.logger.Error("[Orchestrator.runWorkload] workload panic. err=%+v", p)
				res = workload.Result{Elapsed: time.Since(start), Diagnostic: fmt.Sprintf("panic: %v", p)}
			}
			done <- res
		}()
		res = w.Run(ctx, o.cfg.WorkloadTimeout)
	}()

	select {
	case res := <-done:
		if res.Success && ctx.Err() == context.DeadlineExceeded {
			res.Success = false
			res.Diagnostic = fmt.Sprintf("timeout after %v", o.cfg.WorkloadTimeout)
		}
		return res
	case <-ctx.Done():
		diag := fmt.Sprintf("cancelled: %v", ctx.Err())
		if ctx.Err() == context.DeadlineExceeded {
			diag = fmt.Sprintf("timeout after %v", o.cfg.WorkloadTimeout)
		}
		o.logger.Error("[Orchestrator.runWorkload] workload abandoned. diag=%s", diag)
		return workload.Result{Elapsed: time.Since(start), Diagnostic: diag}
	}
}

func (o *Orchestrator) account(session *common.Session, index, attempt int, res workload.Result, windows []common.Window) common.RepetitionRecord {
	rec := common.RepetitionRecord{
		Index:    index,
		Attempts: attempt,
		Status:   common.StatusOK,
		Duration: res.Elapsed,
	}
	if res.Elapsed <= 0 {
		rec.Status = common.StatusPartial
		rec.Diagnostic = fmt.Sprintf("%v: elapsed=%v", common.ErrClockAnomaly, res.Elapsed)
		o.logger.Error("[Orchestrator.account] %s. session=%s rep=%d", rec.Diagnostic, session.ID, index)
	}

	raw := common.NewMetricSet()
	for _, w := range windows {
		rep := accounting.Account(w, res.Elapsed)
		if collisions := raw.Merge(rep.Metrics); len(collisions) > 0 {
			o.logger.Error("[Orchestrator.account] metric name collision. sensor=%s names=%v", w.Sensor, collisions)
		}
		if rep.CounterWrapped {
			rec.Status = common.StatusPartial
			rec.Diagnostic = fmt.Sprintf("energy counter wrapped. sensor=%s", w.Sensor)
		}
		if w.Degraded && !w.StartedAt.IsZero() {
			_ = o.reporter.EmitCounter(metricSensorDegraded, 1, map[string]string{"sensor": w.Sensor})
			o.logger.Info("[Orchestrator.account] %v. sensor=%s reason=%s", common.ErrSensorDegraded, w.Sensor, w.Reason)
		}
		rec.Windows = append(rec.Windows, w.Info())
	}

	work := res.UsefulWork
	if work <= 0 {
		work = 1
	}
	in := accounting.DeriveInput{Duration: res.Elapsed, UsefulWork: work, GridIntensity: o.cfg.GridIntensity}
	rec.Raw = accounting.Derive(raw, in)
	rec.Subtracted = accounting.Subtract(rec.Raw, session.Baseline.Metrics, in)
	return rec
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
