package aggregator

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
	"github.com/greenbench/greenbench-sdk-go/measure/logger"
	"github.com/greenbench/greenbench-sdk-go/measure/sink"
)

type Config struct {
	GridIntensity float64
	Logger        logger.Logger
}

// Aggregator reduces a finished session to one outcome and hands it to the
// sink. Every session yields exactly one Persist call.
type Aggregator struct {
	sink          sink.Sink
	gridIntensity float64
	logger        logger.Logger
}

func New(cfg Config, s sink.Sink) *Aggregator {
	return &Aggregator{sink: s, gridIntensity: cfg.GridIntensity, logger: logger.OrNoop(cfg.Logger)}
}

// Finalize builds the outcome and persists it. The outcome is returned even
// when persisting fails.
func (a *Aggregator) Finalize(ctx context.Context, session *common.Session) (*common.Outcome, error) {
	out := Build(session, a.gridIntensity)
	if err := a.sink.Persist(ctx, out); err != nil {
		a.logger.Error("[Aggregator.Finalize] persist fail. key=%s status=%s err=%+v", out.Key, out.Status, err)
		return out, errors.Wrapf(err, "persist %s", out.Key)
	}
	a.logger.Info("[Aggregator.Finalize] outcome persisted. key=%s status=%s ok=%d/%d", out.Key, out.Status, out.OKRepetitions, len(out.Repetitions))
	return out, nil
}

// Build averages the ok repetitions of a session. Failed and partial
// repetitions are kept on the outcome but do not enter the mean.
func Build(session *common.Session, gridIntensity float64) *common.Outcome {
	out := &common.Outcome{
		SessionID:     session.ID,
		Key:           session.Key,
		Baseline:      session.Baseline,
		Repetitions:   session.Records,
		GridIntensity: gridIntensity,
		StartedAt:     session.StartedAt,
		FinishedAt:    session.FinishedAt,
	}
	if out.FinishedAt.IsZero() {
		out.FinishedAt = time.Now()
	}

	var ok []common.RepetitionRecord
	for _, r := range session.Records {
		if r.Status == common.StatusOK {
			ok = append(ok, r)
		}
	}
	out.OKRepetitions = len(ok)

	switch {
	case session.Err != nil:
		out.Status = common.OutcomeFailed
		out.FailureReason = session.Err.Error()
	case len(ok) == 0:
		out.Status = common.OutcomeFailed
		out.FailureReason = failureReason(session.Records)
	default:
		out.Status = common.OutcomeMeasured
		subtracted := make([]common.MetricSet, len(ok))
		raw := make([]common.MetricSet, len(ok))
		durations := make([]float64, len(ok))
		for i, r := range ok {
			subtracted[i], raw[i] = r.Subtracted, r.Raw
			durations[i] = r.Duration.Seconds()
		}
		out.Metrics, out.Stats = Mean(subtracted)
		out.RawMetrics, _ = Mean(raw)
		st := Stats(durations)
		out.Stats[common.DurationName] = st
		out.Metrics.Set(common.DurationName, st.Mean, common.UnitSeconds)
	}
	session.Aggregate = out.Metrics
	return out
}

// Mean averages each metric over the sets where it is available. A metric
// missing or unavailable in some set is flagged partial; one unavailable in
// every set stays unavailable.
func Mean(sets []common.MetricSet) (common.MetricSet, map[string]common.MetricStats) {
	out := common.NewMetricSet()
	stats := make(map[string]common.MetricStats)

	names := map[string]string{}
	for _, s := range sets {
		for name, m := range s {
			if _, seen := names[name]; !seen {
				names[name] = m.Unit
			}
		}
	}
	for name, unit := range names {
		var values []float64
		partial := false
		for _, s := range sets {
			m, present := s[name]
			if !present || !m.Available {
				partial = true
				continue
			}
			partial = partial || m.Partial
			values = append(values, m.Value)
		}
		if len(values) == 0 {
			out.SetUnavailable(name, unit)
			continue
		}
		st := Stats(values)
		stats[name] = st
		out[name] = common.Metric{Value: st.Mean, Unit: unit, Available: true, Partial: partial}
	}
	return out, stats
}

// Stats returns mean, sample standard deviation, min and max.
func Stats(values []float64) common.MetricStats {
	st := common.MetricStats{Count: len(values), Min: math.Inf(1), Max: math.Inf(-1)}
	if len(values) == 0 {
		return common.MetricStats{}
	}
	sum := 0.0
	for _, v := range values {
		sum += v
		st.Min = math.Min(st.Min, v)
		st.Max = math.Max(st.Max, v)
	}
	st.Mean = sum / float64(len(values))
	if len(values) > 1 {
		ss := 0.0
		for _, v := range values {
			ss += (v - st.Mean) * (v - st.Mean)
		}
		st.StdDev = math.Sqrt(ss / float64(len(values)-1))
	}
	return st
}

func failureReason(records []common.RepetitionRecord) string {
	if len(records) == 0 {
		return "no repetitions recorded"
	}
	partial := 0
	for _, r := range records {
		if r.Status == common.StatusPartial {
			partial++
		}
	}
	last := records[len(records)-1].Diagnostic
	if partial == len(records) {
		return "no complete repetition: " + last
	}
	return "no successful repetition: " + last
}
