package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

func testOutcome(test string, status common.OutcomeStatus) *common.Outcome {
	m := common.NewMetricSet()
	m.Set(common.TotalEnergyName, 1234.5, common.UnitJoules)
	m.SetUnavailable("gpu_energy_joules", common.UnitJoules)
	return &common.Outcome{
		SessionID:     "3f1c",
		Key:           common.SessionKey{InstanceID: "django__django-11099", VariantID: "gpt-4o", TestName: test},
		Status:        status,
		Metrics:       m,
		RawMetrics:    m.Clone(),
		Stats:         map[string]common.MetricStats{common.TotalEnergyName: {Mean: 1234.5, StdDev: 10, Min: 1220, Max: 1250, Count: 3}},
		OKRepetitions: 3,
		GridIntensity: 250,
		StartedAt:     time.Unix(1700000000, 0).UTC(),
		FinishedAt:    time.Unix(1700000060, 0).UTC(),
	}
}

// flakySink fails the first n Persist calls.
type flakySink struct {
	mu     sync.Mutex
	failN  int
	calls  int
	stored []*common.Outcome
	closed bool
}

func (f *flakySink) Persist(ctx context.Context, o *common.Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failN {
		return errors.New("backend down")
	}
	f.stored = append(f.stored, o)
	return nil
}

func (f *flakySink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *flakySink) snapshot() (int, int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, len(f.stored), f.closed
}
