// Package sensorstest provides scripted sensors for tests.
package sensorstest

import (
	"sync"
	"time"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

// FakeSensor emits one sample per series at every Stop, spaced across the
// window, with values chosen by whether the load is busy or idle.
type FakeSensor struct {
	name      string
	specs     []common.SeriesSpec
	available bool

	mu        sync.Mutex
	idle      map[common.MetricKind]float64
	busy      map[common.MetricKind]float64
	isBusy    bool
	degradeAt int
	running   bool
	startedAt time.Time
	starts    []time.Time
	stops     []time.Time
	calls     int
}

func New(name string, specs ...common.SeriesSpec) *FakeSensor {
	return &FakeSensor{
		name:      name,
		specs:     specs,
		available: true,
		idle:      make(map[common.MetricKind]float64),
		busy:      make(map[common.MetricKind]float64),
	}
}

// NewUnavailable returns a sensor that was not detected.
func NewUnavailable(name string, specs ...common.SeriesSpec) *FakeSensor {
	f := New(name, specs...)
	f.available = false
	return f
}

// Values sets the idle and busy value of one series.
func (f *FakeSensor) Values(kind common.MetricKind, idle, busy float64) *FakeSensor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idle[kind] = idle
	f.busy[kind] = busy
	return f
}

func (f *FakeSensor) SetBusy(busy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.isBusy = busy
}

// DegradeOnWindow marks the n-th window (1-based) as degraded.
func (f *FakeSensor) DegradeOnWindow(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.degradeAt = n
}

func (f *FakeSensor) Name() string                { return f.name }
func (f *FakeSensor) Available() bool             { return f.available }
func (f *FakeSensor) Series() []common.SeriesSpec { return f.specs }

func (f *FakeSensor) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	f.startedAt = time.Now()
	f.starts = append(f.starts, f.startedAt)
}

func (f *FakeSensor) Stop() common.Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	stoppedAt := time.Now()
	f.stops = append(f.stops, stoppedAt)
	f.calls++
	w := common.Window{
		Sensor:    f.name,
		Specs:     f.specs,
		StartedAt: f.startedAt,
		StoppedAt: stoppedAt,
	}
	if !f.running {
		return w
	}
	f.running = false
	if f.degradeAt == f.calls {
		w.Degraded = true
		w.Reason = "scripted degradation"
		return w
	}

	values := f.idle
	if f.isBusy {
		values = f.busy
	}
	mid := f.startedAt.Add(stoppedAt.Sub(f.startedAt) / 2)
	for _, spec := range f.specs {
		v := values[spec.Kind]
		if spec.Role == common.RoleEnergyCounter {
			// counter grows by v joules per second of window
			w.Samples = append(w.Samples,
				common.Sample{Timestamp: f.startedAt, Kind: spec.Kind, Value: 1000},
				common.Sample{Timestamp: stoppedAt, Kind: spec.Kind, Value: 1000 + v*stoppedAt.Sub(f.startedAt).Seconds()})
			continue
		}
		for _, ts := range []time.Time{f.startedAt, mid, stoppedAt} {
			w.Samples = append(w.Samples, common.Sample{Timestamp: ts, Kind: spec.Kind, Value: v})
		}
	}
	return w
}

func (f *FakeSensor) Starts() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.starts...)
}

func (f *FakeSensor) Stops() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.stops...)
}
