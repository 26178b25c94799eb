package sensors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
	"github.com/greenbench/greenbench-sdk-go/measure/logger"
)

const (
	DefaultInterval = 100 * time.Millisecond

	reasonUnavailable = "unavailable"
)

// Sensor samples one source of resource or power data into a fresh buffer
// per window. Start returns immediately; Stop returns only after the
// sampling goroutine has exited, so the returned window is final.
type Sensor interface {
	Name() string
	Available() bool
	Series() []common.SeriesSpec
	Start()
	Stop() common.Window
}

// Probe takes one reading. Samples with a zero timestamp are stamped by the
// loop. ctx is cancelled when the sensor is stopped.
type Probe func(ctx context.Context) ([]common.Sample, error)

type ProbeConfig struct {
	Name     string
	Specs    []common.SeriesSpec
	Interval time.Duration
	// FailureBudget is the number of consecutive probe errors that degrade
	// the sensor. Values below 1 mean the first error degrades it.
	FailureBudget int
	Logger        logger.Logger

	// OnStart runs synchronously in Start before the loop is launched.
	OnStart func()

	Unavailable       bool
	UnavailableReason string
}

// ProbeSensor drives a Probe on a ticker. It is the shared loop behind
// every concrete sampler.
type ProbeSensor struct {
	name      string
	specs     []common.SeriesSpec
	interval  time.Duration
	budget    int
	logger    logger.Logger
	onStart   func()
	probe     Probe
	available bool
	reason    string

	mu  sync.Mutex
	wg  sync.WaitGroup
	cur *run
}

// run holds the state of one window. The loop goroutine writes degraded,
// reason and failures; Stop reads them only after wg.Wait.
type run struct {
	buf       *SampleBuffer
	closeChan chan struct{}
	cancel    context.CancelFunc
	startedAt time.Time

	failures int
	degraded bool
	reason   string
}

func NewProbeSensor(cfg ProbeConfig, probe Probe) *ProbeSensor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FailureBudget < 1 {
		cfg.FailureBudget = 1
	}
	s := &ProbeSensor{
		name:      cfg.Name,
		specs:     cfg.Specs,
		interval:  cfg.Interval,
		budget:    cfg.FailureBudget,
		logger:    logger.OrNoop(cfg.Logger),
		onStart:   cfg.OnStart,
		probe:     probe,
		available: !cfg.Unavailable && probe != nil,
		reason:    cfg.UnavailableReason,
	}
	if !s.available && s.reason == "" {
		s.reason = reasonUnavailable
	}
	return s
}

func (s *ProbeSensor) Name() string {
	return s.name
}

func (s *ProbeSensor) Available() bool {
	return s.available
}

func (s *ProbeSensor) Series() []common.SeriesSpec {
	return s.specs
}

// UnavailableReason explains why the sensor was not detected.
func (s *ProbeSensor) UnavailableReason() string {
	if s.available {
		return ""
	}
	return s.reason
}

func (s *ProbeSensor) Start() {
	if !s.available {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cur != nil {
		s.logger.Error("[%s.Start] already running", s.name)
		return
	}
	if s.onStart != nil {
		s.onStart()
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		buf:       NewSampleBuffer(),
		closeChan: make(chan struct{}),
		cancel:    cancel,
		startedAt: time.Now(),
	}
	s.cur = r
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, r)
	}()
}

func (s *ProbeSensor) Stop() common.Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.cur
	if r == nil {
		now := time.Now()
		return common.Window{
			Sensor:    s.name,
			Specs:     s.specs,
			StartedAt: now,
			StoppedAt: now,
			Degraded:  !s.available,
			Reason:    s.UnavailableReason(),
		}
	}
	close(r.closeChan)
	r.cancel()
	s.wg.Wait()
	r.buf.Close()
	s.cur = nil

	w := common.Window{
		Sensor:    s.name,
		Specs:     s.specs,
		Samples:   r.buf.Snapshot(),
		StartedAt: r.startedAt,
		StoppedAt: time.Now(),
		Degraded:  r.degraded,
		Reason:    r.reason,
	}
	if r.degraded {
		s.logger.Info("[%s.Stop] window degraded. reason=%s", s.name, r.reason)
	}
	return w
}

func (s *ProbeSensor) loop(ctx context.Context, r *run) {
	tc := time.NewTicker(s.interval)
	defer tc.Stop()
	for {
		if !s.sample(ctx, r) {
			return
		}
		select {
		case <-tc.C:
		case <-r.closeChan:
			return
		}
	}
}

// sample runs the probe once and reports whether the loop should continue.
func (s *ProbeSensor) sample(ctx context.Context, r *run) (cont bool) {
	defer func() {
		if p := recover(); p != nil {
			r.degraded = true
			r.reason = fmt.Sprintf("panic: %v", p)
			s.logger.Error("[%s.sample] recovered panic. err=%+v", s.name, p)
			cont = false
		}
	}()

	samples, err := s.probe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		r.failures++
		s.logger.Error("[%s.sample] probe fail. failures=%d err=%+v", s.name, r.failures, err)
		if r.failures >= s.budget {
			r.degraded = true
			r.reason = err.Error()
			return false
		}
		return true
	}
	r.failures = 0

	now := time.Now()
	for _, smp := range samples {
		if smp.Timestamp.IsZero() {
			smp.Timestamp = now
		}
		r.buf.Append(smp)
	}
	return true
}
