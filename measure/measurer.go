package measure

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/greenbench/greenbench-sdk-go/measure/aggregator"
	"github.com/greenbench/greenbench-sdk-go/measure/calibrator"
	"github.com/greenbench/greenbench-sdk-go/measure/common"
	"github.com/greenbench/greenbench-sdk-go/measure/logger"
	"github.com/greenbench/greenbench-sdk-go/measure/orchestrator"
	"github.com/greenbench/greenbench-sdk-go/measure/sensors"
	"github.com/greenbench/greenbench-sdk-go/measure/sink"
	"github.com/greenbench/greenbench-sdk-go/measure/workload"
	"github.com/greenbench/greenbench-sdk-go/metrics"
)

// Summary counts the outcomes of every session run by a Measurer.
type Summary struct {
	Measured int
	Failed   int
	// Failures holds the keys of failed sessions in run order.
	Failures []common.SessionKey
	// Undelivered holds keys an async sink gave up on. Known after Close.
	Undelivered []common.SessionKey
}

// Measurer is the entry point of the package: it owns the sensors, runs one
// session per Measure call and persists every outcome.
type Measurer struct {
	cfg    Config
	logger logger.Logger

	group        *sensors.Group
	orchestrator *orchestrator.Orchestrator
	aggregator   *aggregator.Aggregator
	sink         sink.Sink
	metrics      *metrics.MetricsClient

	// sessions never overlap: they share the sensors.
	runLock sync.Mutex

	summaryLock sync.Mutex
	summary     Summary
	closeOnce   sync.Once
	closeErr    error
}

func NewMeasurer(cfg Config, opts ...Option) (*Measurer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	log := logger.OrNoop(o.logger)

	m := &Measurer{cfg: cfg, logger: log}

	m.sink = o.sink
	if m.sink == nil {
		s, err := sink.New(context.Background(), cfg.Sink, log)
		if err != nil {
			return nil, errors.Wrap(err, "open sink")
		}
		m.sink = s
	}

	reporter := o.reporter
	if reporter == nil && cfg.Metrics.Enabled {
		mopts := []metrics.ClientOption{metrics.WithPrefix(cfg.Metrics.Prefix), metrics.WithLogger(log)}
		if cfg.Metrics.Address != "" {
			mopts = append(mopts, metrics.WithAddress(cfg.Metrics.Address))
		}
		m.metrics = metrics.NewMetricClient(mopts...)
		m.metrics.Start()
		reporter = m.metrics
	}

	sensorSet := o.sensors
	if len(sensorSet) == 0 {
		sensorSet = m.detectSensors(o)
	}
	m.group = sensors.NewGroup(sensorSet...)
	for _, s := range sensorSet {
		log.Info("[Measurer.NewMeasurer] sensor. name=%s available=%v", s.Name(), s.Available())
	}

	cal := calibrator.New(calibrator.Config{Duration: cfg.BaselineDuration(), Logger: log})
	m.orchestrator = orchestrator.New(orchestrator.Config{
		Repetitions:     cfg.Repetitions,
		RetryLimit:      cfg.RetryLimit,
		WorkloadTimeout: cfg.WorkloadTimeout(),
		GridIntensity:   cfg.GridIntensity,
		Logger:          log,
		Reporter:        reporter,
		OnTransition:    o.onTransition,
	}, m.group, cal)
	m.aggregator = aggregator.New(aggregator.Config{GridIntensity: cfg.GridIntensity, Logger: log}, m.sink)
	return m, nil
}

// detectSensors builds the default set: host resources always, the
// accelerator always (unavailable when absent), the wall meter only when
// an endpoint is configured.
func (m *Measurer) detectSensors(o *options) []sensors.Sensor {
	interval := m.cfg.SamplingInterval()
	set := []sensors.Sensor{
		sensors.NewSystemResourceSampler(sensors.SystemConfig{
			Interval: interval,
			Logger:   m.logger,
			Estimate: sensors.EstimateConfig{CPUTDPWatts: m.cfg.CPUTDPWatts, RAMWattsPerGB: m.cfg.RAMWattsPerGB},
		}),
		sensors.NewAcceleratorSampler(sensors.AcceleratorConfig{
			Enabled:     m.cfg.AcceleratorEnabled,
			DeviceIndex: m.cfg.AcceleratorDeviceIndex,
			Interval:    interval,
			Logger:      m.logger,
			Runner:      o.smiRunner,
		}),
	}
	if m.cfg.PowerMeterEndpoint != "" {
		set = append(set, sensors.NewExternalPowerSampler(sensors.PowerMeterConfig{
			Endpoint: m.cfg.PowerMeterEndpoint,
			OutputID: m.cfg.PowerMeterOutputID,
			Timeout:  m.cfg.PowerMeterTimeout(),
			Interval: interval,
			Logger:   m.logger,
		}))
	}
	return set
}

func (m *Measurer) Sensors() []sensors.Sensor {
	return m.group.Sensors()
}

// Measure runs a full session for key and persists its outcome. A session
// that could not be measured still returns a failed outcome with a nil
// error; the error is reserved for invalid keys and sink failures.
func (m *Measurer) Measure(ctx context.Context, key common.SessionKey, w workload.Workload) (*common.Outcome, error) {
	if key.InstanceID == "" || key.VariantID == "" || key.TestName == "" {
		return nil, errors.Errorf("incomplete session key %q", key.String())
	}
	if w == nil {
		return nil, errors.New("nil workload")
	}

	m.runLock.Lock()
	defer m.runLock.Unlock()

	session := m.orchestrator.Run(ctx, key, w)
	// the outcome must reach the sink even when ctx was cancelled mid-session
	out, err := m.aggregator.Finalize(context.Background(), session)
	m.record(out)
	return out, err
}

func (m *Measurer) record(out *common.Outcome) {
	m.summaryLock.Lock()
	defer m.summaryLock.Unlock()
	if out.Status == common.OutcomeMeasured {
		m.summary.Measured++
		return
	}
	m.summary.Failed++
	m.summary.Failures = append(m.summary.Failures, out.Key)
}

func (m *Measurer) Summary() Summary {
	m.summaryLock.Lock()
	defer m.summaryLock.Unlock()
	s := m.summary
	s.Failures = append([]common.SessionKey(nil), m.summary.Failures...)
	s.Undelivered = append([]common.SessionKey(nil), m.summary.Undelivered...)
	return s
}

// Close flushes the sink and stops the metrics client. Outcomes an async
// sink could not deliver make Close fail and are listed in Summary. Safe to
// call twice.
func (m *Measurer) Close() error {
	m.closeOnce.Do(func() {
		m.runLock.Lock()
		defer m.runLock.Unlock()
		m.closeErr = m.sink.Close()
		if r, ok := m.sink.(interface{ Failed() []*common.Outcome }); ok {
			m.summaryLock.Lock()
			for _, o := range r.Failed() {
				m.summary.Undelivered = append(m.summary.Undelivered, o.Key)
			}
			m.summaryLock.Unlock()
		}
		if m.metrics != nil {
			m.closeErr = multierr.Append(m.closeErr, m.metrics.Close())
		}
	})
	return m.closeErr
}
