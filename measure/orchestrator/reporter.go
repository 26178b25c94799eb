package orchestrator

// Reporter receives self-metrics. *metrics.MetricsClient satisfies it.
type Reporter interface {
	EmitCounter(name string, value float64, tags map[string]string) error
	EmitTimer(name string, value float64, tags map[string]string) error
	EmitGauge(name string, value float64, tags map[string]string) error
}

type NoopReporter struct{}

func (NoopReporter) EmitCounter(string, float64, map[string]string) error { return nil }
func (NoopReporter) EmitTimer(string, float64, map[string]string) error   { return nil }
func (NoopReporter) EmitGauge(string, float64, map[string]string) error   { return nil }

const (
	metricAttempt         = "repetition.attempt"
	metricRetry           = "repetition.retry"
	metricRepetition      = "repetition.status"
	metricRepetitionTimer = "repetition.duration_ms"
	metricSensorDegraded  = "sensor.degraded"
	metricCalibration     = "calibration.duration_ms"
)
