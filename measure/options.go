package measure

import (
	"github.com/greenbench/greenbench-sdk-go/measure/logger"
	"github.com/greenbench/greenbench-sdk-go/measure/orchestrator"
	"github.com/greenbench/greenbench-sdk-go/measure/sensors"
	"github.com/greenbench/greenbench-sdk-go/measure/sink"
)

type options struct {
	logger       logger.Logger
	sink         sink.Sink
	sensors      []sensors.Sensor
	reporter     orchestrator.Reporter
	onTransition func(from, to orchestrator.State)
	smiRunner    sensors.CommandRunner
}

type Option func(*options)

// WithLogger sets the logger shared by every component.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithSink replaces the sink built from Config.Sink.
func WithSink(s sink.Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithSensors replaces the detected sensor set. Order is start order.
func WithSensors(s ...sensors.Sensor) Option {
	return func(o *options) {
		o.sensors = s
	}
}

// WithReporter replaces the metrics client built from Config.Metrics.
func WithReporter(r orchestrator.Reporter) Option {
	return func(o *options) {
		o.reporter = r
	}
}

func WithStateListener(fn func(from, to orchestrator.State)) Option {
	return func(o *options) {
		o.onTransition = fn
	}
}

// WithAcceleratorRunner sets how nvidia-smi is invoked.
func WithAcceleratorRunner(r sensors.CommandRunner) Option {
	return func(o *options) {
		o.smiRunner = r
	}
}
