package common

import "errors"

var (
	// ErrSensorUnavailable: the sensor was not detected at construction.
	ErrSensorUnavailable = errors.New("sensor unavailable")
	// ErrSensorDegraded: the sensor stopped sampling mid-window.
	ErrSensorDegraded = errors.New("sensor degraded")
	// ErrWorkloadFailure: the workload failed or timed out.
	ErrWorkloadFailure = errors.New("workload failure")
	// ErrClockAnomaly: a non-positive elapsed duration was reported.
	ErrClockAnomaly = errors.New("clock anomaly")
	// ErrSessionUnmeasurable: no sensor is available.
	ErrSessionUnmeasurable = errors.New("session unmeasurable: no sensor available")
)
