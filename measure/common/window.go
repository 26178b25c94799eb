package common

import "time"

// Window is the closed, read-only output of one sensor for one sampling
// window. It is produced only after the sensor's loop has exited.
type Window struct {
	Sensor    string
	Specs     []SeriesSpec
	Samples   []Sample
	StartedAt time.Time
	StoppedAt time.Time
	Degraded  bool
	Reason    string
}

func (w Window) Series(kind MetricKind) []Sample {
	var out []Sample
	for _, s := range w.Samples {
		if s.Kind == kind {
			out = append(out, s)
		}
	}
	return out
}

// WindowInfo is the per-sensor diagnostic kept on a repetition record.
type WindowInfo struct {
	Sensor    string    `json:"sensor"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	Samples   int       `json:"samples"`
	Degraded  bool      `json:"degraded"`
	Reason    string    `json:"reason,omitempty"`
}

func (w Window) Info() WindowInfo {
	return WindowInfo{
		Sensor:    w.Sensor,
		StartedAt: w.StartedAt,
		StoppedAt: w.StoppedAt,
		Samples:   len(w.Samples),
		Degraded:  w.Degraded,
		Reason:    w.Reason,
	}
}
