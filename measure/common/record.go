package common

import "time"

type RepetitionStatus string

const (
	StatusOK      RepetitionStatus = "ok"
	StatusFailed  RepetitionStatus = "failed"
	StatusPartial RepetitionStatus = "partial"
)

type BaselineProfile struct {
	Metrics    MetricSet     `json:"metrics"`
	Duration   time.Duration `json:"duration_ns"`
	CapturedAt time.Time     `json:"captured_at"`
	Windows    []WindowInfo  `json:"windows"`
}

// RepetitionRecord is the outcome of one repetition slot. Raw and
// Subtracted are nil for failed slots: failed attempts leave no data.
type RepetitionRecord struct {
	Index         int              `json:"index"`
	Attempts      int              `json:"attempts"`
	Status        RepetitionStatus `json:"status"`
	Duration      time.Duration    `json:"duration_ns"`
	WorkloadStart time.Time        `json:"workload_start"`
	WorkloadEnd   time.Time        `json:"workload_end"`
	Raw           MetricSet        `json:"raw,omitempty"`
	Subtracted    MetricSet        `json:"subtracted,omitempty"`
	Windows       []WindowInfo     `json:"windows,omitempty"`
	Diagnostic    string           `json:"diagnostic,omitempty"`
}
