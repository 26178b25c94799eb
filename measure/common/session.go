package common

import (
	"fmt"
	"time"
)

// SessionKey identifies one measured test of one instance variant.
type SessionKey struct {
	InstanceID string `json:"instance_id"`
	VariantID  string `json:"variant_id"`
	TestName   string `json:"test_name"`
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.InstanceID, k.VariantID, k.TestName)
}

// Session is the aggregate root of one measurement: calibration plus every
// repetition of a single test.
type Session struct {
	ID         string
	Key        SessionKey
	StartedAt  time.Time
	FinishedAt time.Time
	Baseline   *BaselineProfile
	Records    []RepetitionRecord
	Aggregate  MetricSet
	// Err is set when the session could not be measured at all.
	Err error
}

func (s *Session) Count(status RepetitionStatus) int {
	n := 0
	for _, r := range s.Records {
		if r.Status == status {
			n++
		}
	}
	return n
}

type OutcomeStatus string

const (
	OutcomeMeasured OutcomeStatus = "measured"
	OutcomeFailed   OutcomeStatus = "failed"
)

// Outcome is what a sink receives for one session, measured or not.
type Outcome struct {
	SessionID     string                 `json:"session_id"`
	Key           SessionKey             `json:"key"`
	Status        OutcomeStatus          `json:"status"`
	FailureReason string                 `json:"failure_reason,omitempty"`
	Metrics       MetricSet              `json:"metrics"`
	RawMetrics    MetricSet              `json:"raw_metrics"`
	Stats         map[string]MetricStats `json:"stats,omitempty"`
	Baseline      *BaselineProfile       `json:"baseline,omitempty"`
	Repetitions   []RepetitionRecord     `json:"repetitions"`
	OKRepetitions int                    `json:"ok_repetitions"`
	GridIntensity float64                `json:"grid_intensity_g_per_kwh"`
	StartedAt     time.Time              `json:"started_at"`
	FinishedAt    time.Time              `json:"finished_at"`
}
