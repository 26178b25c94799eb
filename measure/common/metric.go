package common

import (
	"encoding/json"
	"sort"
)

// Metric is one named value. An unavailable metric keeps Value at zero but
// is encoded as null, so a missing reading never looks like a measured zero.
type Metric struct {
	Value     float64
	Unit      string
	Available bool
	Partial   bool
}

type metricJSON struct {
	Value     *float64 `json:"value"`
	Unit      string   `json:"unit"`
	Available bool     `json:"available"`
	Partial   bool     `json:"partial"`
}

func (m Metric) MarshalJSON() ([]byte, error) {
	out := metricJSON{Unit: m.Unit, Available: m.Available, Partial: m.Partial}
	if m.Available {
		v := m.Value
		out.Value = &v
	}
	return json.Marshal(out)
}

func (m *Metric) UnmarshalJSON(data []byte) error {
	var in metricJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*m = Metric{Unit: in.Unit, Available: in.Available && in.Value != nil, Partial: in.Partial}
	if m.Available {
		m.Value = *in.Value
	}
	return nil
}

type MetricSet map[string]Metric

func NewMetricSet() MetricSet {
	return make(MetricSet)
}

func (s MetricSet) Set(name string, value float64, unit string) {
	s[name] = Metric{Value: value, Unit: unit, Available: true}
}

func (s MetricSet) SetPartial(name string, value float64, unit string) {
	s[name] = Metric{Value: value, Unit: unit, Available: true, Partial: true}
}

func (s MetricSet) SetUnavailable(name string, unit string) {
	s[name] = Metric{Unit: unit}
}

// Value returns the metric value only when it is available.
func (s MetricSet) Value(name string) (float64, bool) {
	m, ok := s[name]
	if !ok || !m.Available {
		return 0, false
	}
	return m.Value, true
}

// Merge copies other into s and returns the names present in both.
func (s MetricSet) Merge(other MetricSet) []string {
	var collisions []string
	for name, m := range other {
		if _, ok := s[name]; ok {
			collisions = append(collisions, name)
		}
		s[name] = m
	}
	sort.Strings(collisions)
	return collisions
}

func (s MetricSet) Clone() MetricSet {
	out := make(MetricSet, len(s))
	for name, m := range s {
		out[name] = m
	}
	return out
}

func (s MetricSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s MetricSet) Unavailable() []string {
	var names []string
	for name, m := range s {
		if !m.Available {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// MetricStats summarizes one metric across the ok repetitions of a session.
type MetricStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Count  int     `json:"count"`
}
