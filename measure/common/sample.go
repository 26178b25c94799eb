package common

import "time"

type MetricKind string

const (
	KindCPUUsage       MetricKind = "cpu_usage"
	KindRAMUsage       MetricKind = "ram_usage"
	KindCPUEnergy      MetricKind = "cpu_energy" // cumulative counter, joules
	KindGPUUsage       MetricKind = "gpu_usage"
	KindGPUMemory      MetricKind = "gpu_memory"
	KindGPUMemoryShare MetricKind = "gpu_memory_share" // used/total, percent
	KindGPUPower       MetricKind = "gpu_power"
	KindGPUTemperature MetricKind = "gpu_temperature"
	KindSystemPower    MetricKind = "system_power"

	// estimated draw when no hardware counter is readable
	KindCPUPowerEstimate MetricKind = "cpu_power_estimate"
	KindRAMPowerEstimate MetricKind = "ram_power_estimate"
)

// SeriesRole decides how a series is turned into metrics.
type SeriesRole int

const (
	RoleUtilization SeriesRole = iota
	RoleMemory
	RolePower
	RoleEnergyCounter
	RoleTemperature
)

func (r SeriesRole) String() string {
	switch r {
	case RoleUtilization:
		return "utilization"
	case RoleMemory:
		return "memory"
	case RolePower:
		return "power"
	case RoleEnergyCounter:
		return "energy_counter"
	case RoleTemperature:
		return "temperature"
	}
	return "unknown"
}

// SeriesSpec declares one series a sensor produces. Source is the energy
// source prefix ("cpu", "gpu", "ram", "system") and is only meaningful for
// the power and energy counter roles. Metrics of an Estimated series are
// reported partial. Alias, when set, replaces Kind as the stem of the gauge
// metric names.
type SeriesSpec struct {
	Kind      MetricKind
	Role      SeriesRole
	Source    string
	Estimated bool
	Alias     MetricKind
}

// Stem is the prefix of the gauge metrics this series produces.
func (s SeriesSpec) Stem() MetricKind {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Kind
}

type Sample struct {
	Timestamp time.Time
	Value     float64
	Kind      MetricKind
}
