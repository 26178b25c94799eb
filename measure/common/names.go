package common

const (
	UnitPercent      = "percent"
	UnitMegabytes    = "mb"
	UnitJoules       = "joules"
	UnitWatts        = "watts"
	UnitCelsius      = "celsius"
	UnitGrams        = "grams_co2e"
	UnitWorkPerJoule = "work_per_joule"
	UnitSeconds      = "seconds"
)

const (
	SourceCPU    = "cpu"
	SourceGPU    = "gpu"
	SourceRAM    = "ram"
	SourceSystem = "system"
)

// Derived metrics are recomputed from energies, never subtracted directly.
const (
	TotalEnergyName      = "total_energy_joules"
	TotalPowerName       = "power_watts"
	CarbonName           = "carbon_grams"
	CarbonSystemName     = "carbon_grams_system"
	EnergyEfficiencyName = "energy_efficiency"
)

// DurationName is the workload wall time, aggregated over ok repetitions.
const DurationName = "duration_seconds"

// ComponentSources are summed into total_energy_joules. The wall meter
// ("system") already includes them and is reported on its own. RAM only
// appears as an estimate.
var ComponentSources = []string{SourceCPU, SourceGPU, SourceRAM}

func MeanPercentName(kind MetricKind) string { return string(kind) + "_mean_percent" }
func PeakPercentName(kind MetricKind) string { return string(kind) + "_peak_percent" }
func MeanMBName(kind MetricKind) string      { return string(kind) + "_mean_mb" }
func PeakMBName(kind MetricKind) string      { return string(kind) + "_peak_mb" }
func MeanCelsiusName(kind MetricKind) string { return string(kind) + "_mean_celsius" }
func PeakCelsiusName(kind MetricKind) string { return string(kind) + "_peak_celsius" }

func EnergyName(source string) string    { return source + "_energy_joules" }
func MeanPowerName(source string) string { return source + "_power_mean_watts" }
func PeakPowerName(source string) string { return source + "_power_peak_watts" }

func IsDerived(name string) bool {
	switch name {
	case TotalEnergyName, TotalPowerName, CarbonName, CarbonSystemName, EnergyEfficiencyName:
		return true
	}
	return false
}

// EnergySource reports the source of a per-source energy metric name.
func EnergySource(name string) (string, bool) {
	const suffix = "_energy_joules"
	if IsDerived(name) || len(name) <= len(suffix) || name[len(name)-len(suffix):] != suffix {
		return "", false
	}
	return name[:len(name)-len(suffix)], true
}
