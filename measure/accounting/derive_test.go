package accounting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

func TestDeriveTotals(t *testing.T) {
	set := common.NewMetricSet()
	set.Set("cpu_energy_joules", 1.2e6, common.UnitJoules)
	set.Set("gpu_energy_joules", 2.4e6, common.UnitJoules)
	set.Set("system_energy_joules", 7.2e6, common.UnitJoules)

	out := Derive(set, DeriveInput{Duration: 100 * time.Second, UsefulWork: 36, GridIntensity: 400})
	assert.Equal(t, 3.6e6, value(t, out, common.TotalEnergyName))
	assert.InDelta(t, 400.0, value(t, out, common.CarbonName), 1e-9)
	assert.InDelta(t, 800.0, value(t, out, common.CarbonSystemName), 1e-9)
	assert.InDelta(t, 36000.0, value(t, out, common.TotalPowerName), 1e-9)
	assert.InDelta(t, 1e-5, value(t, out, common.EnergyEfficiencyName), 1e-12)
	assert.False(t, out[common.TotalEnergyName].Partial)
	_, inInput := set[common.TotalEnergyName]
	assert.False(t, inInput, "input is not mutated")
}

func TestDeriveTotalPartialWhenComponentUnavailable(t *testing.T) {
	set := common.NewMetricSet()
	set.Set("cpu_energy_joules", 100, common.UnitJoules)
	set.SetUnavailable("gpu_energy_joules", common.UnitJoules)

	out := Derive(set, DeriveInput{Duration: time.Second, UsefulWork: 1, GridIntensity: 100})
	assert.Equal(t, 100.0, value(t, out, common.TotalEnergyName))
	assert.True(t, out[common.TotalEnergyName].Partial)
	assert.True(t, out[common.CarbonName].Partial)
	_, hasSystem := out[common.CarbonSystemName]
	assert.False(t, hasSystem, "no wall meter declared")
}

func TestDeriveNoComponentEnergy(t *testing.T) {
	set := common.NewMetricSet()
	set.Set("cpu_usage_mean_percent", 10, common.UnitPercent)
	set.Set("system_energy_joules", 360, common.UnitJoules)

	out := Derive(set, DeriveInput{Duration: time.Second, UsefulWork: 1, GridIntensity: 100})
	_, ok := out.Value(common.TotalEnergyName)
	assert.False(t, ok)
	_, ok = out.Value(common.CarbonName)
	assert.False(t, ok)
	assert.InDelta(t, 0.01, value(t, out, common.CarbonSystemName), 1e-12)
}

func TestSubtractBaseline(t *testing.T) {
	raw := common.NewMetricSet()
	raw.Set("cpu_energy_joules", 100, common.UnitJoules)
	raw.Set("gpu_energy_joules", 10, common.UnitJoules)
	raw.Set("cpu_usage_mean_percent", 50, common.UnitPercent)
	raw.Set("gpu_temperature_peak_celsius", 70, common.UnitCelsius)
	raw.Set("ram_usage_peak_mb", 4000, common.UnitMegabytes)
	raw.Set(common.TotalEnergyName, 110, common.UnitJoules)

	base := common.NewMetricSet()
	base.Set("cpu_power_mean_watts", 5, common.UnitWatts)
	base.Set("gpu_power_mean_watts", 3, common.UnitWatts)
	base.Set("cpu_usage_mean_percent", 10, common.UnitPercent)
	base.Set("gpu_temperature_peak_celsius", 40, common.UnitCelsius)
	base.SetUnavailable("ram_usage_peak_mb", common.UnitMegabytes)

	out := Subtract(raw, base, DeriveInput{Duration: 10 * time.Second, UsefulWork: 1, GridIntensity: 100})
	assert.Equal(t, 50.0, value(t, out, "cpu_energy_joules"))
	assert.Equal(t, 0.0, value(t, out, "gpu_energy_joules"), "clamped at zero")
	assert.Equal(t, 40.0, value(t, out, "cpu_usage_mean_percent"))
	assert.Equal(t, 70.0, value(t, out, "gpu_temperature_peak_celsius"))
	assert.Equal(t, 4000.0, value(t, out, "ram_usage_peak_mb"), "unavailable baseline passes through")
	assert.Equal(t, 50.0, value(t, out, common.TotalEnergyName), "derived totals are recomputed")
}

func TestSubtractNeverNegative(t *testing.T) {
	raw := common.NewMetricSet()
	raw.Set("system_energy_joules", 10, common.UnitJoules)
	raw.Set("system_power_mean_watts", 10, common.UnitWatts)
	base := common.NewMetricSet()
	base.Set("system_power_mean_watts", 500, common.UnitWatts)

	out := Subtract(raw, base, DeriveInput{Duration: time.Second, GridIntensity: 1})
	for _, name := range out.Names() {
		if v, ok := out.Value(name); ok {
			assert.GreaterOrEqual(t, v, 0.0, name)
		}
	}
}
