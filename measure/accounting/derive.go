package accounting

import (
	"math"
	"strings"
	"time"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

const joulesPerKWh = 3.6e6

type DeriveInput struct {
	Duration time.Duration
	// UsefulWork is the workload's unit of work, e.g. passed tests.
	UsefulWork    float64
	GridIntensity float64 // gCO2e per kWh
}

// Derive returns a copy of set with the derived totals recomputed.
func Derive(set common.MetricSet, in DeriveInput) common.MetricSet {
	out := set.Clone()

	total, declared, available, partial := 0.0, false, false, false
	for _, src := range common.ComponentSources {
		m, ok := set[common.EnergyName(src)]
		if !ok {
			continue
		}
		declared = true
		if !m.Available {
			partial = true
			continue
		}
		available = true
		total += m.Value
		partial = partial || m.Partial
	}

	if !declared || !available || in.Duration <= 0 {
		out.SetUnavailable(common.TotalEnergyName, common.UnitJoules)
		out.SetUnavailable(common.TotalPowerName, common.UnitWatts)
		out.SetUnavailable(common.CarbonName, common.UnitGrams)
		out.SetUnavailable(common.EnergyEfficiencyName, common.UnitWorkPerJoule)
	} else {
		put := out.Set
		if partial {
			put = out.SetPartial
		}
		put(common.TotalEnergyName, total, common.UnitJoules)
		put(common.TotalPowerName, total/in.Duration.Seconds(), common.UnitWatts)
		put(common.CarbonName, Carbon(total, in.GridIntensity), common.UnitGrams)
		if total > 0 {
			put(common.EnergyEfficiencyName, in.UsefulWork/total, common.UnitWorkPerJoule)
		} else {
			out.SetUnavailable(common.EnergyEfficiencyName, common.UnitWorkPerJoule)
		}
	}

	if m, ok := set[common.EnergyName(common.SourceSystem)]; ok {
		if m.Available && in.Duration > 0 {
			out[common.CarbonSystemName] = common.Metric{
				Value:     Carbon(m.Value, in.GridIntensity),
				Unit:      common.UnitGrams,
				Available: true,
				Partial:   m.Partial,
			}
		} else {
			out.SetUnavailable(common.CarbonSystemName, common.UnitGrams)
		}
	}
	return out
}

// Carbon converts joules to grams of CO2e.
func Carbon(joules, gridIntensity float64) float64 {
	return joules / joulesPerKWh * gridIntensity
}

// Subtract removes the idle baseline from a raw repetition set and
// re-derives the totals. Energy is corrected by the baseline mean power
// over the repetition duration; other metrics are subtracted one to one.
// Temperatures stay absolute. A metric missing or unavailable in the
// baseline passes through unchanged. Results never go below zero.
func Subtract(raw, baseline common.MetricSet, in DeriveInput) common.MetricSet {
	out := common.NewMetricSet()
	for name, m := range raw {
		if common.IsDerived(name) {
			continue
		}
		if !m.Available || baseline == nil || strings.HasSuffix(name, "_celsius") {
			out[name] = m
			continue
		}
		var base float64
		var ok bool
		if src, isEnergy := common.EnergySource(name); isEnergy {
			var power float64
			if power, ok = baseline.Value(common.MeanPowerName(src)); ok {
				base = power * in.Duration.Seconds()
			}
		} else {
			base, ok = baseline.Value(name)
		}
		if !ok {
			out[name] = m
			continue
		}
		m.Value = math.Max(m.Value-base, 0)
		out[name] = m
	}
	return Derive(out, in)
}
