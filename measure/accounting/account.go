// Package accounting turns closed sensor windows into metric sets. Every
// function here is pure.
package accounting

import (
	"math"
	"time"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

type Report struct {
	Metrics common.MetricSet
	// CounterWrapped is set when a cumulative energy counter went backwards.
	CounterWrapped bool
}

// Account computes the metrics of one sensor window. duration is the
// workload duration the energy figures are normalized against.
func Account(w common.Window, duration time.Duration) Report {
	rep := Report{Metrics: common.NewMetricSet()}
	if w.Degraded {
		rep.Metrics = Unavailable(w.Specs)
		return rep
	}
	for _, spec := range w.Specs {
		series := w.Series(spec.Kind)
		switch spec.Role {
		case common.RoleUtilization:
			accountGauge(rep.Metrics, series, common.MeanPercentName(spec.Stem()), common.PeakPercentName(spec.Stem()), common.UnitPercent)
		case common.RoleMemory:
			accountGauge(rep.Metrics, series, common.MeanMBName(spec.Stem()), common.PeakMBName(spec.Stem()), common.UnitMegabytes)
		case common.RoleTemperature:
			accountGauge(rep.Metrics, series, common.MeanCelsiusName(spec.Stem()), common.PeakCelsiusName(spec.Stem()), common.UnitCelsius)
		case common.RolePower:
			accountPower(rep.Metrics, series, spec.Source, duration, spec.Estimated)
		case common.RoleEnergyCounter:
			if accountCounter(rep.Metrics, series, spec.Source, duration) {
				rep.CounterWrapped = true
			}
		}
	}
	return rep
}

// Unavailable returns every metric the specs would produce, all unavailable.
func Unavailable(specs []common.SeriesSpec) common.MetricSet {
	set := common.NewMetricSet()
	for _, spec := range specs {
		switch spec.Role {
		case common.RoleUtilization:
			set.SetUnavailable(common.MeanPercentName(spec.Stem()), common.UnitPercent)
			set.SetUnavailable(common.PeakPercentName(spec.Stem()), common.UnitPercent)
		case common.RoleMemory:
			set.SetUnavailable(common.MeanMBName(spec.Stem()), common.UnitMegabytes)
			set.SetUnavailable(common.PeakMBName(spec.Stem()), common.UnitMegabytes)
		case common.RoleTemperature:
			set.SetUnavailable(common.MeanCelsiusName(spec.Stem()), common.UnitCelsius)
			set.SetUnavailable(common.PeakCelsiusName(spec.Stem()), common.UnitCelsius)
		case common.RolePower:
			set.SetUnavailable(common.EnergyName(spec.Source), common.UnitJoules)
			set.SetUnavailable(common.MeanPowerName(spec.Source), common.UnitWatts)
			set.SetUnavailable(common.PeakPowerName(spec.Source), common.UnitWatts)
		case common.RoleEnergyCounter:
			set.SetUnavailable(common.EnergyName(spec.Source), common.UnitJoules)
			set.SetUnavailable(common.MeanPowerName(spec.Source), common.UnitWatts)
		}
	}
	return set
}

func accountGauge(set common.MetricSet, series []common.Sample, meanName, peakName, unit string) {
	if len(series) == 0 {
		set.SetUnavailable(meanName, unit)
		set.SetUnavailable(peakName, unit)
		return
	}
	sum, peak := 0.0, math.Inf(-1)
	for _, s := range series {
		sum += s.Value
		peak = math.Max(peak, s.Value)
	}
	set.Set(meanName, sum/float64(len(series)), unit)
	set.Set(peakName, peak, unit)
}

// accountPower integrates a watt series. Estimated series yield partial
// metrics.
func accountPower(set common.MetricSet, series []common.Sample, source string, duration time.Duration, estimated bool) {
	energyName, meanName, peakName := common.EnergyName(source), common.MeanPowerName(source), common.PeakPowerName(source)
	if len(series) == 0 || duration <= 0 {
		set.SetUnavailable(energyName, common.UnitJoules)
		set.SetUnavailable(meanName, common.UnitWatts)
		set.SetUnavailable(peakName, common.UnitWatts)
		return
	}
	peak := math.Inf(-1)
	for _, s := range series {
		peak = math.Max(peak, s.Value)
	}
	put := set.Set
	if estimated {
		put = set.SetPartial
	}
	energy := Integrate(series, duration)
	put(energyName, energy, common.UnitJoules)
	put(meanName, energy/duration.Seconds(), common.UnitWatts)
	put(peakName, peak, common.UnitWatts)
}

// Integrate returns joules from a watt series: trapezoidal over the sample
// timestamps with two or more samples, instant power times duration with one.
func Integrate(series []common.Sample, duration time.Duration) float64 {
	switch len(series) {
	case 0:
		return 0
	case 1:
		return math.Max(series[0].Value, 0) * duration.Seconds()
	}
	energy := 0.0
	for i := 1; i < len(series); i++ {
		dt := series[i].Timestamp.Sub(series[i-1].Timestamp).Seconds()
		if dt <= 0 {
			continue
		}
		energy += (series[i].Value + series[i-1].Value) / 2 * dt
	}
	return math.Max(energy, 0)
}

// accountCounter reports whether the counter wrapped.
func accountCounter(set common.MetricSet, series []common.Sample, source string, duration time.Duration) bool {
	energyName, meanName := common.EnergyName(source), common.MeanPowerName(source)
	if len(series) < 2 || duration <= 0 {
		set.SetUnavailable(energyName, common.UnitJoules)
		set.SetUnavailable(meanName, common.UnitWatts)
		return false
	}
	for i := 1; i < len(series); i++ {
		if series[i].Value < series[i-1].Value {
			set.SetUnavailable(energyName, common.UnitJoules)
			set.SetUnavailable(meanName, common.UnitWatts)
			return true
		}
	}
	energy := series[len(series)-1].Value - series[0].Value
	set.Set(energyName, energy, common.UnitJoules)
	set.Set(meanName, energy/duration.Seconds(), common.UnitWatts)
	return false
}
