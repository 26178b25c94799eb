package sensors

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
	"github.com/greenbench/greenbench-sdk-go/measure/logger"
)

func TestSystemProbeComputesBusyPercent(t *testing.T) {
	ticks := []cpuTicks{{busy: 100, idle: 900}, {busy: 130, idle: 970}}
	i := 0
	p := &systemProbe{
		times: func(ctx context.Context) (cpuTicks, error) {
			t := ticks[i]
			if i < len(ticks)-1 {
				i++
			}
			return t, nil
		},
		memory: func(ctx context.Context) (float64, error) { return 2048, nil },
	}
	p.reset()

	samples, err := p.probe(context.Background())
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, common.KindCPUUsage, samples[0].Kind)
	assert.InDelta(t, 30.0, samples[0].Value, 1e-9)
	assert.Equal(t, common.KindRAMUsage, samples[1].Kind)
	assert.Equal(t, 2048.0, samples[1].Value)
}

func TestSystemProbeReadsRAPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energy_uj")
	require.NoError(t, ioutil.WriteFile(path, []byte("2500000\n"), 0o644))
	c, err := openRAPL(path)
	require.NoError(t, err)

	p := &systemProbe{
		times:  func(ctx context.Context) (cpuTicks, error) { return cpuTicks{busy: 1, idle: 1}, nil },
		memory: func(ctx context.Context) (float64, error) { return 1, nil },
		rapl:   c,
	}
	s := newSystemSensor(SystemConfig{}, &logger.NoopLogger{}, p)
	assert.Len(t, s.Series(), 3)

	samples, err := p.probe(context.Background())
	require.NoError(t, err)
	last := samples[len(samples)-1]
	assert.Equal(t, common.KindCPUEnergy, last.Kind)
	assert.Equal(t, 2.5, last.Value)
}

func TestOpenRAPLMissing(t *testing.T) {
	_, err := openRAPL(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestSystemResourceSamplerLive(t *testing.T) {
	s := NewSystemResourceSampler(SystemConfig{Interval: 10 * time.Millisecond, RAPLPath: "-"})
	require.True(t, s.Available())
	s.Start()
	time.Sleep(80 * time.Millisecond)
	w := s.Stop()

	assert.False(t, w.Degraded, w.Reason)
	assert.NotEmpty(t, w.Series(common.KindRAMUsage))
	for _, smp := range w.Series(common.KindCPUUsage) {
		assert.GreaterOrEqual(t, smp.Value, 0.0)
		assert.LessOrEqual(t, smp.Value, 100.0)
	}
}

func TestSystemEstimatesPowerWithoutRAPL(t *testing.T) {
	ticks := []cpuTicks{{busy: 100, idle: 900}, {busy: 150, idle: 950}}
	i := 0
	p := &systemProbe{
		times: func(ctx context.Context) (cpuTicks, error) {
			t := ticks[i]
			if i < len(ticks)-1 {
				i++
			}
			return t, nil
		},
		memory:   func(ctx context.Context) (float64, error) { return 8192, nil },
		estimate: &EstimateConfig{CPUTDPWatts: 80, RAMWattsPerGB: 0.375},
	}
	s := newSystemSensor(SystemConfig{}, &logger.NoopLogger{}, p)
	require.Len(t, s.Series(), 4)
	for _, spec := range s.Series()[2:] {
		assert.True(t, spec.Estimated)
		assert.Equal(t, common.RolePower, spec.Role)
	}

	p.reset()
	samples, err := p.probe(context.Background())
	require.NoError(t, err)
	got := map[common.MetricKind]float64{}
	for _, smp := range samples {
		got[smp.Kind] = smp.Value
	}
	assert.InDelta(t, 50.0, got[common.KindCPUUsage], 1e-9)
	assert.InDelta(t, 40.0, got[common.KindCPUPowerEstimate], 1e-9)
	assert.InDelta(t, 3.0, got[common.KindRAMPowerEstimate], 1e-9)
}

func TestSystemResourceSamplerPrefersRAPLOverEstimate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "energy_uj")
	require.NoError(t, ioutil.WriteFile(path, []byte("1000\n"), 0o644))

	s := NewSystemResourceSampler(SystemConfig{RAPLPath: path, Estimate: EstimateConfig{CPUTDPWatts: 85, RAMWattsPerGB: 0.375}})
	for _, spec := range s.Series() {
		assert.False(t, spec.Estimated, spec.Kind)
	}

	s = NewSystemResourceSampler(SystemConfig{RAPLPath: "-", Estimate: EstimateConfig{CPUTDPWatts: 85}})
	kinds := []common.MetricKind{}
	for _, spec := range s.Series() {
		kinds = append(kinds, spec.Kind)
	}
	assert.Equal(t, []common.MetricKind{common.KindCPUUsage, common.KindRAMUsage, common.KindCPUPowerEstimate}, kinds)
}
