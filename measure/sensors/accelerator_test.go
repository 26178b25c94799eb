package sensors

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbench/greenbench-sdk-go/measure/accounting"
	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

func fakeSMI(devices string, line string, calls *int64) CommandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if len(args) > 0 && args[0] == "--query-gpu=index" {
			return []byte(devices), nil
		}
		if calls != nil {
			atomic.AddInt64(calls, 1)
		}
		if !strings.HasPrefix(args[0], "--query-gpu=utilization.gpu") {
			return nil, errors.New("unexpected args")
		}
		return []byte(line), nil
	}
}

func TestParseSMILine(t *testing.T) {
	samples, err := parseSMILine("87, 10240, 40960, 245.31, 71\n")
	require.NoError(t, err)
	require.Len(t, samples, 5)
	assert.Equal(t, common.KindGPUUsage, samples[0].Kind)
	assert.Equal(t, 87.0, samples[0].Value)
	assert.Equal(t, common.KindGPUMemory, samples[1].Kind)
	assert.Equal(t, 10240.0, samples[1].Value)
	assert.Equal(t, common.KindGPUPower, samples[2].Kind)
	assert.Equal(t, 245.31, samples[2].Value)
	assert.Equal(t, common.KindGPUTemperature, samples[3].Kind)
	assert.Equal(t, common.KindGPUMemoryShare, samples[4].Kind)
	assert.Equal(t, 25.0, samples[4].Value)

	samples, err = parseSMILine("12, 300, 1200, [N/A], 40")
	require.NoError(t, err)
	assert.Len(t, samples, 4)

	samples, err = parseSMILine("12, 300, [N/A], 50, 40")
	require.NoError(t, err)
	require.Len(t, samples, 4)
	for _, s := range samples {
		assert.NotEqual(t, common.KindGPUMemoryShare, s.Kind)
	}

	_, err = parseSMILine("garbage")
	assert.Error(t, err)
	_, err = parseSMILine("87, 10240, 245.31, 71")
	assert.Error(t, err)
	_, err = parseSMILine("[N/A], [N/A], [N/A], [N/A], [N/A]")
	assert.Error(t, err)
}

func TestAcceleratorMemoryShareMetrics(t *testing.T) {
	var calls int64
	s := NewAcceleratorSampler(AcceleratorConfig{
		Interval: 5 * time.Millisecond,
		Runner:   fakeSMI("0\n", "50, 2000, 8000, 100, 60", &calls),
	})
	require.True(t, s.Available())
	s.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt64(&calls) >= 2 }, time.Second, time.Millisecond)
	w := s.Stop()

	rep := accounting.Account(w, time.Second)
	mean, ok := rep.Metrics.Value("gpu_memory_mean_percent")
	require.True(t, ok)
	assert.InDelta(t, 25.0, mean, 1e-9)
	peak, ok := rep.Metrics.Value("gpu_memory_peak_percent")
	require.True(t, ok)
	assert.InDelta(t, 25.0, peak, 1e-9)
	_, ok = rep.Metrics.Value("gpu_memory_mean_mb")
	assert.True(t, ok)
}

func TestAcceleratorSamplerSamples(t *testing.T) {
	var calls int64
	s := NewAcceleratorSampler(AcceleratorConfig{
		Interval:    5 * time.Millisecond,
		Runner:      fakeSMI("0\n1\n", "50, 1000, 4000, 100, 60", &calls),
		DeviceIndex: 1,
	})
	require.True(t, s.Available())
	s.Start()
	require.Eventually(t, func() bool { return atomic.LoadInt64(&calls) >= 2 }, time.Second, time.Millisecond)
	w := s.Stop()
	assert.False(t, w.Degraded)
	assert.NotEmpty(t, w.Series(common.KindGPUPower))
}

func TestAcceleratorSamplerDisabled(t *testing.T) {
	off := false
	s := NewAcceleratorSampler(AcceleratorConfig{Enabled: &off, Runner: fakeSMI("0", "", nil)})
	assert.False(t, s.Available())
	assert.Equal(t, "disabled by configuration", s.UnavailableReason())
	assert.Len(t, s.Series(), 5)
}

func TestAcceleratorSamplerNoDevice(t *testing.T) {
	s := NewAcceleratorSampler(AcceleratorConfig{Runner: fakeSMI("", "", nil), DeviceIndex: 0})
	assert.False(t, s.Available())

	s = NewAcceleratorSampler(AcceleratorConfig{Binary: "definitely-not-a-real-smi-binary"})
	assert.False(t, s.Available())
}

func TestAcceleratorSamplerDegradesOnQueryError(t *testing.T) {
	runner := func(ctx context.Context, name string, args ...string) ([]byte, error) {
		if args[0] == "--query-gpu=index" {
			return []byte("0"), nil
		}
		return nil, errors.New("driver gone")
	}
	s := NewAcceleratorSampler(AcceleratorConfig{Interval: time.Millisecond, Runner: runner})
	s.Start()
	time.Sleep(10 * time.Millisecond)
	w := s.Stop()
	assert.True(t, w.Degraded)
	assert.Contains(t, w.Reason, "driver gone")
}
