package sensors

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
	"github.com/greenbench/greenbench-sdk-go/measure/logger"
)

const SystemSensorName = "system"

const bytesPerMB = 1024 * 1024

type SystemConfig struct {
	Interval time.Duration
	Logger   logger.Logger
	// RAPLPath overrides the package energy counter location; "-" disables it.
	RAPLPath string
	// Estimate is used only when the RAPL counter cannot be read.
	Estimate EstimateConfig
}

// EstimateConfig models CPU draw as TDP scaled by utilization and RAM draw
// as a fixed cost per used gigabyte. A zero CPUTDPWatts disables it.
type EstimateConfig struct {
	CPUTDPWatts   float64
	RAMWattsPerGB float64
}

// cpuTicks is a snapshot of aggregated CPU time, split into busy and idle.
type cpuTicks struct {
	busy, idle float64
}

func (t cpuTicks) total() float64 {
	return t.busy + t.idle
}

type systemProbe struct {
	times  func(ctx context.Context) (cpuTicks, error)
	memory func(ctx context.Context) (float64, error)
	rapl   *raplCounter
	// estimate is non-nil only without rapl
	estimate *EstimateConfig

	mu   sync.Mutex
	prev cpuTicks
	ok   bool
}

// NewSystemResourceSampler samples system-wide CPU utilization and used RAM
// through gopsutil, plus the RAPL package energy counter when it is readable.
func NewSystemResourceSampler(cfg SystemConfig) *ProbeSensor {
	p := &systemProbe{
		times:  readCPUTicks,
		memory: readUsedMemoryMB,
	}
	log := logger.OrNoop(cfg.Logger)
	if cfg.RAPLPath != "-" {
		if c, err := openRAPL(cfg.RAPLPath); err == nil {
			p.rapl = c
		} else {
			log.Debug("[NewSystemResourceSampler] rapl counter not readable. err=%v", err)
		}
	}
	if p.rapl == nil && cfg.Estimate.CPUTDPWatts > 0 {
		est := cfg.Estimate
		p.estimate = &est
		log.Info("[NewSystemResourceSampler] cpu energy estimated from utilization. tdp=%vW ram=%vW/GB", est.CPUTDPWatts, est.RAMWattsPerGB)
	}
	return newSystemSensor(cfg, log, p)
}

func newSystemSensor(cfg SystemConfig, log logger.Logger, p *systemProbe) *ProbeSensor {
	specs := []common.SeriesSpec{
		{Kind: common.KindCPUUsage, Role: common.RoleUtilization},
		{Kind: common.KindRAMUsage, Role: common.RoleMemory},
	}
	if p.rapl != nil {
		specs = append(specs, common.SeriesSpec{Kind: common.KindCPUEnergy, Role: common.RoleEnergyCounter, Source: common.SourceCPU})
	}
	if p.estimate != nil {
		specs = append(specs, common.SeriesSpec{Kind: common.KindCPUPowerEstimate, Role: common.RolePower, Source: common.SourceCPU, Estimated: true})
		if p.estimate.RAMWattsPerGB > 0 {
			specs = append(specs, common.SeriesSpec{Kind: common.KindRAMPowerEstimate, Role: common.RolePower, Source: common.SourceRAM, Estimated: true})
		}
	}
	return NewProbeSensor(ProbeConfig{
		Name:     SystemSensorName,
		Specs:    specs,
		Interval: cfg.Interval,
		Logger:   log,
		OnStart:  p.reset,
	}, p.probe)
}

func (p *systemProbe) reset() {
	t, err := p.times(context.Background())
	p.mu.Lock()
	defer p.mu.Unlock()
	p.prev, p.ok = t, err == nil
}

func (p *systemProbe) probe(ctx context.Context) ([]common.Sample, error) {
	var out []common.Sample

	t, err := p.times(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	prev, ok := p.prev, p.ok
	p.prev, p.ok = t, true
	p.mu.Unlock()
	if ok {
		if dt := t.total() - prev.total(); dt > 0 {
			busy := clampPercent((t.busy - prev.busy) / dt * 100)
			out = append(out, common.Sample{Kind: common.KindCPUUsage, Value: busy})
			if p.estimate != nil {
				out = append(out, common.Sample{Kind: common.KindCPUPowerEstimate, Value: p.estimate.CPUTDPWatts * busy / 100})
			}
		}
	}

	used, err := p.memory(ctx)
	if err != nil {
		return nil, err
	}
	out = append(out, common.Sample{Kind: common.KindRAMUsage, Value: used})
	if p.estimate != nil && p.estimate.RAMWattsPerGB > 0 {
		out = append(out, common.Sample{Kind: common.KindRAMPowerEstimate, Value: used / 1024 * p.estimate.RAMWattsPerGB})
	}

	if p.rapl != nil {
		j, err := p.rapl.read()
		if err != nil {
			return nil, err
		}
		out = append(out, common.Sample{Kind: common.KindCPUEnergy, Value: j})
	}
	return out, nil
}

func readCPUTicks(ctx context.Context) (cpuTicks, error) {
	stats, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return cpuTicks{}, errors.Wrap(err, "cpu times")
	}
	if len(stats) == 0 {
		return cpuTicks{}, errors.New("cpu times: empty result")
	}
	s := stats[0]
	return cpuTicks{
		busy: s.User + s.Nice + s.System + s.Irq + s.Softirq + s.Steal,
		idle: s.Idle + s.Iowait,
	}, nil
}

func readUsedMemoryMB(ctx context.Context) (float64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "virtual memory")
	}
	return float64(vm.Used) / bytesPerMB, nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
