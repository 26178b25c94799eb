package sensors

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
	"github.com/greenbench/greenbench-sdk-go/measure/logger"
)

const (
	AcceleratorSensorName = "accelerator"

	defaultSMIBinary    = "nvidia-smi"
	defaultQueryTimeout = 2 * time.Second
)

// queryFields must stay in the order parseSMILine expects.
const queryFields = "utilization.gpu,memory.used,memory.total,power.draw,temperature.gpu"

// CommandRunner executes a binary and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

type AcceleratorConfig struct {
	// Enabled forces the sensor off when false. nil means auto-detect.
	Enabled     *bool
	DeviceIndex int
	Interval    time.Duration
	Logger      logger.Logger

	Binary string
	Runner CommandRunner
}

type acceleratorProbe struct {
	binary string
	index  int
	runner CommandRunner
}

func acceleratorSpecs() []common.SeriesSpec {
	return []common.SeriesSpec{
		{Kind: common.KindGPUUsage, Role: common.RoleUtilization},
		{Kind: common.KindGPUMemory, Role: common.RoleMemory},
		{Kind: common.KindGPUMemoryShare, Role: common.RoleUtilization, Alias: common.KindGPUMemory},
		{Kind: common.KindGPUPower, Role: common.RolePower, Source: common.SourceGPU},
		{Kind: common.KindGPUTemperature, Role: common.RoleTemperature},
	}
}

// NewAcceleratorSampler polls nvidia-smi for one device. Detection happens
// here, once: when no device answers the sensor is returned unavailable and
// stays a no-op, but still declares its series so they are reported as
// unavailable.
func NewAcceleratorSampler(cfg AcceleratorConfig) *ProbeSensor {
	log := logger.OrNoop(cfg.Logger)
	if cfg.Binary == "" {
		cfg.Binary = defaultSMIBinary
	}
	pc := ProbeConfig{
		Name:     AcceleratorSensorName,
		Specs:    acceleratorSpecs(),
		Interval: cfg.Interval,
		Logger:   log,
	}
	if cfg.Enabled != nil && !*cfg.Enabled {
		pc.Unavailable = true
		pc.UnavailableReason = "disabled by configuration"
		return NewProbeSensor(pc, nil)
	}

	runner := cfg.Runner
	if runner == nil {
		if _, err := exec.LookPath(cfg.Binary); err != nil {
			pc.Unavailable = true
			pc.UnavailableReason = fmt.Sprintf("%s not found", cfg.Binary)
			log.Info("[NewAcceleratorSampler] no accelerator tooling. err=%v", err)
			return NewProbeSensor(pc, nil)
		}
		runner = execRunner
	}

	if err := detectDevice(runner, cfg.Binary, cfg.DeviceIndex); err != nil {
		pc.Unavailable = true
		pc.UnavailableReason = err.Error()
		log.Info("[NewAcceleratorSampler] no accelerator detected. err=%v", err)
		return NewProbeSensor(pc, nil)
	}

	p := &acceleratorProbe{binary: cfg.Binary, index: cfg.DeviceIndex, runner: runner}
	return NewProbeSensor(pc, p.probe)
}

func detectDevice(runner CommandRunner, binary string, index int) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()
	out, err := runner(ctx, binary, "--query-gpu=index", "--format=csv,noheader,nounits")
	if err != nil {
		return errors.Wrap(err, "query devices")
	}
	want := strconv.Itoa(index)
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == want {
			return nil
		}
	}
	return errors.Errorf("device %d not present", index)
}

func (p *acceleratorProbe) probe(ctx context.Context) ([]common.Sample, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()
	out, err := p.runner(ctx, p.binary,
		"--query-gpu="+queryFields,
		"--format=csv,noheader,nounits",
		"-i", strconv.Itoa(p.index))
	if err != nil {
		return nil, errors.Wrap(err, "query accelerator")
	}
	return parseSMILine(strings.TrimSpace(string(out)))
}

// parseSMILine parses "util, mem_used_mb, mem_total_mb, power_w, temp_c".
// Fields reported as "[N/A]" or "[Not Supported]" are skipped; a line with no
// usable field is an error. Memory share is emitted when both memory fields
// are usable.
func parseSMILine(line string) ([]common.Sample, error) {
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	fields := strings.Split(line, ",")
	if len(fields) != 5 {
		return nil, errors.Errorf("unexpected accelerator output %q", line)
	}
	const totalField = 2
	kinds := []common.MetricKind{common.KindGPUUsage, common.KindGPUMemory, "", common.KindGPUPower, common.KindGPUTemperature}
	out := make([]common.Sample, 0, len(kinds)+1)
	used, total := -1.0, -1.0
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if strings.HasPrefix(f, "[") {
			continue
		}
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "parse field %d of %q", i, line)
		}
		switch {
		case i == totalField:
			total = v
			continue
		case kinds[i] == common.KindGPUMemory:
			used = v
		}
		out = append(out, common.Sample{Kind: kinds[i], Value: v})
	}
	if len(out) == 0 {
		return nil, errors.Errorf("no usable accelerator fields in %q", line)
	}
	if used >= 0 && total > 0 {
		out = append(out, common.Sample{Kind: common.KindGPUMemoryShare, Value: used / total * 100})
	}
	return out, nil
}
