package measure

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/greenbench/greenbench-sdk-go/measure/sink"
)

// ConfigEnv names the environment variable LoadConfig falls back to.
const ConfigEnv = "GREENBENCH_CONFIG"

const (
	defaultSamplingIntervalMS  = 100
	defaultBaselineDurationS   = 5
	defaultRepetitions         = 3
	defaultRetryLimit          = 3
	defaultPowerMeterOutputID  = 1
	defaultPowerMeterTimeoutMS = 5000
	defaultWorkloadTimeoutS    = 600
	defaultResultsDir          = "results"
	defaultCPUTDPWatts         = 85
	defaultRAMWattsPerGB       = 0.375
)

type Config struct {
	SamplingIntervalMS int     `yaml:"sampling_interval_ms"`
	BaselineDurationS  float64 `yaml:"baseline_duration_s"`
	Repetitions        int     `yaml:"repetitions"`
	RetryLimit         int     `yaml:"retry_limit"`
	// GridIntensity is the carbon intensity of the grid in gCO2e/kWh.
	GridIntensity float64 `yaml:"grid_intensity_g_per_kwh"`

	// AcceleratorEnabled forces the accelerator sampler off when false;
	// unset means detect.
	AcceleratorEnabled     *bool `yaml:"accelerator_enabled"`
	AcceleratorDeviceIndex int   `yaml:"accelerator_device_index"`

	PowerMeterEndpoint  string `yaml:"power_meter_endpoint"`
	PowerMeterOutputID  int    `yaml:"power_meter_output_id"`
	PowerMeterTimeoutMS int    `yaml:"power_meter_timeout_ms"`

	WorkloadTimeoutS float64 `yaml:"workload_timeout_s"`

	// CPUTDPWatts and RAMWattsPerGB drive the energy estimate used when the
	// RAPL counter is unreadable. A zero TDP turns the estimate off.
	CPUTDPWatts   float64 `yaml:"cpu_tdp_watts"`
	RAMWattsPerGB float64 `yaml:"ram_watts_per_gb"`

	Sink    sink.Config   `yaml:"sink"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig controls self-metrics emitted over the local metrics socket.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Prefix  string `yaml:"prefix"`
}

func DefaultConfig() Config {
	return Config{
		SamplingIntervalMS:  defaultSamplingIntervalMS,
		BaselineDurationS:   defaultBaselineDurationS,
		Repetitions:         defaultRepetitions,
		RetryLimit:          defaultRetryLimit,
		PowerMeterOutputID:  defaultPowerMeterOutputID,
		PowerMeterTimeoutMS: defaultPowerMeterTimeoutMS,
		WorkloadTimeoutS:    defaultWorkloadTimeoutS,
		CPUTDPWatts:         defaultCPUTDPWatts,
		RAMWattsPerGB:       defaultRAMWattsPerGB,
		Sink: sink.Config{
			Backends: []string{sink.BackendFile},
			Dir:      defaultResultsDir,
		},
		Metrics: MetricsConfig{Prefix: "greenbench"},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path falls back
// to $GREENBENCH_CONFIG. Overrides run before validation.
func LoadConfig(path string, overrides ...func(*Config)) (Config, error) {
	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path == "" {
		return Config{}, errors.Errorf("no config file given and %s is unset", ConfigEnv)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	cfg, err := ParseConfig(data, overrides...)
	return cfg, errors.Wrapf(err, "config %s", path)
}

func ParseConfig(data []byte, overrides ...func(*Config)) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode yaml")
	}
	for _, o := range overrides {
		o(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var err error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			err = multierr.Append(err, errors.Errorf(format, args...))
		}
	}
	check(c.SamplingIntervalMS > 0, "sampling_interval_ms must be positive, got %d", c.SamplingIntervalMS)
	check(c.BaselineDurationS > 0, "baseline_duration_s must be positive, got %v", c.BaselineDurationS)
	check(c.Repetitions >= 1, "repetitions must be at least 1, got %d", c.Repetitions)
	check(c.RetryLimit >= 1, "retry_limit must be at least 1, got %d", c.RetryLimit)
	check(c.GridIntensity > 0, "grid_intensity_g_per_kwh must be positive, got %v", c.GridIntensity)
	check(c.AcceleratorDeviceIndex >= 0, "accelerator_device_index must not be negative, got %d", c.AcceleratorDeviceIndex)
	check(c.PowerMeterOutputID >= 1, "power_meter_output_id must be at least 1, got %d", c.PowerMeterOutputID)
	check(c.PowerMeterTimeoutMS > 0, "power_meter_timeout_ms must be positive, got %d", c.PowerMeterTimeoutMS)
	check(c.WorkloadTimeoutS > 0, "workload_timeout_s must be positive, got %v", c.WorkloadTimeoutS)
	check(c.CPUTDPWatts >= 0, "cpu_tdp_watts must not be negative, got %v", c.CPUTDPWatts)
	check(c.RAMWattsPerGB >= 0, "ram_watts_per_gb must not be negative, got %v", c.RAMWattsPerGB)
	return err
}

func (c Config) SamplingInterval() time.Duration {
	return time.Duration(c.SamplingIntervalMS) * time.Millisecond
}

func (c Config) BaselineDuration() time.Duration {
	return time.Duration(c.BaselineDurationS * float64(time.Second))
}

func (c Config) WorkloadTimeout() time.Duration {
	return time.Duration(c.WorkloadTimeoutS * float64(time.Second))
}

func (c Config) PowerMeterTimeout() time.Duration {
	return time.Duration(c.PowerMeterTimeoutMS) * time.Millisecond
}
