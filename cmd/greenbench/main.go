// greenbench measures the energy and carbon cost of running test commands.
// Each --test yields one measured session whose outcome is persisted by the
// configured sinks and summarised on stdout.
//
//	greenbench --config greenbench.yaml --instance django-11099 --variant patched \
//	    --test test_validators --command 'cd repo && python -m pytest -q {test}'
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/greenbench/greenbench-sdk-go/measure"
	"github.com/greenbench/greenbench-sdk-go/measure/common"
	"github.com/greenbench/greenbench-sdk-go/measure/logger"
	"github.com/greenbench/greenbench-sdk-go/measure/workload"
)

const testPlaceholder = "{test}"

// exitFailedSessions is returned when every session ran but some failed.
const exitFailedSessions = 2

type exitError struct {
	code int
	msg  string
}

func (e exitError) Error() string { return e.msg }
func (e exitError) ExitCode() int { return e.code }

func main() {
	if err := run(os.Args[1:]); err != nil {
		if coder, ok := err.(interface{ ExitCode() int }); ok {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	config        string
	instance      string
	variant       string
	tests         []string
	command       string
	dir           string
	logLevel      string
	gridIntensity float64
	repetitions   int
}

func parseFlags(args []string) (*flags, error) {
	f := &flags{}
	flagSet := pflag.NewFlagSet("greenbench", pflag.ContinueOnError)
	flagSet.StringVarP(&f.config, "config", "c", "", "YAML config file (default $"+measure.ConfigEnv+")")
	flagSet.StringVar(&f.instance, "instance", "", "instance id of the sessions")
	flagSet.StringVar(&f.variant, "variant", "", "variant id of the sessions")
	flagSet.StringSliceVarP(&f.tests, "test", "t", nil, "test name, repeatable; one session each")
	flagSet.StringVar(&f.command, "command", "", "shell command to measure; "+testPlaceholder+" is replaced by the test name")
	flagSet.StringVar(&f.dir, "dir", "", "working directory of the command")
	flagSet.StringVar(&f.logLevel, "log-level", "info", "debug, info, warn or error")
	flagSet.Float64Var(&f.gridIntensity, "grid-intensity", 0, "override grid_intensity_g_per_kwh")
	flagSet.IntVar(&f.repetitions, "repetitions", 0, "override repetitions")
	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}

	switch {
	case f.instance == "":
		return nil, errors.New("--instance is required")
	case f.variant == "":
		return nil, errors.New("--variant is required")
	case len(f.tests) == 0:
		return nil, errors.New("at least one --test is required")
	case f.command == "":
		return nil, errors.New("--command is required")
	}
	return f, nil
}

func (f *flags) apply(cfg *measure.Config) {
	if f.gridIntensity > 0 {
		cfg.GridIntensity = f.gridIntensity
	}
	if f.repetitions > 0 {
		cfg.Repetitions = f.repetitions
	}
}

func (f *flags) workload(test string) workload.Workload {
	return &workload.Command{
		Line: strings.ReplaceAll(f.command, testPlaceholder, test),
		Dir:  f.dir,
	}
}

func newLogger(level string) (*logger.LogrusLogger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "--log-level")
	}
	l := logrus.New()
	l.SetLevel(lvl)
	l.SetOutput(os.Stderr)
	return logger.NewLogrusLogger(l), nil
}

func run(args []string) error {
	f, err := parseFlags(args)
	if err == pflag.ErrHelp {
		return nil
	}
	if err != nil {
		return err
	}
	log, err := newLogger(f.logLevel)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m, err := measure.NewMeasurer(cfg, measure.WithLogger(log.WithField("instance", f.instance)))
	if err != nil {
		return err
	}

	outcomes := measureAll(ctx, m, f, log)
	closeErr := m.Close()

	renderOutcomes(os.Stdout, outcomes)
	if closeErr != nil {
		return errors.Wrap(closeErr, "close")
	}
	if s := m.Summary(); s.Failed > 0 {
		return exitError{code: exitFailedSessions, msg: fmt.Sprintf("%d of %d sessions failed", s.Failed, s.Failed+s.Measured)}
	}
	return nil
}

// measureAll runs one session per test. Every test gets an outcome: after
// cancellation the remaining sessions fail fast and are still persisted.
func measureAll(ctx context.Context, m *measure.Measurer, f *flags, log logger.Logger) []*common.Outcome {
	var outcomes []*common.Outcome
	for _, test := range f.tests {
		key := common.SessionKey{InstanceID: f.instance, VariantID: f.variant, TestName: test}
		out, err := m.Measure(ctx, key, f.workload(test))
		if err != nil {
			log.Error("[greenbench] persist fail. key=%s err=%v", key, err)
		}
		if out != nil {
			outcomes = append(outcomes, out)
		}
	}
	return outcomes
}

// loadConfig reads the file when one is given; otherwise defaults plus
// flag overrides must be enough to validate.
func loadConfig(f *flags) (measure.Config, error) {
	if f.config == "" && os.Getenv(measure.ConfigEnv) == "" {
		cfg := measure.DefaultConfig()
		f.apply(&cfg)
		return cfg, cfg.Validate()
	}
	return measure.LoadConfig(f.config, f.apply)
}
