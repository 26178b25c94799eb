package calibrator

import (
	"context"
	"time"

	"github.com/greenbench/greenbench-sdk-go/measure/accounting"
	"github.com/greenbench/greenbench-sdk-go/measure/common"
	"github.com/greenbench/greenbench-sdk-go/measure/logger"
	"github.com/greenbench/greenbench-sdk-go/measure/sensors"
)

const DefaultDuration = 5 * time.Second

type Config struct {
	Duration time.Duration
	Logger   logger.Logger
}

// Calibrator measures the idle draw of the machine with the same sensors
// the repetitions use.
type Calibrator struct {
	duration time.Duration
	logger   logger.Logger
}

func New(cfg Config) *Calibrator {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	return &Calibrator{duration: cfg.Duration, logger: logger.OrNoop(cfg.Logger)}
}

// Calibrate idles for the configured duration with every available sensor
// running. A cancelled ctx ends the idle early; the sensors are still
// stopped and ctx.Err() is returned.
func (c *Calibrator) Calibrate(ctx context.Context, group *sensors.Group) (*common.BaselineProfile, error) {
	if !group.AnyAvailable() {
		return nil, common.ErrSessionUnmeasurable
	}

	capturedAt := time.Now()
	group.Start()
	start := time.Now()

	timer := time.NewTimer(c.duration)
	var err error
	select {
	case <-timer.C:
	case <-ctx.Done():
		timer.Stop()
		err = ctx.Err()
	}
	elapsed := time.Since(start)
	windows := group.Stop()
	if err != nil {
		return nil, err
	}

	set := common.NewMetricSet()
	infos := make([]common.WindowInfo, 0, len(windows))
	for _, w := range windows {
		rep := accounting.Account(w, elapsed)
		if rep.CounterWrapped {
			c.logger.Info("[Calibrator.Calibrate] energy counter wrapped during calibration. sensor=%s", w.Sensor)
		}
		set.Merge(rep.Metrics)
		infos = append(infos, w.Info())
	}
	set = accounting.Derive(set, accounting.DeriveInput{Duration: elapsed, UsefulWork: 1})

	c.logger.Info("[Calibrator.Calibrate] baseline captured. duration=%v metrics=%d unavailable=%v", elapsed, len(set), set.Unavailable())
	return &common.BaselineProfile{
		Metrics:    set,
		Duration:   elapsed,
		CapturedAt: capturedAt,
		Windows:    infos,
	}, nil
}
