package sensors

import (
	"context"
	"time"

	"github.com/greenbench/greenbench-sdk-go/internal/netio"
	"github.com/greenbench/greenbench-sdk-go/measure/common"
	"github.com/greenbench/greenbench-sdk-go/measure/logger"
)

const (
	PowerMeterSensorName = "power_meter"

	// consecutive failed polls before the meter is degraded for the window
	powerMeterFailureBudget = 3
)

type PowerMeterConfig struct {
	Endpoint string
	OutputID int
	Timeout  time.Duration
	Interval time.Duration
	Logger   logger.Logger
}

// NewExternalPowerSampler polls a NETIO PowerBOX compatible endpoint. The
// endpoint is probed once here; a failed probe makes the sensor unavailable.
func NewExternalPowerSampler(cfg PowerMeterConfig) *ProbeSensor {
	log := logger.OrNoop(cfg.Logger)
	pc := ProbeConfig{
		Name:          PowerMeterSensorName,
		Specs:         []common.SeriesSpec{{Kind: common.KindSystemPower, Role: common.RolePower, Source: common.SourceSystem}},
		Interval:      cfg.Interval,
		FailureBudget: powerMeterFailureBudget,
		Logger:        log,
	}
	client, err := netio.NewClient(netio.Config{
		Endpoint: cfg.Endpoint,
		OutputID: cfg.OutputID,
		Timeout:  cfg.Timeout,
		Logger:   log,
	})
	if err != nil {
		pc.Unavailable = true
		pc.UnavailableReason = err.Error()
		log.Error("[NewExternalPowerSampler] bad endpoint. err=%+v", err)
		return NewProbeSensor(pc, nil)
	}
	if _, err := client.Read(context.Background()); err != nil {
		pc.Unavailable = true
		pc.UnavailableReason = err.Error()
		log.Error("[NewExternalPowerSampler] meter probe fail, sensor unavailable. url=%s err=%+v", client.URL(), err)
		return NewProbeSensor(pc, nil)
	}
	log.Info("[NewExternalPowerSampler] meter reachable. url=%s", client.URL())

	return NewProbeSensor(pc, func(ctx context.Context) ([]common.Sample, error) {
		r, err := client.Read(ctx)
		if err != nil {
			return nil, err
		}
		return []common.Sample{{Timestamp: r.At, Kind: common.KindSystemPower, Value: r.LoadWatts}}, nil
	})
}
