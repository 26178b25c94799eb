package sink

import (
	"context"

	"go.uber.org/multierr"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

// MultiSink fans one outcome out to several sinks. Every sink is attempted;
// the errors are combined.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Persist(ctx context.Context, o *common.Outcome) error {
	var err error
	for _, s := range m.sinks {
		err = multierr.Append(err, s.Persist(ctx, o))
	}
	return err
}

func (m *MultiSink) Close() error {
	var err error
	for _, s := range m.sinks {
		err = multierr.Append(err, s.Close())
	}
	return err
}
