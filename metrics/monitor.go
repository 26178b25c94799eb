package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/greenbench/greenbench-sdk-go/measure/logger"
)

// monitor counts the client's own losses and logs them once per interval.
type monitor struct {
	queueFull        int64
	senderDialError  int64
	senderWriteError int64
	formatError      int64

	logger   logger.Logger
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newMonitor(log logger.Logger, interval time.Duration) *monitor {
	return &monitor{
		logger:   logger.OrNoop(log),
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (m *monitor) start() {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.report()
			case <-m.stopChan:
				m.report()
				return
			}
		}
	}()
}

func (m *monitor) stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()
}

func (m *monitor) report() {
	for _, c := range []struct {
		v    *int64
		what string
	}{
		{v: &m.queueFull, what: "send queue full"},
		{v: &m.senderWriteError, what: "socket write error"},
		{v: &m.senderDialError, what: "socket dial error"},
		{v: &m.formatError, what: "format error"},
	} {
		if n := atomic.SwapInt64(c.v, 0); n != 0 {
			m.logger.Error("[metrics.monitor] %s. count=%d", c.what, n)
		}
	}
}
