package sink

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
	"github.com/greenbench/greenbench-sdk-go/measure/logger"
)

const (
	defaultQueueSize       = 64
	defaultBackoffInterval = 500 * time.Millisecond
	defaultRetryCount      = 3
)

var (
	ErrClosed = errors.New("sink closed")
	// ErrUndelivered is returned by Close when outcomes exhausted their retries.
	ErrUndelivered = errors.New("outcomes not delivered")
)

type AsyncConfig struct {
	QueueSize       int
	BackoffInterval time.Duration
	RetryCount      int
	Logger          logger.Logger
}

// AsyncSink hands outcomes to a background worker that persists them to the
// wrapped sink with retries. Persist blocks only when the queue is full, it
// never drops. Close drains the queue before closing the wrapped sink.
type AsyncSink struct {
	next            Sink
	logger          logger.Logger
	backoffInterval time.Duration
	retryCount      int

	in     chan *common.Outcome
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool

	failedMu sync.Mutex
	failed   []*common.Outcome
}

func NewAsyncSink(next Sink, cfg AsyncConfig) *AsyncSink {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.BackoffInterval <= 0 {
		cfg.BackoffInterval = defaultBackoffInterval
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = defaultRetryCount
	}
	s := &AsyncSink{
		next:            next,
		logger:          logger.OrNoop(cfg.Logger),
		backoffInterval: cfg.BackoffInterval,
		retryCount:      cfg.RetryCount,
		in:              make(chan *common.Outcome, cfg.QueueSize),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sendLoop()
	}()
	return s
}

func (s *AsyncSink) Persist(ctx context.Context, o *common.Outcome) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.in <- o:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AsyncSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.in)
	s.mu.Unlock()

	s.wg.Wait()
	return multierr.Append(s.undelivered(), s.next.Close())
}

func (s *AsyncSink) undelivered() error {
	failed := s.Failed()
	if len(failed) == 0 {
		return nil
	}
	keys := make([]string, 0, len(failed))
	for _, o := range failed {
		keys = append(keys, o.Key.String())
	}
	return errors.Wrapf(ErrUndelivered, "%d after %d retries: %s", len(failed), s.retryCount, strings.Join(keys, ", "))
}

// Failed returns outcomes that exhausted their retries.
func (s *AsyncSink) Failed() []*common.Outcome {
	s.failedMu.Lock()
	defer s.failedMu.Unlock()
	return append([]*common.Outcome(nil), s.failed...)
}

func (s *AsyncSink) sendLoop() {
	for o := range s.in {
		var err error
		for i := 0; i <= s.retryCount; i++ {
			if err = s.next.Persist(context.Background(), o); err == nil {
				break
			}
			s.logger.Error("[AsyncSink.sendLoop] persist fail. key=%s try=%d err=%+v", o.Key, i+1, err)
			if i < s.retryCount {
				time.Sleep(s.backoffInterval)
			}
		}
		if err != nil {
			s.failedMu.Lock()
			s.failed = append(s.failed, o)
			s.failedMu.Unlock()
			continue
		}
		s.logger.Debug("[AsyncSink.sendLoop] persisted. key=%s", o.Key)
	}
}
