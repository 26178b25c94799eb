package metrics

import (
	"time"

	"github.com/greenbench/greenbench-sdk-go/measure/logger"
)

const (
	// AddressEnv overrides the default socket address.
	AddressEnv = "GREENBENCH_METRICS_SOCK"

	defaultAddress       = "/var/run/greenbench/metrics.sock"
	defaultBatchSize     = 64
	defaultFlushInterval = time.Second

	queueSize     = 32
	senderWorkers = 1
	maxPacketSize = 8192
)

type Config struct {
	prefix        string
	address       string
	batchSize     int
	flushInterval time.Duration
	logger        logger.Logger
}

type ClientOption func(config *Config)

// WithPrefix prepends "<prefix>." to every metric name.
func WithPrefix(prefix string) ClientOption {
	return func(config *Config) {
		config.prefix = prefix
	}
}

// WithAddress sets the unixgram socket datagrams are written to.
func WithAddress(address string) ClientOption {
	return func(config *Config) {
		config.address = address
	}
}

func WithLogger(l logger.Logger) ClientOption {
	return func(config *Config) {
		config.logger = l
	}
}

// WithBatchSize sets how many items are buffered before a batch is handed
// to the sender ahead of the flush interval.
func WithBatchSize(n int) ClientOption {
	return func(config *Config) {
		if n > 0 {
			config.batchSize = n
		}
	}
}

func WithFlushInterval(d time.Duration) ClientOption {
	return func(config *Config) {
		if d > 0 {
			config.flushInterval = d
		}
	}
}
