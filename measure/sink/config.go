package sink

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/greenbench/greenbench-sdk-go/measure/logger"
)

const (
	BackendFile      = "file"
	BackendMemory    = "memory"
	BackendKafka     = "kafka"
	BackendRedis     = "redis"
	BackendMongo     = "mongo"
	BackendMySQL     = "mysql"
	BackendCassandra = "cassandra"
)

type Config struct {
	// Backends lists the sinks every outcome goes to. Defaults to file.
	Backends []string `yaml:"backends"`
	Dir      string   `yaml:"dir"`

	Kafka     KafkaConfig     `yaml:"kafka"`
	Redis     RedisConfig     `yaml:"redis"`
	Mongo     MongoConfig     `yaml:"mongo"`
	MySQL     MySQLConfig     `yaml:"mysql"`
	Cassandra CassandraConfig `yaml:"cassandra"`

	Async           bool          `yaml:"async"`
	QueueSize       int           `yaml:"queue_size"`
	RetryCount      int           `yaml:"retry_count"`
	BackoffInterval time.Duration `yaml:"backoff_interval"`
}

// New builds the configured sinks. Sinks already opened are closed again
// when a later one fails.
func New(ctx context.Context, cfg Config, log logger.Logger) (Sink, error) {
	log = logger.OrNoop(log)
	backends := cfg.Backends
	if len(backends) == 0 {
		backends = []string{BackendFile}
	}

	var sinks []Sink
	for _, b := range backends {
		s, err := open(ctx, b, cfg)
		if err != nil {
			for _, opened := range sinks {
				err = multierr.Append(err, opened.Close())
			}
			return nil, err
		}
		log.Info("[sink.New] backend ready. backend=%s", b)
		sinks = append(sinks, s)
	}

	var s Sink
	if len(sinks) == 1 {
		s = sinks[0]
	} else {
		s = NewMultiSink(sinks...)
	}
	if cfg.Async {
		s = NewAsyncSink(s, AsyncConfig{
			QueueSize:       cfg.QueueSize,
			RetryCount:      cfg.RetryCount,
			BackoffInterval: cfg.BackoffInterval,
			Logger:          log,
		})
	}
	return s, nil
}

func open(ctx context.Context, backend string, cfg Config) (Sink, error) {
	switch backend {
	case BackendFile:
		return NewFileSink(cfg.Dir)
	case BackendMemory:
		return NewMemorySink(), nil
	case BackendKafka:
		return NewKafkaSink(cfg.Kafka)
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, errors.New("redis sink: addr is required")
		}
		return NewRedisSink(cfg.Redis), nil
	case BackendMongo:
		return NewMongoSink(ctx, cfg.Mongo)
	case BackendMySQL:
		if cfg.MySQL.DSN == "" {
			return nil, errors.New("mysql sink: dsn is required")
		}
		return NewMySQLSink(cfg.MySQL)
	case BackendCassandra:
		return NewCassandraSink(cfg.Cassandra)
	}
	return nil, errors.Errorf("unknown sink backend %q", backend)
}
