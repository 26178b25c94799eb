package sink

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

const defaultRedisPrefix = "greenbench"

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	// TTL of outcome documents; zero keeps them forever.
	TTL time.Duration `yaml:"ttl"`
}

// RedisSink stores the encoded outcome under <prefix>:outcome:<key> and
// tracks the status of every key in the <prefix>:status hash.
type RedisSink struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisSink(cfg RedisConfig) *RedisSink {
	return NewRedisSinkWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}), cfg.Prefix, cfg.TTL)
}

func NewRedisSinkWithClient(c *redis.Client, prefix string, ttl time.Duration) *RedisSink {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisSink{client: c, prefix: prefix, ttl: ttl}
}

func (r *RedisSink) OutcomeKey(k common.SessionKey) string {
	return r.prefix + ":outcome:" + DocumentKey(k)
}

func (r *RedisSink) StatusKey() string {
	return r.prefix + ":status"
}

func (r *RedisSink) Persist(ctx context.Context, o *common.Outcome) error {
	data, err := Encode(o)
	if err != nil {
		return errors.Wrap(err, "redis sink: encode")
	}
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.OutcomeKey(o.Key), data, r.ttl)
		p.HSet(ctx, r.StatusKey(), DocumentKey(o.Key), string(o.Status))
		return nil
	})
	return errors.Wrapf(err, "redis sink: persist %s", DocumentKey(o.Key))
}

func (r *RedisSink) Close() error {
	return r.client.Close()
}
