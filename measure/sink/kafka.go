package sink

import (
	"context"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"

	"github.com/greenbench/greenbench-sdk-go/measure/common"
)

type KafkaConfig struct {
	Brokers []string      `yaml:"brokers"`
	Topic   string        `yaml:"topic"`
	Timeout time.Duration `yaml:"timeout"`
}

// KafkaSink publishes each outcome keyed by its document key so that a
// compacted topic keeps the latest outcome per test.
type KafkaSink struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaSink(cfg KafkaConfig) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		return nil, errors.New("kafka sink: brokers and topic are required")
	}
	conf := sarama.NewConfig()
	conf.Producer.Return.Successes = true
	conf.Producer.Return.Errors = true
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Retry.Max = 3
	if cfg.Timeout > 0 {
		conf.Producer.Timeout = cfg.Timeout
		conf.Net.DialTimeout = cfg.Timeout
	}
	producer, err := sarama.NewSyncProducer(cfg.Brokers, conf)
	if err != nil {
		return nil, errors.Wrapf(err, "kafka sink: connect %v", cfg.Brokers)
	}
	return NewKafkaSinkWithProducer(producer, cfg.Topic), nil
}

func NewKafkaSinkWithProducer(p sarama.SyncProducer, topic string) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic}
}

func (k *KafkaSink) Persist(ctx context.Context, o *common.Outcome) error {
	data, err := Encode(o)
	if err != nil {
		return errors.Wrap(err, "kafka sink: encode")
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(DocumentKey(o.Key)),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("status"), Value: []byte(o.Status)},
			{Key: []byte("session_id"), Value: []byte(o.SessionID)},
		},
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return errors.Wrapf(err, "kafka sink: send %s", DocumentKey(o.Key))
	}
	return nil
}

func (k *KafkaSink) Close() error {
	return k.producer.Close()
}
