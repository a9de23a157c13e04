// Package kafkadest is a second serialize.Destination/DestinationStrategy
// implementation, publishing each item's serialized payload as one Kafka
// record instead of one file — proof that Destination is a seam, not a
// filesystem-only concept. Grounded on a prior internal/sinks/kafka_sink.go,
// including its SASL/SCRAM wiring.
package kafkadest

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/IBM/sarama"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/meta"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/retrypolicy"
	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/pkg/serialize"
)

// AuthMechanism mirrors the auth.mechanism values a Kafka sink config
// accepts.
type AuthMechanism string

const (
	AuthNone         AuthMechanism = ""
	AuthPlain        AuthMechanism = "PLAIN"
	AuthSCRAMSHA256  AuthMechanism = "SCRAM-SHA-256"
	AuthSCRAMSHA512  AuthMechanism = "SCRAM-SHA-512"
)

// Auth holds SASL credentials for the producer connection.
type Auth struct {
	Enabled   bool
	Username  string
	Password  string
	Mechanism AuthMechanism
}

// Config configures the Kafka producer backing a Strategy.
type Config struct {
	Brokers      []string
	Topic        string
	Auth         Auth
	RequiredAcks sarama.RequiredAcks
}

// NewProducer builds a sarama.SyncProducer from cfg, wiring SASL/SCRAM
// authentication the same way a prior Kafka sink did.
func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafkadest: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafkadest: no topic configured")
	}

	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true
	saramaCfg.Producer.RequiredAcks = cfg.RequiredAcks

	if cfg.Auth.Enabled {
		saramaCfg.Net.SASL.Enable = true
		saramaCfg.Net.SASL.User = cfg.Auth.Username
		saramaCfg.Net.SASL.Password = cfg.Auth.Password
		switch cfg.Auth.Mechanism {
		case AuthPlain:
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		case AuthSCRAMSHA256:
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			saramaCfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{HashGeneratorFcn: sha256Generator}
			}
		case AuthSCRAMSHA512:
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			saramaCfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &scramClient{HashGeneratorFcn: sha512Generator}
			}
		}
	}

	return sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
}

// KeyFunc derives a Kafka message key from an item, e.g. its first
// ItemId. A nil KeyFunc leaves every message unkeyed.
type KeyFunc[T meta.Copyable[T]] func(item *meta.Item[T]) string

// FirstIDKey is the default KeyFunc: the item's first ItemId value, or
// "" if it has none.
func FirstIDKey[T meta.Copyable[T]](item *meta.Item[T]) string {
	ids := item.IDs()
	if len(ids) == 0 {
		return ""
	}
	return ids[0].Value()
}

// Strategy is a serialize.DestinationStrategy that publishes each item's
// serialized bytes as one record on a fixed topic.
type Strategy[T meta.Copyable[T]] struct {
	producer sarama.SyncProducer
	topic    string
	key      KeyFunc[T]
	retry    retrypolicy.Config
}

// NewStrategy wraps an already-constructed producer (see NewProducer).
// A nil key defaults to FirstIDKey. Publish failures are retried per
// retrypolicy.DefaultConfig; use WithRetry to override.
func NewStrategy[T meta.Copyable[T]](producer sarama.SyncProducer, topic string, key KeyFunc[T]) *Strategy[T] {
	if key == nil {
		key = FirstIDKey[T]
	}
	return &Strategy[T]{producer: producer, topic: topic, key: key, retry: retrypolicy.DefaultConfig()}
}

// WithRetry replaces the retry schedule applied to publish failures.
func (s *Strategy[T]) WithRetry(cfg retrypolicy.Config) *Strategy[T] {
	s.retry = cfg
	return s
}

// GetDestination implements serialize.DestinationStrategy. The returned
// Destination buffers the serialized payload in memory and publishes it
// as a single Kafka record on Close.
func (s *Strategy[T]) GetDestination(item *meta.Item[T]) (serialize.Destination, error) {
	return &destination{producer: s.producer, topic: s.topic, key: s.key(item), retry: s.retry}, nil
}

type destination struct {
	producer sarama.SyncProducer
	topic    string
	key      string
	retry    retrypolicy.Config
	buf      bytes.Buffer
}

func (d *destination) OpenStream() (io.Writer, error) { return &d.buf, nil }

func (d *destination) Close() error {
	msg := &sarama.ProducerMessage{
		Topic: d.topic,
		Value: sarama.ByteEncoder(d.buf.Bytes()),
	}
	if d.key != "" {
		msg.Key = sarama.StringEncoder(d.key)
	}
	err := retrypolicy.Do(context.Background(), d.retry, func() error {
		_, _, sendErr := d.producer.SendMessage(msg)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("kafkadest: send to topic %q: %w", d.topic, err)
	}
	return nil
}
