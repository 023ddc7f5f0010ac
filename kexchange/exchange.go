// Package kexchange moves blocks between pipelines over Kafka.
//
// A SendSink publishes every block as one record keyed by the sender id, so
// all records of a sender land on one partition and keep their order. When
// its input finishes, the sink publishes an end-of-stream marker. A
// FetchSource finishes once it has seen the marker of every sender it
// expects.
package kexchange

import (
	"context"
	"errors"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// HeaderEndOfStream marks the last record of a sender.
const HeaderEndOfStream = "kpipe-eos"

// ErrClientClosed is returned when the client closes before the stream ended.
var ErrClientClosed = errors.New("kexchange: client closed")

// Fetcher is the consuming side of *kgo.Client.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
}

// Producer is the producing side of *kgo.Client.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// TopicCreator is the subset of *kadm.Client used by EnsureTopics.
type TopicCreator interface {
	CreateTopics(ctx context.Context, partitions int32, replicationFactor int16, configs map[string]*string, topics ...string) (kadm.CreateTopicResponses, error)
}

// Config addresses a cluster.
type Config struct {
	Brokers []string `envconfig:"BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"TOPIC" default:"kpipe-exchange"`
	Group   string   `envconfig:"GROUP"`
}

// NewClient creates a client consuming cfg.Topic from the start. Without a
// group the client reads all partitions directly.
func NewClient(cfg Config, opts ...kgo.Opt) (*kgo.Client, error) {
	base := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DefaultProduceTopic(cfg.Topic),
	}
	if cfg.Group != "" {
		base = append(base, kgo.ConsumerGroup(cfg.Group))
	}
	return kgo.NewClient(append(base, opts...)...)
}

// EnsureTopics creates topics with the broker default replication factor.
// Topics that already exist are not an error.
func EnsureTopics(ctx context.Context, admin TopicCreator, partitions int32, topics ...string) error {
	resp, err := admin.CreateTopics(ctx, partitions, -1, nil, topics...)
	if err != nil {
		return err
	}
	var errs []error
	for _, t := range resp.Sorted() {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			errs = append(errs, t.Err)
		}
	}
	return errors.Join(errs...)
}

func isEndOfStream(r *kgo.Record) bool {
	for _, h := range r.Headers {
		if h.Key == HeaderEndOfStream {
			return true
		}
	}
	return false
}
