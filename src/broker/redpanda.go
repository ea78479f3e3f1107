package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"

	"sikuli-bot/src/logger"
)

// RedpandaBroker publishes and tails run events on a Kafka-compatible
// cluster through franz-go.
//
// Subscribers start at the end of the topic: a viewer follows runs from the
// moment it connects and reads older runs from the store.
type RedpandaBroker struct {
	producer *kgo.Client
	seeds    []string
	log      logger.Logger

	mu     sync.Mutex
	tails  map[*kgo.Client]struct{}
	closed bool
}

// NewRedpandaBroker connects a producer to seeds (e.g. ["localhost:19092"]).
func NewRedpandaBroker(seeds []string, log logger.Logger) (*RedpandaBroker, error) {
	if len(seeds) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}
	if log == nil {
		log = logger.NewSilentLogger()
	}

	producer, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.ClientID("sikuli-bot"),
		kgo.AllowAutoTopicCreation(),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redpanda producer: %w", err)
	}

	return &RedpandaBroker{
		producer: producer,
		seeds:    seeds,
		log:      log,
		tails:    make(map[*kgo.Client]struct{}),
	}, nil
}

// Publish writes one record and waits for the acknowledgement, so events of
// a run are on the cluster before the bot exits.
func (b *RedpandaBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	rec := &kgo.Record{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: []kgo.RecordHeader{{Key: "content-type", Value: []byte("application/json")}},
	}
	if err := b.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe tails topic in consumer group groupID. The channel is closed
// when ctx is cancelled or the broker is closed.
func (b *RedpandaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	tail, err := kgo.NewClient(
		kgo.SeedBrokers(b.seeds...),
		kgo.ClientID("sikuli-bot"),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtEnd()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redpanda consumer for %s: %w", topic, err)
	}
	b.tails[tail] = struct{}{}

	out := make(chan Message, 100)
	go b.tail(ctx, tail, out)
	return out, nil
}

func (b *RedpandaBroker) tail(ctx context.Context, tail *kgo.Client, out chan<- Message) {
	defer close(out)
	defer b.release(tail)

	for ctx.Err() == nil {
		fetches := tail.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if ctx.Err() == nil {
				b.log.Warn("[broker] fetch error on %s/%d: %v", topic, partition, err)
			}
		})

		iter := fetches.RecordIter()
		for !iter.Done() {
			rec := iter.Next()
			select {
			case out <- Message{
				Topic:     rec.Topic,
				Key:       string(rec.Key),
				Value:     rec.Value,
				Offset:    rec.Offset,
				Partition: rec.Partition,
				Timestamp: rec.Timestamp.UnixMilli(),
			}:
			case <-ctx.Done():
				return
			}
		}
	}
}

// release closes a consumer unless Close already did.
func (b *RedpandaBroker) release(tail *kgo.Client) {
	b.mu.Lock()
	_, open := b.tails[tail]
	delete(b.tails, tail)
	b.mu.Unlock()
	if open {
		tail.Close()
	}
}

// Close stops every consumer and flushes the producer.
func (b *RedpandaBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	tails := b.tails
	b.tails = make(map[*kgo.Client]struct{})
	b.mu.Unlock()

	for tail := range tails {
		tail.Close()
	}
	b.producer.Close()
	return nil
}
