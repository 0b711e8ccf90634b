package events

import (
	"context"
	"fmt"
	"strings"

	"fulfillment/internal/core/domain/model/kernel"

	"github.com/segmentio/kafka-go"
)

// KafkaNotifier writes every event to a topic named after it, for example
// "fulfillment.order.status_changed" with the default prefix.
type KafkaNotifier struct {
	writer      *kafka.Writer
	topicPrefix string
}

func NewKafkaNotifier(brokers []string, topicPrefix string) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka notifier requires at least one broker")
	}
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topicPrefix: strings.TrimSuffix(topicPrefix, "."),
	}, nil
}

func (n *KafkaNotifier) Notify(ctx context.Context, event kernel.DomainEvent) error {
	msg := NewMessage(event)
	payload, err := msg.Marshal()
	if err != nil {
		return err
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Topic: n.Topic(event.EventName()),
		Key:   []byte(msg.Key),
		Value: payload,
		Time:  msg.OccurredAt,
	})
}

func (n *KafkaNotifier) Topic(eventName string) string {
	if n.topicPrefix == "" {
		return eventName
	}
	return n.topicPrefix + "." + eventName
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
