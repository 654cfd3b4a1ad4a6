package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
)

// Sender is the subset of sarama.SyncProducer used to enqueue messages.
type Sender interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
	Close() error
}

// Producer publishes JSON messages to a topic.
type Producer struct {
	sender Sender
	topic  string
}

func NewProducer(brokers []string, topic string) (*Producer, error) {
	cfg := saramaConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll

	sender, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &Producer{sender: sender, topic: topic}, nil
}

// NewProducerWithSender wraps an existing sender.
func NewProducerWithSender(sender Sender, topic string) *Producer {
	return &Producer{sender: sender, topic: topic}
}

// SendJSON publishes v keyed by key and returns where it landed.
func (p *Producer) SendJSON(key string, v any) (int32, int64, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, 0, err
	}
	return p.sender.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(data),
	})
}

func (p *Producer) Close() error {
	return p.sender.Close()
}
