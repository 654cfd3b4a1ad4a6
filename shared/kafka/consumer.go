package kafka

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

// MessageHandler processes one consumed message.
// A returned error or shouldMark=false leaves the offset unmarked so the
// message is redelivered.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// Consumer runs a sarama consumer group over a single topic.
type Consumer struct {
	consumer sarama.ConsumerGroup
	handler  MessageHandler
	topic    string
	groupID  string
	ready    chan bool
	logger   zerolog.Logger
}

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
	Logger  zerolog.Logger
}

func saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V3_6_0_0
	cfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	cfg.Consumer.Return.Errors = true
	return cfg
}

func NewConsumer(config ConsumerConfig) (*Consumer, error) {
	client, err := sarama.NewConsumerGroup(config.Brokers, config.GroupID, saramaConfig())
	if err != nil {
		return nil, err
	}

	return &Consumer{
		consumer: client,
		handler:  config.Handler,
		topic:    config.Topic,
		groupID:  config.GroupID,
		ready:    make(chan bool),
		logger:   config.Logger.With().Str("component", "kafka").Str("topic", config.Topic).Logger(),
	}, nil
}

// Start joins the group and returns once the first session is set up.
// Consumption continues in the background until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	handler := &consumerGroupHandler{
		messageHandler: c.handler,
		ready:          c.ready,
		logger:         c.logger,
	}

	go func() {
		for {
			if err := c.consumer.Consume(ctx, []string{c.topic}, handler); err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, sarama.ErrClosedConsumerGroup) {
					c.logger.Info().Msg("kafka consumer stopped")
					return
				}
				c.logger.Error().Err(err).Msg("error from kafka consumer")
			}

			if ctx.Err() != nil {
				return
			}
			handler.ready = make(chan bool)
		}
	}()

	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	c.logger.Info().Str("group", c.groupID).Msg("kafka consumer started")

	go func() {
		for err := range c.consumer.Errors() {
			c.logger.Error().Err(err).Msg("kafka consumer error")
		}
	}()

	return nil
}

func (c *Consumer) Close() error {
	c.logger.Info().Msg("closing kafka consumer")
	return c.consumer.Close()
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler
type consumerGroupHandler struct {
	messageHandler MessageHandler
	ready          chan bool
	logger         zerolog.Logger
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			h.logger.Info().
				Int32("partition", message.Partition).
				Int64("offset", message.Offset).
				Str("key", string(message.Key)).
				Msg("received message")

			shouldMark, err := h.messageHandler.HandleMessage(session.Context(), message.Value)
			if err != nil {
				h.logger.Error().Err(err).Int64("offset", message.Offset).Msg("failed to handle message")
			}
			if shouldMark {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

// TypedMessageHandler decodes JSON messages into T before validating and
// processing them.
type TypedMessageHandler[T any] struct {
	// Validate returns an error for messages that must never be processed.
	Validate func(msg *T) error
	Process  func(ctx context.Context, msg *T) error
	// AlwaysMark marks undecodable and invalid messages so they are not redelivered.
	AlwaysMark bool
	Logger     zerolog.Logger
}

func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		h.Logger.Warn().Err(err).Msg("failed to unmarshal message")
		return h.AlwaysMark, nil
	}

	if h.Validate != nil {
		if err := h.Validate(&msg); err != nil {
			h.Logger.Warn().Err(err).Msg("skipping invalid message")
			return h.AlwaysMark, nil
		}
	}

	if err := h.Process(ctx, &msg); err != nil {
		return false, err
	}
	return true, nil
}
