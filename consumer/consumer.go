// Package consumer feeds render jobs from Kafka into the processor.
package consumer

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"nightreel/services"
	sharedKafka "nightreel/shared/kafka"
	"nightreel/types"
	"nightreel/video"
)

// ConsumerConfig holds Kafka consumer configuration
type ConsumerConfig struct {
	Brokers   []string
	Topic     string
	GroupID   string
	Processor *services.Processor
	Logger    zerolog.Logger
}

// Processor is the part of *services.Processor the handler needs.
type Processor interface {
	Process(ctx context.Context, job *types.Job) (*video.Result, error)
}

// NewHandler decodes Job messages. Malformed jobs and jobs whose assets
// are missing are marked so they are not redelivered; render and publish
// failures stay unmarked for retry.
func NewHandler(proc Processor, logger zerolog.Logger) *sharedKafka.TypedMessageHandler[types.Job] {
	return &sharedKafka.TypedMessageHandler[types.Job]{
		Validate: func(job *types.Job) error {
			return job.Validate()
		},
		Process: func(ctx context.Context, job *types.Job) error {
			logger.Info().Str("job", job.ID).Msg("processing job from kafka")

			_, err := proc.Process(ctx, job)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, types.ErrInvalidJob), errors.Is(err, video.ErrAssetMissing):
				logger.Warn().Err(err).Str("job", job.ID).Msg("dropping job that cannot succeed")
				return nil
			default:
				return err
			}
		},
		AlwaysMark: true,
		Logger:     logger,
	}
}

func NewConsumer(config ConsumerConfig) (*sharedKafka.Consumer, error) {
	return sharedKafka.NewConsumer(sharedKafka.ConsumerConfig{
		Brokers: config.Brokers,
		Topic:   config.Topic,
		GroupID: config.GroupID,
		Handler: NewHandler(config.Processor, config.Logger),
		Logger:  config.Logger,
	})
}

// StartConsumerWithGracefulShutdown consumes until SIGINT/SIGTERM.
func StartConsumerWithGracefulShutdown(config ConsumerConfig) error {
	consumer, err := NewConsumer(config)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		return err
	}

	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigterm:
		config.Logger.Info().Msg("received termination signal")
	case <-ctx.Done():
		config.Logger.Info().Msg("context canceled")
	}

	cancel()

	// give in-flight ffmpeg processes a moment to observe cancellation
	time.Sleep(2 * time.Second)

	return consumer.Close()
}

// GetKafkaBrokers parses KAFKA_BOOTSTRAP_SERVERS.
func GetKafkaBrokers() []string {
	brokers := os.Getenv("KAFKA_BOOTSTRAP_SERVERS")
	if brokers == "" {
		brokers = "localhost:9093"
	}
	return strings.Split(brokers, ",")
}

func GetKafkaTopic() string {
	topic := os.Getenv("KAFKA_TOPIC_RENDER_JOBS")
	if topic == "" {
		topic = "render-jobs"
	}
	return topic
}

func GetKafkaGroupID() string {
	groupID := os.Getenv("KAFKA_CONSUMER_GROUP_ID")
	if groupID == "" {
		groupID = "nightreel-render-group"
	}
	return groupID
}
