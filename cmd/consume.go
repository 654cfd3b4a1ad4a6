package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"nightreel/consumer"
	"nightreel/services"
	sharedKafka "nightreel/shared/kafka"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Render jobs from the Kafka topic until interrupted",
	Long: `Join the KAFKA_CONSUMER_GROUP_ID consumer group on KAFKA_TOPIC_RENDER_JOBS
(brokers from KAFKA_BOOTSTRAP_SERVERS) and render each job message.`,
	RunE: runConsume,
}

var enqueueCmd = &cobra.Command{
	Use:   "enqueue <job.json>...",
	Short: "Publish job files to the Kafka topic",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEnqueue,
}

var consumeOpts appOptions

func init() {
	consumeCmd.Flags().BoolVar(&consumeOpts.noPublish, "no-publish", false, "Skip S3/YouTube publishing")
}

func runConsume(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), consumeOpts)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println(TitleStyle.Render("nightreel consumer on " + consumer.GetKafkaTopic()))
	return consumer.StartConsumerWithGracefulShutdown(consumer.ConsumerConfig{
		Brokers:   consumer.GetKafkaBrokers(),
		Topic:     consumer.GetKafkaTopic(),
		GroupID:   consumer.GetKafkaGroupID(),
		Processor: a.proc,
		Logger:    logger,
	})
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	producer, err := sharedKafka.NewProducer(consumer.GetKafkaBrokers(), consumer.GetKafkaTopic())
	if err != nil {
		return err
	}
	defer producer.Close()

	for _, path := range args {
		job, err := services.LoadJobFile(path)
		if err != nil {
			return err
		}
		if err := job.Validate(); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}

		partition, offset, err := producer.SendJSON(job.ID, job)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		fmt.Println(SuccessStyle.Render(fmt.Sprintf("✓ %s queued (partition %d, offset %d)", job.ID, partition, offset)))
	}
	return nil
}
