package pkg

import (
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/learnforge/assessment-core/internal/config"
	"github.com/learnforge/assessment-core/internal/events"
)

// NewEventPublisher picks the event transport from configuration: Kafka when
// brokers are set, in-memory otherwise.
func NewEventPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Warn("No Kafka brokers configured, events stay in memory")
		return events.NewMemoryPublisher(), nil
	}

	publisher, err := events.NewKafkaPublisher(
		cfg.Kafka.Brokers,
		cfg.Kafka.Topic,
		watermill.NewSlogLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Kafka event publisher ready",
		"brokers", cfg.Kafka.Brokers,
		"topic", cfg.Kafka.Topic)
	return publisher, nil
}
