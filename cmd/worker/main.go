// Worker consumes telemetry events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, TELEMETRY_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/ZewK3/Home-sub002/internal/config"
	"github.com/ZewK3/Home-sub002/internal/platform/logging"
	"github.com/ZewK3/Home-sub002/internal/telemetry/loki"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := logging.Setup("storefront-telemetry-worker", cfg.LogLevel, cfg.Env)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("worker")
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	sink, err := loki.NewClient(cfg.LokiURL, "storefront", nil)
	if err != nil {
		return err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.TelemetryKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	logger.Info().
		Str("topic", cfg.TelemetryKafkaTopic).
		Str("group", cfg.KafkaGroupID).
		Str("loki", cfg.LokiURL).
		Msg("consuming telemetry")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info().Msg("worker stopped")
				return nil
			}
			logger.Error().Err(err).Msg("kafka read")
			continue
		}

		pushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := sink.PushEventJSON(pushCtx, msg.Value); err != nil {
			logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("loki push failed")
		}
		cancel()
	}
}
