package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"

	"nutridash/internal/nutrition/events"
	"nutridash/internal/platform/kafka"
	"nutridash/internal/platform/logger"
)

var watchGroup string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream record change events as JSON lines",
	Long: `Consumes the change topic (KAFKA_TOPIC) from the newest offset and
prints one JSON object per created, updated or deleted record.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchGroup, "group", "", "consumer group (default: none, nothing committed)")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log)

	ctx := cmd.Context()
	client, err := kafka.NewConsumer(ctx, cfg.Kafka, watchGroup)
	if err != nil {
		return err
	}
	defer client.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	w := events.NewWatcher(client, func(_ context.Context, ev events.ChangeEvent) error {
		return enc.Encode(ev)
	}, log)

	log.InfoContext(ctx, "watching change events", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	return w.Run(ctx)
}
