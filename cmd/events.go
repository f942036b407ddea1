/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/todoapi/apiserver/config"
	"github.com/todoapi/apiserver/internal/logging"
	"github.com/todoapi/apiserver/internal/mq"
	"github.com/todoapi/apiserver/types"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect domain events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Log every event published on the events channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		if cfg.MQ.Backend == "" {
			return errors.New("MQ_BACKEND is not set")
		}
		log := logging.New(cfg.Log)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		defer broker.Close()

		bus := mq.NewEventBus(broker, cfg.MQ.Channel, log)
		log.Info(ctx, "tailing events", "backend", cfg.MQ.Backend, "channel", cfg.MQ.Channel)

		err = bus.Tail(ctx, func(ctx context.Context, event types.Event) error {
			log.Info(ctx, "event",
				"type", event.Type,
				"actor_id", event.ActorID,
				"resource_id", event.ResourceID,
				"occurred_at", event.OccurredAt,
			)
			return nil
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
}
