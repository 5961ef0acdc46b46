package main

import (
	"context"
	"errors"
	"fmt"

	"voice-server/internal/bootstrap"
	kafkaClient "voice-server/internal/clients/kafka"
	"voice-server/internal/config"
	"voice-server/internal/observability"
	"voice-server/internal/server"

	"github.com/spf13/cobra"
)

var errKafkaDisabled = errors.New("KAFKA_BROKERS is not set")

func buildServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and media stream server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func buildCallCmd() *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:     "call",
		Short:   "Place an outbound call that connects to this server",
		Example: "  voice-server call --to +15551234567",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd.Context(), cmd, to)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Destination phone number in E.164 format")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func buildEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Follow call events published to Kafka",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(cmd.Context(), cmd)
		},
	}
}

func setup(ctx context.Context) (*config.Config, *bootstrap.Dependencies, *observability.Logger, error) {
	logger := observability.NewLogger()
	cfg, err := config.Load()
	if err != nil {
		logger.Error(ctx, "failed to load configuration", err)
		return nil, nil, nil, err
	}
	deps, err := bootstrap.Initialize(ctx, cfg, logger, observability.NewMetrics())
	if err != nil {
		logger.Error(ctx, "failed to initialize dependencies", err)
		return nil, nil, nil, err
	}
	return cfg, deps, logger, nil
}

func runServe(ctx context.Context) error {
	cfg, deps, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()

	srv := server.New(cfg, deps, logger)
	srv.Setup()
	if err := srv.Start(ctx); err != nil {
		return err
	}
	return srv.WaitForShutdown(ctx)
}

func runCall(ctx context.Context, cmd *cobra.Command, to string) error {
	_, deps, logger, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer deps.Cleanup()

	callSid, err := deps.VoiceCallProcessor.PlaceCall(ctx, to)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), callSid)
	return nil
}

func runEvents(ctx context.Context, cmd *cobra.Command) error {
	logger := observability.NewLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if !cfg.Kafka.Enabled() {
		return errKafkaDisabled
	}

	consumer := kafkaClient.NewConsumer(kafkaClient.ConsumerConfig{
		Brokers: cfg.Kafka.BrokerList(),
		Topic:   cfg.Kafka.StatusTopic,
		GroupID: cfg.Kafka.ConsumerGroup,
	}, logger)
	defer consumer.Close()

	out := cmd.OutOrStdout()
	err = consumer.ConsumeEvents(ctx, func(_ context.Context, ev kafkaClient.EventMessage) error {
		_, err := fmt.Fprintf(out, "%s\t%s\t%s\t%v\n", ev.Timestamp, ev.CallSID, ev.Type, ev.Data)
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
