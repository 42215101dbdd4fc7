package main

import (
	"context"
	"log/slog"

	"github.com/BearBump/ClaimBox/config"
	"github.com/BearBump/ClaimBox/internal/bootstrap"
	"github.com/BearBump/ClaimBox/internal/broker/kafka"
	"github.com/BearBump/ClaimBox/internal/broker/messages"
	"github.com/BearBump/ClaimBox/internal/integrations/cargo"
	"github.com/BearBump/ClaimBox/internal/services/outcome"
	"github.com/pkg/errors"
)

type outcomeConsumer interface {
	ConsumeOutcomes(ctx context.Context, handler func(ctx context.Context, o messages.ClaimOutcome) error) error
	Close() error
}

type workerFactories struct {
	newCargoAPI func(cfg *config.Config) (*cargo.API, func(), error)
	newReporter func(ctx context.Context, cfg *config.Config) (outcome.Reporter, func(), error)
	newConsumer func(cfg *config.Config) (outcomeConsumer, error)
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newCargoAPI: bootstrap.NewCargoAPI,
		newReporter: bootstrap.NewReporter,
		newConsumer: func(cfg *config.Config) (outcomeConsumer, error) {
			brokers := cfg.KafkaBrokers()
			if len(brokers) == 0 {
				return nil, errors.New("kafka host is required for claim-worker")
			}
			return kafka.NewConsumer(brokers, outcomesTopic(cfg), consumerGroup(cfg)), nil
		},
	}
}

func outcomesTopic(cfg *config.Config) string {
	if cfg.Kafka.ClaimOutcomesTopicName != "" {
		return cfg.Kafka.ClaimOutcomesTopicName
	}
	return messages.ClaimOutcomesTopic
}

func consumerGroup(cfg *config.Config) string {
	if cfg.ClaimBox.KafkaConsumerGroup != "" {
		return cfg.ClaimBox.KafkaConsumerGroup
	}
	return "claim-worker"
}

func RunClaimWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	var closers bootstrap.Closers
	defer closers.Close()

	api, closeAPI, err := f.newCargoAPI(cfg)
	if err != nil {
		return err
	}
	closers.Add(closeAPI)

	rep, closeRep, err := f.newReporter(ctx, cfg)
	if err != nil {
		return err
	}
	closers.Add(closeRep)

	consumer, err := f.newConsumer(cfg)
	if err != nil {
		return err
	}
	closers.Add(func() { _ = consumer.Close() })

	svc := bootstrap.NewServices(cfg, api, rep)
	h := &outcomeHandler{cancel: svc.Cancel, cancelOriginals: cfg.ClaimBox.CancelOriginals}
	if !h.cancelOriginals {
		slog.Warn("cancel_originals is off, outcomes are only counted")
	}

	if addr := cfg.ClaimBox.WorkerHTTPAddr; addr != "" {
		go func() {
			if err := runWorkerHTTPServer(ctx, workerHTTPOpts{httpAddr: addr, handler: h, cfg: cfg}); err != nil {
				slog.Error("worker http server", "error", err.Error())
			}
		}()
	}

	slog.Info("kafka consumer started", "topic", outcomesTopic(cfg), "group", consumerGroup(cfg))
	err = consumer.ConsumeOutcomes(ctx, h.Handle)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
