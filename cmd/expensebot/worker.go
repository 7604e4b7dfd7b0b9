package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"expensebot/internal/amqp"
	"expensebot/internal/cache"
	"expensebot/internal/cli"
	"expensebot/internal/config"
	"expensebot/internal/log"
	"expensebot/internal/queue"
)

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume webhook events from the broker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.ValidateWorker(); err != nil {
				return err
			}
			return runWorker(cfg)
		},
	}
}

func runWorker(cfg *config.Config) error {
	logger := cli.SetupLogger(cfg)
	ctx, stop := cli.SignalContext()
	defer stop()

	pipeline, err := cli.BuildPipeline(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer pipeline.Close()

	if dedup := pipeline.Processor.DedupCache(); dedup != nil {
		go cache.NewJanitor(dedup).Run(ctx, cfg.DedupTTL)
	}

	client, err := amqp.NewClient(amqp.Config{
		URL:      cfg.AMQPURL,
		Exchange: cfg.AMQPExchange,
		Queue:    cfg.AMQPQueue,
		Prefetch: cfg.QueueWorkers,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}
	defer client.Close()

	logger.Info("Starting expensebot worker", log.FieldOperation, log.OpStartup, "queue", cfg.AMQPQueue, "backend", cfg.DataBackend)
	err = queue.Consume(ctx, client, func(ctx context.Context, job queue.Job) error {
		if cfg.JobTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.JobTimeout)
			defer cancel()
		}
		if err := pipeline.Processor.Process(ctx, job.Payload); err != nil {
			logger.ErrorContext(ctx, "Job failed", log.FieldJobID, job.ID, log.FieldError, err)
			return err
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Worker stopped gracefully")
	return nil
}
