package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"expensebot/internal/amqp"
	"expensebot/internal/cache"
	"expensebot/internal/cli"
	"expensebot/internal/config"
	apphttp "expensebot/internal/http"
	"expensebot/internal/log"
	"expensebot/internal/queue"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Receive webhook events and answer chat messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cfg)
		},
	}
}

func runServe(cfg *config.Config) error {
	logger := cli.SetupLogger(cfg)
	ctx, stop := cli.SignalContext()
	defer stop()

	pipeline, err := cli.BuildPipeline(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}
	defer pipeline.Close()

	q, err := buildQueue(ctx, cfg, pipeline, logger)
	if err != nil {
		return err
	}

	if dedup := pipeline.Processor.DedupCache(); dedup != nil {
		janitor := cache.NewJanitor(dedup)
		go janitor.Run(ctx, cfg.DedupTTL)
	}

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr:               cfg.Addr(),
		VerifyToken:        cfg.WhatsAppVerifyToken,
		AppSecret:          cfg.WhatsAppAppSecret,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
		Metrics:            cfg.MetricsEnabled,
	}, apphttp.Deps{
		Queue:   q,
		Storage: pipeline.Backend.Repository,
		Services: apphttp.Services{
			AIText:    pipeline.Capabilities.AIText,
			AIVision:  pipeline.Capabilities.AIVision,
			Messaging: pipeline.Capabilities.Messaging,
		},
		Logger: logger,
	})
	if err != nil {
		_ = q.Close(context.Background())
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting expensebot server",
			log.FieldOperation, log.OpStartup,
			"addr", cfg.Addr(),
			"backend", cfg.DataBackend,
			"queue", cfg.QueueBackend,
			"sheets", pipeline.Capabilities.Sheets,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)
	case serveErr = <-errCh:
		if serveErr != nil {
			logger.Error("Server error", log.FieldError, serveErr, "addr", cfg.Addr())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldError, err)
	}
	if err := q.Close(shutdownCtx); err != nil {
		logger.Error("Queue shutdown error", log.FieldError, err)
	}
	logger.Info("Server stopped gracefully")
	return serveErr
}

// buildQueue returns the in-process worker pool, or a broker publisher when a
// separate worker consumes the events.
func buildQueue(ctx context.Context, cfg *config.Config, p *cli.Pipeline, logger *log.Logger) (queue.Queue, error) {
	if cfg.QueueBackend == config.QueueAMQP {
		client, err := amqp.NewClient(amqp.Config{
			URL:      cfg.AMQPURL,
			Exchange: cfg.AMQPExchange,
			Queue:    cfg.AMQPQueue,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to broker: %w", err)
		}
		logger.Info("Publishing webhook events to broker", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		return queue.NewBroker(client), nil
	}

	local := queue.NewLocal(queue.LocalConfig{
		Size:       cfg.QueueSize,
		Workers:    cfg.QueueWorkers,
		JobTimeout: cfg.JobTimeout,
	}, func(ctx context.Context, job queue.Job) error {
		return p.Processor.Process(ctx, job.Payload)
	}, logger)
	local.Start(ctx)
	return local, nil
}
