package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	amqpx "coopledger/internal/amqp"
	"coopledger/internal/config"
	"coopledger/internal/log"
	"coopledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{
		Level:     log.DefaultConfig().Level,
		Component: log.ComponentWorker,
	})
	logger.Info("Starting coopledger-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	client, err := dialBroker(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	auditor := worker.NewAuditor(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return client.ConsumeActivities(ctx, auditor.HandleActivity)
	})

	logger.Info("Consuming activity events",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue)

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}

// dialBroker retries the broker connection until it succeeds or the
// configured dial window runs out. The worker usually starts alongside the
// broker container, which needs a moment to accept connections.
func dialBroker(cfg config.Config, logger *log.Logger) (*amqpx.Client, error) {
	deadline := time.Now().Add(cfg.BrokerDialTimeout)
	for {
		client, err := amqpx.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err == nil {
			return client, nil
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		logger.Warn("Broker not ready, retrying", log.FieldError, err)
		time.Sleep(2 * time.Second)
	}
}
