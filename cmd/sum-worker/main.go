package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/getsum-node/api/controllers"
	"github.com/angelmondragon/getsum-node/api/routes"
	"github.com/angelmondragon/getsum-node/internal/sum"
	"github.com/angelmondragon/getsum-node/internal/worker"
	"github.com/angelmondragon/getsum-node/pkg/config"
	"github.com/angelmondragon/getsum-node/pkg/idempotency"
	"github.com/angelmondragon/getsum-node/pkg/logger"
	"github.com/angelmondragon/getsum-node/pkg/metrics"
	"github.com/angelmondragon/getsum-node/pkg/pubsub"
	"github.com/angelmondragon/getsum-node/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "sum-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: cfg.Service.Kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)

	subscription := pubsubClient.InputSubscription()
	if subscription == nil {
		requireResource(ctx, logg, "input subscription", errors.New("subscription not configured"))
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.IdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	node, err := sum.NewNode(sum.NodeConfig{InputKey: cfg.Node.InputKey, OutputKey: cfg.Node.OutputKey})
	requireResource(ctx, logg, "sum node", err)

	service, err := worker.NewService(worker.ServiceParams{
		Subscription:     subscription,
		Handler:          node,
		Manager:          manager,
		PublisherFactory: worker.NewPublisherFactory(pubsubClient),
		SuccessTopic:     cfg.PubSub.SuccessTopic,
		FailureTopic:     cfg.PubSub.FailureTopic,
		Metrics:          metrics.NewTransformMetrics(prometheus.DefaultRegisterer),
		Logger:           logg,
	})
	requireResource(ctx, logg, "sum worker service", err)

	server := &http.Server{
		Addr:              cfg.Ops.Addr(),
		ReadHeaderTimeout: cfg.Ops.ReadHeaderTimeout,
		Handler: routes.NewRouter(routes.Deps{
			Logger:   logg,
			Node:     node,
			Gatherer: prometheus.DefaultGatherer,
			ReadyChecks: map[string]controllers.Pinger{
				"redis":  redisClient,
				"pubsub": pubsubClient,
			},
		}),
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"inputKey":    cfg.Node.InputKey,
		"outputKey":   cfg.Node.OutputKey,
	})

	go func() {
		logg.Info(logg.WithField(runCtx, "addr", server.Addr), "ops server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(runCtx, "ops server stopped unexpectedly", err)
			stop()
		}
	}()

	logg.Info(runCtx, "sum worker ready")
	runErr := service.Run(runCtx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logg.Error(runCtx, "sum worker failed", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	service.Close()
	closeErr := multierr.Combine(
		server.Shutdown(shutdownCtx),
		pubsubClient.Close(),
		redisClient.Close(),
	)
	if closeErr != nil {
		logg.Error(ctx, "shutdown incomplete", closeErr)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		os.Exit(1)
	}
	logg.Info(ctx, "sum worker stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
