package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vidstream/vidstream-processing-service/internal/bootstrap"
	asynqqueue "github.com/vidstream/vidstream-processing-service/internal/infra/asynq"
	"github.com/vidstream/vidstream-processing-service/internal/infra/classifier"
	"github.com/vidstream/vidstream-processing-service/internal/infra/config"
	"github.com/vidstream/vidstream-processing-service/internal/infra/email"
	"github.com/vidstream/vidstream-processing-service/internal/infra/ffmpeg"
	"github.com/vidstream/vidstream-processing-service/internal/infra/metrics"
	"github.com/vidstream/vidstream-processing-service/internal/infra/rabbitmq"
	"github.com/vidstream/vidstream-processing-service/internal/infra/tracing"
	"github.com/vidstream/vidstream-processing-service/internal/usecase"
	"github.com/vidstream/vidstream-processing-service/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting vidstream-processing-service",
		zap.String("queue", cfg.QueueBackend),
		zap.String("notifier", cfg.NotifierBackend),
		zap.String("store", cfg.StoreBackend),
		zap.String("storage", cfg.StorageBackend),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(context.Background())
	}

	app, err := bootstrap.New(ctx, cfg, log)
	fatalOnErr(err, "init adapters")
	defer app.Close()

	// Media tools
	prober := ffmpeg.NewProber(cfg.FFprobePath)
	transcoder := ffmpeg.NewTranscoder(cfg.FFmpegPath, prober, log)
	alerter := email.NewSMTPAlerter(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.AlertTo, log)

	progress := usecase.DefaultProgressConfig()
	progress.SimulationInterval = cfg.ProgressSimInterval

	uc := usecase.NewProcessVideoUseCase(
		app.Repo, app.Storage, transcoder, prober,
		classifier.NewRandom(cfg.ClassifierSafeRatio, cfg.ClassifierDelay),
		app.Notifier, alerter,
		log,
		usecase.ProcessVideoConfig{
			TempDir:             cfg.TempDir,
			Progress:            progress,
			ClassifierAttempts:  cfg.ClassifierAttempts,
			ErrorReloadAttempts: cfg.ErrorReloadAttempts,
			ErrorReloadBackoff:  cfg.ErrorReloadBackoff,
		},
	)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, app.Ready, log)

	if cfg.RecoverOnStart {
		recovery := usecase.NewRecoverStalledUseCase(app.Repo, app.Queue, log, cfg.StalledAfter)
		if _, err := recovery.Execute(ctx); err != nil {
			log.Warn("stalled video recovery failed", zap.Error(err))
		}
	}

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("vidstream-processing-service started, consuming tasks")

	switch cfg.QueueBackend {
	case config.QueueAsynq:
		srv := asynqqueue.NewServer(app.RedisOpt, asynqqueue.ServerConfig{
			Queue:           cfg.AsynqQueue,
			Concurrency:     cfg.WorkerCount,
			ShutdownTimeout: cfg.ShutdownTimeout,
			BaseDelay:       time.Duration(cfg.RetryBaseDelayMs) * time.Millisecond,
		}, uc.Execute, log)
		if err := srv.Start(ctx); err != nil {
			log.Error("asynq server error", zap.Error(err))
		}
	default:
		consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
			URL:         cfg.RabbitMQURL,
			Queue:       cfg.RabbitMQProcessingQueue,
			Exchange:    cfg.RabbitMQExchange,
			DLQ:         cfg.RabbitMQDLQ,
			Prefetch:    cfg.RabbitMQPrefetch,
			WorkerCount: cfg.WorkerCount,
			BaseDelayMs: cfg.RetryBaseDelayMs,
			MaxAttempts: cfg.MaxAttempts,
		}, uc.Execute, log)
		fatalOnErr(err, "create consumer")
		if err := consumer.Start(ctx); err != nil {
			log.Error("consumer error", zap.Error(err))
		}
		consumer.Close()
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	log.Info("vidstream-processing-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
