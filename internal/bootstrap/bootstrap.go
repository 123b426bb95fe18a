package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/vidstream/vidstream-processing-service/internal/domain/port"
	asynqqueue "github.com/vidstream/vidstream-processing-service/internal/infra/asynq"
	"github.com/vidstream/vidstream-processing-service/internal/infra/config"
	"github.com/vidstream/vidstream-processing-service/internal/infra/eventbus"
	"github.com/vidstream/vidstream-processing-service/internal/infra/localfs"
	"github.com/vidstream/vidstream-processing-service/internal/infra/memory"
	miniostorage "github.com/vidstream/vidstream-processing-service/internal/infra/minio"
	"github.com/vidstream/vidstream-processing-service/internal/infra/postgres"
	"github.com/vidstream/vidstream-processing-service/internal/infra/rabbitmq"
	redisnotifier "github.com/vidstream/vidstream-processing-service/internal/infra/redis"
	s3storage "github.com/vidstream/vidstream-processing-service/internal/infra/s3"
	"go.uber.org/zap"
)

// App holds the adapters selected by configuration. Every binary builds one
// and closes it on exit.
type App struct {
	Config   *config.Config
	Logger   *zap.Logger
	Repo     port.VideoRepository
	Storage  port.MediaStorage
	Queue    port.JobQueue
	Notifier port.Notifier
	// Events is set when events stay in process.
	Events *eventbus.Bus

	AMQP     *amqp.Connection
	RedisOpt asynq.RedisConnOpt

	checks  []func(context.Context) error
	closers []func() error
}

// New opens every configured backend. On failure the resources opened so far
// are closed before the error is returned.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}
	if err := app.open(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) open(ctx context.Context) error {
	if err := a.initStore(ctx); err != nil {
		return err
	}
	if err := a.initStorage(ctx); err != nil {
		return err
	}
	return a.initMessaging()
}

func (a *App) initStore(ctx context.Context) error {
	switch a.Config.StoreBackend {
	case config.StoreMemory:
		a.Logger.Warn("using in-memory video store, records are lost on exit")
		a.Repo = memory.NewVideoRepository()
	default:
		pool, err := pgxpool.New(ctx, a.Config.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.checks = append(a.checks, pool.Ping)

		if err := postgres.RunMigrations(a.Config.DatabaseURL, a.Config.MigrationsPath); err != nil {
			a.Logger.Warn("migration warning", zap.Error(err))
		}
		a.Repo = postgres.NewVideoRepository(pool)
	}
	return nil
}

func (a *App) initStorage(ctx context.Context) error {
	cfg := a.Config
	switch cfg.StorageBackend {
	case config.StorageMinIO:
		storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
			Endpoint:     cfg.MinIOEndpoint,
			AccessKey:    cfg.MinIOAccessKey,
			SecretKey:    cfg.MinIOSecretKey,
			UseSSL:       cfg.MinIOUseSSL,
			UploadBucket: cfg.MinIOUploadBucket,
			OutputBucket: cfg.MinIOOutputBucket,
		})
		if err != nil {
			return fmt.Errorf("create minio storage: %w", err)
		}
		if err := storage.EnsureBuckets(ctx); err != nil {
			return fmt.Errorf("ensure minio buckets: %w", err)
		}
		a.Storage = storage
	case config.StorageS3:
		storage, err := s3storage.NewStorage(ctx, s3storage.StorageConfig{
			Bucket:          cfg.S3Bucket,
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			AccessKeySecret: cfg.S3AccessKeySecret,
			UsePathStyle:    cfg.S3UsePathStyle,
		})
		if err != nil {
			return fmt.Errorf("create s3 storage: %w", err)
		}
		a.Storage = storage
	default:
		a.Storage = localfs.NewStorage(cfg.LocalStorageRoot)
	}
	return nil
}

func (a *App) initMessaging() error {
	cfg := a.Config

	var pub *rabbitmq.Publisher
	if cfg.QueueBackend == config.QueueRabbitMQ || cfg.NotifierBackend == config.NotifierRabbitMQ {
		conn, err := amqp.Dial(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		a.AMQP = conn
		a.closers = append(a.closers, conn.Close)
		a.checks = append(a.checks, func(context.Context) error {
			if conn.IsClosed() {
				return errors.New("rabbitmq connection closed")
			}
			return nil
		})

		pub, err = rabbitmq.NewPublisher(conn, cfg.RabbitMQExchange)
		if err != nil {
			return err
		}
	}

	if cfg.QueueBackend == config.QueueAsynq {
		opt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		a.RedisOpt = opt
		q := asynqqueue.NewQueue(opt, cfg.AsynqQueue, cfg.AsynqMaxRetry)
		a.closers = append(a.closers, q.Close)
		a.Queue = q
	} else {
		if err := pub.DeclareExchange(); err != nil {
			return err
		}
		a.Queue = rabbitmq.NewJobQueue(pub)
	}

	switch cfg.NotifierBackend {
	case config.NotifierRedis:
		client, err := redisnotifier.NewClient(cfg.RedisURL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)
		a.checks = append(a.checks, func(ctx context.Context) error { return client.Ping(ctx).Err() })
		a.Notifier = redisnotifier.NewNotifier(client, cfg.RedisChannelPrefix)
	case config.NotifierMemory:
		a.Events = eventbus.New(cfg.EventHistory)
		a.Notifier = a.Events
	default:
		n, err := rabbitmq.NewNotifier(pub, cfg.RabbitMQEventsExchange)
		if err != nil {
			return err
		}
		a.Notifier = n
	}
	return nil
}

// Ready reports whether every network dependency answers.
func (a *App) Ready(ctx context.Context) error {
	for _, check := range a.checks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("error closing resource", zap.Error(err))
		}
	}
	a.closers = nil
}
