package asynq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/vidstream/vidstream-processing-service/internal/domain/port"
	"go.uber.org/zap"
)

type MessageHandler func(ctx context.Context, body []byte) error

type ServerConfig struct {
	Queue       string
	Concurrency int
	// ShutdownTimeout bounds how long Shutdown waits for in-flight tasks.
	ShutdownTimeout time.Duration
	BaseDelay       time.Duration
}

// Server runs processing tasks from Redis with a pool of Concurrency workers.
type Server struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

func NewServer(redis asynq.RedisConnOpt, cfg ServerConfig, handler MessageHandler, logger *zap.Logger) *Server {
	srv := asynq.NewServer(redis, asynq.Config{
		Concurrency:     cfg.Concurrency,
		Queues:          map[string]int{cfg.Queue: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger.Named("asynq").Sugar(),
		RetryDelayFunc:  retryDelay(cfg.BaseDelay),
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskProcessVideo, taskHandler(handler, logger))

	return &Server{srv: srv, mux: mux, logger: logger}
}

// taskHandler adapts a body handler to asynq. Malformed payloads are never retried.
func taskHandler(handler MessageHandler, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		err := handler(ctx, t.Payload())
		if errors.Is(err, port.ErrMalformedMessage) {
			logger.Error("discarding malformed task", zap.String("type", t.Type()), zap.Error(err))
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
}

// retryDelay mirrors the RabbitMQ consumer: exponential from base, capped at a minute.
func retryDelay(base time.Duration) asynq.RetryDelayFunc {
	if base <= 0 {
		return asynq.DefaultRetryDelayFunc
	}
	return func(n int, _ error, _ *asynq.Task) time.Duration {
		d := base << min(n, 16)
		if d > time.Minute || d <= 0 {
			d = time.Minute
		}
		return d
	}
}

// Start processes tasks until ctx is cancelled, then waits for in-flight tasks.
func (s *Server) Start(ctx context.Context) error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	s.logger.Info("asynq server started")

	<-ctx.Done()
	s.logger.Info("context cancelled, waiting for tasks to finish")
	s.srv.Shutdown()
	return nil
}
