package worker

import (
	"context"
	"errors"

	"github.com/tianyuan-next/internal/config"
	"github.com/tianyuan-next/internal/logger"
	"github.com/tianyuan-next/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务,消费任务并周期调度后台维护任务
type Service struct {
	name      string
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	consumer  *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)

	scheduler := asynq.NewScheduler(opt, nil)
	if err := registerPeriodicTasks(scheduler); err != nil {
		return nil, err
	}

	return &Service{
		name:      "worker",
		server:    server,
		mux:       mux,
		scheduler: scheduler,
		consumer:  consumer,
	}, nil
}

func registerPeriodicTasks(scheduler *asynq.Scheduler) error {
	pollTask, err := queue.NewPaymentStatusPollTask(queue.PaymentStatusPollPayload{})
	if err != nil {
		return err
	}
	entries := []struct {
		spec string
		task *asynq.Task
	}{
		{"@every 1m", pollTask},
		{"@every 10m", queue.NewResultExpireSweepTask()},
		{"@every 30m", queue.NewCaptchaCleanupTask()},
	}
	for _, e := range entries {
		if _, err := scheduler.Register(e.spec, e.task, asynq.Queue(queue.DefaultQueue)); err != nil {
			return err
		}
	}
	return nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	_ = ctx
	if s.scheduler != nil {
		if err := s.scheduler.Start(); err != nil {
			logger.Errorw("worker_scheduler_start_failed", "error", err)
			return err
		}
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil {
		return nil
	}
	_ = ctx
	if s.scheduler != nil {
		s.scheduler.Shutdown()
	}
	if s.server != nil {
		s.server.Shutdown()
	}
	return nil
}
