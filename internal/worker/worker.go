package worker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/tellatale/engine/internal/pipeline"
	"github.com/tellatale/engine/internal/sweeper"
)

// sweepCron fires the daily reaper during the quiet hours.
const sweepCron = "0 3 * * *"

// Server consumes pipeline tasks and runs the maintenance schedule.
type Server struct {
	srv       *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
}

func NewServer(redisURL string, concurrency int, p *pipeline.Pipeline, sw *sweeper.Sweeper) (*Server, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			QueueStories: 6,
			QueueUtility: 2,
		},
		Logger: slogAdapter{},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeGenerate, func(ctx context.Context, t *asynq.Task) error {
		id, err := projectIDFrom(t)
		if err != nil {
			return err
		}
		return p.Run(ctx, id)
	})
	mux.HandleFunc(TypeRemix, func(ctx context.Context, t *asynq.Task) error {
		id, err := projectIDFrom(t)
		if err != nil {
			return err
		}
		return p.RunRemix(ctx, id)
	})
	mux.HandleFunc(TypePostprocess, func(ctx context.Context, t *asynq.Task) error {
		id, err := projectIDFrom(t)
		if err != nil {
			return err
		}
		return p.PostprocessCover(ctx, id)
	})
	mux.HandleFunc(TypeNotify, func(ctx context.Context, t *asynq.Task) error {
		id, err := projectIDFrom(t)
		if err != nil {
			return err
		}
		return notifyStoryReady(ctx, p, id)
	})
	mux.HandleFunc(TypeSweep, func(ctx context.Context, _ *asynq.Task) error {
		return sw.Run(ctx)
	})

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{Logger: slogAdapter{}})
	if _, err := scheduler.Register(sweepCron,
		asynq.NewTask(TypeSweep, nil),
		asynq.Queue(QueueUtility), asynq.MaxRetry(1),
	); err != nil {
		return nil, fmt.Errorf("register sweep schedule: %w", err)
	}

	return &Server{srv: srv, scheduler: scheduler, mux: mux}, nil
}

// Start runs the worker pool and the scheduler without blocking.
func (s *Server) Start() error {
	if err := s.srv.Start(s.mux); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	if err := s.scheduler.Start(); err != nil {
		s.srv.Shutdown()
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

// Shutdown drains in-flight tasks and stops the schedule.
func (s *Server) Shutdown() {
	s.scheduler.Shutdown()
	s.srv.Shutdown()
}

// notifyStoryReady is the delivery sink: actual fan-out to mail or push
// providers lives outside this service, so the payload is logged for the
// external consumer.
func notifyStoryReady(ctx context.Context, p *pipeline.Pipeline, projectID uuid.UUID) error {
	proj, err := p.Store.GetProject(ctx, projectID)
	if err != nil {
		return fmt.Errorf("load project for notification: %w", err)
	}
	slog.Info("story ready",
		"project_id", proj.ID,
		"user_id", proj.UserID,
		"title", proj.Title,
		"cover_url", proj.CoverURL,
		"story_url", fmt.Sprintf("%s/stories/%s", p.Cfg.Frontend.BaseURL, proj.ID),
	)
	return nil
}

// slogAdapter bridges asynq's logger interface onto slog.
type slogAdapter struct{}

func (slogAdapter) Debug(args ...any) { slog.Debug(fmt.Sprint(args...)) }
func (slogAdapter) Info(args ...any)  { slog.Info(fmt.Sprint(args...)) }
func (slogAdapter) Warn(args ...any)  { slog.Warn(fmt.Sprint(args...)) }
func (slogAdapter) Error(args ...any) { slog.Error(fmt.Sprint(args...)) }
func (slogAdapter) Fatal(args ...any) { slog.Error(fmt.Sprint(args...)) }
