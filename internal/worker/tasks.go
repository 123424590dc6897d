// Package worker dispatches pipeline work through the asynq task queue and
// hosts the worker process that consumes it.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types. Generation tasks never retry at the queue level; retries
// belong to the per-stage retry policies inside the pipeline.
const (
	TypeGenerate    = "story:generate"
	TypeRemix       = "story:remix"
	TypePostprocess = "cover:postprocess"
	TypeNotify      = "notify:story_ready"
	TypeSweep       = "maintenance:sweep"
)

// Queue names. Generation work is kept apart from housekeeping so a backlog
// of sweeps can never starve story delivery.
const (
	QueueStories = "stories"
	QueueUtility = "utility"
)

type storyPayload struct {
	ProjectID uuid.UUID `json:"project_id"`
}

func newStoryTask(taskType string, projectID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(storyPayload{ProjectID: projectID})
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", taskType, err)
	}
	return asynq.NewTask(taskType, payload), nil
}

func projectIDFrom(t *asynq.Task) (uuid.UUID, error) {
	var p storyPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return uuid.Nil, fmt.Errorf("unmarshal %s payload: %w", t.Type(), err)
	}
	return p.ProjectID, nil
}

// Client enqueues pipeline tasks. It satisfies the pipeline's Enqueuer.
type Client struct {
	inner *asynq.Client
}

func NewClient(redisURL string) (*Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &Client{inner: asynq.NewClient(opt)}, nil
}

func (c *Client) Close() error { return c.inner.Close() }

// EnqueueGenerate schedules a full pipeline run for a root project.
func (c *Client) EnqueueGenerate(ctx context.Context, projectID uuid.UUID) error {
	return c.enqueue(ctx, TypeGenerate, projectID, asynq.Queue(QueueStories), asynq.MaxRetry(0))
}

// EnqueueRemix schedules a variant pipeline run.
func (c *Client) EnqueueRemix(ctx context.Context, projectID uuid.UUID) error {
	return c.enqueue(ctx, TypeRemix, projectID, asynq.Queue(QueueStories), asynq.MaxRetry(0))
}

// EnqueuePostprocess schedules cover rehoming for a project.
func (c *Client) EnqueuePostprocess(ctx context.Context, projectID uuid.UUID) error {
	return c.enqueue(ctx, TypePostprocess, projectID, asynq.Queue(QueueUtility), asynq.MaxRetry(3))
}

// EnqueueNotify schedules the story-ready notification sink task.
func (c *Client) EnqueueNotify(ctx context.Context, projectID uuid.UUID) error {
	return c.enqueue(ctx, TypeNotify, projectID, asynq.Queue(QueueUtility), asynq.MaxRetry(3))
}

func (c *Client) enqueue(ctx context.Context, taskType string, projectID uuid.UUID, opts ...asynq.Option) error {
	task, err := newStoryTask(taskType, projectID)
	if err != nil {
		return err
	}
	if _, err := c.inner.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue %s for %s: %w", taskType, projectID, err)
	}
	return nil
}
