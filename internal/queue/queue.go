// Package queue implements a Redis-backed, crash-safe FIFO for
// verification jobs: an atomic dequeue moves a payload onto an in-flight
// list, and the worker must explicitly complete it to remove it.
package queue

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/aerocristobal/label-verify/infrastructure/errors"
	"github.com/aerocristobal/label-verify/internal/model"
)

const (
	queueKey      = "label_verify:jobs"
	processingKey = "label_verify:processing"
)

// Queue is a Redis-backed reliable FIFO.
type Queue struct {
	client *redis.Client
}

// New wraps an existing Redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// NewFromURL parses redisURL and opens a connection.
func NewFromURL(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, apperrors.QueueError("parse_url", err)
	}
	return &Queue{client: redis.NewClient(opts)}, nil
}

// Enqueue pushes payload onto the tail of the pending queue.
func (q *Queue) Enqueue(ctx context.Context, job model.QueuedJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return apperrors.Internal("marshal queued job", err)
	}
	if err := q.client.LPush(ctx, queueKey, payload).Err(); err != nil {
		return apperrors.QueueError("enqueue", err)
	}
	return nil
}

// Dequeue atomically moves one payload from the head of the pending
// queue to the tail of the in-flight list. Returns nil, nil if the
// queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (*model.QueuedJob, error) {
	payload, err := q.client.RPopLPush(ctx, queueKey, processingKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.QueueError("dequeue", err)
	}

	var job model.QueuedJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, apperrors.Internal("unmarshal queued job", err)
	}
	return &job, nil
}

// Complete removes one occurrence of the exact serialized payload from
// the in-flight list. job must be byte-identical to the value returned
// by Dequeue.
func (q *Queue) Complete(ctx context.Context, job model.QueuedJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return apperrors.Internal("marshal queued job", err)
	}
	if err := q.client.LRem(ctx, processingKey, 1, payload).Err(); err != nil {
		return apperrors.QueueError("complete", err)
	}
	return nil
}

// Depth returns the number of jobs waiting on the pending queue.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	depth, err := q.client.LLen(ctx, queueKey).Result()
	if err != nil {
		return 0, apperrors.QueueError("depth", err)
	}
	return depth, nil
}

// InFlightDepth returns the number of jobs dequeued but not yet completed.
func (q *Queue) InFlightDepth(ctx context.Context) (int64, error) {
	depth, err := q.client.LLen(ctx, processingKey).Result()
	if err != nil {
		return 0, apperrors.QueueError("in_flight_depth", err)
	}
	return depth, nil
}

// Health pings the Redis connection.
func (q *Queue) Health(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return apperrors.QueueError("health", err)
	}
	return nil
}
