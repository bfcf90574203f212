package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const deferredKey = "notify:deferred"

// RedisDeferredQueue persists delayed push requests in a sorted set scored by
// delivery time, so a restart never loses a pending off-hours notification.
type RedisDeferredQueue struct {
	client *redis.Client
}

// NewRedisDeferredQueue constructs a RedisDeferredQueue.
func NewRedisDeferredQueue(client *redis.Client) *RedisDeferredQueue {
	return &RedisDeferredQueue{client: client}
}

// Enqueue stores the request scored by its delivery instant.
func (q *RedisDeferredQueue) Enqueue(ctx context.Context, req PushRequest, deliverAt time.Time) error {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("enqueue deferred push: %w", err)
	}
	err = q.client.ZAdd(ctx, deferredKey, redis.Z{
		Score:  float64(deliverAt.Unix()),
		Member: raw,
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueue deferred push: %w", err)
	}
	return nil
}

// Due pops every request whose delivery time has passed. Members are removed
// before decode so a poison entry cannot wedge the queue.
func (q *RedisDeferredQueue) Due(ctx context.Context, now time.Time) ([]PushRequest, error) {
	max := fmt.Sprintf("%d", now.Unix())
	members, err := q.client.ZRangeByScore(ctx, deferredKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: max,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("read deferred pushes: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	if err := q.client.ZRemRangeByScore(ctx, deferredKey, "-inf", max).Err(); err != nil {
		return nil, fmt.Errorf("drain deferred pushes: %w", err)
	}

	out := make([]PushRequest, 0, len(members))
	for _, m := range members {
		var req PushRequest
		if err := json.Unmarshal([]byte(m), &req); err != nil {
			continue
		}
		out = append(out, req)
	}
	return out, nil
}

// DueReader is the worker's view of the deferred store.
type DueReader interface {
	Due(ctx context.Context, now time.Time) ([]PushRequest, error)
}

// Worker periodically drains the deferred queue and hands due requests to the
// push transport.
type Worker struct {
	queue    DueReader
	push     PushSender
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

// NewWorker constructs a Worker. interval <= 0 selects one minute.
func NewWorker(queue DueReader, push PushSender, logger *zap.Logger, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Worker{
		queue:    queue,
		push:     push,
		logger:   logger,
		interval: interval,
		now:      time.Now,
	}
}

// Run drains the queue on every tick until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	due, err := w.queue.Due(ctx, w.now())
	if err != nil {
		w.logger.Error("deferred queue read failed", zap.Error(err))
		return
	}
	for _, req := range due {
		if err := w.push.SendPush(ctx, req); err != nil {
			w.logger.Error("deferred push delivery failed",
				zap.String("attempt_id", req.AttemptID),
				zap.Int64("job_id", req.Payload.JobID),
				zap.Error(err),
			)
			continue
		}
		w.logger.Info("deferred push delivered",
			zap.String("attempt_id", req.AttemptID),
			zap.Int64("job_id", req.Payload.JobID),
		)
	}
}
