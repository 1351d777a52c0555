package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/dailydream/studio/internal/pipeline"
)

const QueueCombineVideo = "queue:combine_video"

// Queue is the Redis-backed job list for asynchronous combine jobs.
type Queue struct {
	client *redis.Client
}

func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

// EnqueueCombine pushes a combine job for a background worker to pick up.
func (q *Queue) EnqueueCombine(ctx context.Context, job *pipeline.CombineJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	return q.client.RPush(ctx, QueueCombineVideo, data).Err()
}

// DequeueCombine blocks up to timeout for the next combine job. A nil job
// with nil error means the timeout elapsed with nothing queued.
func (q *Queue) DequeueCombine(ctx context.Context, timeout time.Duration) (*pipeline.CombineJob, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueCombineVideo).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	var job pipeline.CombineJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	return &job, nil
}

func (q *Queue) Length(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, QueueCombineVideo).Result()
}
