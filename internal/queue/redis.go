package queue

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"catalog/importer/internal/domain/task"
)

const StreamPrefix = "catalog:stream:"

// Queue publishes tasks to per-type streams and reads them back for inspection.
type Queue interface {
	AddTask(ctx context.Context, task task.Task) (string, error) // Returns message ID
	RecentTasks(ctx context.Context, taskType string, count int64) ([]redis.XMessage, error)
	Close() error
}

// streamClient is the subset of *redis.Client the queue needs.
type streamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRevRangeN(ctx context.Context, stream, start, stop string, count int64) *redis.XMessageSliceCmd
	Close() error
}

type RedisQueue struct {
	redisClient  streamClient
	streamPrefix string
	maxLen       int64
}

// NewRedisQueue returns a queue that caps every stream at roughly maxLen
// entries. Zero leaves streams uncapped.
func NewRedisQueue(redisClient *redis.Client, maxLen int64) Queue {
	return newRedisQueue(redisClient, maxLen)
}

func newRedisQueue(client streamClient, maxLen int64) *RedisQueue {
	return &RedisQueue{
		redisClient:  client,
		streamPrefix: StreamPrefix,
		maxLen:       maxLen,
	}
}

func (q *RedisQueue) AddTask(ctx context.Context, task task.Task) (string, error) {
	taskType := task.TaskType()
	streamName := q.streamPrefix + taskType

	taskValue, err := task.TaskValue()
	if err != nil {
		return "", fmt.Errorf("failed to serialize task: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: streamName,
		Values: map[string]interface{}{
			"task_type": taskType,
			"task_data": string(taskValue),
		},
	}
	if q.maxLen > 0 {
		args.MaxLen = q.maxLen
		args.Approx = true
	}

	messageID, err := q.redisClient.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("failed to add task to Redis stream %s: %w", streamName, err)
	}

	log.Debugf("Added task %s to stream %s with message ID: %s", taskType, streamName, messageID)
	return messageID, nil
}

// RecentTasks returns up to count messages of a task type, newest first.
func (q *RedisQueue) RecentTasks(ctx context.Context, taskType string, count int64) ([]redis.XMessage, error) {
	streamName := q.streamPrefix + taskType

	msgs, err := q.redisClient.XRevRangeN(ctx, streamName, "+", "-", count).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read from Redis stream %s: %w", streamName, err)
	}
	return msgs, nil
}

func (q *RedisQueue) Close() error {
	if q.redisClient != nil {
		return q.redisClient.Close()
	}
	return nil
}

// DecodeFailures turns stream messages back into failure tasks, skipping
// entries that are not FailedItemTask.
func DecodeFailures(msgs []redis.XMessage) ([]*task.FailedItemTask, error) {
	out := make([]*task.FailedItemTask, 0, len(msgs))
	for _, msg := range msgs {
		taskType, ok := msg.Values["task_type"].(string)
		if !ok || taskType != (&task.FailedItemTask{}).TaskType() {
			continue
		}

		taskData, ok := msg.Values["task_data"].(string)
		if !ok {
			return nil, fmt.Errorf("invalid task data in message %s", msg.ID)
		}

		t, err := task.UnmarshalTask[*task.FailedItemTask]([]byte(taskData))
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal failure in message %s: %w", msg.ID, err)
		}
		out = append(out, t)
	}
	return out, nil
}
