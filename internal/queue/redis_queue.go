package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	readyKey     = "screening:ready"
	inflightKey  = "screening:inflight"
	scheduledKey = "screening:scheduled"
	taskPrefix   = "screening:task:"
	lockPrefix   = "screening:lock:"
)

// RedisQueue is the durable, at-least-once task queue behind the pipeline.
// Ready tasks sit in a list; dequeued tasks move into an in-flight sorted set
// scored by lease deadline, so a crashed worker's tasks get reclaimed; retry
// and deferred tasks wait in a scheduled sorted set scored by run time.
type RedisQueue struct {
	client   *redis.Client
	leaseTTL time.Duration
}

func NewRedisQueue(client *redis.Client, leaseTTL time.Duration) *RedisQueue {
	if leaseTTL <= 0 {
		leaseTTL = 5 * time.Minute
	}
	return &RedisQueue{client: client, leaseTTL: leaseTTL}
}

func taskKey(taskID string) string {
	return taskPrefix + taskID
}

func lockKey(entityID string) string {
	return lockPrefix + entityID
}

// Enqueue stores the payload and pushes the task onto the ready list.
func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, taskKey(task.ID), payload, 0)
	pipe.RPush(ctx, readyKey, task.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue task %s: %w", task.ID, err)
	}
	return nil
}

// Schedule stores the payload and defers the task until runAt.
func (q *RedisQueue) Schedule(ctx context.Context, task Task, runAt time.Time) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task payload: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.Set(ctx, taskKey(task.ID), payload, 0)
	pipe.ZAdd(ctx, scheduledKey, redis.Z{Score: float64(runAt.UnixMilli()), Member: task.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("schedule task %s: %w", task.ID, err)
	}
	return nil
}

// PromoteScheduled moves due scheduled tasks onto the ready list and returns
// how many were promoted.
func (q *RedisQueue) PromoteScheduled(ctx context.Context, now time.Time, limit int64) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, scheduledKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, scheduledKey, id)
		pipe.RPush(ctx, readyKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

var dequeueScript = redis.NewScript(`
local id = redis.call('LPOP', KEYS[1])
if id then
  redis.call('ZADD', KEYS[2], ARGV[1], id)
  return id
end
return nil
`)

// Dequeue pops one ready task and leases it. Returns nil when the queue is
// empty.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Task, error) {
	deadline := time.Now().Add(q.leaseTTL).UnixMilli()
	res, err := dequeueScript.Run(ctx, q.client, []string{readyKey, inflightKey}, deadline).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	taskID, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected type from dequeue script: %T", res)
	}

	payload, err := q.client.Get(ctx, taskKey(taskID)).Result()
	if err == redis.Nil {
		// Payload vanished; drop the orphaned lease.
		_ = q.client.ZRem(ctx, inflightKey, taskID).Err()
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var task Task
	if err := json.Unmarshal([]byte(payload), &task); err != nil {
		_ = q.client.ZRem(ctx, inflightKey, taskID).Err()
		return nil, fmt.Errorf("unmarshal task %s: %w", taskID, err)
	}
	return &task, nil
}

// Ack removes a finished task from in-flight tracking and deletes its payload.
func (q *RedisQueue) Ack(ctx context.Context, taskID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, inflightKey, taskID)
	pipe.Del(ctx, taskKey(taskID))
	_, err := pipe.Exec(ctx)
	return err
}

// RequeueExpired reclaims tasks whose lease ran out, pushing them back onto
// the ready list. This is the redelivery path after a worker crash.
func (q *RedisQueue) RequeueExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	ids, err := q.client.ZRangeByScore(ctx, inflightKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, inflightKey, id)
		pipe.RPush(ctx, readyKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// AcquireEntityLock takes the per-entity processing lock. At most one task per
// entity id may hold it, which serializes duplicate enqueues for the same
// entity.
func (q *RedisQueue) AcquireEntityLock(ctx context.Context, entityID string, ttl time.Duration) (bool, error) {
	return q.client.SetNX(ctx, lockKey(entityID), "1", ttl).Result()
}

// ReleaseEntityLock frees the per-entity processing lock.
func (q *RedisQueue) ReleaseEntityLock(ctx context.Context, entityID string) error {
	return q.client.Del(ctx, lockKey(entityID)).Err()
}

// ReadyDepth reports the ready queue length, used for logging.
func (q *RedisQueue) ReadyDepth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, readyKey).Result()
}
