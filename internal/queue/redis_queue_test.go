package queue

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisQueue(client, time.Minute)
}

func TestEnqueueDequeueRoundtrip(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	task := NewTask(TaskResumeParse, uuid.New(), uuid.New())
	require.NoError(t, q.Enqueue(ctx, task))

	depth, err := q.ReadyDepth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, depth)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
	assert.Equal(t, TaskResumeParse, got.Type)
	assert.Equal(t, task.EntityID, got.EntityID)
	assert.Equal(t, task.TenantID, got.TenantID)

	// The queue is drained; the task is leased, not gone.
	empty, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestDequeueEmptyQueue(t *testing.T) {
	q := newTestQueue(t)

	task, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	assert.Nil(t, task)
}

func TestAckRemovesLeaseAndPayload(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	task := NewTask(TaskCandidateScore, uuid.New(), uuid.New())
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NoError(t, q.Ack(ctx, got.ID))

	// An acked task never comes back, even after its lease would expire.
	reclaimed, err := q.RequeueExpired(ctx, time.Now().Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, reclaimed)
}

func TestScheduleAndPromote(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	task := NewTask(TaskJobConfig, uuid.New(), uuid.New())
	runAt := time.Now().Add(30 * time.Second)
	require.NoError(t, q.Schedule(ctx, task, runAt))

	// Not due yet.
	promoted, err := q.PromoteScheduled(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Zero(t, promoted)

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Due now.
	promoted, err = q.PromoteScheduled(ctx, runAt.Add(time.Second), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, promoted)

	got, err = q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
}

func TestRequeueExpiredRedeliversCrashedTasks(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	task := NewTask(TaskResumeParse, uuid.New(), uuid.New())
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)

	// Simulate a crashed worker: the lease runs out without an ack.
	reclaimed, err := q.RequeueExpired(ctx, time.Now().Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{task.ID}, reclaimed)

	redelivered, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, redelivered)
	assert.Equal(t, task.ID, redelivered.ID)
}

func TestRequeueExpiredLeavesLiveLeases(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	task := NewTask(TaskResumeParse, uuid.New(), uuid.New())
	require.NoError(t, q.Enqueue(ctx, task))

	_, err := q.Dequeue(ctx)
	require.NoError(t, err)

	reclaimed, err := q.RequeueExpired(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, reclaimed)
}

func TestEntityLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)
	entityID := uuid.NewString()

	acquired, err := q.AcquireEntityLock(ctx, entityID, time.Minute)
	require.NoError(t, err)
	assert.True(t, acquired)

	// Second holder is refused until release.
	again, err := q.AcquireEntityLock(ctx, entityID, time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	// A different entity is unaffected.
	other, err := q.AcquireEntityLock(ctx, uuid.NewString(), time.Minute)
	require.NoError(t, err)
	assert.True(t, other)

	require.NoError(t, q.ReleaseEntityLock(ctx, entityID))
	reacquired, err := q.AcquireEntityLock(ctx, entityID, time.Minute)
	require.NoError(t, err)
	assert.True(t, reacquired)
}

func TestTaskPayloadSurvivesRoundtrip(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	task := NewTask(TaskJobConfig, uuid.New(), uuid.New())
	task.Attempt = 2
	task.Publish = true
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Attempt)
	assert.True(t, got.Publish)
}
