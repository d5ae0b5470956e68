package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"starscreen/screening/internal/queue"
	"starscreen/screening/internal/services"
)

// TaskHandler is one pipeline stage. Run performs the stage; Fail records the
// terminal failure on the entity once the orchestrator gives up on the task.
type TaskHandler struct {
	Run  func(ctx context.Context, task queue.Task) error
	Fail func(ctx context.Context, task queue.Task, taskErr error)
}

type Config struct {
	Concurrency       int
	MaxAttempts       int
	RetryInitialDelay time.Duration
	TaskTimeout       time.Duration
	PollInterval      time.Duration
	LockTTL           time.Duration
}

// Worker drives a bounded pool of goroutines over the task queue. One
// dispatcher loop promotes scheduled tasks, reclaims expired leases and feeds
// dequeued tasks to the pool.
type Worker struct {
	queue    *queue.RedisQueue
	handlers map[queue.TaskType]TaskHandler
	cfg      Config
	logger   *zap.Logger

	taskChan chan queue.Task
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(q *queue.RedisQueue, cfg Config, logger *zap.Logger) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 3
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryInitialDelay <= 0 {
		cfg.RetryInitialDelay = time.Second
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 4 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 500 * time.Millisecond
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.TaskTimeout + time.Minute
	}

	return &Worker{
		queue:    q,
		handlers: make(map[queue.TaskType]TaskHandler),
		cfg:      cfg,
		logger:   logger,
		taskChan: make(chan queue.Task),
		stopChan: make(chan struct{}),
	}
}

// Register binds a handler to a task type. All registrations must happen
// before Start.
func (w *Worker) Register(taskType queue.TaskType, handler TaskHandler) {
	w.handlers[taskType] = handler
}

func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("starting pipeline workers", zap.Int("concurrency", w.cfg.Concurrency))

	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.processTasks(ctx, i+1)
	}

	w.wg.Add(1)
	go w.dispatch(ctx)
}

func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	w.wg.Wait()
	w.logger.Info("pipeline workers stopped")
}

func (w *Worker) dispatch(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now()
		if _, err := w.queue.PromoteScheduled(ctx, now, 100); err != nil {
			w.logger.Warn("failed to promote scheduled tasks", zap.Error(err))
		}
		if reclaimed, err := w.queue.RequeueExpired(ctx, now, 100); err != nil {
			w.logger.Warn("failed to reclaim expired leases", zap.Error(err))
		} else if len(reclaimed) > 0 {
			w.logger.Info("reclaimed expired task leases", zap.Int("count", len(reclaimed)))
		}

		for {
			task, err := w.queue.Dequeue(ctx)
			if err != nil {
				w.logger.Warn("failed to dequeue task", zap.Error(err))
				break
			}
			if task == nil {
				break
			}

			select {
			case w.taskChan <- *task:
			case <-w.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) processTasks(ctx context.Context, workerID int) {
	defer w.wg.Done()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case task := <-w.taskChan:
			w.handle(ctx, workerID, task)
		}
	}
}

func (w *Worker) handle(ctx context.Context, workerID int, task queue.Task) {
	log := w.logger.With(
		zap.Int("worker", workerID),
		zap.String("task_id", task.ID),
		zap.String("task_type", string(task.Type)),
		zap.String("entity_id", task.EntityID.String()),
		zap.Int("attempt", task.Attempt),
	)

	handler, ok := w.handlers[task.Type]
	if !ok {
		log.Error("no handler registered for task type, dropping task")
		w.ack(ctx, task.ID)
		return
	}

	entityID := task.EntityID.String()
	acquired, err := w.queue.AcquireEntityLock(ctx, entityID, w.cfg.LockTTL)
	if err != nil {
		log.Warn("failed to take entity lock, rescheduling", zap.Error(err))
		w.reschedule(ctx, task, 5*time.Second)
		return
	}
	if !acquired {
		// Another task for this entity is in flight; try again shortly.
		log.Debug("entity lock busy, rescheduling")
		w.reschedule(ctx, task, 5*time.Second)
		return
	}
	defer func() {
		if err := w.queue.ReleaseEntityLock(ctx, entityID); err != nil {
			log.Warn("failed to release entity lock", zap.Error(err))
		}
	}()

	taskCtx, cancel := context.WithTimeout(ctx, w.cfg.TaskTimeout)
	runErr := runSafely(taskCtx, handler, task)
	cancel()

	if runErr == nil {
		w.ack(ctx, task.ID)
		log.Info("task completed")
		return
	}

	if services.IsRetryable(runErr) && task.Attempt+1 < w.cfg.MaxAttempts {
		// The retry gets a fresh task id and is scheduled before the old
		// task is acked: a crash in between redelivers the old copy, never
		// loses the task. Handlers are idempotent, so a duplicate is safe.
		retry := task
		retry.ID = uuid.New().String()
		retry.Attempt++
		backoff := w.cfg.RetryInitialDelay << task.Attempt
		log.Warn("transient task failure, scheduling retry",
			zap.Duration("backoff", backoff),
			zap.Error(runErr),
		)
		if err := w.queue.Schedule(ctx, retry, time.Now().Add(backoff)); err != nil {
			// Scheduling failed; fail the entity rather than losing the task
			// silently.
			log.Error("failed to schedule retry", zap.Error(err))
			handler.Fail(ctx, task, runErr)
		}
		w.ack(ctx, task.ID)
		return
	}

	log.Error("task failed terminally", zap.Error(runErr))
	handler.Fail(ctx, task, runErr)
	w.ack(ctx, task.ID)
}

// runSafely keeps a panicking handler from taking the worker down; the panic
// becomes a terminal task error.
func runSafely(ctx context.Context, handler TaskHandler, task queue.Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panicked: %v", r)
		}
	}()
	return handler.Run(ctx, task)
}

func (w *Worker) ack(ctx context.Context, taskID string) {
	if err := w.queue.Ack(ctx, taskID); err != nil {
		w.logger.Warn("failed to ack task", zap.String("task_id", taskID), zap.Error(err))
	}
}

// reschedule defers a task under a fresh id, scheduling the copy before
// acking the original so a crash in between cannot lose the task.
func (w *Worker) reschedule(ctx context.Context, task queue.Task, delay time.Duration) {
	deferred := task
	deferred.ID = uuid.New().String()
	if err := w.queue.Schedule(ctx, deferred, time.Now().Add(delay)); err != nil {
		w.logger.Error("failed to reschedule task", zap.String("task_id", task.ID), zap.Error(err))
		return
	}
	w.ack(ctx, task.ID)
}
