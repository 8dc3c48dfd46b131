package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"homeservices/internal/domain"
	"homeservices/internal/metrics"
	"homeservices/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TaskHandler delivers one outbox task. A returned error schedules a retry.
type TaskHandler func(ctx context.Context, task *models.OutboxTask) error

// permanentError marks a failure that retrying cannot fix.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent wraps err so the task is failed without further retries.
func Permanent(err error) error { return permanentError{err: err} }

type Options struct {
	PollInterval time.Duration
	BatchSize    int
	// ClaimTimeout delays polling of freshly enqueued tasks so the fast path gets them first.
	ClaimTimeout time.Duration
	QueueKey     string
	DeadLetter   string
}

// OutboxWorker delivers persisted outbox tasks. Tasks reach it through redis
// when available, an in-memory queue otherwise, and a database poll as backstop.
type OutboxWorker struct {
	store         domain.OutboxStore
	redis         *redis.Client
	retryPolicy   RetryPolicy
	handlers      map[string]TaskHandler
	queue         chan models.OutboxTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	claimTimeout  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewOutboxWorker(store domain.OutboxStore, redisClient *redis.Client, retry RetryPolicy, opts Options, logger *zerolog.Logger) *OutboxWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}
	if opts.ClaimTimeout <= 0 {
		opts.ClaimTimeout = 30 * time.Second
	}
	if opts.QueueKey == "" {
		opts.QueueKey = "outbox:queue"
	}
	if opts.DeadLetter == "" {
		opts.DeadLetter = "outbox:deadletter"
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "outbox_worker").Logger()

	return &OutboxWorker{
		store:         store,
		redis:         redisClient,
		retryPolicy:   retry,
		handlers:      make(map[string]TaskHandler),
		queue:         make(chan models.OutboxTask, 128),
		redisQueueKey: opts.QueueKey,
		deadLetterKey: opts.DeadLetter,
		pollInterval:  opts.PollInterval,
		claimTimeout:  opts.ClaimTimeout,
		batchSize:     opts.BatchSize,
		logger:        &l,
	}
}

// Handle registers the handler for a task type. Call before Start.
func (w *OutboxWorker) Handle(taskType string, h TaskHandler) {
	w.handlers[taskType] = h
}

// EnqueueTask persists the task and schedules it via redis or the in-memory queue.
func (w *OutboxWorker) EnqueueTask(ctx context.Context, taskType string, referenceID int64, payload interface{}) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if _, ok := w.handlers[taskType]; !ok {
		return fmt.Errorf("no handler for task type %q", taskType)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	claim := time.Now().Add(w.claimTimeout)
	task := models.OutboxTask{
		TaskType:    taskType,
		ReferenceID: referenceID,
		Payload:     string(raw),
		Status:      models.TaskStatusPending,
		NextRetryAt: &claim,
	}
	if err := w.store.CreateOutboxTask(ctx, &task); err != nil {
		return fmt.Errorf("persist outbox task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("memory queue full, task left to polling")
	}
	return nil
}

// Start runs the delivery loop until ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("outbox worker started")
	defer w.logger.Info().Msg("outbox worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		n, err := w.ProcessPending(ctx)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending tasks")
		}
		if n == 0 || err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// ProcessPending delivers one batch of due tasks from the store and returns how many it handled.
func (w *OutboxWorker) ProcessPending(ctx context.Context) (int, error) {
	tasks, err := w.store.GetPendingOutboxTasks(ctx, w.batchSize)
	if err != nil {
		return 0, err
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks), nil
}

func (w *OutboxWorker) tryLocalQueue() (models.OutboxTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.OutboxTask{}, false
	}
}

func (w *OutboxWorker) tryRedis(ctx context.Context) (models.OutboxTask, bool) {
	if w.redis == nil {
		return models.OutboxTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) && !errors.Is(err, redis.Nil) {
			w.logger.Error().Err(err).Msg("redis BRPOP error")
		}
		return models.OutboxTask{}, false
	}
	if len(res) != 2 {
		return models.OutboxTask{}, false
	}
	var task models.OutboxTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.OutboxTask{}, false
	}
	return task, true
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	handler, ok := w.handlers[task.TaskType]
	if !ok {
		w.failTask(ctx, task, fmt.Errorf("unknown task type: %s", task.TaskType))
		return
	}

	if err := handler(ctx, task); err != nil {
		var perm permanentError
		if errors.As(err, &perm) {
			w.failTask(ctx, task, err)
			return
		}
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncOutboxTask(task.TaskType, models.TaskStatusCompleted)
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark completed")
	}
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	metrics.IncOutboxTask(task.TaskType, models.TaskStatusRetry)
	next := w.retryPolicy.NextRetryAt(time.Now(), attempt)
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", next).Msg("task failed, will retry")
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark retry")
	}
}

func (w *OutboxWorker) failTask(ctx context.Context, task *models.OutboxTask, cause error) {
	metrics.IncOutboxTask(task.TaskType, models.TaskStatusFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("task_type", task.TaskType).Msg("task failed permanently")
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark failed")
	}
	w.pushDeadLetter(ctx, task)
}

func (w *OutboxWorker) pushRedis(ctx context.Context, key string, task models.OutboxTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *OutboxWorker) pushDeadLetter(ctx context.Context, task *models.OutboxTask) {
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}
