package models

import "time"

// OutboxTask is a queued delivery job (push notification, ledger sync).
type OutboxTask struct {
	ID          int64      `db:"id" json:"id"`
	TaskType    string     `db:"task_type" json:"task_type"`
	ReferenceID int64      `db:"reference_id" json:"reference_id"`
	Payload     string     `db:"payload" json:"payload"`
	Status      string     `db:"status" json:"status"`
	RetryCount  int        `db:"retry_count" json:"retry_count"`
	LastError   *string    `db:"last_error" json:"last_error"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt *time.Time `db:"processed_at" json:"processed_at"`
	NextRetryAt *time.Time `db:"next_retry_at" json:"next_retry_at"`
}

const (
	TaskStatusPending   = "pending"
	TaskStatusRetry     = "retry"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

const (
	TaskPushNotification = "push_notification"
	TaskLedgerUpsert     = "ledger_upsert"
)
