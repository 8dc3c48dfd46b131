package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"homeservices/internal/domain"
	"homeservices/internal/events"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
)

// PushHandler delivers a stored notification through pusher.
func PushHandler(pusher domain.Pusher) TaskHandler {
	return func(ctx context.Context, task *models.OutboxTask) error {
		var n models.Notification
		if err := json.Unmarshal([]byte(task.Payload), &n); err != nil {
			return Permanent(fmt.Errorf("decode notification: %w", err))
		}
		if n.UserID == 0 {
			return Permanent(fmt.Errorf("notification %d has no recipient", n.ID))
		}
		return pusher.Push(ctx, n.UserID, &n)
	}
}

// LedgerSource loads the current state of a booking for the ledger.
type LedgerSource interface {
	GetBookingForExport(ctx context.Context, id int64) (*models.BookingExportRow, error)
}

// LedgerHandler mirrors the booking named by the task onto the ledger.
// The row is read at delivery time so retries always write the latest state.
func LedgerHandler(source LedgerSource, ledger domain.LedgerWriter) TaskHandler {
	return func(ctx context.Context, task *models.OutboxTask) error {
		if task.ReferenceID == 0 {
			return Permanent(fmt.Errorf("ledger task %d has no booking", task.ID))
		}
		row, err := source.GetBookingForExport(ctx, task.ReferenceID)
		if err != nil {
			return fmt.Errorf("load booking %d: %w", task.ReferenceID, err)
		}
		return ledger.UpsertBooking(ctx, row)
	}
}

// SubscribeLedger queues a ledger sync for every booking change published on bus.
func SubscribeLedger(bus *events.EventBus, outbox domain.OutboxEnqueuer, logger *zerolog.Logger) {
	bus.SubscribeAll(events.BookingEvents, func(e *events.Event) error {
		var p events.BookingEventPayload
		if err := e.Decode(&p); err != nil {
			return err
		}
		if err := outbox.EnqueueTask(context.Background(), models.TaskLedgerUpsert, p.BookingID, p); err != nil {
			logger.Error().Err(err).Int64("booking_id", p.BookingID).Msg("ledger enqueue error")
		}
		return nil
	})
}
