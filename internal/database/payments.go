package database

import (
	"context"
	"fmt"
	"time"

	"homeservices/internal/models"
)

const paymentColumns = `id, booking_id, amount, method, status, transaction_id, gateway_order_id, paid_at, created_at, updated_at`

func (db *DB) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	if err := db.GetContext(ctx, &payment, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

func (db *DB) GetPaymentByBooking(ctx context.Context, bookingID int64) (*models.Payment, error) {
	var payment models.Payment
	if err := db.GetContext(ctx, &payment, `SELECT `+paymentColumns+` FROM payments WHERE booking_id = ?`, bookingID); err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

// StartPaymentAttempt creates the booking's payment in status processing, or
// resets the existing one for a retry. A completed payment is never touched and
// yields ErrPaymentCompleted. On success payment is refreshed from the stored row.
func (db *DB) StartPaymentAttempt(ctx context.Context, payment *models.Payment) error {
	now := time.Now()
	query := `INSERT INTO payments (booking_id, amount, method, status, gateway_order_id, created_at, updated_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)
	          ON CONFLICT(booking_id) DO UPDATE SET
	              method = excluded.method,
	              status = excluded.status,
	              gateway_order_id = excluded.gateway_order_id,
	              transaction_id = NULL,
	              paid_at = NULL,
	              updated_at = excluded.updated_at
	          WHERE payments.status <> ?`
	result, err := db.ExecContext(ctx, query,
		payment.BookingID, payment.Amount, payment.Method, models.PaymentProcessing, payment.GatewayOrderID, now, now,
		models.PaymentCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to start payment attempt: %w", err)
	}
	if err := checkAffected(result); err != nil {
		if err == ErrConcurrentModification {
			return ErrPaymentCompleted
		}
		return err
	}

	stored, err := db.GetPaymentByBooking(ctx, payment.BookingID)
	if err != nil {
		return fmt.Errorf("failed to reload payment: %w", err)
	}
	*payment = *stored
	return nil
}

// ResolvePayment settles a processing payment and mirrors the outcome onto the
// booking in one transaction. A failed attempt never downgrades the payment
// status of a booking that was completed (settled in cash) or refunded.
func (db *DB) ResolvePayment(ctx context.Context, res models.PaymentResolution) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if res.Success {
		result, err := tx.ExecContext(ctx,
			`UPDATE payments SET status = ?, transaction_id = ?, paid_at = ?, updated_at = ? WHERE id = ? AND status = ?`,
			models.PaymentCompleted, res.TransactionID, res.PaidAt, now, res.PaymentID, models.PaymentProcessing,
		)
		if err != nil {
			return fmt.Errorf("failed to complete payment: %w", err)
		}
		if err := checkAffected(result); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET payment_status = ?, updated_at = ? WHERE id = ?`,
			models.PaymentStatusPaid, now, res.BookingID,
		); err != nil {
			return fmt.Errorf("failed to update booking payment status: %w", err)
		}
	} else {
		result, err := tx.ExecContext(ctx,
			`UPDATE payments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			models.PaymentFailed, now, res.PaymentID, models.PaymentProcessing,
		)
		if err != nil {
			return fmt.Errorf("failed to fail payment: %w", err)
		}
		if err := checkAffected(result); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET payment_status = ?, updated_at = ? WHERE id = ? AND status <> ? AND payment_status <> ?`,
			models.PaymentStatusFailed, now, res.BookingID, models.StatusCompleted, models.PaymentStatusRefunded,
		); err != nil {
			return fmt.Errorf("failed to update booking payment status: %w", err)
		}
	}

	return tx.Commit()
}

// RefundPayment moves a completed payment to refunded and marks its booking refunded atomically.
func (db *DB) RefundPayment(ctx context.Context, paymentID int64) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var bookingID int64
	if err := tx.GetContext(ctx, &bookingID, `SELECT booking_id FROM payments WHERE id = ?`, paymentID); err != nil {
		return notFound(err)
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		models.PaymentRefunded, now, paymentID, models.PaymentCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to refund payment: %w", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE bookings SET payment_status = ?, updated_at = ? WHERE id = ?`,
		models.PaymentStatusRefunded, now, bookingID,
	); err != nil {
		return fmt.Errorf("failed to update booking payment status: %w", err)
	}

	return tx.Commit()
}
