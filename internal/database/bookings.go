package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"homeservices/internal/models"
)

const bookingColumns = `id, customer_id, provider_id, service_id, status, scheduled_date, scheduled_time,
	address, lat, lng, notes, total_price, payment_status, cancelled_by, cancel_reason,
	started_at, completed_at, created_at, updated_at, version`

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	query := `INSERT INTO bookings (customer_id, provider_id, service_id, status, scheduled_date, scheduled_time,
	            address, lat, lng, notes, total_price, payment_status, created_at, updated_at, version)
	          VALUES (:customer_id, :provider_id, :service_id, :status, :scheduled_date, :scheduled_time,
	            :address, :lat, :lng, :notes, :total_price, :payment_status, :created_at, :updated_at, :version)`

	result, err := db.NamedExecContext(ctx, query, booking)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := db.GetContext(ctx, &booking, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &booking, nil
}

// ListBookings returns one page of bookings matching filter, newest first, and the total match count.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter, page models.PageQuery) ([]*models.Booking, int, error) {
	where, args := bookingWhere(filter)
	page = page.Normalize()

	var total int
	if err := db.GetContext(ctx, &total, `SELECT COUNT(*) FROM bookings`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count bookings: %w", err)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	bookings := []*models.Booking{}
	if err := db.SelectContext(ctx, &bookings, query, append(args, page.Limit, page.Offset())...); err != nil {
		return nil, 0, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, total, nil
}

func bookingWhere(filter models.BookingFilter) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if filter.CustomerID != 0 {
		conds = append(conds, "customer_id = ?")
		args = append(args, filter.CustomerID)
	}
	if filter.ProviderID != 0 {
		conds = append(conds, "provider_id = ?")
		args = append(args, filter.ProviderID)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.DateFrom != "" {
		conds = append(conds, "scheduled_date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		conds = append(conds, "scheduled_date <= ?")
		args = append(args, filter.DateTo)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// AcceptBooking assigns the booking to providerID and moves it to accepted in a
// single conditional update. It fails with ErrConcurrentModification when the
// booking is no longer pending or is assigned to another provider.
func (db *DB) AcceptBooking(ctx context.Context, id int64, providerID int64) error {
	query := `UPDATE bookings
	          SET provider_id = ?, status = ?, updated_at = ?, version = version + 1
	          WHERE id = ? AND status = ? AND (provider_id IS NULL OR provider_id = ?)`
	result, err := db.ExecContext(ctx, query,
		providerID, models.StatusAccepted, time.Now(),
		id, models.StatusPending, providerID,
	)
	if err != nil {
		return fmt.Errorf("failed to accept booking: %w", err)
	}
	return checkAffected(result)
}

// TransitionBooking applies a status change only if the booking still has the
// expected status and version. Optional fields are left untouched when nil or empty.
func (db *DB) TransitionBooking(ctx context.Context, tr models.BookingTransition) error {
	query := `UPDATE bookings
	          SET status = ?,
	              started_at = COALESCE(?, started_at),
	              completed_at = COALESCE(?, completed_at),
	              payment_status = CASE WHEN ? = '' THEN payment_status ELSE ? END,
	              cancelled_by = COALESCE(?, cancelled_by),
	              cancel_reason = COALESCE(?, cancel_reason),
	              updated_at = ?,
	              version = version + 1
	          WHERE id = ? AND status = ? AND version = ?`
	result, err := db.ExecContext(ctx, query,
		tr.To,
		tr.StartedAt,
		tr.CompletedAt,
		tr.PaymentStatus, tr.PaymentStatus,
		tr.CancelledBy,
		tr.CancelReason,
		time.Now(),
		tr.BookingID, tr.From, tr.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	return checkAffected(result)
}
