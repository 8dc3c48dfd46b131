package models

import "time"

type Booking struct {
	ID            int64      `db:"id" json:"id"`
	CustomerID    int64      `db:"customer_id" json:"customer_id"`
	ProviderID    *int64     `db:"provider_id" json:"provider_id"`
	ServiceID     int64      `db:"service_id" json:"service_id"`
	Status        string     `db:"status" json:"status"` // pending, accepted, rejected, in_progress, completed, cancelled
	ScheduledDate string     `db:"scheduled_date" json:"scheduled_date"`
	ScheduledTime string     `db:"scheduled_time" json:"scheduled_time"`
	Address       string     `db:"address" json:"address"`
	Lat           *float64   `db:"lat" json:"lat"`
	Lng           *float64   `db:"lng" json:"lng"`
	Notes         *string    `db:"notes" json:"notes"`
	TotalPrice    float64    `db:"total_price" json:"total_price"`
	PaymentStatus string     `db:"payment_status" json:"payment_status"` // pending, paid, refunded, failed
	CancelledBy   *string    `db:"cancelled_by" json:"cancelled_by"`
	CancelReason  *string    `db:"cancel_reason" json:"cancel_reason"`
	StartedAt     *time.Time `db:"started_at" json:"started_at"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	Version       int64      `db:"version" json:"version"`
}

// AssignedTo reports whether the booking is assigned to the given provider profile.
func (b *Booking) AssignedTo(providerID int64) bool {
	return b.ProviderID != nil && *b.ProviderID == providerID
}

// CreateBookingInput carries a customer's booking request.
type CreateBookingInput struct {
	ServiceID     int64    `json:"service_id" binding:"required"`
	ProviderID    *int64   `json:"provider_id"`
	ScheduledDate string   `json:"scheduled_date" binding:"required"`
	ScheduledTime string   `json:"scheduled_time" binding:"required"`
	Address       string   `json:"address" binding:"required"`
	Lat           *float64 `json:"lat"`
	Lng           *float64 `json:"lng"`
	Notes         *string  `json:"notes"`
}

// BookingFilter narrows a booking listing. Zero values mean "any".
type BookingFilter struct {
	CustomerID int64
	ProviderID int64
	Status     string
	DateFrom   string
	DateTo     string
}

// BookingTransition is a compare-and-set status change guarded by Version.
type BookingTransition struct {
	BookingID     int64
	Version       int64
	From          string
	To            string
	StartedAt     *time.Time
	CompletedAt   *time.Time
	PaymentStatus string
	CancelledBy   *string
	CancelReason  *string
}

// BookingExportRow is a booking flattened with the names used in reports and ledgers.
type BookingExportRow struct {
	Booking
	ServiceName  string `db:"service_name" json:"service_name"`
	CustomerName string `db:"customer_name" json:"customer_name"`
}
