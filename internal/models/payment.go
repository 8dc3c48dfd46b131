package models

import "time"

type Payment struct {
	ID             int64      `db:"id" json:"id"`
	BookingID      int64      `db:"booking_id" json:"booking_id"`
	Amount         float64    `db:"amount" json:"amount"`
	Method         string     `db:"method" json:"method"`
	Status         string     `db:"status" json:"status"`
	TransactionID  *string    `db:"transaction_id" json:"transaction_id"`
	GatewayOrderID string     `db:"gateway_order_id" json:"gateway_order_id"`
	PaidAt         *time.Time `db:"paid_at" json:"paid_at"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// PaymentInitiation is returned by initiate: the processing payment and the
// gateway reference the client correlates with.
type PaymentInitiation struct {
	Payment        *Payment `json:"payment"`
	GatewayOrderID string   `json:"gateway_order_id"`
}

// PaymentConfirmation is the two-outcome result of confirm. A declined
// payment is a normal result, not an error.
type PaymentConfirmation struct {
	Payment *Payment `json:"payment"`
	Success bool     `json:"success"`
	Message string   `json:"message"`
}

// PaymentResolution describes how a processing payment settled.
type PaymentResolution struct {
	PaymentID     int64
	BookingID     int64
	Success       bool
	TransactionID string
	PaidAt        time.Time
}

// PaymentRefund is returned by refund.
type PaymentRefund struct {
	Payment *Payment `json:"payment"`
	Message string   `json:"message"`
}
