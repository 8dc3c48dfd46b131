package models

import "time"

type Review struct {
	ID           int64     `db:"id" json:"id"`
	BookingID    int64     `db:"booking_id" json:"booking_id"`
	CustomerID   int64     `db:"customer_id" json:"customer_id"`
	ProviderID   int64     `db:"provider_id" json:"provider_id"`
	Rating       int       `db:"rating" json:"rating"`
	Comment      *string   `db:"comment" json:"comment"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	CustomerName string    `db:"customer_name" json:"customer_name,omitempty"`
}

type CreateReviewInput struct {
	BookingID int64   `json:"booking_id" binding:"required"`
	Rating    int     `json:"rating" binding:"required"`
	Comment   *string `json:"comment"`
}
