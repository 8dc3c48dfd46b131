package models

import "time"

// Service is a catalog entry a customer can book.
type Service struct {
	ID              int64     `db:"id" json:"id"`
	CategoryID      int64     `db:"category_id" json:"category_id"`
	Name            string    `db:"name" json:"name"`
	Description     *string   `db:"description" json:"description"`
	BasePrice       float64   `db:"base_price" json:"base_price"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	IsActive        bool      `db:"is_active" json:"is_active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}
