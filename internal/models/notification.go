package models

import "time"

type Notification struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Title       string    `db:"title" json:"title"`
	Body        string    `db:"body" json:"body"`
	Type        string    `db:"type" json:"type"`
	ReferenceID *int64    `db:"reference_id" json:"reference_id"`
	IsRead      bool      `db:"is_read" json:"is_read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
