package models

import "time"

type User struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Phone          *string   `db:"phone" json:"phone"`
	Role           string    `db:"role" json:"role"`
	IsActive       bool      `db:"is_active" json:"is_active"`
	TelegramChatID *int64    `db:"telegram_chat_id" json:"-"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type ProviderProfile struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"user_id"`
	Bio             *string   `db:"bio" json:"bio"`
	ExperienceYears int       `db:"experience_years" json:"experience_years"`
	Rating          float64   `db:"rating" json:"rating"`
	TotalJobs       int       `db:"total_jobs" json:"total_jobs"`
	IsAvailable     bool      `db:"is_available" json:"is_available"`
	Verified        bool      `db:"verified" json:"verified"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Caller is the authenticated principal of a request. ProviderID is the
// caller's provider profile id, zero when the caller has none.
type Caller struct {
	UserID     int64
	Role       string
	ProviderID int64
}

func (c Caller) IsAdmin() bool    { return c.Role == RoleAdmin }
func (c Caller) IsCustomer() bool { return c.Role == RoleCustomer }
func (c Caller) IsProvider() bool { return c.Role == RoleProvider }
