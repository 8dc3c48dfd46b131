package database

import (
	"context"
	"fmt"
	"time"

	"homeservices/internal/models"
)

const providerColumns = `id, user_id, bio, experience_years, rating, total_jobs, is_available, verified, created_at, updated_at`

func (db *DB) CreateProvider(ctx context.Context, provider *models.ProviderProfile) error {
	now := time.Now()
	provider.CreatedAt = now
	provider.UpdatedAt = now
	result, err := db.NamedExecContext(ctx,
		`INSERT INTO provider_profiles (user_id, bio, experience_years, rating, total_jobs, is_available, verified, created_at, updated_at)
		 VALUES (:user_id, :bio, :experience_years, :rating, :total_jobs, :is_available, :verified, :created_at, :updated_at)`,
		provider,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create provider: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	provider.ID = id
	return nil
}

func (db *DB) GetProvider(ctx context.Context, id int64) (*models.ProviderProfile, error) {
	var p models.ProviderProfile
	if err := db.GetContext(ctx, &p, `SELECT `+providerColumns+` FROM provider_profiles WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (db *DB) GetProviderByUserID(ctx context.Context, userID int64) (*models.ProviderProfile, error) {
	var p models.ProviderProfile
	if err := db.GetContext(ctx, &p, `SELECT `+providerColumns+` FROM provider_profiles WHERE user_id = ?`, userID); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GetAvailableVerifiedProvider returns the provider only if it accepts bookings.
func (db *DB) GetAvailableVerifiedProvider(ctx context.Context, id int64) (*models.ProviderProfile, error) {
	var p models.ProviderProfile
	query := `SELECT ` + providerColumns + ` FROM provider_profiles WHERE id = ? AND is_available = 1 AND verified = 1`
	if err := db.GetContext(ctx, &p, query, id); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (db *DB) IncrementTotalJobs(ctx context.Context, providerID int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE provider_profiles SET total_jobs = total_jobs + 1, updated_at = ? WHERE id = ?`,
		time.Now(), providerID)
	if err != nil {
		return fmt.Errorf("failed to increment total jobs: %w", err)
	}
	return affectedOrNotFound(result)
}

func (db *DB) SetRating(ctx context.Context, providerID int64, rating float64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE provider_profiles SET rating = ?, updated_at = ? WHERE id = ?`,
		rating, time.Now(), providerID)
	if err != nil {
		return fmt.Errorf("failed to set provider rating: %w", err)
	}
	return affectedOrNotFound(result)
}

func (db *DB) SetProviderAvailability(ctx context.Context, providerID int64, available, verified bool) error {
	result, err := db.ExecContext(ctx,
		`UPDATE provider_profiles SET is_available = ?, verified = ?, updated_at = ? WHERE id = ?`,
		available, verified, time.Now(), providerID)
	if err != nil {
		return fmt.Errorf("failed to update provider availability: %w", err)
	}
	return affectedOrNotFound(result)
}
