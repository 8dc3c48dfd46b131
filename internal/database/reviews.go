package database

import (
	"context"
	"fmt"
	"time"

	"homeservices/internal/models"
)

const reviewColumns = `r.id, r.booking_id, r.customer_id, r.provider_id, r.rating, r.comment, r.created_at`

// CreateReview inserts a review; a second review for the same booking yields ErrDuplicate.
func (db *DB) CreateReview(ctx context.Context, review *models.Review) error {
	review.CreatedAt = time.Now()
	result, err := db.NamedExecContext(ctx,
		`INSERT INTO reviews (booking_id, customer_id, provider_id, rating, comment, created_at)
		 VALUES (:booking_id, :customer_id, :provider_id, :rating, :comment, :created_at)`,
		review,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	review.ID = id
	return nil
}

func (db *DB) GetReviewByBooking(ctx context.Context, bookingID int64) (*models.Review, error) {
	var review models.Review
	query := `SELECT ` + reviewColumns + `, COALESCE(u.name, '') AS customer_name
	          FROM reviews r LEFT JOIN users u ON u.id = r.customer_id
	          WHERE r.booking_id = ?`
	if err := db.GetContext(ctx, &review, query, bookingID); err != nil {
		return nil, notFound(err)
	}
	return &review, nil
}

func (db *DB) ListProviderReviews(ctx context.Context, providerID int64, page models.PageQuery) ([]*models.Review, int, error) {
	page = page.Normalize()

	var total int
	if err := db.GetContext(ctx, &total, `SELECT COUNT(*) FROM reviews WHERE provider_id = ?`, providerID); err != nil {
		return nil, 0, fmt.Errorf("failed to count reviews: %w", err)
	}

	query := `SELECT ` + reviewColumns + `, COALESCE(u.name, '') AS customer_name
	          FROM reviews r LEFT JOIN users u ON u.id = r.customer_id
	          WHERE r.provider_id = ?
	          ORDER BY r.created_at DESC, r.id DESC LIMIT ? OFFSET ?`
	reviews := []*models.Review{}
	if err := db.SelectContext(ctx, &reviews, query, providerID, page.Limit, page.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, total, nil
}

// ProviderRatingStats returns the mean rating and review count of a provider.
func (db *DB) ProviderRatingStats(ctx context.Context, providerID int64) (float64, int, error) {
	var stats struct {
		Avg   float64 `db:"avg"`
		Count int     `db:"cnt"`
	}
	err := db.GetContext(ctx, &stats,
		`SELECT COALESCE(AVG(rating), 0) AS avg, COUNT(*) AS cnt FROM reviews WHERE provider_id = ?`, providerID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to aggregate ratings: %w", err)
	}
	return stats.Avg, stats.Count, nil
}
