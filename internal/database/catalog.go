package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"homeservices/internal/models"
)

const serviceColumns = `id, category_id, name, description, base_price, duration_minutes, is_active, created_at, updated_at`

func (db *DB) CreateService(ctx context.Context, svc *models.Service) error {
	now := time.Now()
	svc.CreatedAt = now
	svc.UpdatedAt = now
	result, err := db.NamedExecContext(ctx,
		`INSERT INTO services (category_id, name, description, base_price, duration_minutes, is_active, created_at, updated_at)
		 VALUES (:category_id, :name, :description, :base_price, :duration_minutes, :is_active, :created_at, :updated_at)`,
		svc,
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	svc.ID = id
	return nil
}

// GetActiveService returns the service only if it can currently be booked.
func (db *DB) GetActiveService(ctx context.Context, id int64) (*models.Service, error) {
	var svc models.Service
	query := `SELECT ` + serviceColumns + ` FROM services WHERE id = ? AND is_active = 1`
	if err := db.GetContext(ctx, &svc, query, id); err != nil {
		return nil, notFound(err)
	}
	return &svc, nil
}

func affectedOrNotFound(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) GetServiceByName(ctx context.Context, name string) (*models.Service, error) {
	var svc models.Service
	query := `SELECT ` + serviceColumns + ` FROM services WHERE name = ? ORDER BY id LIMIT 1`
	if err := db.GetContext(ctx, &svc, query, name); err != nil {
		return nil, notFound(err)
	}
	return &svc, nil
}

// UpdateService overwrites the editable catalog fields of svc.
func (db *DB) UpdateService(ctx context.Context, svc *models.Service) error {
	svc.UpdatedAt = time.Now()
	result, err := db.NamedExecContext(ctx,
		`UPDATE services SET category_id = :category_id, description = :description, base_price = :base_price,
		 duration_minutes = :duration_minutes, is_active = :is_active, updated_at = :updated_at
		 WHERE id = :id`,
		svc,
	)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	return affectedOrNotFound(result)
}
