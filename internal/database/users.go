package database

import (
	"context"
	"fmt"
	"time"

	"homeservices/internal/models"
)

const userColumns = `id, name, email, phone, role, is_active, telegram_chat_id, created_at, updated_at`

func (db *DB) CreateUser(ctx context.Context, user *models.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	result, err := db.NamedExecContext(ctx,
		`INSERT INTO users (name, email, phone, role, is_active, telegram_chat_id, created_at, updated_at)
		 VALUES (:name, :email, :phone, :role, :is_active, :telegram_chat_id, :created_at, :updated_at)`,
		user,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

func (db *DB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (db *DB) LinkTelegramChat(ctx context.Context, userID, chatID int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET telegram_chat_id = ?, updated_at = ? WHERE id = ?`, chatID, time.Now(), userID)
	if err != nil {
		return fmt.Errorf("failed to link telegram chat: %w", err)
	}
	return affectedOrNotFound(result)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = ?`, email); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (db *DB) GetUserByTelegramChat(ctx context.Context, chatID int64) (*models.User, error) {
	var user models.User
	if err := db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE telegram_chat_id = ? ORDER BY id LIMIT 1`, chatID); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}
