package database

import (
	"context"
	"fmt"
	"time"

	"homeservices/internal/models"
)

const notificationColumns = `id, user_id, title, body, type, reference_id, is_read, created_at`

func (db *DB) CreateNotification(ctx context.Context, n *models.Notification) error {
	n.CreatedAt = time.Now()
	result, err := db.NamedExecContext(ctx,
		`INSERT INTO notifications (user_id, title, body, type, reference_id, is_read, created_at)
		 VALUES (:user_id, :title, :body, :type, :reference_id, :is_read, :created_at)`,
		n,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	n.ID = id
	return nil
}

func (db *DB) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	var n models.Notification
	if err := db.GetContext(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id); err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

func (db *DB) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, page models.PageQuery) ([]*models.Notification, int, error) {
	page = page.Normalize()
	where := ` WHERE user_id = ?`
	if unreadOnly {
		where += ` AND is_read = 0`
	}

	var total int
	if err := db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications`+where, userID); err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	items := []*models.Notification{}
	query := `SELECT ` + notificationColumns + ` FROM notifications` + where + ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	if err := db.SelectContext(ctx, &items, query, userID, page.Limit, page.Offset()); err != nil {
		return nil, 0, fmt.Errorf("failed to list notifications: %w", err)
	}
	return items, total, nil
}

func (db *DB) CountUnreadNotifications(ctx context.Context, userID int64) (int, error) {
	var count int
	if err := db.GetContext(ctx, &count, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (db *DB) MarkNotificationRead(ctx context.Context, id int64) error {
	result, err := db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return affectedOrNotFound(result)
}

// MarkAllNotificationsRead marks every unread notification of the user and returns how many changed.
func (db *DB) MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error) {
	result, err := db.ExecContext(ctx, `UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return result.RowsAffected()
}
