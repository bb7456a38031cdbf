package storage

import (
	"context"
	"fmt"

	"fambudget/internal/core"
)

// CreateNotification inserts a notification row and returns its id.
func (r *SQLiteRepository) CreateNotification(ctx context.Context, n core.Notification) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO notifications (family_id, user_id, message) VALUES (?, ?, ?)`,
		n.FamilyID, n.UserID, n.Message)
	if err != nil {
		return 0, fmt.Errorf("insert notification: %w", err)
	}
	return res.LastInsertId()
}

// ListNotifications returns a user's notifications within a family, newest first.
func (r *SQLiteRepository) ListNotifications(ctx context.Context, familyID, userID int64, unreadOnly bool) ([]core.Notification, error) {
	query := `
		SELECT id, family_id, user_id, message, is_read, created_at
		FROM notifications WHERE family_id = ? AND user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, familyID, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var ns []core.Notification
	for rows.Next() {
		var n core.Notification
		if err := rows.Scan(&n.ID, &n.FamilyID, &n.UserID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		ns = append(ns, n)
	}
	return ns, rows.Err()
}

// MarkNotificationRead flags a notification as read.
func (r *SQLiteRepository) MarkNotificationRead(ctx context.Context, familyID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1 WHERE id = ? AND family_id = ?`, id, familyID)
	if err != nil {
		return fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return requireRow(res, id)
}
