package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/splitweek/internal/database"
	"github.com/dukerupert/splitweek/internal/model"
)

type NotificationStore struct {
	db database.DBTX
}

func NewNotificationStore(db database.DBTX) *NotificationStore {
	return &NotificationStore{db: db}
}

func scanNotification(scanner interface{ Scan(...any) error }) (*model.Notification, error) {
	var n model.Notification
	var relatedType sql.NullString
	var relatedID sql.NullInt64
	var isRead int

	err := scanner.Scan(
		&n.ID, &n.UserID, &n.ChildID, &n.Category, &n.Title, &n.Body,
		&relatedType, &relatedID, &isRead, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	n.RelatedType = stringPtr(relatedType)
	n.RelatedID = int64Ptr(relatedID)
	n.IsRead = isRead != 0
	return &n, nil
}

const notificationCols = `id, user_id, child_id, category, title, body, related_type, related_id, is_read, created_at`

func (s *NotificationStore) Create(n model.Notification) (*model.Notification, error) {
	ts := now()
	result, err := s.db.Exec(
		`INSERT INTO notifications (user_id, child_id, category, title, body, related_type, related_id, is_read, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		n.UserID, n.ChildID, n.Category, n.Title, n.Body, nullString(n.RelatedType), nullInt64(n.RelatedID), ts,
	)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	n.ID = id
	n.IsRead = false
	n.CreatedAt = ts
	return &n, nil
}

// List returns the user's newest notifications, at most limit of them.
func (s *NotificationStore) List(userID int64, unreadOnly bool, limit int) ([]model.Notification, error) {
	query := `SELECT ` + notificationCols + ` FROM notifications WHERE user_id = ?`
	if unreadOnly {
		query += ` AND is_read = 0`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	rows, err := s.db.Query(query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// MarkRead marks one of the user's notifications read. It reports false if
// the notification does not exist or belongs to someone else.
func (s *NotificationStore) MarkRead(id, userID int64) (bool, error) {
	result, err := s.db.Exec(`UPDATE notifications SET is_read = 1 WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func (s *NotificationStore) MarkAllRead(userID int64) (int64, error) {
	result, err := s.db.Exec(`UPDATE notifications SET is_read = 1 WHERE user_id = ? AND is_read = 0`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *NotificationStore) UnreadCount(userID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = 0`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// DeleteReadBefore prunes read notifications created before the given time.
func (s *NotificationStore) DeleteReadBefore(before time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM notifications WHERE is_read = 1 AND created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete read notifications: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
