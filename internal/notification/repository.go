// internal/notification/repository.go

package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/imadgeboyega/kiekky-matching/internal/common/database"
)

// Repository defines the notification data access interface
type Repository interface {
	CreateBatchNotifications(ctx context.Context, notifications []*Notification) error
	GetUserNotifications(ctx context.Context, userID int64, limit, offset int, unreadOnly bool) ([]*Notification, error)
	MarkAsRead(ctx context.Context, notificationID string, userID int64) error
}

type postgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

// CreateBatchNotifications inserts notifications in one transaction
func (r *postgresRepository) CreateBatchNotifications(ctx context.Context, notifications []*Notification) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin notifications: %w", database.Classify(err))
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
        INSERT INTO notifications (id, user_id, type, title, message, data, is_read, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("prepare notifications: %w", database.Classify(err))
	}
	defer stmt.Close()

	for _, n := range notifications {
		_, err := stmt.ExecContext(ctx,
			n.ID, n.UserID, n.Type, n.Title, n.Message, n.Data, n.IsRead, n.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert notification: %w", database.Classify(err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit notifications: %w", database.Classify(err))
	}
	return nil
}

func (r *postgresRepository) GetUserNotifications(ctx context.Context, userID int64, limit, offset int, unreadOnly bool) ([]*Notification, error) {
	query := `
        SELECT id, user_id, type, title, message, data, is_read, created_at
        FROM notifications
        WHERE user_id = $1`
	if unreadOnly {
		query += ` AND is_read = FALSE`
	}
	query += ` ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`

	notifications := []*Notification{}
	if err := r.db.SelectContext(ctx, &notifications, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("list notifications: %w", database.Classify(err))
	}
	return notifications, nil
}

func (r *postgresRepository) MarkAsRead(ctx context.Context, notificationID string, userID int64) error {
	if _, err := uuid.Parse(notificationID); err != nil {
		return ErrNotificationNotFound
	}

	query := `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, notificationID, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", database.Classify(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read: %w", database.Classify(err))
	}
	if rows == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MemoryRepository keeps notifications in process
type MemoryRepository struct {
	mu            sync.RWMutex
	notifications []*Notification
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) CreateBatchNotifications(ctx context.Context, notifications []*Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range notifications {
		c := *n
		r.notifications = append(r.notifications, &c)
	}
	return nil
}

func (r *MemoryRepository) GetUserNotifications(ctx context.Context, userID int64, limit, offset int, unreadOnly bool) ([]*Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Notification
	for _, n := range r.notifications {
		if n.UserID == userID && (!unreadOnly || !n.IsRead) {
			c := *n
			matched = append(matched, &c)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	notifications := []*Notification{}
	for i := offset; i < len(matched) && (limit <= 0 || len(notifications) < limit); i++ {
		notifications = append(notifications, matched[i])
	}
	return notifications, nil
}

func (r *MemoryRepository) MarkAsRead(ctx context.Context, notificationID string, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == notificationID && n.UserID == userID {
			n.IsRead = true
			return nil
		}
	}
	return ErrNotificationNotFound
}
