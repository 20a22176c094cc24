package sqlxrepos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/notification"
)

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

type notificationRow struct {
	ID        int             `db:"id"`
	UserID    int             `db:"user_id"`
	Type      string          `db:"notification_type"`
	Priority  string          `db:"priority"`
	Title     string          `db:"title"`
	Message   string          `db:"message"`
	Data      json.RawMessage `db:"data"`
	IsRead    bool            `db:"is_read"`
	ReadAt    null.Time       `db:"read_at"`
	CreatedAt time.Time       `db:"created_at"`
}

func (r notificationRow) toNotification() (notification.Notification, error) {
	n := notification.Notification{
		ID:        r.ID,
		UserID:    r.UserID,
		Type:      r.Type,
		Priority:  r.Priority,
		Title:     r.Title,
		Message:   r.Message,
		IsRead:    r.IsRead,
		ReadAt:    r.ReadAt.Time,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, &n.Data); err != nil {
			return notification.Notification{}, errors.Wrap(err, "decoding notification data")
		}
	}
	return n, nil
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	data := []byte("{}")
	if n.Data != nil {
		var err error
		if data, err = json.Marshal(n.Data); err != nil {
			return notification.Notification{}, errors.Wrap(err, "encoding notification data")
		}
	}
	query := `
		INSERT INTO notification (user_id, notification_type, priority, title, message, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	err := repo.db.QueryRowxContext(ctx, query,
		n.UserID, n.Type, n.Priority, n.Title, n.Message, data, n.CreatedAt,
	).Scan(&n.ID)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo notificationRepository) GetNotificationByID(ctx context.Context, id int) (notification.Notification, error) {
	var row notificationRow
	if err := repo.db.GetContext(ctx, &row, "SELECT * FROM notification WHERE id = $1", id); err != nil {
		return notification.Notification{}, trapNoRowsErr(err, notification.ErrNotFound, "finding notification")
	}
	return row.toNotification()
}

func (repo notificationRepository) FilterNotifications(ctx context.Context, userID int, filter notification.QueryFilter, page core.Pagination) ([]notification.Notification, int, error) {
	where := []string{"user_id = $1"}
	args := []interface{}{userID}

	arg := func(v interface{}) string {
		args = append(args, v)
		return argN(len(args))
	}

	if filter.Type != "" {
		where = append(where, "notification_type = "+arg(strings.ToUpper(filter.Type)))
	}
	if filter.IsRead != nil {
		where = append(where, "is_read = "+arg(*filter.IsRead))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := repo.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM notification WHERE "+cond, args...); err != nil {
		return nil, 0, errors.Wrap(err, "counting notifications")
	}

	query := "SELECT * FROM notification WHERE " + cond + " ORDER BY created_at DESC" + limitOffset(&args, page)
	var rows []notificationRow
	if err := repo.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "querying notifications")
	}

	notifications := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toNotification()
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, n)
	}
	return notifications, total, nil
}

func (repo notificationRepository) UnreadCount(ctx context.Context, userID int) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM notification WHERE user_id = $1 AND NOT is_read"
	if err := repo.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, errors.Wrap(err, "counting unread notifications")
	}
	return count, nil
}

func (repo notificationRepository) MarkRead(ctx context.Context, id int, at time.Time) error {
	query := "UPDATE notification SET is_read = TRUE, read_at = $1 WHERE id = $2 AND NOT is_read"
	if _, err := repo.db.ExecContext(ctx, query, at, id); err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	return nil
}

func (repo notificationRepository) MarkAllRead(ctx context.Context, userID int, at time.Time) error {
	query := "UPDATE notification SET is_read = TRUE, read_at = $1 WHERE user_id = $2 AND NOT is_read"
	if _, err := repo.db.ExecContext(ctx, query, at, userID); err != nil {
		return errors.Wrap(err, "marking all notifications read")
	}
	return nil
}
