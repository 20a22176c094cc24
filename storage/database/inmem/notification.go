package inmem

import (
	"context"
	"sort"
	"time"

	"github.com/learningcloud/backend/core"
	"github.com/learningcloud/backend/core/notification"
)

type notificationRepository struct {
	db *notificationTable
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db.notification}
}

func (repo *notificationRepository) CreateNotification(_ context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.seq++
	n.ID = repo.db.seq
	repo.db.notifications[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) GetNotificationByID(_ context.Context, id int) (notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.notifications[id]; ok {
		return *n, nil
	}
	return notification.Notification{}, notification.ErrNotFound
}

func (repo *notificationRepository) FilterNotifications(_ context.Context, userID int, filter notification.QueryFilter, page core.Pagination) ([]notification.Notification, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var matches []notification.Notification
	for _, n := range repo.db.notifications {
		if n.UserID != userID {
			continue
		}
		if filter.Type != "" && n.Type != filter.Type {
			continue
		}
		if filter.IsRead != nil && n.IsRead != *filter.IsRead {
			continue
		}
		matches = append(matches, *n)
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID > matches[j].ID })

	total := len(matches)
	return paginate(matches, page), total, nil
}

func (repo *notificationRepository) UnreadCount(_ context.Context, userID int) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, n := range repo.db.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, id int, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.notifications[id]
	if !ok {
		return notification.ErrNotFound
	}
	if !n.IsRead {
		n.IsRead = true
		n.ReadAt = at
	}
	return nil
}

func (repo *notificationRepository) MarkAllRead(_ context.Context, userID int, at time.Time) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, n := range repo.db.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = at
		}
	}
	return nil
}
