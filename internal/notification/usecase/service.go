package usecase

import (
	"context"

	"codentor-backend/internal/notification/domain"
	"codentor-backend/internal/notification/repository"
	"codentor-backend/pkg/logger"
	"codentor-backend/pkg/realtime"
)

// Service stores in-app notifications and pushes them to the user's realtime
// channel.
type Service struct {
	repo      repository.NotificationRepository
	publisher realtime.Publisher
}

func NewService(repo repository.NotificationRepository, publisher realtime.Publisher) *Service {
	if publisher == nil {
		publisher = realtime.Nop{}
	}
	return &Service{repo: repo, publisher: publisher}
}

// Notify persists n and publishes it on user-{id}. A publish failure is
// logged; the stored notification is still listed on the next fetch.
func (s *Service) Notify(ctx context.Context, n *domain.Notification, task *domain.TaskRef) error {
	if err := s.repo.Create(n); err != nil {
		return err
	}

	event := domain.Event{Notification: domain.EventBody{Notification: *n, Task: task}}
	if err := s.publisher.Publish(ctx, realtime.UserChannel(n.UserID), realtime.EventNotification, event); err != nil {
		logger.WithContext(ctx).WithError(err).
			WithField("notification_id", n.ID).
			Warn("[Notification] Realtime publish failed")
	}
	return nil
}

func (s *Service) List(userID string, unreadOnly bool, limit, offset int) ([]*domain.Notification, int64, int64, error) {
	items, total, err := s.repo.FindByUserID(userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, 0, err
	}
	unread, err := s.repo.CountUnread(userID)
	if err != nil {
		return nil, 0, 0, err
	}
	return items, total, unread, nil
}

func (s *Service) MarkRead(userID, id string) error {
	ok, err := s.repo.MarkRead(userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(userID string) (int64, error) {
	return s.repo.MarkAllRead(userID)
}
