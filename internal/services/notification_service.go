package services

import (
	"context"
	"log"

	"outsourcing-market/internal/lifecycle"
	"outsourcing-market/internal/models"
	"outsourcing-market/internal/notify"
	"outsourcing-market/internal/repository"
)

// Notifier receives the events of committed transitions. Implementations
// must not fail the caller: delivery problems are logged and dropped.
type Notifier interface {
	Notify(ctx context.Context, e lifecycle.Event)
}

// Enqueuer hands a formatted message to asynchronous delivery.
type Enqueuer interface {
	Enqueue(m notify.Message) bool
}

// NotificationService writes in-app notifications and queues outbound
// delivery.
type NotificationService struct {
	repo       *repository.Repository
	dispatcher Enqueuer
}

func NewNotificationService(repo *repository.Repository, dispatcher Enqueuer) *NotificationService {
	return &NotificationService{
		repo:       repo,
		dispatcher: dispatcher,
	}
}

// Notify stores the event in each recipient's inbox and queues it for
// outbound channels. Admin-audience events go to every admin except the
// one who caused them.
func (s *NotificationService) Notify(ctx context.Context, e lifecycle.Event) {
	// The transition has committed; the caller's cancellation must not drop
	// the inbox row.
	ctx = context.WithoutCancel(ctx)

	recipients := []uint{e.RecipientID}
	if e.Audience == lifecycle.AudienceAdmin {
		ids, err := s.repo.ListAdminUserIDs(ctx)
		if err != nil {
			log.Printf("[Notification] Failed to list admins for %s: %v", e.Type, err)
			ids = nil
		}
		recipients = ids
	}

	link := notify.Link(e)
	for _, id := range recipients {
		if id == 0 || (e.ActorID != nil && *e.ActorID == id) {
			continue
		}
		n := &models.Notification{
			RecipientID:  id,
			ActorID:      e.ActorID,
			Type:         e.Type,
			ResourceType: e.ResourceType,
			ResourceID:   e.ResourceID,
			Payload:      models.JSONB(e.Payload),
			LinkURL:      link,
		}
		if err := s.repo.CreateNotification(ctx, n); err != nil {
			log.Printf("[Notification] Failed to store %s for user %d: %v", e.Type, id, err)
		}
	}

	if s.dispatcher != nil {
		s.dispatcher.Enqueue(notify.Format(e))
	}
}

// NotifyAll publishes events in order.
func (s *NotificationService) NotifyAll(ctx context.Context, events []lifecycle.Event) {
	for _, e := range events {
		s.Notify(ctx, e)
	}
}

// List returns a page of the user's inbox
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	return s.repo.ListNotifications(ctx, userID, unreadOnly, limit, offset)
}

// UnreadCount returns the number of unread notifications
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnreadNotifications(ctx, userID)
}

// MarkRead marks one notification read
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	return s.repo.MarkNotificationRead(ctx, notificationID, userID)
}

// MarkAllRead marks every notification read and returns how many changed
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

// publish sends events through n, tolerating a nil notifier.
func publish(ctx context.Context, n Notifier, events []lifecycle.Event) {
	if n == nil {
		return
	}
	for _, e := range events {
		n.Notify(ctx, e)
	}
}
