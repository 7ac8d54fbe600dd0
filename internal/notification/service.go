package notification

import (
	"context"
	"errors"
	"fmt"

	"civicconnect_backend/internal/common"
	"civicconnect_backend/internal/user"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service dispatches notifications and serves a user's inbox.
type Service interface {
	Dispatch(ctx context.Context, userID uuid.UUID, issueID *uuid.UUID, notifType NotificationType, title, message string) error
	ListForUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (*Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error)
}

// UserFinder looks up notification recipients.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

// ServiceImplementation is the notification dispatcher.
type ServiceImplementation struct {
	repo     Repository
	users    UserFinder
	channels Channels
	logger   *zap.Logger
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new notification service.
func NewService(repo Repository, users UserFinder, channels Channels, logger *zap.Logger) *ServiceImplementation {
	return &ServiceImplementation{
		repo:     repo,
		users:    users,
		channels: channels,
		logger:   logger.Named("NotificationService"),
	}
}

// Dispatch persists a notification for userID and then attempts email and SMS delivery.
// A missing recipient is logged and ignored. Delivery failures are logged and never returned;
// only a failure to persist the record is reported.
func (s *ServiceImplementation) Dispatch(ctx context.Context, userID uuid.UUID, issueID *uuid.UUID, notifType NotificationType, title, message string) error {
	recipient, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn("Notification recipient not found", zap.String("userID", userID.String()), zap.String("type", string(notifType)))
			return nil
		}
		return fmt.Errorf("failed to look up notification recipient: %w", err)
	}

	n := &Notification{
		UserID:  userID,
		IssueID: issueID,
		Type:    notifType,
		Title:   title,
		Message: message,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		s.logger.Error("Failed to persist notification", zap.String("userID", userID.String()), zap.Error(err))
		return fmt.Errorf("failed to persist notification: %w", err)
	}

	msg := Message{
		Type:          notifType,
		Title:         title,
		Body:          message,
		IssueID:       issueID,
		RecipientName: recipient.Name,
	}
	if recipient.Email != "" {
		s.deliver(ctx, s.channels.Email, recipient.Email, n.ID, msg)
	}
	if recipient.Phone != nil && *recipient.Phone != "" {
		s.deliver(ctx, s.channels.SMS, *recipient.Phone, n.ID, msg)
	}
	return nil
}

func (s *ServiceImplementation) deliver(ctx context.Context, sender Sender, to string, notificationID uuid.UUID, msg Message) {
	if sender == nil {
		return
	}
	channel := sender.Channel()
	err := sender.Send(ctx, to, msg)
	switch {
	case err == nil:
		deliveriesTotal.WithLabelValues(channel, "sent").Inc()
	case errors.Is(err, ErrChannelDisabled):
		deliveriesTotal.WithLabelValues(channel, "disabled").Inc()
		s.logger.Debug("Delivery channel disabled", zap.String("channel", channel), zap.String("notificationID", notificationID.String()))
	default:
		deliveriesTotal.WithLabelValues(channel, "failed").Inc()
		s.logger.Error("Failed to deliver notification",
			zap.String("channel", channel),
			zap.String("notificationID", notificationID.String()),
			zap.Error(err),
		)
	}
}

// ListForUser returns the user's most recent notifications.
func (s *ServiceImplementation) ListForUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, opts.normalized())
	if err != nil {
		s.logger.Error("Failed to list notifications", zap.String("userID", userID.String()), zap.Error(err))
		return nil, common.ErrInternalServer
	}
	if notifications == nil {
		notifications = []Notification{}
	}
	return notifications, nil
}

// MarkRead marks a notification read if userID owns it. It returns nil when nothing matched.
func (s *ServiceImplementation) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (*Notification, error) {
	n, err := s.repo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		s.logger.Error("Failed to mark notification read", zap.String("notificationID", notificationID.String()), zap.Error(err))
		return nil, common.ErrInternalServer
	}
	return n, nil
}

// MarkAllRead marks every unread notification of userID as read.
func (s *ServiceImplementation) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to mark all notifications read", zap.String("userID", userID.String()), zap.Error(err))
		return 0, common.ErrInternalServer
	}
	return count, nil
}

func (s *ServiceImplementation) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to count unread notifications", zap.String("userID", userID.String()), zap.Error(err))
		return 0, common.ErrInternalServer
	}
	return count, nil
}
