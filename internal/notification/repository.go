package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for notification data operations.
type Repository interface {
	Create(ctx context.Context, notification *Notification) error
	ListByUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error)
	MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (*Notification, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}

// GORMRepository implements Repository using GORM.
type GORMRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORMRepository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &GORMRepository{db: db}
}

func (r *GORMRepository) Create(ctx context.Context, notification *Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// ListByUser returns the newest notifications first, each joined with its issue title.
func (r *GORMRepository) ListByUser(ctx context.Context, userID uuid.UUID, opts ListOptions) ([]Notification, error) {
	var notifications []Notification
	query := r.db.WithContext(ctx).
		Table("notifications").
		Select("notifications.*, issues.title AS issue_title").
		Joins("LEFT JOIN issues ON issues.id = notifications.issue_id").
		Where("notifications.user_id = ?", userID)
	if opts.UnreadOnly {
		query = query.Where("notifications.is_read = ?", false)
	}
	err := query.
		Order("notifications.created_at DESC").
		Limit(opts.Limit).
		Find(&notifications).Error
	return notifications, err
}

// MarkRead flips the read flag only when the notification belongs to userID.
// It returns nil without error when no such notification exists for that user.
func (r *GORMRepository) MarkRead(ctx context.Context, notificationID, userID uuid.UUID) (*Notification, error) {
	result := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}

	var n Notification
	err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", notificationID, userID).First(&n).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &n, nil
}

func (r *GORMRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

func (r *GORMRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
