package notification

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationType defines the type of notification.
type NotificationType string

const (
	TypeNewIssue     NotificationType = "new_issue"
	TypeStatusUpdate NotificationType = "status_update"
	TypeAssignment   NotificationType = "assignment"
	TypeComment      NotificationType = "comment"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case TypeNewIssue, TypeStatusUpdate, TypeAssignment, TypeComment:
		return true
	}
	return false
}

// Notification represents a user notification. Only the read flag changes after creation.
type Notification struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_notifications_user_read" json:"user_id"`
	IssueID   *uuid.UUID       `gorm:"type:uuid;index" json:"issue_id,omitempty"`
	Type      NotificationType `gorm:"type:varchar(30);not null" json:"type"`
	Title     string           `gorm:"type:varchar(255);not null" json:"title"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	IsRead    bool             `gorm:"not null;default:false;index:idx_notifications_user_read" json:"is_read"`
	CreatedAt time.Time        `gorm:"not null;index" json:"created_at"`

	// IssueTitle is populated by list queries that join issues.
	IssueTitle *string `gorm:"->;-:migration;column:issue_title" json:"issue_title,omitempty"`
}

// TableName specifies the table name for GORM.
func (Notification) TableName() string {
	return "notifications"
}

// BeforeCreate assigns a UUID when the caller has not set one.
func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}

// Message is what a delivery channel sends to a recipient.
type Message struct {
	Type          NotificationType
	Title         string
	Body          string
	IssueID       *uuid.UUID
	RecipientName string
}

// ListOptions narrows ListForUser.
type ListOptions struct {
	Limit      int
	UnreadOnly bool
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// normalized clamps the limit into [1, MaxListLimit], defaulting to DefaultListLimit.
func (o ListOptions) normalized() ListOptions {
	switch {
	case o.Limit <= 0:
		o.Limit = DefaultListLimit
	case o.Limit > MaxListLimit:
		o.Limit = MaxListLimit
	}
	return o
}
