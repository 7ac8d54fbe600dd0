// File: internal/issue/model.go
package issue

import (
	"mime/multipart"
	"strings"
	"time"

	"civicconnect_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category classifies what kind of municipal problem an issue describes.
type Category string

const (
	CategoryRoads        Category = "roads"
	CategoryStreetlights Category = "streetlights"
	CategoryWaste        Category = "waste"
	CategoryWater        Category = "water"
	CategorySewage       Category = "sewage"
	CategoryParks        Category = "parks"
	CategoryTraffic      Category = "traffic"
	CategorySafety       Category = "safety"
	CategoryOther        Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryRoads, CategoryStreetlights, CategoryWaste, CategoryWater, CategorySewage,
		CategoryParks, CategoryTraffic, CategorySafety, CategoryOther:
		return true
	}
	return false
}

// Status is the lifecycle state of an issue. Any status may follow any other.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
	StatusClosed     Status = "closed"
)

var AllStatuses = []Status{StatusPending, StatusInProgress, StatusResolved, StatusClosed}

func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Label is the human readable form used in notification text.
func (s Status) Label() string {
	return strings.ReplaceAll(string(s), "_", " ")
}

// Priority is the triage urgency of an issue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var AllPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

func (p Priority) Valid() bool {
	for _, v := range AllPriorities {
		if p == v {
			return true
		}
	}
	return false
}

// Issue is a citizen-submitted report of a municipal problem.
type Issue struct {
	common.BaseModel
	Title              string     `gorm:"type:varchar(200);not null"`
	Description        string     `gorm:"type:text;not null"`
	Category           Category   `gorm:"type:varchar(30);not null;index"`
	Latitude           float64    `gorm:"not null"`
	Longitude          float64    `gorm:"not null"`
	Status             Status     `gorm:"type:varchar(20);not null;default:'pending';index"`
	Priority           Priority   `gorm:"type:varchar(20);not null;default:'medium';index"`
	PhotoURL           *string    `gorm:"type:varchar(512)"`
	ResolutionPhotoURL *string    `gorm:"type:varchar(512)"`
	ResolutionNotes    *string    `gorm:"type:text"`
	AssignedTo         *uuid.UUID `gorm:"type:uuid;index"`
	AssignedDepartment *string    `gorm:"type:varchar(100)"`
	ReporterID         uuid.UUID  `gorm:"type:uuid;not null;index"`
	ResolvedAt         *time.Time

	// Populated by read queries that join users.
	ReporterName string  `gorm:"->;-:migration;column:reporter_name"`
	AssigneeName *string `gorm:"->;-:migration;column:assignee_name"`

	Comments []Comment `gorm:"-"`
}

// TableName specifies the table name for GORM.
func (Issue) TableName() string {
	return "issues"
}

// Comment is an append-only remark on an issue. Internal comments are visible to staff only.
type Comment struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	IssueID    uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Body       string    `gorm:"type:text;not null"`
	IsInternal bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null;index"`

	AuthorName string      `gorm:"->;-:migration;column:author_name"`
	AuthorRole common.Role `gorm:"->;-:migration;column:author_role"`
}

func (Comment) TableName() string {
	return "comments"
}

func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// --- Request DTOs ---

// CreateIssueRequest is bound from JSON or multipart form fields.
type CreateIssueRequest struct {
	Title       string   `json:"title" form:"title" binding:"required,min=3,max=200"`
	Description string   `json:"description" form:"description" binding:"required,max=5000"`
	Category    Category `json:"category" form:"category" binding:"required,oneof=roads streetlights waste water sewage parks traffic safety other"`
	Latitude    *float64 `json:"latitude" form:"latitude" binding:"required,latitude"`
	Longitude   *float64 `json:"longitude" form:"longitude" binding:"required,longitude"`
	Priority    Priority `json:"priority" form:"priority" binding:"omitempty,oneof=low medium high urgent"`
}

// UpdateIssueRequest is a partial update. Only present fields are written; a present null clears
// nullable columns.
type UpdateIssueRequest struct {
	Status             common.Optional[Status]     `json:"status"`
	Priority           common.Optional[Priority]   `json:"priority"`
	AssignedTo         common.Optional[*uuid.UUID] `json:"assigned_to"`
	AssignedDepartment common.Optional[*string]    `json:"assigned_department"`
	ResolutionNotes    common.Optional[*string]    `json:"resolution_notes"`

	ResolutionPhoto *multipart.FileHeader `json:"-"`
}

// IsEmpty reports whether no field was supplied.
func (r UpdateIssueRequest) IsEmpty() bool {
	return !r.Status.Set && !r.Priority.Set && !r.AssignedTo.Set &&
		!r.AssignedDepartment.Set && !r.ResolutionNotes.Set && r.ResolutionPhoto == nil
}

// AddCommentRequest is the payload for POST /issues/:id/comments.
type AddCommentRequest struct {
	Body       string `json:"body" binding:"max=5000"`
	IsInternal bool   `json:"is_internal"`
}

// ListIssuesFilter narrows ListIssues. Zero values mean "no filter".
type ListIssuesFilter struct {
	Status     Status
	Category   Category
	Priority   Priority
	AssignedTo *uuid.UUID
	ReporterID *uuid.UUID
}

// Stats is the dashboard aggregate over all issues.
type Stats struct {
	Total      int64              `json:"total"`
	ByStatus   map[Status]int64   `json:"by_status"`
	ByPriority map[Priority]int64 `json:"by_priority"`
	ByCategory []CategoryStats    `json:"by_category"`
	Last7Days  int64              `json:"last_7_days"`
}

// CategoryStats is one row of the per-category breakdown.
type CategoryStats struct {
	Category Category `json:"category"`
	Count    int64    `json:"count"`
	Pending  int64    `json:"pending"`
	Resolved int64    `json:"resolved"`
}

// --- Response DTOs ---

type CommentResponse struct {
	ID         uuid.UUID   `json:"id"`
	IssueID    uuid.UUID   `json:"issue_id"`
	UserID     uuid.UUID   `json:"user_id"`
	AuthorName string      `json:"author_name"`
	AuthorRole common.Role `json:"author_role,omitempty"`
	Body       string      `json:"body"`
	IsInternal bool        `json:"is_internal"`
	CreatedAt  time.Time   `json:"created_at"`
}

// IssueResponse is the public representation of an issue.
type IssueResponse struct {
	ID                 uuid.UUID         `json:"id"`
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Category           Category          `json:"category"`
	Latitude           float64           `json:"latitude"`
	Longitude          float64           `json:"longitude"`
	Status             Status            `json:"status"`
	Priority           Priority          `json:"priority"`
	PhotoURL           *string           `json:"photo_url"`
	ResolutionPhotoURL *string           `json:"resolution_photo_url"`
	ResolutionNotes    *string           `json:"resolution_notes"`
	AssignedTo         *uuid.UUID        `json:"assigned_to"`
	AssignedDepartment *string           `json:"assigned_department"`
	AssigneeName       *string           `json:"assignee_name"`
	ReporterID         uuid.UUID         `json:"reporter_id"`
	ReporterName       string            `json:"reporter_name"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	ResolvedAt         *time.Time        `json:"resolved_at"`
	Comments           []CommentResponse `json:"comments,omitempty"`
}

// publicURL turns a stored relative path into a URL under the uploads prefix.
func publicURL(prefix string, path *string) *string {
	if path == nil || *path == "" {
		return nil
	}
	url := strings.TrimRight(prefix, "/") + "/" + strings.TrimLeft(*path, "/")
	return &url
}

func ToCommentResponse(c *Comment) CommentResponse {
	return CommentResponse{
		ID:         c.ID,
		IssueID:    c.IssueID,
		UserID:     c.UserID,
		AuthorName: c.AuthorName,
		AuthorRole: c.AuthorRole,
		Body:       c.Body,
		IsInternal: c.IsInternal,
		CreatedAt:  c.CreatedAt,
	}
}

// ToIssueResponse converts an Issue to its response DTO. uploadsPrefix is prepended to photo paths.
func ToIssueResponse(i *Issue, uploadsPrefix string) IssueResponse {
	resp := IssueResponse{
		ID:                 i.ID,
		Title:              i.Title,
		Description:        i.Description,
		Category:           i.Category,
		Latitude:           i.Latitude,
		Longitude:          i.Longitude,
		Status:             i.Status,
		Priority:           i.Priority,
		PhotoURL:           publicURL(uploadsPrefix, i.PhotoURL),
		ResolutionPhotoURL: publicURL(uploadsPrefix, i.ResolutionPhotoURL),
		ResolutionNotes:    i.ResolutionNotes,
		AssignedTo:         i.AssignedTo,
		AssignedDepartment: i.AssignedDepartment,
		AssigneeName:       i.AssigneeName,
		ReporterID:         i.ReporterID,
		ReporterName:       i.ReporterName,
		CreatedAt:          i.CreatedAt,
		UpdatedAt:          i.UpdatedAt,
		ResolvedAt:         i.ResolvedAt,
	}
	if i.Comments != nil {
		resp.Comments = make([]CommentResponse, 0, len(i.Comments))
		for k := range i.Comments {
			resp.Comments = append(resp.Comments, ToCommentResponse(&i.Comments[k]))
		}
	}
	return resp
}

func ToIssueResponses(issues []Issue, uploadsPrefix string) []IssueResponse {
	out := make([]IssueResponse, 0, len(issues))
	for i := range issues {
		out = append(out, ToIssueResponse(&issues[i], uploadsPrefix))
	}
	return out
}
