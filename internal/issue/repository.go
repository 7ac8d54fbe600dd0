// File: internal/issue/repository.go
package issue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"civicconnect_backend/internal/common"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for issue and comment data operations.
type Repository interface {
	Create(ctx context.Context, issue *Issue) error
	FindByID(ctx context.Context, id uuid.UUID) (*Issue, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Issue, error)
	List(ctx context.Context, filter ListIssuesFilter) ([]Issue, error)
	Update(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error
	Delete(ctx context.Context, id uuid.UUID) error
	SearchText(ctx context.Context, query string, limit int) ([]Issue, error)
	FindAllForSync(ctx context.Context, offset, limit int) ([]Issue, error)

	CreateComment(ctx context.Context, comment *Comment) error
	FindCommentByID(ctx context.Context, id uuid.UUID) (*Comment, error)
	ListComments(ctx context.Context, issueID uuid.UUID, includeInternal bool) ([]Comment, error)

	Stats(ctx context.Context, since time.Time) (*Stats, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewGORMRepository creates a new GORM issue repository.
func NewGORMRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// withNames selects issues joined with reporter and assignee display names.
func (r *gormRepository) withNames(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("issues").
		Select("issues.*, COALESCE(reporter.name, '') AS reporter_name, assignee.name AS assignee_name").
		Joins("LEFT JOIN users AS reporter ON reporter.id = issues.reporter_id").
		Joins("LEFT JOIN users AS assignee ON assignee.id = issues.assigned_to")
}

func (r *gormRepository) Create(ctx context.Context, issue *Issue) error {
	if err := r.db.WithContext(ctx).Create(issue).Error; err != nil {
		return fmt.Errorf("failed to create issue: %w", err)
	}
	return nil
}

// FindByID retrieves an issue with reporter and assignee names. Comments are loaded separately.
func (r *gormRepository) FindByID(ctx context.Context, id uuid.UUID) (*Issue, error) {
	var issue Issue
	err := r.withNames(ctx).Where("issues.id = ?", id).Take(&issue).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Issue not found.")
		}
		return nil, err
	}
	return &issue, nil
}

// FindByIDs returns the issues in the same order as ids. Unknown ids are skipped.
func (r *gormRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Issue, error) {
	if len(ids) == 0 {
		return []Issue{}, nil
	}
	var found []Issue
	if err := r.withNames(ctx).Where("issues.id IN ?", ids).Find(&found).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]Issue, len(found))
	for _, issue := range found {
		byID[issue.ID] = issue
	}
	ordered := make([]Issue, 0, len(found))
	for _, id := range ids {
		if issue, ok := byID[id]; ok {
			ordered = append(ordered, issue)
		}
	}
	return ordered, nil
}

// List returns issues matching filter, newest first.
func (r *gormRepository) List(ctx context.Context, filter ListIssuesFilter) ([]Issue, error) {
	query := r.withNames(ctx)
	if filter.Status != "" {
		query = query.Where("issues.status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("issues.category = ?", filter.Category)
	}
	if filter.Priority != "" {
		query = query.Where("issues.priority = ?", filter.Priority)
	}
	if filter.AssignedTo != nil {
		query = query.Where("issues.assigned_to = ?", *filter.AssignedTo)
	}
	if filter.ReporterID != nil {
		query = query.Where("issues.reporter_id = ?", *filter.ReporterID)
	}

	issues := []Issue{}
	if err := query.Order("issues.created_at DESC").Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}
	return issues, nil
}

// Update writes only the supplied columns.
func (r *gormRepository) Update(ctx context.Context, id uuid.UUID, changes map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&Issue{}).Where("id = ?", id).Updates(changes)
	if result.Error != nil {
		return fmt.Errorf("failed to update issue: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return common.ErrNotFound.WithDetails("Issue not found.")
	}
	return nil
}

// Delete removes an issue, its comments and its notification links in one transaction.
func (r *gormRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("issue_id = ?", id).Delete(&Comment{}).Error; err != nil {
			return fmt.Errorf("failed to delete issue comments: %w", err)
		}
		if err := tx.Table("notifications").Where("issue_id = ?", id).Update("issue_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach issue notifications: %w", err)
		}
		result := tx.Where("id = ?", id).Delete(&Issue{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete issue: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return common.ErrNotFound.WithDetails("Issue not found.")
		}
		return nil
	})
}

// SearchText is the database fallback for full-text search.
func (r *gormRepository) SearchText(ctx context.Context, query string, limit int) ([]Issue, error) {
	term := "%" + strings.ToLower(strings.TrimSpace(query)) + "%"
	issues := []Issue{}
	err := r.withNames(ctx).
		Where("LOWER(issues.title) LIKE ? OR LOWER(issues.description) LIKE ?", term, term).
		Order("issues.created_at DESC").
		Limit(limit).
		Find(&issues).Error
	return issues, err
}

// FindAllForSync pages through every issue in a stable order.
func (r *gormRepository) FindAllForSync(ctx context.Context, offset, limit int) ([]Issue, error) {
	var issues []Issue
	err := r.withNames(ctx).
		Order("issues.created_at ASC, issues.id ASC").
		Offset(offset).
		Limit(limit).
		Find(&issues).Error
	return issues, err
}

func (r *gormRepository) CreateComment(ctx context.Context, comment *Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

func (r *gormRepository) comments(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("comments").
		Select("comments.*, COALESCE(users.name, '') AS author_name, COALESCE(users.role, '') AS author_role").
		Joins("LEFT JOIN users ON users.id = comments.user_id")
}

func (r *gormRepository) FindCommentByID(ctx context.Context, id uuid.UUID) (*Comment, error) {
	var comment Comment
	err := r.comments(ctx).Where("comments.id = ?", id).Take(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound.WithDetails("Comment not found.")
		}
		return nil, err
	}
	return &comment, nil
}

// ListComments returns an issue's comments oldest first.
func (r *gormRepository) ListComments(ctx context.Context, issueID uuid.UUID, includeInternal bool) ([]Comment, error) {
	query := r.comments(ctx).Where("comments.issue_id = ?", issueID)
	if !includeInternal {
		query = query.Where("comments.is_internal = ?", false)
	}
	comments := []Comment{}
	err := query.Order("comments.created_at ASC").Find(&comments).Error
	return comments, err
}

type groupCount struct {
	Label string
	Count int64
}

// Stats aggregates counts over all issues. since bounds the rolling creation count.
func (r *gormRepository) Stats(ctx context.Context, since time.Time) (*Stats, error) {
	db := r.db.WithContext(ctx).Model(&Issue{}).Session(&gorm.Session{})
	stats := &Stats{
		ByStatus:   make(map[Status]int64, len(AllStatuses)),
		ByPriority: make(map[Priority]int64, len(AllPriorities)),
		ByCategory: []CategoryStats{},
	}
	for _, s := range AllStatuses {
		stats.ByStatus[s] = 0
	}
	for _, p := range AllPriorities {
		stats.ByPriority[p] = 0
	}

	if err := db.Count(&stats.Total).Error; err != nil {
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}
	if stats.Total == 0 {
		return stats, nil
	}

	var byStatus []groupCount
	if err := db.Select("status AS label, COUNT(*) AS count").Group("status").Scan(&byStatus).Error; err != nil {
		return nil, fmt.Errorf("failed to count issues by status: %w", err)
	}
	for _, row := range byStatus {
		stats.ByStatus[Status(row.Label)] = row.Count
	}

	var byPriority []groupCount
	if err := db.Select("priority AS label, COUNT(*) AS count").Group("priority").Scan(&byPriority).Error; err != nil {
		return nil, fmt.Errorf("failed to count issues by priority: %w", err)
	}
	for _, row := range byPriority {
		stats.ByPriority[Priority(row.Label)] = row.Count
	}

	err := db.
		Select("category, COUNT(*) AS count, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS pending, "+
			"SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS resolved", StatusPending, StatusResolved).
		Group("category").
		Order("count DESC, category ASC").
		Scan(&stats.ByCategory).Error
	if err != nil {
		return nil, fmt.Errorf("failed to build category breakdown: %w", err)
	}

	if err := db.Where("created_at >= ?", since).Count(&stats.Last7Days).Error; err != nil {
		return nil, fmt.Errorf("failed to count recent issues: %w", err)
	}
	return stats, nil
}
