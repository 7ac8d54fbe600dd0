// File: internal/issue/service.go
package issue

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
	"time"

	"civicconnect_backend/internal/common"
	"civicconnect_backend/internal/config"
	"civicconnect_backend/internal/filestorage"
	"civicconnect_backend/internal/notification"
	"civicconnect_backend/internal/user"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const (
	photoSubDir      = "issues"
	statsWindow      = 7 * 24 * time.Hour
	defaultSearchMax = 20
	maxSearchLimit   = 100
)

// Service defines the issue lifecycle operations.
type Service interface {
	CreateIssue(ctx context.Context, reporterID uuid.UUID, req CreateIssueRequest, photo *multipart.FileHeader) (*Issue, error)
	ListIssues(ctx context.Context, filter ListIssuesFilter) ([]Issue, error)
	GetIssueByID(ctx context.Context, id uuid.UUID, includeInternal bool) (*Issue, error)
	UpdateIssue(ctx context.Context, id uuid.UUID, req UpdateIssueRequest) (*Issue, error)
	DeleteIssue(ctx context.Context, id uuid.UUID) error
	AddComment(ctx context.Context, issueID, authorID uuid.UUID, body string, isInternal bool) (*Comment, error)
	GetStats(ctx context.Context) (*Stats, error)
	SearchIssues(ctx context.Context, query string, limit int) ([]Issue, error)
}

// Notifier delivers workflow notifications.
type Notifier interface {
	Dispatch(ctx context.Context, userID uuid.UUID, issueID *uuid.UUID, notifType notification.NotificationType, title, message string) error
}

// UserDirectory resolves assignees and new-issue recipients.
type UserDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	FindByRoles(ctx context.Context, roles ...common.Role) ([]user.User, error)
}

// PhotoStorage persists uploaded photos and returns their relative paths.
type PhotoStorage interface {
	SaveUploadedFile(fileHeader *multipart.FileHeader, subDir string) (string, error)
	DeleteFile(relativePath string) error
}

// NotifyPolicy selects who hears about newly reported issues.
type NotifyPolicy struct {
	Mode   string
	UserID uuid.UUID
}

// NotifyPolicyFromConfig reads NEW_ISSUE_NOTIFY_POLICY and NEW_ISSUE_NOTIFY_USER_ID.
func NotifyPolicyFromConfig(cfg *config.Config) NotifyPolicy {
	policy := NotifyPolicy{Mode: cfg.NewIssueNotifyPolicy}
	if policy.Mode == config.NotifyPolicySingle {
		policy.UserID, _ = uuid.Parse(cfg.NewIssueNotifyUserID)
	}
	return policy
}

// ServiceImplementation implements Service.
type ServiceImplementation struct {
	repo     Repository
	notifier Notifier
	users    UserDirectory
	storage  PhotoStorage
	index    SearchIndex
	policy   NotifyPolicy
	logger   *zap.Logger
	now      func() time.Time
}

var _ Service = (*ServiceImplementation)(nil)

// NewService creates a new issue service.
func NewService(
	repo Repository,
	notifier Notifier,
	users UserDirectory,
	storage PhotoStorage,
	index SearchIndex,
	policy NotifyPolicy,
	logger *zap.Logger,
) *ServiceImplementation {
	return &ServiceImplementation{
		repo:     repo,
		notifier: notifier,
		users:    users,
		storage:  storage,
		index:    index,
		policy:   policy,
		logger:   logger.Named("IssueService"),
		now:      time.Now,
	}
}

func photoError(field string, err error) error {
	if errors.Is(err, filestorage.ErrUnsupportedFileType) || errors.Is(err, filestorage.ErrFileTooLarge) {
		return common.NewValidationAPIError(map[string]string{field: err.Error()})
	}
	return common.ErrInternalServer.WithDetails("Failed to store photo.")
}

// CreateIssue records a new pending issue and notifies staff.
func (s *ServiceImplementation) CreateIssue(ctx context.Context, reporterID uuid.UUID, req CreateIssueRequest, photo *multipart.FileHeader) (*Issue, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, common.NewValidationAPIError(map[string]string{"Title": "The title field is required."})
	}
	if !req.Category.Valid() {
		return nil, common.NewValidationAPIError(map[string]string{"Category": "Unknown category."})
	}
	if req.Latitude == nil || req.Longitude == nil {
		return nil, common.NewValidationAPIError(map[string]string{"Location": "Latitude and longitude are required."})
	}
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	} else if !priority.Valid() {
		return nil, common.NewValidationAPIError(map[string]string{"Priority": "Unknown priority."})
	}

	issue := &Issue{
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		Status:      StatusPending,
		Priority:    priority,
		ReporterID:  reporterID,
	}

	if photo != nil {
		path, err := s.storage.SaveUploadedFile(photo, photoSubDir)
		if err != nil {
			s.logger.Warn("Failed to save issue photo", zap.String("reporterID", reporterID.String()), zap.Error(err))
			return nil, photoError("photo", err)
		}
		issue.PhotoURL = &path
	}

	if err := s.repo.Create(ctx, issue); err != nil {
		s.logger.Error("Failed to create issue", zap.String("reporterID", reporterID.String()), zap.Error(err))
		if issue.PhotoURL != nil {
			s.removePhoto(*issue.PhotoURL)
		}
		return nil, common.ErrInternalServer.WithDetails("Failed to create issue.")
	}

	created, err := s.repo.FindByID(ctx, issue.ID)
	if err != nil {
		s.logger.Error("Failed to reload created issue", zap.String("issueID", issue.ID.String()), zap.Error(err))
		return nil, common.ErrInternalServer
	}
	s.logger.Info("Issue created",
		zap.String("issueID", created.ID.String()),
		zap.String("category", string(created.Category)),
		zap.String("reporterID", reporterID.String()),
	)

	s.indexIssue(ctx, created)
	s.notifyNewIssue(ctx, created)
	return created, nil
}

// newIssueRecipients resolves the configured new-issue audience. The reporter is never included.
func (s *ServiceImplementation) newIssueRecipients(ctx context.Context, reporterID uuid.UUID) []uuid.UUID {
	if s.policy.Mode == config.NotifyPolicySingle {
		if s.policy.UserID == uuid.Nil || s.policy.UserID == reporterID {
			return nil
		}
		return []uuid.UUID{s.policy.UserID}
	}

	staff, err := s.users.FindByRoles(ctx, common.RoleStaff, common.RoleAdmin)
	if err != nil {
		s.logger.Error("Failed to load staff for new issue notification", zap.Error(err))
		return nil
	}
	recipients := make([]uuid.UUID, 0, len(staff))
	for _, u := range staff {
		if u.ID != reporterID {
			recipients = append(recipients, u.ID)
		}
	}
	return recipients
}

func (s *ServiceImplementation) notifyNewIssue(ctx context.Context, issue *Issue) {
	message := fmt.Sprintf("A new %s issue has been reported: %s", issue.Category, issue.Title)
	for _, recipient := range s.newIssueRecipients(ctx, issue.ReporterID) {
		s.dispatch(ctx, recipient, issue.ID, notification.TypeNewIssue, "New Issue Reported", message)
	}
}

// dispatch sends a notification and logs failures. Notification errors never fail the caller.
func (s *ServiceImplementation) dispatch(ctx context.Context, userID, issueID uuid.UUID, notifType notification.NotificationType, title, message string) {
	if err := s.notifier.Dispatch(ctx, userID, &issueID, notifType, title, message); err != nil {
		s.logger.Error("Failed to dispatch notification",
			zap.String("userID", userID.String()),
			zap.String("issueID", issueID.String()),
			zap.String("type", string(notifType)),
			zap.Error(err),
		)
	}
}

func (s *ServiceImplementation) indexIssue(ctx context.Context, issue *Issue) {
	if err := s.index.IndexIssue(ctx, issue); err != nil {
		s.logger.Warn("Failed to index issue", zap.String("issueID", issue.ID.String()), zap.Error(err))
	}
}

func (s *ServiceImplementation) removePhoto(path string) {
	if err := s.storage.DeleteFile(path); err != nil {
		s.logger.Warn("Failed to delete photo", zap.String("path", path), zap.Error(err))
	}
}

func (s *ServiceImplementation) ListIssues(ctx context.Context, filter ListIssuesFilter) ([]Issue, error) {
	issues, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list issues", zap.Error(err))
		return nil, common.ErrInternalServer
	}
	return issues, nil
}

// GetIssueByID returns an issue with its comments, oldest first. Internal comments are
// included only when includeInternal is set.
func (s *ServiceImplementation) GetIssueByID(ctx context.Context, id uuid.UUID, includeInternal bool) (*Issue, error) {
	issue, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}
	comments, err := s.repo.ListComments(ctx, id, includeInternal)
	if err != nil {
		s.logger.Error("Failed to load issue comments", zap.String("issueID", id.String()), zap.Error(err))
		return nil, common.ErrInternalServer
	}
	issue.Comments = comments
	return issue, nil
}

func (s *ServiceImplementation) lookupError(id uuid.UUID, err error) error {
	if errors.Is(err, common.ErrNotFound) {
		return err
	}
	s.logger.Error("Failed to load issue", zap.String("issueID", id.String()), zap.Error(err))
	return common.ErrInternalServer
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}

// departmentKey normalises a department name into a stable slug, or nil when blank.
func departmentKey(v *string) *string {
	t := trimmedOrNil(v)
	if t == nil {
		return nil
	}
	key := slug.Make(*t)
	if key == "" {
		return nil
	}
	return &key
}

// UpdateIssue applies the supplied fields only.
func (s *ServiceImplementation) UpdateIssue(ctx context.Context, id uuid.UUID, req UpdateIssueRequest) (*Issue, error) {
	if req.IsEmpty() {
		return nil, common.NewValidationAPIError("No fields to update.")
	}
	if req.Status.Set && !req.Status.Value.Valid() {
		return nil, common.NewValidationAPIError(map[string]string{"status": "Unknown status."})
	}
	if req.Priority.Set && !req.Priority.Value.Valid() {
		return nil, common.NewValidationAPIError(map[string]string{"priority": "Unknown priority."})
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}

	changes := make(map[string]interface{})
	if req.Status.Set {
		changes["status"] = req.Status.Value
		if req.Status.Value == StatusResolved && existing.Status != StatusResolved {
			changes["resolved_at"] = s.now()
		}
	}
	if req.Priority.Set {
		changes["priority"] = req.Priority.Value
	}
	if req.AssignedTo.Set {
		if req.AssignedTo.Value == nil {
			changes["assigned_to"] = nil
		} else {
			if _, err := s.users.FindByID(ctx, *req.AssignedTo.Value); err != nil {
				if errors.Is(err, common.ErrNotFound) {
					return nil, common.NewValidationAPIError(map[string]string{"assigned_to": "Assignee does not exist."})
				}
				s.logger.Error("Failed to look up assignee", zap.Error(err))
				return nil, common.ErrInternalServer
			}
			changes["assigned_to"] = *req.AssignedTo.Value
		}
	}
	if req.AssignedDepartment.Set {
		changes["assigned_department"] = departmentKey(req.AssignedDepartment.Value)
	}
	if req.ResolutionNotes.Set {
		changes["resolution_notes"] = trimmedOrNil(req.ResolutionNotes.Value)
	}

	var newPhoto string
	if req.ResolutionPhoto != nil {
		newPhoto, err = s.storage.SaveUploadedFile(req.ResolutionPhoto, photoSubDir)
		if err != nil {
			s.logger.Warn("Failed to save resolution photo", zap.String("issueID", id.String()), zap.Error(err))
			return nil, photoError("resolution_photo", err)
		}
		changes["resolution_photo_url"] = newPhoto
	}

	if err := s.repo.Update(ctx, id, changes); err != nil {
		if newPhoto != "" {
			s.removePhoto(newPhoto)
		}
		return nil, s.lookupError(id, err)
	}

	updated, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.lookupError(id, err)
	}
	s.logger.Info("Issue updated", zap.String("issueID", id.String()), zap.Int("fields", len(changes)))

	if newPhoto != "" && existing.ResolutionPhotoURL != nil && *existing.ResolutionPhotoURL != newPhoto {
		s.removePhoto(*existing.ResolutionPhotoURL)
	}
	s.indexIssue(ctx, updated)

	if req.Status.Set && req.Status.Value != existing.Status {
		s.dispatch(ctx, updated.ReporterID, updated.ID, notification.TypeStatusUpdate, "Issue Status Updated",
			fmt.Sprintf("Your issue \"%s\" is now %s", updated.Title, updated.Status.Label()))
	}
	if req.AssignedTo.Set && req.AssignedTo.Value != nil &&
		(existing.AssignedTo == nil || *existing.AssignedTo != *req.AssignedTo.Value) {
		s.dispatch(ctx, *req.AssignedTo.Value, updated.ID, notification.TypeAssignment, "Issue Assigned",
			fmt.Sprintf("You have been assigned to issue \"%s\"", updated.Title))
	}
	return updated, nil
}

// DeleteIssue removes the issue with its comments, then its photos and search document.
func (s *ServiceImplementation) DeleteIssue(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return s.lookupError(id, err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return s.lookupError(id, err)
	}
	s.logger.Info("Issue deleted", zap.String("issueID", id.String()))

	for _, path := range []*string{existing.PhotoURL, existing.ResolutionPhotoURL} {
		if path != nil && *path != "" {
			s.removePhoto(*path)
		}
	}
	if err := s.index.DeleteIssue(ctx, id); err != nil {
		s.logger.Warn("Failed to remove issue from search index", zap.String("issueID", id.String()), zap.Error(err))
	}
	return nil
}

// AddComment appends a comment. Public comments notify the reporter.
func (s *ServiceImplementation) AddComment(ctx context.Context, issueID, authorID uuid.UUID, body string, isInternal bool) (*Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, common.NewValidationAPIError(map[string]string{"body": "Comment cannot be empty."})
	}

	issue, err := s.repo.FindByID(ctx, issueID)
	if err != nil {
		return nil, s.lookupError(issueID, err)
	}

	comment := &Comment{
		IssueID:    issueID,
		UserID:     authorID,
		Body:       body,
		IsInternal: isInternal,
	}
	if err := s.repo.CreateComment(ctx, comment); err != nil {
		s.logger.Error("Failed to create comment", zap.String("issueID", issueID.String()), zap.Error(err))
		return nil, common.ErrInternalServer
	}

	created, err := s.repo.FindCommentByID(ctx, comment.ID)
	if err != nil {
		s.logger.Warn("Failed to reload comment", zap.String("commentID", comment.ID.String()), zap.Error(err))
		created = comment
	}

	if !isInternal {
		s.dispatch(ctx, issue.ReporterID, issue.ID, notification.TypeComment, "New Comment",
			fmt.Sprintf("A new comment was added to your issue \"%s\"", issue.Title))
	}
	return created, nil
}

func (s *ServiceImplementation) GetStats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.Stats(ctx, s.now().Add(-statsWindow))
	if err != nil {
		s.logger.Error("Failed to compute issue stats", zap.Error(err))
		return nil, common.ErrInternalServer
	}
	return stats, nil
}

// SearchIssues uses the search index when available and falls back to the database.
func (s *ServiceImplementation) SearchIssues(ctx context.Context, query string, limit int) ([]Issue, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, common.NewValidationAPIError(map[string]string{"q": "Search query is required."})
	}
	switch {
	case limit <= 0:
		limit = defaultSearchMax
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}

	ids, err := s.index.Search(ctx, query, limit)
	if err == nil {
		issues, err := s.repo.FindByIDs(ctx, ids)
		if err != nil {
			s.logger.Error("Failed to load search results", zap.Error(err))
			return nil, common.ErrInternalServer
		}
		return issues, nil
	}
	if !errors.Is(err, ErrSearchUnavailable) {
		s.logger.Warn("Search index query failed; falling back to database", zap.Error(err))
	}

	issues, err := s.repo.SearchText(ctx, query, limit)
	if err != nil {
		s.logger.Error("Failed to search issues", zap.Error(err))
		return nil, common.ErrInternalServer
	}
	return issues, nil
}
