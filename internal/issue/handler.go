// File: internal/issue/handler.go
package issue

import (
	"mime/multipart"
	"net/http"
	"strconv"

	"civicconnect_backend/internal/common"
	"civicconnect_backend/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const multipartMemory = 32 << 20

// Handler struct holds dependencies for issue handlers.
type Handler struct {
	service       Service
	logger        *zap.Logger
	uploadsPrefix string
}

// NewHandler creates a new issue handler.
func NewHandler(service Service, logger *zap.Logger, cfg *config.Config) *Handler {
	return &Handler{
		service:       service,
		logger:        logger.Named("IssueHandler"),
		uploadsPrefix: cfg.UploadsURLPrefix,
	}
}

// RegisterRoutes sets up the routes for issue operations.
// Reads are public; optionalAuthMW attaches the caller when a token is present.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, optionalAuthMW, authMW, staffMW, adminMW, rateLimitMW gin.HandlerFunc) {
	issueGroup := router.Group("/issues")
	{
		issueGroup.GET("", optionalAuthMW, h.listIssues)
		issueGroup.GET("/search", optionalAuthMW, h.searchIssues)
		issueGroup.GET("/stats", authMW, staffMW, h.getStats)
		issueGroup.GET("/:id", optionalAuthMW, h.getIssueByID)

		issueGroup.POST("", authMW, rateLimitMW, h.createIssue)
		issueGroup.PUT("/:id", authMW, staffMW, h.updateIssue)
		issueGroup.DELETE("/:id", authMW, adminMW, h.deleteIssue)
		issueGroup.POST("/:id/comments", authMW, h.addComment)
	}
}

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == binding.MIMEMultipartPOSTForm
}

// optionalFile returns the uploaded file for field, or nil when none was sent.
func optionalFile(c *gin.Context, field string) (*multipart.FileHeader, error) {
	fh, err := c.FormFile(field)
	if err == http.ErrMissingFile {
		return nil, nil
	}
	return fh, err
}

func (h *Handler) createIssue(c *gin.Context) {
	reporterID := common.GetUserIDFromContext(c)
	if reporterID == uuid.Nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("User ID not found in token."))
		return
	}

	var req CreateIssueRequest
	var photo *multipart.FileHeader
	if isMultipart(c) {
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			h.logger.Warn("Create issue: failed to parse multipart form", zap.Error(err))
			common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid multipart form."))
			return
		}
		if err := c.ShouldBindWith(&req, binding.FormMultipart); err != nil {
			common.RespondWithError(c, common.BindingError(err))
			return
		}
		var err error
		if photo, err = optionalFile(c, "photo"); err != nil {
			common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid photo upload."))
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}

	issue, err := h.service.CreateIssue(c.Request.Context(), reporterID, req, photo)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Issue reported successfully.", ToIssueResponse(issue, h.uploadsPrefix))
}

// parseUUIDQuery reads an optional UUID query parameter.
func parseUUIDQuery(c *gin.Context, key string) (*uuid.UUID, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, false
	}
	return &id, true
}

func (h *Handler) listIssues(c *gin.Context) {
	filter := ListIssuesFilter{
		Status:   Status(c.Query("status")),
		Category: Category(c.Query("category")),
		Priority: Priority(c.Query("priority")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid status filter."))
		return
	}
	if filter.Category != "" && !filter.Category.Valid() {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid category filter."))
		return
	}
	if filter.Priority != "" && !filter.Priority.Valid() {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid priority filter."))
		return
	}

	var ok bool
	if filter.AssignedTo, ok = parseUUIDQuery(c, "assigned_to"); !ok {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid assigned_to format."))
		return
	}
	if filter.ReporterID, ok = parseUUIDQuery(c, "reporter_id"); !ok {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid reporter_id format."))
		return
	}
	if c.Query("mine") == "true" {
		callerID := common.GetUserIDFromContext(c)
		if callerID == uuid.Nil {
			common.RespondWithError(c, common.ErrUnauthorized.WithDetails("Sign in to list your own issues."))
			return
		}
		filter.ReporterID = &callerID
	}

	issues, err := h.service.ListIssues(c.Request.Context(), filter)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Issues retrieved successfully.", ToIssueResponses(issues, h.uploadsPrefix))
}

func (h *Handler) searchIssues(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		var err error
		if limit, err = strconv.Atoi(raw); err != nil {
			common.RespondWithError(c, common.ErrBadRequest.WithDetails("limit must be an integer."))
			return
		}
	}
	issues, err := h.service.SearchIssues(c.Request.Context(), c.Query("q"), limit)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Search results retrieved successfully.", ToIssueResponses(issues, h.uploadsPrefix))
}

func (h *Handler) getStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Issue statistics retrieved successfully.", stats)
}

func (h *Handler) getIssueByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid issue ID format."))
		return
	}

	caller, authenticated := common.GetIdentityFromContext(c)
	includeInternal := authenticated && caller.IsStaff()

	issue, err := h.service.GetIssueByID(c.Request.Context(), id, includeInternal)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Issue retrieved successfully.", ToIssueResponse(issue, h.uploadsPrefix))
}

// updateRequestFromForm reads a multipart update. Present-but-empty fields clear nullable columns.
func updateRequestFromForm(c *gin.Context) (UpdateIssueRequest, error) {
	var req UpdateIssueRequest
	if v, ok := c.GetPostForm("status"); ok {
		req.Status = common.Some(Status(v))
	}
	if v, ok := c.GetPostForm("priority"); ok {
		req.Priority = common.Some(Priority(v))
	}
	if v, ok := c.GetPostForm("assigned_to"); ok {
		if v == "" {
			req.AssignedTo = common.Some[*uuid.UUID](nil)
		} else {
			id, err := uuid.Parse(v)
			if err != nil {
				return req, common.NewValidationAPIError(map[string]string{"assigned_to": "Must be a valid user ID."})
			}
			req.AssignedTo = common.Some(&id)
		}
	}
	if v, ok := c.GetPostForm("assigned_department"); ok {
		req.AssignedDepartment = common.Some(&v)
	}
	if v, ok := c.GetPostForm("resolution_notes"); ok {
		req.ResolutionNotes = common.Some(&v)
	}
	photo, err := optionalFile(c, "resolution_photo")
	if err != nil {
		return req, common.ErrBadRequest.WithDetails("Invalid resolution photo upload.")
	}
	req.ResolutionPhoto = photo
	return req, nil
}

func (h *Handler) updateIssue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid issue ID format."))
		return
	}

	var req UpdateIssueRequest
	if isMultipart(c) {
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid multipart form."))
			return
		}
		if req, err = updateRequestFromForm(c); err != nil {
			common.RespondWithError(c, err)
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Update issue: invalid request body", zap.Error(err))
		common.RespondWithError(c, common.BindingError(err))
		return
	}

	issue, err := h.service.UpdateIssue(c.Request.Context(), id, req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Issue updated successfully.", ToIssueResponse(issue, h.uploadsPrefix))
}

func (h *Handler) deleteIssue(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid issue ID format."))
		return
	}
	if err := h.service.DeleteIssue(c.Request.Context(), id); err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Issue deleted successfully.", nil)
}

func (h *Handler) addComment(c *gin.Context) {
	issueID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid issue ID format."))
		return
	}
	caller, ok := common.GetIdentityFromContext(c)
	if !ok {
		common.RespondWithError(c, common.ErrUnauthorized)
		return
	}

	var req AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondWithError(c, common.BindingError(err))
		return
	}
	// Citizens cannot post staff-only notes.
	isInternal := req.IsInternal && caller.IsStaff()

	comment, err := h.service.AddComment(c.Request.Context(), issueID, caller.ID, req.Body, isInternal)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "Comment added successfully.", ToCommentResponse(comment))
}
