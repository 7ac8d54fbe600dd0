package notification

import (
	"strconv"

	"civicconnect_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger.Named("NotificationHandler"),
	}
}

// RegisterRoutes sets up the routes for notification operations.
// All routes in this group require authentication.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW gin.HandlerFunc) {
	group := router.Group("/notifications", authMW)
	{
		group.GET("", h.getNotifications)
		group.GET("/unread-count", h.getUnreadCount)
		group.PUT("/read-all", h.markAllRead)
		group.PUT("/:notification_id/read", h.markRead)
	}
}

func (h *Handler) getNotifications(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("User ID not found in token."))
		return
	}

	opts := ListOptions{UnreadOnly: c.Query("unread_only") == "true"}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			common.RespondWithError(c, common.ErrBadRequest.WithDetails("limit must be a positive integer."))
			return
		}
		opts.Limit = limit
	}

	notifications, err := h.service.ListForUser(c.Request.Context(), userID, opts)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Notifications retrieved successfully.", notifications)
}

func (h *Handler) getUnreadCount(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("User ID not found in token."))
		return
	}

	count, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Unread count retrieved successfully.", gin.H{"count": count})
}

func (h *Handler) markRead(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("User ID not found in token."))
		return
	}

	notificationID, err := uuid.Parse(c.Param("notification_id"))
	if err != nil {
		common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid notification ID format."))
		return
	}

	n, err := h.service.MarkRead(c.Request.Context(), notificationID, userID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	if n == nil {
		common.RespondWithError(c, common.ErrNotFound.WithDetails("Notification not found."))
		return
	}
	common.RespondOK(c, "Notification marked as read successfully.", n)
}

func (h *Handler) markAllRead(c *gin.Context) {
	userID := common.GetUserIDFromContext(c)
	if userID == uuid.Nil {
		common.RespondWithError(c, common.ErrUnauthorized.WithDetails("User ID not found in token."))
		return
	}

	count, err := h.service.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "All notifications marked as read.", gin.H{"updated": count})
}
