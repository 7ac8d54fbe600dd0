// File: internal/auth/handler.go
package auth

import (
	"civicconnect_backend/internal/common"
	"civicconnect_backend/internal/shared"
	"civicconnect_backend/internal/user"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler struct holds dependencies for auth handlers.
type Handler struct {
	userService  user.Service
	tokenService shared.TokenService
	blocklist    TokenBlocklistService
	logger       *zap.Logger
}

// NewHandler creates a new auth handler.
func NewHandler(
	userService user.Service,
	tokenService shared.TokenService,
	blocklist TokenBlocklistService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		userService:  userService,
		tokenService: tokenService,
		blocklist:    blocklist,
		logger:       logger.Named("AuthHandler"),
	}
}

// RegisterRoutes sets up the routes for authentication operations.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authMW gin.HandlerFunc) {
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/logout", authMW, h.logout)
	}
}

func (h *Handler) register(c *gin.Context) {
	var req user.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Register: invalid request body", zap.Error(err))
		common.RespondWithError(c, common.BindingError(err))
		return
	}

	usr, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	resp, err := h.issueToken(usr)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondCreated(c, "User registered successfully.", resp)
}

func (h *Handler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Login: invalid request body", zap.Error(err))
		common.RespondWithError(c, common.BindingError(err))
		return
	}

	usr, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}

	resp, err := h.issueToken(usr)
	if err != nil {
		common.RespondWithError(c, err)
		return
	}
	common.RespondOK(c, "Login successful.", resp)
}

func (h *Handler) logout(c *gin.Context) {
	val, exists := c.Get(common.UserClaimsKey)
	claims, ok := val.(*shared.Claims)
	if !exists || !ok || claims.ID == "" || claims.ExpiresAt == nil {
		common.RespondWithError(c, common.ErrUnauthorized)
		return
	}

	if err := h.blocklist.AddToBlocklist(c.Request.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		h.logger.Error("Failed to blocklist token on logout", zap.Error(err))
		common.RespondWithError(c, common.ErrInternalServer)
		return
	}
	common.RespondOK(c, "Logged out successfully.", nil)
}

func (h *Handler) issueToken(usr *user.User) (*AuthResponse, error) {
	token, expiresAt, err := h.tokenService.GenerateAccessToken(usr)
	if err != nil {
		h.logger.Error("Failed to generate access token", zap.String("userID", usr.ID.String()), zap.Error(err))
		return nil, common.ErrInternalServer
	}
	return &AuthResponse{
		User: user.ToUserResponse(usr),
		Token: shared.TokenResponse{
			AccessToken: token,
			ExpiresAt:   expiresAt,
			TokenType:   common.AuthorizationTypeBearer,
		},
	}, nil
}
