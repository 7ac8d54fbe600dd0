// File: internal/middleware/auth.go
package middleware

import (
	"context"
	"errors"

	"civicconnect_backend/internal/common"
	"civicconnect_backend/internal/shared"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// IdentityLoader resolves a user id to the current identity held in storage.
type IdentityLoader interface {
	LoadIdentity(ctx context.Context, id uuid.UUID) (common.Identity, error)
}

// Blocklist reports revoked token ids.
type Blocklist interface {
	IsBlocklisted(ctx context.Context, jti string) (bool, error)
}

// Authenticator turns bearer credentials into identities. The user is re-read on every request,
// so role and name edits apply immediately.
type Authenticator struct {
	tokens    shared.TokenService
	blocklist Blocklist
	users     IdentityLoader
	logger    *zap.Logger
}

// NewAuthenticator creates the access gate.
func NewAuthenticator(tokens shared.TokenService, blocklist Blocklist, users IdentityLoader, logger *zap.Logger) *Authenticator {
	return &Authenticator{
		tokens:    tokens,
		blocklist: blocklist,
		users:     users,
		logger:    logger.Named("AuthMiddleware"),
	}
}

var errNoCredential = errors.New("no credential")

func (a *Authenticator) resolve(c *gin.Context) (common.Identity, *shared.Claims, error) {
	tokenString := common.GetTokenFromContext(c)
	if tokenString == "" {
		if c.GetHeader(common.AuthorizationHeader) != "" {
			return common.Identity{}, nil, common.ErrUnauthorized.WithDetails("Authorization header format must be 'Bearer <token>'.")
		}
		return common.Identity{}, nil, errNoCredential
	}

	claims, err := a.tokens.ValidateToken(tokenString)
	if err != nil {
		a.logger.Debug("Token validation failed", zap.Error(err))
		return common.Identity{}, nil, common.ErrUnauthorized.WithDetails("Invalid or expired token.")
	}

	if a.blocklist != nil && claims.ID != "" {
		revoked, err := a.blocklist.IsBlocklisted(c.Request.Context(), claims.ID)
		if err != nil {
			a.logger.Error("Failed to check token blocklist", zap.Error(err))
			return common.Identity{}, nil, common.ErrInternalServer
		}
		if revoked {
			return common.Identity{}, nil, common.ErrUnauthorized.WithDetails("Token has been revoked.")
		}
	}

	identity, err := a.users.LoadIdentity(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.Identity{}, nil, common.ErrUnauthorized.WithDetails("User no longer exists.")
		}
		a.logger.Error("Failed to load identity", zap.String("userID", claims.UserID.String()), zap.Error(err))
		return common.Identity{}, nil, common.ErrInternalServer
	}
	return identity, claims, nil
}

// Required rejects requests without a valid bearer credential.
func (a *Authenticator) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, claims, err := a.resolve(c)
		if err != nil {
			if errors.Is(err, errNoCredential) {
				err = common.ErrUnauthorized.WithDetails("Authorization header is required.")
			}
			common.RespondWithError(c, err)
			return
		}
		common.SetIdentity(c, identity)
		c.Set(common.UserClaimsKey, claims)
		c.Next()
	}
}

// Optional resolves a credential when one is presented and lets anonymous requests through.
// A presented but invalid credential is still rejected.
func (a *Authenticator) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, claims, err := a.resolve(c)
		switch {
		case errors.Is(err, errNoCredential):
		case err != nil:
			common.RespondWithError(c, err)
			return
		default:
			common.SetIdentity(c, identity)
			c.Set(common.UserClaimsKey, claims)
		}
		c.Next()
	}
}

// RequirePolicy checks the resolved role against a named policy. It must run after Required.
func RequirePolicy(policy common.Policy) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := common.GetIdentityFromContext(c)
		if !ok {
			common.RespondWithError(c, common.ErrUnauthorized)
			return
		}
		if !policy.Allows(identity.Role) {
			common.RespondWithError(c, common.ErrForbidden.WithDetails("You do not have sufficient permissions for this resource."))
			return
		}
		c.Next()
	}
}

// RequireSelfOrAdmin allows admins and the user named by the path parameter.
func RequireSelfOrAdmin(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := common.GetIdentityFromContext(c)
		if !ok {
			common.RespondWithError(c, common.ErrUnauthorized)
			return
		}
		target, err := uuid.Parse(c.Param(param))
		if err != nil {
			common.RespondWithError(c, common.ErrBadRequest.WithDetails("Invalid user ID format."))
			return
		}
		if !common.SelfOrAdmin(identity, target) {
			common.RespondWithError(c, common.ErrForbidden.WithDetails("You can only access your own account."))
			return
		}
		c.Next()
	}
}
