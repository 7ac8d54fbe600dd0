package middleware

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"civicconnect_backend/internal/common"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const issueLimitKeyPrefix = "civicconnect:issue_limit"

// IssueRateLimiter caps how many issues a citizen can file per 24h window. Staff and admins are
// exempt. A nil client disables the limit, and Redis errors let the request through.
func IssueRateLimiter(client *redis.Client, limit int, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || limit <= 0 {
			c.Next()
			return
		}
		identity, ok := common.GetIdentityFromContext(c)
		if !ok {
			common.RespondWithError(c, common.ErrUnauthorized)
			return
		}
		if identity.IsStaff() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := fmt.Sprintf("%s:%s", issueLimitKeyPrefix, identity.ID)

		count, err := client.Incr(ctx, key).Result()
		if err != nil {
			logger.Error("Failed to increment issue rate limit counter", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if count == 1 {
			if err := client.Expire(ctx, key, 24*time.Hour).Err(); err != nil {
				logger.Error("Failed to set issue rate limit TTL", zap.String("key", key), zap.Error(err))
			}
		}

		if count > int64(limit) {
			retryAfter, err := client.TTL(ctx, key).Result()
			if err != nil || retryAfter < 0 {
				retryAfter = 24 * time.Hour
			}
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			common.RespondWithError(c, common.ErrTooManyRequests.WithDetails(gin.H{
				"limit":       limit,
				"retry_after": int(math.Ceil(retryAfter.Seconds())),
			}))
			return
		}
		c.Next()
	}
}
