package middlewares

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mmdatafocus/retail_backend/appctx"
	"github.com/mmdatafocus/retail_backend/config"
	"github.com/mmdatafocus/retail_backend/models"
)

// SessionMiddleware resolves the caller's session into request context. The
// session itself lives behind the auth gateway, which forwards identity
// headers; a raw token is also accepted and resolved against Redis the way
// the gateway does it.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		token := c.Request.Header.Get("token")
		if token != "" {
			username, exists, err := config.GetRedisValue("Token:" + token)
			if err != nil || !exists {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
				c.Abort()
				return
			}
			ctx = context.WithValue(ctx, appctx.ContextKeyToken, token)
			ctx = context.WithValue(ctx, appctx.ContextKeyUserName, username)
		}

		if businessId := c.Request.Header.Get("X-Business-Id"); businessId != "" {
			ctx = context.WithValue(ctx, appctx.ContextKeyBusinessId, businessId)
		}
		if userId, err := strconv.Atoi(c.Request.Header.Get("X-User-Id")); err == nil {
			ctx = context.WithValue(ctx, appctx.ContextKeyUserId, userId)
		}
		if userName := c.Request.Header.Get("X-User-Name"); userName != "" {
			ctx = context.WithValue(ctx, appctx.ContextKeyUserName, userName)
		}
		if role := c.Request.Header.Get("X-User-Role"); role != "" {
			ctx = context.WithValue(ctx, appctx.ContextKeyUserRole, role)
			if models.UserRole(role) == models.UserRoleAdmin {
				ctx = context.WithValue(ctx, appctx.ContextKeyIsAdmin, true)
			}
		}
		if riderId, err := strconv.Atoi(c.Request.Header.Get("X-Rider-Id")); err == nil {
			ctx = context.WithValue(ctx, appctx.ContextKeyRiderId, riderId)
		}

		correlationId := c.Request.Header.Get("X-Correlation-Id")
		if correlationId == "" {
			correlationId = uuid.NewString()
		}
		ctx = context.WithValue(ctx, appctx.ContextKeyCorrelationId, correlationId)
		c.Writer.Header().Set("X-Correlation-Id", correlationId)

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireBusiness rejects requests that carry no tenant.
func RequireBusiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := appctx.GetString(c.Request.Context(), appctx.ContextKeyBusinessId); !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "X-Business-Id header is required"})
			c.Abort()
			return
		}
		c.Next()
	}
}
