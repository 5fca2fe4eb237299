package auth

import (
	"net/http"
	"strings"

	"go-candor/internal/config"
	"go-candor/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Context keys set by AuthMiddleware.
const (
	CtxUserID   = "userId"
	CtxUsername = "username"
	CtxRole     = "userRole"
	CtxPlan     = "plan"
)

func AuthMiddleware(cfg *config.Config, rdb *redis.Client, requireAdmin bool, log *zap.Logger) gin.HandlerFunc {
	log = log.Named("auth")
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Missing or invalid Authorization header"}})
			return
		}
		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := ParseJWT(cfg.Server.JWTSecret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Invalid or expired token"}})
			return
		}
		ctx := c.Request.Context()
		sessionToken, err := GetSession(ctx, rdb, claims.UserID)
		if err != nil || sessionToken != tokenStr {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Session expired or invalid"}})
			return
		}
		if err := SetSession(ctx, rdb, claims.UserID, tokenStr, SessionIdle); err != nil {
			log.Warn("session refresh failed", zap.Uint("user", claims.UserID), zap.Error(err))
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxUsername, claims.Username)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxPlan, claims.Plan)

		if requireAdmin && claims.Role != string(user.RoleAdmin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "Admin only"}})
			return
		}
		c.Next()
	}
}
