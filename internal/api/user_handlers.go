package api

import (
	"net/http"
	"time"

	"go-candor/internal/auth"
	"go-candor/internal/config"
	"go-candor/internal/db"
	"go-candor/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const tokenLifetime = 7 * 24 * time.Hour

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Plan     string `json:"plan"`
}

func LoginHandler(cfg *config.Config, rdb *redis.Client, log *zap.Logger) gin.HandlerFunc {
	log = log.Named("auth")
	return func(c *gin.Context) {
		// If no users exist, indicate need for setup
		var count int64
		if err := db.DB.Model(&user.User{}).Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "DB error"}})
			return
		}
		if count == 0 {
			c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "Initial setup required", "need_setup": true}})
			return
		}
		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid request"}})
			return
		}
		var u user.User
		if err := db.DB.Where("username = ?", req.Username).First(&u).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Invalid username or password"}})
			return
		}
		if err := user.CheckPassword(u.PasswordHash, req.Password); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Invalid username or password"}})
			return
		}
		token, err := auth.GenerateJWT(cfg.Server.JWTSecret, auth.Identity{
			UserID:   u.ID,
			Username: u.Username,
			Role:     string(u.Role),
			Plan:     string(u.Plan),
		}, tokenLifetime)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to generate token"}})
			return
		}
		if err := auth.SetSession(c.Request.Context(), rdb, u.ID, token, tokenLifetime); err != nil {
			log.Error("session store failed", zap.Uint("user", u.ID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to start session"}})
			return
		}
		log.Info("login", zap.Uint("user", u.ID))
		c.JSON(http.StatusOK, LoginResponse{
			Token:    token,
			UserID:   u.ID,
			Username: u.Username,
			Role:     string(u.Role),
			Plan:     string(u.Plan),
		})
	}
}

func LogoutHandler(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"message": "Not authenticated"}})
			return
		}
		_ = auth.DeleteSession(c.Request.Context(), rdb, userID)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

func userJSON(u user.User) gin.H {
	return gin.H{
		"id":        u.ID,
		"username":  u.Username,
		"role":      u.Role,
		"plan":      u.Plan,
		"createdAt": u.CreatedAt,
	}
}

// MeHandler returns the signed-in user. Free-plan users also get today's
// message usage when quotas are enforced.
func MeHandler(cases *CaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := getUserIDFromContext(c)
		var u user.User
		if err := db.DB.First(&u, userID).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "User not found"}})
			return
		}
		resp := userJSON(u)
		if u.Plan != user.PlanPro {
			used, limit, err := cases.Usage(c.Request.Context(), u.ID)
			if err != nil {
				cases.log.Warn("quota lookup failed", zap.Uint("user", u.ID), zap.Error(err))
			} else if limit > 0 {
				resp["quota"] = gin.H{"used": used, "limit": limit}
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// OnlineUserCountHandler returns the number of unique online users.
func OnlineUserCountHandler(rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		count, err := auth.OnlineUserCount(c.Request.Context(), rdb)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Failed to count online users"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"online": count})
	}
}
