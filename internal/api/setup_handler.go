package api

import (
	"errors"
	"net/http"

	"go-candor/internal/db"
	"go-candor/internal/user"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var errAlreadySetUp = errors.New("users already exist")

type SetupRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SetupHandler creates the first admin on the pro plan. The user count and
// the insert share a transaction, so only one setup call can win.
func SetupHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid request"}})
			return
		}
		if req.Username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Username and password required"}})
			return
		}
		pwHash, err := user.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Password hash failed"}})
			return
		}

		admin := user.User{
			Username:     req.Username,
			PasswordHash: pwHash,
			Role:         user.RoleAdmin,
			Plan:         user.PlanPro,
		}
		err = db.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&user.User{}).Count(&count).Error; err != nil {
				return err
			}
			if count != 0 {
				return errAlreadySetUp
			}
			return tx.Create(&admin).Error
		})
		switch {
		case errors.Is(err, errAlreadySetUp):
			c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "Setup not allowed; users already exist"}})
			return
		case errors.Is(err, gorm.ErrDuplicatedKey):
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Username already exists"}})
			return
		case err != nil:
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "DB error"}})
			return
		}

		resp := userJSON(admin)
		resp["setup_complete"] = true
		c.JSON(http.StatusCreated, resp)
	}
}
