package api

import (
	"errors"
	"net/http"

	"go-candor/internal/casestore"
	"go-candor/internal/db"
	"go-candor/internal/user"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func isAdmin(c *gin.Context) bool {
	role, _ := c.Get("userRole")
	return role == string(user.RoleAdmin)
}

// GET /users  [admin only]
func ListUsersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "Forbidden"}})
			return
		}
		var users []user.User
		if err := db.DB.Order("id asc").Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "List error"}})
			return
		}
		result := make([]gin.H, 0, len(users))
		for _, u := range users {
			result = append(result, userJSON(u))
		}
		c.JSON(http.StatusOK, result)
	}
}

// POST /users  [admin only]
func CreateUserHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "Forbidden"}})
			return
		}
		var req struct {
			Username string    `json:"username"`
			Password string    `json:"password"`
			Plan     user.Plan `json:"plan"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Username == "" || req.Password == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Missing username or password"}})
			return
		}
		if req.Plan == "" {
			req.Plan = user.PlanFree
		}
		if !req.Plan.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Unknown plan"}})
			return
		}
		pwHash, err := user.HashPassword(req.Password)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Password hash failed"}})
			return
		}
		newUser := user.User{
			Username:     req.Username,
			PasswordHash: pwHash,
			Role:         user.RoleUser,
			Plan:         req.Plan,
		}
		if err := db.DB.Create(&newUser).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Username already exists"}})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Create error"}})
			return
		}
		c.JSON(http.StatusCreated, userJSON(newUser))
	}
}

// GET /users/me
func GetMeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := getUserIDFromContext(c)
		var u user.User
		if err := db.DB.First(&u, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "User not found"}})
			return
		}
		c.JSON(http.StatusOK, userJSON(u))
	}
}

type UpdateMeRequest struct {
	Password string `json:"password,omitempty"`
}

// PUT /users/me
func UpdateMeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := getUserIDFromContext(c)
		var req UpdateMeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid request"}})
			return
		}
		var u user.User
		if err := db.DB.First(&u, userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "User not found"}})
			return
		}
		if req.Password != "" {
			pwHash, err := user.HashPassword(req.Password)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Password hash failed"}})
				return
			}
			u.PasswordHash = pwHash
		}
		if err := db.DB.Save(&u).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Update error"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User updated"})
	}
}

// deleteUser removes the account together with its case and evidence.
func deleteUser(c *gin.Context, id uint) {
	ctx := c.Request.Context()
	if err := casestore.ForUser(db.DB, id).Reset(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Delete error"}})
		return
	}
	if err := db.DB.WithContext(ctx).Delete(&user.User{}, id).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Delete error"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

// DELETE /users/me
func DeleteMeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _ := getUserIDFromContext(c)
		deleteUser(c, userID)
	}
}

func findUserByParam(c *gin.Context) (*user.User, bool) {
	var u user.User
	if err := db.DB.First(&u, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "User not found"}})
		return nil, false
	}
	return &u, true
}

// GET /users/:id  [admin only]
func GetUserByIdHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "Forbidden"}})
			return
		}
		u, ok := findUserByParam(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, userJSON(*u))
	}
}

type UpdateUserRequest struct {
	Password string `json:"password,omitempty"`
	Role     string `json:"role,omitempty"`
	Plan     string `json:"plan,omitempty"`
}

// PUT /users/:id  [admin only]
func UpdateUserByIdHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "Forbidden"}})
			return
		}
		var req UpdateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Invalid request"}})
			return
		}
		u, ok := findUserByParam(c)
		if !ok {
			return
		}
		if req.Password != "" {
			pwHash, err := user.HashPassword(req.Password)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Password hash failed"}})
				return
			}
			u.PasswordHash = pwHash
		}
		if req.Role == string(user.RoleAdmin) || req.Role == string(user.RoleUser) {
			u.Role = user.Role(req.Role)
		}
		if req.Plan != "" {
			if !user.Plan(req.Plan).Valid() {
				c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "Unknown plan"}})
				return
			}
			u.Plan = user.Plan(req.Plan)
		}
		if err := db.DB.Save(u).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"message": "Update error"}})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "User updated"})
	}
}

// DELETE /users/:id  [admin only]
func DeleteUserByIdHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"message": "Forbidden"}})
			return
		}
		u, ok := findUserByParam(c)
		if !ok {
			return
		}
		deleteUser(c, u.ID)
	}
}
