package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go-candor/internal/api"
	"go-candor/internal/config"
	"go-candor/internal/db"
	"go-candor/internal/investigation"
	"go-candor/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupPermTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbConn, err := gorm.Open(sqlite.Open("file:permtest?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(dbConn))
	for _, table := range []string{"users", "chats", "messages", "cases", "evidence", "signal_events"} {
		require.NoError(t, dbConn.Exec("DELETE FROM "+table).Error)
	}
	db.DB = dbConn
	return dbConn
}

// Simulate middleware that sets userId and userRole
func withUser(id uint, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userId", id)
		c.Set("userRole", role)
		c.Next()
	}
}

func createUsers(t *testing.T, conn *gorm.DB, users ...*user.User) {
	t.Helper()
	for _, u := range users {
		if u.Plan == "" {
			u.Plan = user.PlanFree
		}
		u.PasswordHash = "hash"
		require.NoError(t, conn.Create(u).Error)
	}
}

func send(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestAdminCanUpdateAndDeleteAnyUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := setupPermTestDB(t)
	admin := user.User{Username: "admin", Role: user.RoleAdmin}
	regular := user.User{Username: "regular", Role: user.RoleUser}
	createUsers(t, conn, &admin, &regular)

	r := gin.New()
	r.Use(withUser(admin.ID, "admin"))
	r.PUT("/users/:id", api.UpdateUserByIdHandler())
	r.DELETE("/users/:id", api.DeleteUserByIdHandler())

	w := send(r, "PUT", "/users/"+toStrUint(regular.ID), `{"password":"newpass","role":"admin","plan":"pro"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated user.User
	require.NoError(t, conn.First(&updated, regular.ID).Error)
	assert.Equal(t, user.RoleAdmin, updated.Role)
	assert.Equal(t, user.PlanPro, updated.Plan)
	assert.NoError(t, user.CheckPassword(updated.PasswordHash, "newpass"))

	w = send(r, "DELETE", "/users/"+toStrUint(regular.ID), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var count int64
	conn.Model(&user.User{}).Where("id = ?", regular.ID).Count(&count)
	assert.Zero(t, count)
}

func TestUserCannotUpdateOrDeleteOtherUsers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := setupPermTestDB(t)
	user1 := user.User{Username: "user1", Role: user.RoleUser}
	user2 := user.User{Username: "user2", Role: user.RoleUser}
	createUsers(t, conn, &user1, &user2)

	r := gin.New()
	r.Use(withUser(user1.ID, "user"))
	r.PUT("/users/:id", api.UpdateUserByIdHandler())
	r.DELETE("/users/:id", api.DeleteUserByIdHandler())

	w := send(r, "PUT", "/users/"+toStrUint(user2.ID), `{"password":"hacked","role":"admin","plan":"pro"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = send(r, "DELETE", "/users/"+toStrUint(user2.ID), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	var got user.User
	require.NoError(t, conn.First(&got, user2.ID).Error)
	assert.Equal(t, user.PlanFree, got.Plan)
	assert.Equal(t, user.RoleUser, got.Role)
}

func TestUserCannotUpgradeOwnPlan(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := setupPermTestDB(t)
	u := user.User{Username: "freeloader", Role: user.RoleUser}
	createUsers(t, conn, &u)

	r := gin.New()
	r.Use(withUser(u.ID, "user"))
	r.PUT("/users/:id", api.UpdateUserByIdHandler())
	r.PUT("/users/me", api.UpdateMeHandler())

	assert.Equal(t, http.StatusForbidden, send(r, "PUT", "/users/"+toStrUint(u.ID), `{"plan":"pro"}`).Code)
	send(r, "PUT", "/users/me", `{"plan":"pro","role":"admin"}`)

	var got user.User
	require.NoError(t, conn.First(&got, u.ID).Error)
	assert.Equal(t, user.PlanFree, got.Plan)
	assert.Equal(t, user.RoleUser, got.Role)
}

func TestEvidenceIsPrivateToItsOwner(t *testing.T) {
	gin.SetMode(gin.TestMode)
	conn := setupPermTestDB(t)
	owner := user.User{Username: "owner", Role: user.RoleUser}
	intruder := user.User{Username: "intruder", Role: user.RoleAdmin}
	createUsers(t, conn, &owner, &intruder)

	cfg := &config.Config{}
	cases := api.NewCaseService(cfg, nil, zap.NewNop())
	routes := func(id uint, role string) *gin.Engine {
		r := gin.New()
		r.Use(withUser(id, role))
		r.GET("/case/evidence", api.ListEvidenceHandler())
		r.POST("/case/evidence", api.AddEvidenceHandler(cases))
		r.PUT("/case/evidence/:id", api.UpdateEvidenceHandler(cases))
		r.DELETE("/case/evidence/:id", api.DeleteEvidenceHandler(cases))
		return r
	}

	w := send(routes(owner.ID, "user"), "POST", "/case/evidence",
		fmt.Sprintf(`{"type":%q,"significance":%q,"description":"late nights"}`,
			investigation.TypeSchedule, investigation.SignificanceMedium))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var id string
	{
		var resp struct {
			Evidence investigation.EvidenceItem `json:"evidence"`
		}
		require.NoError(t, decode(w, &resp))
		id = resp.Evidence.ID
	}

	other := routes(intruder.ID, "admin")
	assert.JSONEq(t, `[]`, send(other, "GET", "/case/evidence", "").Body.String())
	assert.Equal(t, http.StatusNotFound, send(other, "PUT", "/case/evidence/"+id, `{"description":"x"}`).Code)
	assert.Equal(t, http.StatusNotFound, send(other, "DELETE", "/case/evidence/"+id, "").Code)

	w = send(routes(owner.ID, "user"), "GET", "/case/evidence", "")
	assert.True(t, strings.Contains(w.Body.String(), "late nights"))
}

// Helper: uint to string
func toStrUint(x uint) string {
	return fmt.Sprintf("%d", x)
}

func decode(w *httptest.ResponseRecorder, v interface{}) error {
	return json.Unmarshal(w.Body.Bytes(), v)
}
