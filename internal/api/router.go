package api

import (
	"net/http"
	"time"

	"go-candor/internal/auth"
	"go-candor/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// requestLogger replaces gin's default logger with one line per request.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case c.Writer.Status() >= http.StatusBadRequest:
			log.Info("request", fields...)
		default:
			log.Debug("request", fields...)
		}
	}
}

func SetupRouter(cfg *config.Config, rdb *redis.Client, completer Completer, log *zap.Logger) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log.Named("http")))
	subpath := cfg.Server.Subpath // e.g. "/candor", always starts with '/'

	cases := NewCaseService(cfg, rdb, log)
	authed := auth.AuthMiddleware(cfg, rdb, false, log)
	admin := auth.AuthMiddleware(cfg, rdb, true, log)

	group := r.Group(subpath)
	{
		group.GET("/health", healthHandler)
		group.GET("/config", configHandler(cfg))

		// Setup: only if no users
		group.POST("/setup", SetupHandler())

		// Auth
		group.POST("/auth/login", LoginHandler(cfg, rdb, log))
		group.POST("/auth/logout", authed, LogoutHandler(rdb))
		group.GET("/auth/me", authed, MeHandler(cases))

		// Admin: users
		group.GET("/users", admin, ListUsersHandler())
		group.POST("/users", admin, CreateUserHandler())

		// User self-service
		group.GET("/users/me", authed, GetMeHandler())
		group.PUT("/users/me", authed, UpdateMeHandler())
		group.DELETE("/users/me", authed, DeleteMeHandler())
		group.GET("/users/online", OnlineUserCountHandler(rdb))

		// Admin: user by id
		group.GET("/users/:id", admin, GetUserByIdHandler())
		group.PUT("/users/:id", admin, UpdateUserByIdHandler())
		group.DELETE("/users/:id", admin, DeleteUserByIdHandler())

		// --- LLMs ---
		group.GET("/llms", ListLLMsHandler(cfg))

		// --- Chat endpoints ---
		group.POST("/chats", authed, CreateChatHandler(cfg))
		group.GET("/chats", authed, ListChatsHandler())
		group.GET("/chats/:id", authed, GetChatHandler())
		group.PUT("/chats/:id", authed, EditChatTitleHandler())
		group.DELETE("/chats/:id", authed, DeleteChatHandler(cases))
		group.GET("/chats/:id/messages", authed, ListMessagesHandler())
		group.POST("/chats/:id/messages", authed, SendMessageHandler(cfg, completer, cases))

		// --- Streaming WebSocket endpoint ---
		group.GET("/ws/chat", WSChatHandler(cfg, rdb, completer, cases))

		// --- Case ---
		group.GET("/case", authed, GetCaseHandler())
		group.POST("/case/resolve", authed, ResolveCaseHandler(cases))
		group.DELETE("/case", authed, ResetCaseHandler(cases))
		group.GET("/case/signals", authed, ListSignalsHandler())

		// --- Evidence ---
		group.GET("/case/evidence", authed, ListEvidenceHandler())
		group.POST("/case/evidence", authed, AddEvidenceHandler(cases))
		group.POST("/case/evidence/accept", authed, AcceptSuggestionHandler(cases))
		group.PUT("/case/evidence/:id", authed, UpdateEvidenceHandler(cases))
		group.DELETE("/case/evidence/:id", authed, DeleteEvidenceHandler(cases))

		group.POST("/scan", authed, ScanHandler())
	}
	return r
}
