package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"go-candor/internal/auth"
	"go-candor/internal/config"
	"go-candor/internal/investigation"
	"go-candor/internal/llm"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// WebSocket message format
type WSChatPrompt struct {
	ChatID int    `json:"chatId"`
	Prompt string `json:"prompt"`
}

// WebSocket streaming token format
type WSChatToken struct {
	Token string `json:"token"`
	Index int    `json:"index"`
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket connection wrapper with mutex for thread-safe writes
type safeWSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *safeWSConn) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *safeWSConn) ReadMessage() (int, []byte, error) {
	return s.conn.ReadMessage()
}

func (s *safeWSConn) Close() error {
	return s.conn.Close()
}

// WSChatHandler streams one reply per connection. Frames, in order:
// {"signals"}, {"token","index"}..., {"case"}, {"done"}.
func WSChatHandler(cfg *config.Config, rdb *redis.Client, completer Completer, cases *CaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader("Authorization")
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing JWT"})
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")
		claims, err := auth.ParseJWT(cfg.Server.JWTSecret, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid JWT"})
			return
		}
		if rdb != nil {
			sess, err := auth.GetSession(c.Request.Context(), rdb, claims.UserID)
			if err != nil || sess != token {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
				return
			}
		}
		userID := claims.UserID

		rawConn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			cases.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		conn := &safeWSConn{conn: rawConn}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			conn.WriteJSON(map[string]string{"error": "invalid initial payload"})
			return
		}
		var req WSChatPrompt
		if err := json.Unmarshal(msg, &req); err != nil {
			conn.WriteJSON(map[string]string{"error": "invalid JSON"})
			return
		}
		if req.Prompt == "" {
			conn.WriteJSON(map[string]string{"error": "missing prompt"})
			return
		}

		chatInst, _, errMsg := findUserChat(userID, strconv.Itoa(req.ChatID))
		if chatInst == nil {
			conn.WriteJSON(map[string]string{"error": errMsg})
			return
		}

		ctx := c.Request.Context()
		if err := cases.ChargeMessage(ctx, userID); err != nil {
			if errors.Is(err, ErrQuotaExceeded) {
				conn.WriteJSON(map[string]interface{}{"error": err.Error(), "status": http.StatusPaymentRequired})
				return
			}
			conn.WriteJSON(map[string]string{"error": "quota check failed"})
			return
		}

		t, err := beginTurn(ctx, cfg, cases, userID, chatInst, req.Prompt)
		if err != nil {
			if t == nil {
				conn.WriteJSON(map[string]string{"error": "failed to save message"})
				return
			}
			cases.log.Warn("turn not prepared", zap.Uint("user", userID), zap.Error(err))
			conn.WriteJSON(gin.H{"error": "failed to prepare reply", "case": settleCase(ctx, cases, userID)})
			return
		}
		if err := conn.WriteJSON(gin.H{"signals": t.scan}); err != nil {
			return
		}

		var reply llm.Reply
		if t.scan.Crisis != nil {
			reply.Content = investigation.CrisisResources(*t.scan.Crisis)
			if err := conn.WriteJSON(WSChatToken{Token: reply.Content, Index: 0}); err != nil {
				return
			}
		} else {
			idx := 0
			reply, err = completer.Stream(ctx, *t.model, t.history, func(tok string) error {
				werr := conn.WriteJSON(WSChatToken{Token: tok, Index: idx})
				idx++
				return werr
			})
			if err != nil {
				cases.log.Warn("llm stream failed", zap.String("model", t.model.Name), zap.Error(err))
				if reply.Content == "" {
					conn.WriteJSON(gin.H{"error": "llm failure", "case": settleCase(ctx, cases, userID)})
					return
				}
				conn.WriteJSON(map[string]string{"error": "llm failure"})
			}
		}

		botMsg, state, err := finishTurn(ctx, cases, userID, t, reply)
		if err != nil {
			conn.WriteJSON(map[string]string{"error": "failed to save bot message"})
			return
		}
		conn.WriteJSON(gin.H{"case": state})
		conn.WriteJSON(gin.H{
			"done":              true,
			"messageId":         botMsg.ID,
			"tokens":            reply.Tokens,
			"tokens_per_second": reply.TokensPerSec,
		})
	}
}
