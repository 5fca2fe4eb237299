package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go-candor/internal/casestore"
	"go-candor/internal/chat"
	"go-candor/internal/config"
	"go-candor/internal/db"
	"go-candor/internal/investigation"
	"go-candor/internal/llm"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Helper to extract user ID from context
func getUserIDFromContext(c *gin.Context) (uint, bool) {
	idVal, exists := c.Get("userId")
	if !exists {
		return 0, false
	}
	switch v := idVal.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

func findUserChat(userID uint, idStr string) (*chat.Chat, int, string) {
	idUint, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return nil, http.StatusBadRequest, "invalid chat id"
	}
	var chatInst chat.Chat
	if err := db.DB.Where("id = ? AND user_id = ?", idUint, userID).First(&chatInst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, http.StatusNotFound, "chat not found"
		}
		return nil, http.StatusInternalServerError, "failed to fetch chat"
	}
	return &chatInst, 0, ""
}

// resolveModel returns the chat's model, falling back to the first
// configured one when it was removed from config.
func resolveModel(cfg *config.Config, chatInst *chat.Chat) (*config.LLMConfig, bool) {
	for i := range cfg.LLMs {
		if cfg.LLMs[i].Name == chatInst.ModelName {
			return &cfg.LLMs[i], false
		}
	}
	if len(cfg.LLMs) == 0 {
		return nil, false
	}
	chatInst.ModelName = cfg.LLMs[0].Name
	chatInst.LlmSessionID = ""
	return &cfg.LLMs[0], true
}

// List available LLM models
func ListLLMsHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		models := make([]map[string]string, len(cfg.LLMs))
		for i, model := range cfg.LLMs {
			models[i] = map[string]string{
				"name": model.Name,
				"url":  model.URL,
			}
		}
		c.JSON(http.StatusOK, models)
	}
}

// Create a new chat, allow model selection
func CreateChatHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req struct {
			Title     string `json:"title"`
			ModelName string `json:"model_name"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		modelName := req.ModelName
		if modelName == "" && len(cfg.LLMs) > 0 {
			modelName = cfg.LLMs[0].Name
		}
		modelExists := false
		for _, m := range cfg.LLMs {
			if m.Name == modelName {
				modelExists = true
				break
			}
		}
		if !modelExists {
			c.JSON(http.StatusBadRequest, gin.H{"error": "model not available"})
			return
		}

		chatInst := chat.Chat{
			Title:     req.Title,
			UserID:    userID,
			ModelName: modelName,
			CreatedAt: time.Now(),
		}
		if err := db.DB.Create(&chatInst).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"id":        chatInst.ID,
			"title":     chatInst.DisplayTitle(),
			"model":     chatInst.ModelName,
			"createdAt": chatInst.CreatedAt,
		})
	}
}

// List all chats for the current user (only chats with at least one user message)
func ListChatsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var chats []chat.Chat
		if err := db.DB.
			Where("user_id = ?", userID).
			Where("id IN (SELECT chat_id FROM messages WHERE sender = ? AND deleted_at IS NULL)", chat.SenderUser).
			Order("created_at desc").
			Find(&chats).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch chats"})
			return
		}
		for i := range chats {
			chats[i].Title = chats[i].DisplayTitle()
		}
		c.JSON(http.StatusOK, chats)
	}
}

// Edit chat title
func EditChatTitleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req struct {
			Title string `json:"title"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing title"})
			return
		}

		chatInst, status, msg := findUserChat(userID, c.Param("id"))
		if chatInst == nil {
			c.JSON(status, gin.H{"error": msg})
			return
		}
		chatInst.Title = req.Title
		if err := db.DB.Save(chatInst).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update title"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": chatInst.ID, "title": chatInst.Title})
	}
}

// Delete chat. Its messages stop counting towards the case, so the case is
// refreshed afterwards.
func DeleteChatHandler(cases *CaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		chatInst, status, msg := findUserChat(userID, c.Param("id"))
		if chatInst == nil {
			c.JSON(status, gin.H{"error": msg})
			return
		}
		if err := db.DB.Where("chat_id = ?", chatInst.ID).Delete(&chat.Message{}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete messages"})
			return
		}
		if err := db.DB.Delete(chatInst).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat"})
			return
		}
		if _, err := cases.Refresh(c.Request.Context(), userID); err != nil {
			cases.log.Warn("case refresh after chat delete failed", zap.Uint("user", userID), zap.Error(err))
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

// Get a single chat by ID for the current user
func GetChatHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		chatInst, status, msg := findUserChat(userID, c.Param("id"))
		if chatInst == nil {
			c.JSON(status, gin.H{"error": msg})
			return
		}
		c.JSON(http.StatusOK, chatInst)
	}
}

// List all messages in a chat
func ListMessagesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		chatInst, status, msg := findUserChat(userID, c.Param("id"))
		if chatInst == nil {
			c.JSON(status, gin.H{"error": msg})
			return
		}

		var messages []chat.Message
		if err := db.DB.Where("chat_id = ?", chatInst.ID).Order("created_at asc, id asc").Find(&messages).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch messages"})
			return
		}
		c.JSON(http.StatusOK, messages)
	}
}

// turn holds what one user message produced.
type turn struct {
	chat    *chat.Chat
	userMsg chat.Message
	scan    investigation.ScanResult
	model   *config.LLMConfig
	history []llm.Message
}

// beginTurn stores the user's message, scans it and prepares the LLM
// history with the case summary as system prompt. Once the message is
// stored the turn is returned even on error, so callers can still settle
// the case.
func beginTurn(ctx context.Context, cfg *config.Config, cases *CaseService, userID uint, chatInst *chat.Chat, content string) (*turn, error) {
	t := &turn{chat: chatInst}
	t.userMsg = chat.Message{
		ChatID:    chatInst.ID,
		Sender:    chat.SenderUser,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if err := db.DB.WithContext(ctx).Create(&t.userMsg).Error; err != nil {
		return nil, err
	}

	t.scan = investigation.Scan(content)
	store := casestore.ForUser(db.DB, userID)
	if !t.scan.Empty() {
		if err := store.RecordSignal(ctx, chatInst.ID, t.scan); err != nil {
			cases.log.Warn("signal not recorded", zap.Uint("user", userID), zap.Error(err))
		}
		if t.scan.Crisis != nil {
			cases.log.Warn("crisis language detected",
				zap.Uint("user", userID),
				zap.Uint("chat", chatInst.ID),
				zap.String("kind", string(*t.scan.Crisis)))
		}
	}
	if t.scan.Crisis != nil {
		return t, nil
	}

	var migrated bool
	t.model, migrated = resolveModel(cfg, chatInst)
	if t.model == nil {
		return t, errNoModels
	}
	if migrated {
		if err := db.DB.WithContext(ctx).Model(chatInst).Updates(map[string]interface{}{
			"model_name":     chatInst.ModelName,
			"llm_session_id": "",
		}).Error; err != nil {
			cases.log.Warn("chat model not migrated", zap.Uint("chat", chatInst.ID), zap.Error(err))
		}
	}

	state, err := store.Case(ctx)
	if err != nil {
		return t, err
	}
	evidence, err := store.Evidence(ctx)
	if err != nil {
		return t, err
	}
	var allMessages []chat.Message
	if err := db.DB.WithContext(ctx).Where("chat_id = ?", chatInst.ID).Order("created_at asc, id asc").Find(&allMessages).Error; err != nil {
		return t, err
	}
	contextSize := t.model.ContextSize
	if contextSize == 0 {
		contextSize = 2048 // Fallback default
	}
	system := llm.BuildSystemPrompt(state, evidence)
	historySize := contextSize - len(system)/4
	if historySize < 512 {
		historySize = 512 // Minimum context for history
	}
	window := chat.BuildSlidingWindow(allMessages, historySize)
	t.history = llm.BuildHistory(system, window)
	return t, nil
}

var errNoModels = errors.New("no models available")

// finishTurn stores the bot reply and refreshes the case. A failed refresh
// is logged and reported as a nil case; the reply is already stored.
func finishTurn(ctx context.Context, cases *CaseService, userID uint, t *turn, reply llm.Reply) (chat.Message, *investigation.CaseState, error) {
	botMsg := chat.Message{
		ChatID:    t.chat.ID,
		Sender:    chat.SenderBot,
		Content:   reply.Content,
		CreatedAt: time.Now(),
	}
	if err := db.DB.WithContext(ctx).Create(&botMsg).Error; err != nil {
		return botMsg, nil, err
	}
	if reply.SessionID != "" && reply.SessionID != t.chat.LlmSessionID {
		if err := db.DB.WithContext(ctx).Model(t.chat).Update("llm_session_id", reply.SessionID).Error; err != nil {
			cases.log.Warn("llm session id not stored", zap.Uint("chat", t.chat.ID), zap.Error(err))
		}
	}
	return botMsg, settleCase(ctx, cases, userID), nil
}

// settleCase recomputes the case after a stored user message. A failed
// refresh is logged and reported as a nil case.
func settleCase(ctx context.Context, cases *CaseService, userID uint) *investigation.CaseState {
	state, err := cases.Refresh(ctx, userID)
	if err != nil {
		cases.log.Error("case refresh failed", zap.Uint("user", userID), zap.Error(err))
		return nil
	}
	return state
}

// Send a message in a chat. Crisis messages are answered with support
// resources instead of a model reply.
func SendMessageHandler(cfg *config.Config, completer Completer, cases *CaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		chatInst, status, msg := findUserChat(userID, c.Param("id"))
		if chatInst == nil {
			c.JSON(status, gin.H{"error": msg})
			return
		}

		var req struct {
			Content string `json:"content"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing content"})
			return
		}

		ctx := c.Request.Context()
		if err := cases.ChargeMessage(ctx, userID); err != nil {
			if errors.Is(err, ErrQuotaExceeded) {
				c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
				return
			}
			cases.log.Error("quota check failed", zap.Uint("user", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "quota check failed"})
			return
		}

		t, err := beginTurn(ctx, cfg, cases, userID, chatInst, req.Content)
		if err != nil {
			if t == nil {
				cases.log.Error("message not stored", zap.Uint("user", userID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save message"})
				return
			}
			resp := gin.H{"error": "failed to prepare reply", "signals": t.scan, "case": settleCase(ctx, cases, userID)}
			if errors.Is(err, errNoModels) {
				resp["error"] = err.Error()
			} else {
				cases.log.Error("turn not prepared", zap.Uint("user", userID), zap.Error(err))
			}
			c.JSON(http.StatusInternalServerError, resp)
			return
		}

		var reply llm.Reply
		if t.scan.Crisis != nil {
			reply.Content = investigation.CrisisResources(*t.scan.Crisis)
		} else {
			reply, err = completer.Complete(ctx, *t.model, t.history)
			if err != nil {
				cases.log.Warn("llm failure", zap.String("model", t.model.Name), zap.Error(err))
				c.JSON(http.StatusBadGateway, gin.H{
					"error":   "llm failure",
					"detail":  err.Error(),
					"signals": t.scan,
					"case":    settleCase(ctx, cases, userID),
				})
				return
			}
		}

		botMsg, state, err := finishTurn(ctx, cases, userID, t, reply)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save bot message"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"reply": gin.H{
				"id":                botMsg.ID,
				"sender":            chat.SenderBot,
				"content":           botMsg.Content,
				"createdAt":         botMsg.CreatedAt,
				"tokens":            reply.Tokens,
				"tokens_per_second": reply.TokensPerSec,
			},
			"signals": t.scan,
			"case":    state,
		})
	}
}
