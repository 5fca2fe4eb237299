package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go-candor/internal/casestore"
	"go-candor/internal/config"
	"go-candor/internal/db"
	"go-candor/internal/investigation"
	"go-candor/internal/llm"
	redisdb "go-candor/internal/redis"
	"go-candor/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrQuotaExceeded is returned when a free-plan user has used up today's
// messages.
var ErrQuotaExceeded = errors.New("daily message quota exceeded")

// Completer is the part of the LLM client the handlers depend on.
type Completer interface {
	Complete(ctx context.Context, model config.LLMConfig, msgs []llm.Message) (llm.Reply, error)
	Stream(ctx context.Context, model config.LLMConfig, msgs []llm.Message, onToken func(string) error) (llm.Reply, error)
}

// CaseService runs case updates for the handlers. With a Redis client it
// serializes updates per user; without one it relies on the version check
// in casestore alone.
type CaseService struct {
	cfg     *config.Config
	rdb     *redis.Client
	updater *investigation.Updater
	log     *zap.Logger
	now     func() time.Time
}

func NewCaseService(cfg *config.Config, rdb *redis.Client, log *zap.Logger) *CaseService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CaseService{
		cfg:     cfg,
		rdb:     rdb,
		updater: investigation.NewUpdater(cfg.Case.CreateAfterMessages, log),
		log:     log.Named("api"),
		now:     time.Now,
	}
}

// Refresh recomputes the user's case. A stale write is retried once with a
// fresh snapshot.
func (s *CaseService) Refresh(ctx context.Context, userID uint) (*investigation.CaseState, error) {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		st, err := s.updater.Update(ctx, casestore.ForUser(db.DB, userID))
		if errors.Is(err, casestore.ErrStaleCase) {
			s.log.Debug("stale case write, retrying", zap.Uint("user", userID))
			lastErr = err
			continue
		}
		return st, err
	}
	return nil, lastErr
}

// WithLock runs fn while holding the user's case lock.
func (s *CaseService) WithLock(ctx context.Context, userID uint, fn func(*casestore.UserStore) error) error {
	release, err := s.lock(ctx, userID)
	if err != nil {
		return err
	}
	defer release()
	return fn(casestore.ForUser(db.DB, userID))
}

func (s *CaseService) lock(ctx context.Context, userID uint) (func(), error) {
	if s.rdb == nil {
		return func() {}, nil
	}
	ttl := s.cfg.LockTTL()
	l, err := redisdb.AcquireCaseLock(ctx, s.rdb, userID, ttl, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire case lock: %w", err)
	}
	return func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("case lock release failed", zap.Uint("user", userID), zap.Error(err))
		}
	}, nil
}

// ChargeMessage counts one message against the user's daily allowance.
// Pro users and deployments without Redis or a configured limit are not
// metered.
func (s *CaseService) ChargeMessage(ctx context.Context, userID uint) error {
	limit := s.cfg.Plans.FreeDailyMessages
	if s.rdb == nil || limit == 0 {
		return nil
	}
	var u user.User
	if err := db.DB.WithContext(ctx).Select("id", "plan").First(&u, userID).Error; err != nil {
		return fmt.Errorf("load user plan: %w", err)
	}
	if u.Plan == user.PlanPro {
		return nil
	}
	n, err := redisdb.IncrDailyMessages(ctx, s.rdb, userID, s.now())
	if err != nil {
		return fmt.Errorf("count daily messages: %w", err)
	}
	if n > int64(limit) {
		return ErrQuotaExceeded
	}
	return nil
}

// Usage reports how many messages the user sent today and the daily limit.
// A zero limit means the deployment does not meter messages.
func (s *CaseService) Usage(ctx context.Context, userID uint) (used int64, limit int, err error) {
	limit = s.cfg.Plans.FreeDailyMessages
	if s.rdb == nil || limit == 0 {
		return 0, 0, nil
	}
	used, err = redisdb.DailyMessages(ctx, s.rdb, userID, s.now())
	if err != nil {
		return 0, 0, fmt.Errorf("read daily messages: %w", err)
	}
	return used, limit, nil
}

// writeCaseError maps case and evidence errors onto HTTP statuses.
func writeCaseError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, investigation.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, casestore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, casestore.ErrStaleCase), errors.Is(err, redisdb.ErrLocked):
		c.JSON(http.StatusConflict, gin.H{"error": "case is busy, try again"})
	case errors.Is(err, ErrQuotaExceeded):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "case update failed"})
	}
}
