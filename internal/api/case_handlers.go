package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go-candor/internal/casestore"
	"go-candor/internal/db"
	"go-candor/internal/investigation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type caseView struct {
	Phase          investigation.Phase          `json:"phase"`
	PhaseName      string                       `json:"phaseName"`
	SuspicionLevel investigation.SuspicionLevel `json:"suspicionLevel"`
	Progress       int                          `json:"progress"`
	ResolvedAt     *time.Time                   `json:"resolvedAt,omitempty"`
	UpdatedAt      time.Time                    `json:"updatedAt"`
}

// GET /case
func GetCaseHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		store := casestore.ForUser(db.DB, userID)
		rec, err := store.Record(c.Request.Context())
		if errors.Is(err, casestore.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"case": nil})
			return
		}
		if err != nil {
			writeCaseError(c, err)
			return
		}
		st := rec.State()
		c.JSON(http.StatusOK, gin.H{"case": caseView{
			Phase:          st.Phase,
			PhaseName:      st.Phase.Name(),
			SuspicionLevel: st.SuspicionLevel,
			Progress:       st.Progress,
			ResolvedAt:     rec.ResolvedAt,
			UpdatedAt:      rec.UpdatedAt,
		}})
	}
}

// POST /case/resolve
func ResolveCaseHandler(cases *CaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var st *investigation.CaseState
		err := cases.WithLock(c.Request.Context(), userID, func(store *casestore.UserStore) error {
			var err error
			st, err = store.Resolve(c.Request.Context(), cases.now())
			return err
		})
		if err != nil {
			writeCaseError(c, err)
			return
		}
		cases.log.Info("case resolved", zap.Uint("user", userID))
		c.JSON(http.StatusOK, gin.H{"case": st})
	}
}

// DELETE /case
func ResetCaseHandler(cases *CaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		err := cases.WithLock(c.Request.Context(), userID, func(store *casestore.UserStore) error {
			return store.Reset(c.Request.Context())
		})
		if err != nil {
			writeCaseError(c, err)
			return
		}
		cases.log.Info("case reset", zap.Uint("user", userID))
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

// GET /case/evidence
func ListEvidenceHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		items, err := casestore.ForUser(db.DB, userID).Evidence(c.Request.Context())
		if err != nil {
			writeCaseError(c, err)
			return
		}
		if items == nil {
			items = []investigation.EvidenceItem{}
		}
		c.JSON(http.StatusOK, items)
	}
}

type EvidenceRequest struct {
	Type         investigation.EvidenceType `json:"type"`
	Significance investigation.Significance `json:"significance"`
	Description  string                     `json:"description"`
	DateObserved *time.Time                 `json:"dateObserved,omitempty"`
	Module       investigation.Module       `json:"module,omitempty"`
}

// AcceptRequest carries a suggestion exactly as POST /scan returned it.
type AcceptRequest struct {
	Suggestion   *investigation.EvidenceDraft `json:"evidenceSuggestion"`
	DateObserved *time.Time                   `json:"dateObserved,omitempty"`
	Module       investigation.Module         `json:"module,omitempty"`
}

func addEvidence(c *gin.Context, cases *CaseService, userID uint, draft investigation.EvidenceDraft, module investigation.Module, observed *time.Time) {
	var when time.Time
	if observed != nil {
		when = *observed
	}
	item := draft.ToItem(module, when, cases.now().UTC())
	ctx := c.Request.Context()
	if err := casestore.ForUser(db.DB, userID).AddEvidence(ctx, item); err != nil {
		writeCaseError(c, err)
		return
	}
	st, err := cases.Refresh(ctx, userID)
	if err != nil {
		writeCaseError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"evidence": item, "case": st})
}

// POST /case/evidence
func AddEvidenceHandler(cases *CaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req EvidenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		draft := investigation.EvidenceDraft{Type: req.Type, Significance: req.Significance, Description: req.Description}
		addEvidence(c, cases, userID, draft, req.Module, req.DateObserved)
	}
}

// POST /case/evidence/accept
func AcceptSuggestionHandler(cases *CaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req AcceptRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Suggestion == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing evidenceSuggestion"})
			return
		}
		addEvidence(c, cases, userID, *req.Suggestion, req.Module, req.DateObserved)
	}
}

// PUT /case/evidence/:id
func UpdateEvidenceHandler(cases *CaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		var req EvidenceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		ctx := c.Request.Context()
		store := casestore.ForUser(db.DB, userID)
		item, err := store.GetEvidence(ctx, c.Param("id"))
		if err != nil {
			writeCaseError(c, err)
			return
		}
		if req.Type != "" {
			item.Type = req.Type
		}
		if req.Significance != "" {
			item.Significance = req.Significance
		}
		if req.Description != "" {
			item.Description = req.Description
		}
		if req.DateObserved != nil {
			item.DateObserved = *req.DateObserved
		}
		if req.Module != investigation.ModuleNone {
			item.Module = req.Module
		}
		if err := store.UpdateEvidence(ctx, *item); err != nil {
			writeCaseError(c, err)
			return
		}
		st, err := cases.Refresh(ctx, userID)
		if err != nil {
			writeCaseError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"evidence": item, "case": st})
	}
}

// DELETE /case/evidence/:id
func DeleteEvidenceHandler(cases *CaseService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := c.Request.Context()
		if err := casestore.ForUser(db.DB, userID).DeleteEvidence(ctx, c.Param("id")); err != nil {
			writeCaseError(c, err)
			return
		}
		st, err := cases.Refresh(ctx, userID)
		if err != nil {
			writeCaseError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": true, "case": st})
	}
}

// GET /case/signals?limit=N
func ListSignalsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := getUserIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit < 1 || limit > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		events, err := casestore.ForUser(db.DB, userID).Signals(c.Request.Context(), limit)
		if err != nil {
			writeCaseError(c, err)
			return
		}
		c.JSON(http.StatusOK, events)
	}
}

// POST /scan scans text without storing anything.
func ScanHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		res := investigation.Scan(req.Text)
		resp := gin.H{"signals": res}
		if res.Crisis != nil {
			resp["resources"] = investigation.CrisisResources(*res.Crisis)
		}
		c.JSON(http.StatusOK, resp)
	}
}
