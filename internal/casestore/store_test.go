package casestore

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go-candor/internal/chat"
	"go-candor/internal/investigation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&chat.Chat{}, &chat.Message{}))
	require.NoError(t, conn.AutoMigrate(Models()...))
	sqlDB, _ := conn.DB()
	t.Cleanup(func() { sqlDB.Close() })
	return conn
}

func seedMessages(t *testing.T, conn *gorm.DB, userID uint, userMsgs, botMsgs int) chat.Chat {
	t.Helper()
	c := chat.Chat{Title: "t", UserID: userID, ModelName: "m"}
	require.NoError(t, conn.Create(&c).Error)
	for i := 0; i < userMsgs; i++ {
		require.NoError(t, conn.Create(&chat.Message{ChatID: c.ID, Sender: chat.SenderUser, Content: "hi"}).Error)
	}
	for i := 0; i < botMsgs; i++ {
		require.NoError(t, conn.Create(&chat.Message{ChatID: c.ID, Sender: chat.SenderBot, Content: "hello"}).Error)
	}
	return c
}

func item(typ investigation.EvidenceType, sig investigation.Significance) investigation.EvidenceItem {
	d := investigation.EvidenceDraft{Type: typ, Significance: sig, Description: string(typ)}
	now := time.Now().UTC()
	return d.ToItem(investigation.ModuleNone, now, now)
}

func TestMessageCount_OnlyUserMessagesInLiveChats(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	seedMessages(t, conn, 1, 3, 2)
	deleted := seedMessages(t, conn, 1, 4, 0)
	seedMessages(t, conn, 2, 5, 0)
	require.NoError(t, conn.Delete(&deleted).Error)

	n, err := ForUser(conn, 1).MessageCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCaseLifecycle(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	s := ForUser(conn, 7)

	st, err := s.Case(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)

	created, err := s.CreateCase(ctx)
	require.NoError(t, err)
	assert.Equal(t, investigation.NewCaseState(), *created)

	next := investigation.CaseState{Phase: 2, SuspicionLevel: investigation.SuspicionModerate, Progress: 40}
	require.NoError(t, s.SaveCase(ctx, next))
	require.NoError(t, s.SaveCase(ctx, next))

	got, err := ForUser(conn, 7).Case(ctx)
	require.NoError(t, err)
	assert.Equal(t, next, *got)

	rec, err := s.Record(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rec.Version)
}

func TestSaveCase_StaleVersion(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	_, err := ForUser(conn, 3).CreateCase(ctx)
	require.NoError(t, err)

	a, b := ForUser(conn, 3), ForUser(conn, 3)
	_, err = a.Case(ctx)
	require.NoError(t, err)
	_, err = b.Case(ctx)
	require.NoError(t, err)

	require.NoError(t, a.SaveCase(ctx, investigation.CaseState{Phase: 2, SuspicionLevel: "low", Progress: 20}))
	err = b.SaveCase(ctx, investigation.CaseState{Phase: 1, SuspicionLevel: "low", Progress: 10})
	assert.ErrorIs(t, err, ErrStaleCase)

	got, _ := ForUser(conn, 3).Case(ctx)
	assert.Equal(t, 20, got.Progress)
}

func TestCreateCase_Duplicate(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	_, err := ForUser(conn, 4).CreateCase(ctx)
	require.NoError(t, err)
	_, err = ForUser(conn, 4).CreateCase(ctx)
	assert.ErrorIs(t, err, ErrStaleCase)
}

func TestUpdaterAgainstStore(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	seedMessages(t, conn, 9, 6, 6)
	s := ForUser(conn, 9)
	for _, e := range []investigation.EvidenceItem{
		item(investigation.TypeFinancial, investigation.SignificanceCritical),
		item(investigation.TypeDigital, investigation.SignificanceHigh),
		item(investigation.TypeSchedule, investigation.SignificanceLow),
		item(investigation.TypeBehavioral, investigation.SignificanceLow),
		item(investigation.TypeCommunication, investigation.SignificanceMedium),
	} {
		require.NoError(t, s.AddEvidence(ctx, e))
	}

	u := investigation.NewUpdater(investigation.DefaultCreateAfter, nil)
	first, err := u.Update(ctx, ForUser(conn, 9))
	require.NoError(t, err)
	second, err := u.Update(ctx, ForUser(conn, 9))
	require.NoError(t, err)

	assert.Equal(t, *first, *second)
	assert.Equal(t, investigation.PhaseAnalysis, first.Phase)
	assert.Equal(t, investigation.SuspicionHigh, first.SuspicionLevel)
	assert.Equal(t, 5+25+12, first.Progress)
}

func TestEvidenceCRUD(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	s := ForUser(conn, 5)

	e := item(investigation.TypeDigital, investigation.SignificanceMedium)
	require.NoError(t, s.AddEvidence(ctx, e))

	got, err := s.GetEvidence(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, investigation.ModuleA, got.Module)

	got.Significance = investigation.SignificanceHigh
	got.Description = "edited"
	require.NoError(t, s.UpdateEvidence(ctx, *got))

	items, err := s.Evidence(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "edited", items[0].Description)
	assert.Equal(t, investigation.SignificanceHigh, items[0].Significance)

	_, err = ForUser(conn, 6).GetEvidence(ctx, e.ID)
	assert.ErrorIs(t, err, ErrNotFound, "other users cannot see the item")
	assert.ErrorIs(t, ForUser(conn, 6).DeleteEvidence(ctx, e.ID), ErrNotFound)

	require.NoError(t, s.DeleteEvidence(ctx, e.ID))
	items, err = s.Evidence(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestAddEvidence_RejectsInvalid(t *testing.T) {
	conn := openTestDB(t)
	bad := item(investigation.TypeDigital, investigation.SignificanceLow)
	bad.Significance = "extreme"
	err := ForUser(conn, 1).AddEvidence(context.Background(), bad)
	assert.ErrorIs(t, err, investigation.ErrInvalidInput)
}

func TestResolveAndReset(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	s := ForUser(conn, 8)

	_, err := s.Resolve(ctx, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CreateCase(ctx)
	require.NoError(t, err)
	require.NoError(t, s.AddEvidence(ctx, item(investigation.TypeSchedule, investigation.SignificanceLow)))

	st, err := s.Resolve(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, investigation.PhaseResolution, st.Phase)
	rec, err := s.Record(ctx)
	require.NoError(t, err)
	assert.NotNil(t, rec.ResolvedAt)

	require.NoError(t, s.Reset(ctx))
	cs, err := ForUser(conn, 8).Case(ctx)
	require.NoError(t, err)
	assert.Nil(t, cs)
	items, err := s.Evidence(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRecordSignal(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	s := ForUser(conn, 11)

	require.NoError(t, s.RecordSignal(ctx, 1, investigation.ScanResult{}))
	res := investigation.Scan("I want to kill myself because he changed his phone password and hides it")
	require.NotNil(t, res.Crisis)
	require.NotNil(t, res.Suggestion)
	require.NoError(t, s.RecordSignal(ctx, 1, res))

	events, err := s.Signals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	kinds := map[string]json.RawMessage{}
	for _, e := range events {
		kinds[e.Kind] = json.RawMessage(e.Payload)
	}
	assert.JSONEq(t, `{"kind":"selfHarm"}`, string(kinds[SignalCrisis]))
	var draft investigation.EvidenceDraft
	require.NoError(t, json.Unmarshal(kinds[SignalSuggestion], &draft))
	assert.Equal(t, investigation.TypeDigital, draft.Type)
}
