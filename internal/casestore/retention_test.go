package casestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
)

func TestPruneSignals(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, conn.Create(&[]SignalEvent{
		{UserID: 1, Kind: SignalCrisis, Payload: datatypes.JSON(`{}`), CreatedAt: now.Add(-48 * time.Hour)},
		{UserID: 1, Kind: SignalSuggestion, Payload: datatypes.JSON(`{}`), CreatedAt: now},
	}).Error)

	n, err := PruneSignals(ctx, conn, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	left, err := ForUser(conn, 1).Signals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, SignalSuggestion, left[0].Kind)
}

func TestRetentionWorker_StopsWithContext(t *testing.T) {
	conn := openTestDB(t)
	w := NewRetentionWorker(conn, time.Hour, time.Hour, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRetentionWorker_Disabled(t *testing.T) {
	w := NewRetentionWorker(nil, 0, time.Hour, nil)
	assert.NoError(t, w.Run(context.Background()))
}
