package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLog_StartFinishLast(t *testing.T) {
	// Given: an empty run log
	ctx := context.Background()
	db, err := OpenSQLite("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	log := NewRunLog(db)

	last, err := log.Last(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	// When: two runs are recorded and the second finishes
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, log.Start(ctx, &IndexRun{ID: "r1", StartedAt: started, Backend: "sqlite"}))
	second := &IndexRun{ID: "r2", StartedAt: started.Add(time.Minute), Backend: "sqlite", Model: "static"}
	require.NoError(t, log.Start(ctx, second))

	second.FinishedAt = second.StartedAt.Add(3 * time.Second)
	second.EntityCount = 12
	second.Embedded = 10
	require.NoError(t, log.Finish(ctx, second))

	// Then: Last returns the second run with its outcome
	last, err = log.Last(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "r2", last.ID)
	assert.Equal(t, 12, last.EntityCount)
	assert.Equal(t, 10, last.Embedded)
	assert.Equal(t, "static", last.Model)
	assert.True(t, last.StartedAt.Equal(second.StartedAt))
	assert.True(t, last.FinishedAt.Equal(second.FinishedAt))
}

func TestRunLog_UnfinishedRunHasZeroFinish(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite("")
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	log := NewRunLog(db)

	require.NoError(t, log.Start(ctx, &IndexRun{ID: "r1", StartedAt: time.Now(), Backend: "bleve"}))

	last, err := log.Last(ctx)
	require.NoError(t, err)
	assert.True(t, last.FinishedAt.IsZero())
}
