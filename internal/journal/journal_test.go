package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ryosukesatoh/raindrop-digest/internal/digest"
	"github.com/ryosukesatoh/raindrop-digest/internal/raindrop"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func sampleRun(started time.Time) Run {
	return Run{
		StartedAt: started,
		Subject:   "[Link digest] 2025-01-15 (last 1 day)",
		Body:      "body",
		Outcomes: []digest.Outcome{
			digest.Success(raindrop.Item{ID: 1, Link: "https://a.example", Title: "A"}, "Alice", "summary"),
			digest.Failure(raindrop.Item{ID: 2, Link: "https://b.example", Title: "B"}, errors.New("boom")),
		},
	}
}

func TestOpenCreatesTables(t *testing.T) {
	j := openTest(t)

	for _, table := range []string{"runs", "outcomes"} {
		var name string
		err := j.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s", table)
		assert.Equal(t, table, name)
	}
}

func TestRecordAndUnsent(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

	second, err := j.Record(ctx, sampleRun(base.Add(24*time.Hour)))
	require.NoError(t, err)
	first, err := j.Record(ctx, sampleRun(base))
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	runs, err := j.Unsent(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID, "oldest run first")
	assert.Equal(t, second, runs[1].ID)
	assert.True(t, runs[0].StartedAt.Equal(base))
	assert.Equal(t, "body", runs[0].Body)

	require.NoError(t, j.MarkSent(ctx, first, base.Add(time.Minute)))

	runs, err = j.Unsent(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second, runs[0].ID)
}

func TestRecordKeepsGivenID(t *testing.T) {
	j := openTest(t)
	run := sampleRun(time.Now())
	run.ID = "fixed-id"

	id, err := j.Record(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)

	_, err = j.Record(context.Background(), run)
	assert.Error(t, err, "duplicate run id")
}

func TestMarkSentUnknownRun(t *testing.T) {
	j := openTest(t)

	err := j.MarkSent(context.Background(), "missing", time.Now())
	assert.ErrorContains(t, err, "not found")
}

func TestHistory(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)

	_, err := j.Record(ctx, sampleRun(base))
	require.NoError(t, err)
	_, err = j.Record(ctx, sampleRun(base.Add(time.Hour)))
	require.NoError(t, err)

	recs, err := j.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, digest.StatusFailed, recs[0].Status)
	assert.Equal(t, digest.ReasonSummary, recs[0].Reason)
	assert.Equal(t, "boom", recs[0].Error)
	assert.Equal(t, "B", recs[0].Title)

	recs, err = j.History(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFileJournalPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(path)
	require.NoError(t, err)
	id, err := j.Record(ctx, sampleRun(time.Now()))
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	runs, err := j.Unsent(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
}
