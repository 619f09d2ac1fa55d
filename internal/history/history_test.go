package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valluvarai/valluvarai/internal/kural"
	"github.com/valluvarai/valluvarai/internal/pipeline"
	"github.com/valluvarai/valluvarai/internal/pipeline/artifact"
)

func testOutcome(verseID int, state pipeline.State) pipeline.Outcome {
	return pipeline.Outcome{
		State: state,
		Verse: kural.Verse{ID: verseID},
		Statuses: []artifact.StageStatus{
			{Stage: artifact.StageStory, State: artifact.StageSucceeded},
		},
		DurationMS: 1234,
	}
}

func TestAppendAndRecent(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer func() { require.NoError(t, store.Close()) }()

	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "forgiveness", testOutcome(152, pipeline.StateCompleted)))
	require.NoError(t, store.Append(ctx, "gratitude", testOutcome(110, pipeline.StateAborted)))

	records, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Newest first.
	require.Equal(t, "gratitude", records[0].Keyword)
	require.Equal(t, 110, records[0].VerseID)
	require.Equal(t, string(pipeline.StateAborted), records[0].State)
	require.Equal(t, "forgiveness", records[1].Keyword)
	require.Len(t, records[1].Statuses, 1)
	require.Equal(t, artifact.StageStory, records[1].Statuses[0].Stage)
	require.EqualValues(t, 1234, records[1].DurationMS)
}

func TestRecentHonorsLimit(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, "forgiveness", testOutcome(152, pipeline.StateCompleted)))
	}

	records, err := store.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, records, 3)
}

func TestRecentOnEmptyStore(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	records, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, records)
}
