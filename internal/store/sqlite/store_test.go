package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpu_sniper/internal/model"
)

func openMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openMemory(t)

	run, err := s.StartRun(ctx, model.Run{GPU: model.GPU3080, Locale: "de_de", ProductIDs: []string{"a", "b"}})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunOutcomeRunning, run.Outcome)
	assert.Equal(t, []string{"a", "b"}, run.ProductIDs)
	assert.Nil(t, run.EndedAt)

	require.NoError(t, s.FinishRun(ctx, run.ID, model.RunOutcomeReserved))
	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunOutcomeReserved, got.Outcome)
	assert.NotNil(t, got.EndedAt)

	_, err = s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	_, err = s.StartRun(ctx, model.Run{Locale: "en_us"})
	assert.Error(t, err)
}

func TestEventsNewestFirstAndFiltered(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openMemory(t)

	base := time.Now().Add(-time.Minute)
	for i, kind := range []model.EventKind{model.EventRunStarted, model.EventInStock, model.EventCartSuccess} {
		_, err := s.RecordEvent(ctx, model.Event{RunID: "r1", ProductID: "p", Kind: kind, At: base.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}
	_, err := s.RecordEvent(ctx, model.Event{RunID: "r2", Kind: model.EventRunStarted})
	require.NoError(t, err)

	events, err := s.ListEvents(ctx, "r1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventCartSuccess, events[0].Kind)
	assert.Equal(t, model.EventInStock, events[1].Kind)

	all, err := s.ListEvents(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "r2", all[0].RunID)

	_, err = s.RecordEvent(ctx, model.Event{RunID: "r1"})
	assert.Error(t, err)
}

func TestOpenFileCreatesDirectory(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.RecordEvent(context.Background(), model.Event{RunID: "r", Kind: model.EventRunStarted})
	require.NoError(t, err)
	assert.FileExists(t, path)
}
