package patternstore

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/buildscout/internal/buildorder"
	"github.com/fyrsmithlabs/buildscout/internal/race"
)

// roachTimingAt varies the roach timing so each i yields its own signature.
func roachTimingAt(i int) []buildorder.Step {
	steps := roachSteps()
	steps[len(steps)-1].Time = buildorder.Seconds(150 + i)
	return steps
}

// touchFuture moves the mtime of the store files past anything the store
// has recorded, as an external writer would.
func touchFuture(t *testing.T, s *Store) {
	t.Helper()
	future := time.Now().Add(time.Hour)
	patterns, comments, _ := s.Paths()
	for _, path := range []string{patterns, comments} {
		if _, err := os.Stat(path); err == nil {
			require.NoError(t, os.Chtimes(path, future, future))
		}
	}
}

func TestWatcher_ReloadsOnExternalSave(t *testing.T) {
	dir := t.TempDir()
	reader, err := New(dir)
	require.NoError(t, err)
	reader.Load()

	w, err := NewWatcher(reader, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	writer, err := New(dir)
	require.NoError(t, err)
	_, err = writer.Upsert(UpsertRequest{Signature: signatureOf(roachSteps()), Race: race.Zerg})
	require.NoError(t, err)
	require.NoError(t, writer.Save())

	require.Eventually(t, func() bool {
		return reader.Len() == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	s, err := New(t.TempDir())
	require.NoError(t, err)
	w, err := NewWatcher(s, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestWatcher_OwnSavesKeepEveryMutation(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	s.Load()

	w, err := NewWatcher(s, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	const games = 200
	for i := 0; i < games; i++ {
		res, err := s.Upsert(UpsertRequest{Signature: signatureOf(roachTimingAt(i)), Race: race.Zerg})
		require.NoError(t, err)
		_, err = s.AddComment(Comment{PatternID: res.ID, RawText: fmt.Sprintf("roach timing %d", i)})
		require.NoError(t, err)
		require.NoError(t, s.Save())
	}

	assert.Equal(t, games, s.Len())
	assert.Len(t, s.Comments(), games)

	reopened, err := New(dir)
	require.NoError(t, err)
	reopened.Load()
	assert.Equal(t, games, reopened.Len())
	assert.Len(t, reopened.Comments(), games)
}

func TestRefreshIfStale_OwnSavesAndUnsavedChanges(t *testing.T) {
	t.Run("own save is not stale", func(t *testing.T) {
		s := newTestStore(t)
		_, err := s.Upsert(UpsertRequest{Signature: signatureOf(roachSteps()), Race: race.Zerg})
		require.NoError(t, err)
		require.NoError(t, s.Save())

		assert.False(t, s.Dirty())
		assert.False(t, s.RefreshIfStale())
		assert.Equal(t, 1, s.Len())
	})

	t.Run("unsaved changes are never reloaded over", func(t *testing.T) {
		dir := t.TempDir()
		reader, err := New(dir)
		require.NoError(t, err)
		reader.Load()
		_, err = reader.Upsert(UpsertRequest{Signature: signatureOf(roachSteps()), Race: race.Zerg})
		require.NoError(t, err)
		require.True(t, reader.Dirty())

		writer, err := New(dir)
		require.NoError(t, err)
		_, err = writer.Upsert(UpsertRequest{Signature: signatureOf(cannonSteps()), Race: race.Protoss})
		require.NoError(t, err)
		require.NoError(t, writer.Save())
		touchFuture(t, writer)

		assert.False(t, reader.RefreshIfStale())
		patterns := reader.Patterns()
		require.Len(t, patterns, 1)
		assert.Equal(t, race.Zerg, patterns[0].Race)
		assert.True(t, reader.Dirty())
	})
}
