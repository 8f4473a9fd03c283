package progress

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "progress.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMarkProcessed(t *testing.T) {
	s := openStore(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	ok, err := s.IsProcessed("a/Unit1.pas")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetTotal(3))
	require.NoError(t, s.MarkProcessed(Record{Path: "a/Unit1.pas", Chunks: 4}))
	require.NoError(t, s.MarkProcessed(Record{Path: "a/Form1.dfm", Chunks: 1}))

	ok, err = s.IsProcessed("a/Unit1.pas")
	require.NoError(t, err)
	assert.True(t, ok)

	rec, err := s.Get("a/Unit1.pas")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 4, rec.Chunks)
	assert.True(t, fixed.Equal(rec.ProcessedAt))

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"a/Form1.dfm", "a/Unit1.pas"}, snap.ProcessedFiles)
	assert.Equal(t, "a/Form1.dfm", snap.LastProcessed)
	assert.Equal(t, 3, snap.TotalFiles)
	assert.Equal(t, 2, snap.CompletedFiles)
	assert.True(t, fixed.Equal(snap.LastUpdate))
	assert.InDelta(t, 66.67, snap.Percent(), 0.01)
}

func TestReset(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.SetTotal(1))
	require.NoError(t, s.MarkProcessed(Record{Path: "x.pas"}))

	require.NoError(t, s.Reset())

	snap, err := s.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.ProcessedFiles)
	assert.Zero(t, snap.TotalFiles)
	assert.Zero(t, snap.Percent())
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.MarkProcessed(Record{Path: "x.pas", Skipped: true}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	rec, err := s.Get("x.pas")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Skipped)
}

func TestClosedStore(t *testing.T) {
	s := openStore(t)
	require.NoError(t, s.Close())

	_, err := s.IsProcessed("x.pas")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.MarkProcessed(Record{Path: "x"}), ErrClosed)
	assert.NoError(t, s.Close())
}
