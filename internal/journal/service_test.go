package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axion-health/insight-engine/internal/store"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) EmbedDocument(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

func newTestService(t *testing.T, embedder *fakeEmbedder) (*Service, *store.SQLiteStore, int64) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	user, err := s.CreateUser("alice", "hash")
	require.NoError(t, err)

	return NewService(s, embedder), s, user.ID
}

func TestCreateEntry_EmbedsOnWrite(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	svc, backing, userID := newTestService(t, embedder)

	entry, err := svc.CreateEntry(context.Background(), userID, "2025-03-01", "rough night, barely slept")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 1, embedder.calls)

	embeddings, err := backing.GetEmbeddings(userID)
	require.NoError(t, err)
	require.Len(t, embeddings, 1, "The entry is searchable as soon as creation returns")
	assert.Equal(t, entry.ID, embeddings[0].EntryID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embeddings[0].Embedding)
}

func TestCreateEntry_KeepsEntryWhenEmbeddingFails(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("embedding service down")}
	svc, backing, userID := newTestService(t, embedder)

	entry, err := svc.CreateEntry(context.Background(), userID, "2025-03-01", "content")
	require.NoError(t, err, "A failed embedding must not lose the entry")
	require.NotNil(t, entry)

	entries, err := svc.ListEntries(userID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	embeddings, err := backing.GetEmbeddings(userID)
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestDeleteEntry_RemovesDerivedState(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{1, 2}}
	svc, backing, userID := newTestService(t, embedder)

	entry, err := svc.CreateEntry(context.Background(), userID, "2025-03-01", "content")
	require.NoError(t, err)

	deleted, err := svc.DeleteEntry(entry.ID, userID)
	require.NoError(t, err)
	assert.True(t, deleted)

	embeddings, err := backing.GetEmbeddings(userID)
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}
