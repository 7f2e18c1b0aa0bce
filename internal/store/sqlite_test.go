package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/axion-health/insight-engine/internal/health"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestUser(t *testing.T, s *SQLiteStore, externalID string) *User {
	t.Helper()
	user, err := s.CreateUser(externalID, "hashed-password")
	require.NoError(t, err)
	require.NotNil(t, user)
	return user
}

func TestUserLifecycle(t *testing.T) {
	s := newTestStore(t)

	created := createTestUser(t, s, "alice")
	assert.Equal(t, "alice", created.ExternalUserID)
	assert.NotZero(t, created.ID)

	found, err := s.GetUserByExternalID("alice")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)

	missing, err := s.GetUserByExternalID("nobody")
	require.NoError(t, err, "A missing user is nil, not an error")
	assert.Nil(t, missing)
}

func TestMetricSeriesRoundTrip(t *testing.T) {
	s := newTestStore(t)
	user := createTestUser(t, s, "alice")

	base := time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		err := s.InsertMetric(user.ID, HealthMetric{
			Timestamp:  base.AddDate(0, 0, i),
			MetricType: health.MetricHeartRateResting,
			Value:      "60",
			Unit:       "bpm",
			Source:     "test",
		})
		require.NoError(t, err)
	}

	series, err := s.ReadMetricSeries(user.ID, health.MetricHeartRateResting, base.AddDate(0, 0, -1), base.AddDate(0, 0, 10))
	require.NoError(t, err)

	assert.Equal(t, health.MetricHeartRateResting, series.MetricType)
	assert.Equal(t, "bpm", series.Unit)
	require.Len(t, series.Points, 5)
	for _, p := range series.Points {
		assert.Equal(t, 60.0, p.Value)
	}
}

func TestReadMetricSeries_ScopedToUser(t *testing.T) {
	s := newTestStore(t)
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")

	ts := time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertMetric(alice.ID, HealthMetric{
		Timestamp: ts, MetricType: health.MetricSteps, Value: "9000", Unit: "steps", Source: "test",
	}))

	series, err := s.ReadMetricSeries(bob.ID, health.MetricSteps, ts.AddDate(0, 0, -1), ts.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, series.Points, "One user's readings must never appear in another's series")
}

func TestListMetricTypes(t *testing.T) {
	s := newTestStore(t)
	user := createTestUser(t, s, "alice")

	ts := time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)
	for _, metricType := range []string{health.MetricSteps, health.MetricSleepDuration, health.MetricSteps} {
		require.NoError(t, s.InsertMetric(user.ID, HealthMetric{
			Timestamp: ts, MetricType: metricType, Value: "1", Unit: "", Source: "test",
		}))
	}

	types, err := s.ListMetricTypes(user.ID, ts.AddDate(0, 0, -1), ts.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{health.MetricSteps, health.MetricSleepDuration}, types)
}

func TestJournalLifecycle(t *testing.T) {
	s := newTestStore(t)
	user := createTestUser(t, s, "alice")

	entry, err := s.CreateJournalEntry(user.ID, "2025-03-01", "slept badly, too much coffee")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)

	fetched, err := s.GetJournalEntry(entry.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, "slept badly, too much coffee", fetched.Content)

	entries, err := s.GetJournalEntries(user.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	deleted, err := s.DeleteJournalEntry(entry.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	gone, err := s.GetJournalEntry(entry.ID, user.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestJournalEntry_OtherUserCannotReadOrDelete(t *testing.T) {
	s := newTestStore(t)
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")

	entry, err := s.CreateJournalEntry(alice.ID, "2025-03-01", "private thoughts")
	require.NoError(t, err)

	fetched, err := s.GetJournalEntry(entry.ID, bob.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched, "Another user's entry reads as not-found")

	deleted, err := s.DeleteJournalEntry(entry.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, deleted, "Another user's entry cannot be deleted")

	still, err := s.GetJournalEntry(entry.ID, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestEmbeddings_ScopedAndJoined(t *testing.T) {
	s := newTestStore(t)
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")

	aliceEntry, err := s.CreateJournalEntry(alice.ID, "2025-03-01", "alice's entry")
	require.NoError(t, err)
	bobEntry, err := s.CreateJournalEntry(bob.ID, "2025-03-01", "bob's entry")
	require.NoError(t, err)

	require.NoError(t, s.UpsertEmbedding(aliceEntry.ID, alice.ID, []float32{1, 2, 3}))
	require.NoError(t, s.UpsertEmbedding(bobEntry.ID, bob.ID, []float32{4, 5, 6}))

	embeddings, err := s.GetEmbeddings(alice.ID)
	require.NoError(t, err)

	require.Len(t, embeddings, 1, "Only the requesting user's embeddings come back")
	assert.Equal(t, aliceEntry.ID, embeddings[0].EntryID)
	assert.Equal(t, alice.ID, embeddings[0].UserID)
	assert.Equal(t, "alice's entry", embeddings[0].Content)
	assert.Equal(t, []float32{1, 2, 3}, embeddings[0].Embedding)
}

func TestUpsertEmbedding_ReplacesVector(t *testing.T) {
	s := newTestStore(t)
	user := createTestUser(t, s, "alice")

	entry, err := s.CreateJournalEntry(user.ID, "2025-03-01", "entry")
	require.NoError(t, err)

	require.NoError(t, s.UpsertEmbedding(entry.ID, user.ID, []float32{1, 1}))
	require.NoError(t, s.UpsertEmbedding(entry.ID, user.ID, []float32{2, 2}))

	embeddings, err := s.GetEmbeddings(user.ID)
	require.NoError(t, err)
	require.Len(t, embeddings, 1)
	assert.Equal(t, []float32{2, 2}, embeddings[0].Embedding)
}

func TestDeleteJournalEntry_RemovesEmbedding(t *testing.T) {
	s := newTestStore(t)
	user := createTestUser(t, s, "alice")

	entry, err := s.CreateJournalEntry(user.ID, "2025-03-01", "entry")
	require.NoError(t, err)
	require.NoError(t, s.UpsertEmbedding(entry.ID, user.ID, []float32{1, 2}))

	deleted, err := s.DeleteJournalEntry(entry.ID, user.ID)
	require.NoError(t, err)
	require.True(t, deleted)

	embeddings, err := s.GetEmbeddings(user.ID)
	require.NoError(t, err)
	assert.Empty(t, embeddings, "The derived embedding goes with the entry")
}

func TestSeedDemoData(t *testing.T) {
	s := newTestStore(t)
	user := createTestUser(t, s, "demo")

	inserted, err := s.SeedDemoData(user.ID, 3, 42)
	require.NoError(t, err)
	assert.Equal(t, 3*len(seedSpecs), inserted)

	now := time.Now().UTC()
	types, err := s.ListMetricTypes(user.ID, now.AddDate(0, 0, -5), now.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Len(t, types, len(seedSpecs))
}
