package journal

import (
	"context"
	"fmt"
	"log"

	"github.com/axion-health/insight-engine/internal/store"
)

// DocumentEmbedder produces storage-space vectors for entry text.
type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

// Store is the journal slice of the backing store.
type Store interface {
	CreateJournalEntry(userID int64, date, content string) (*store.JournalEntry, error)
	GetJournalEntries(userID int64) ([]store.JournalEntry, error)
	GetJournalEntry(entryID string, userID int64) (*store.JournalEntry, error)
	DeleteJournalEntry(entryID string, userID int64) (bool, error)
	UpsertEmbedding(entryID string, userID int64, embedding []float32) error
}

// Service owns the journal entry lifecycle. Embeddings are generated on the
// write path before the call returns, so an entry is searchable the moment
// its creation response arrives.
type Service struct {
	store    Store
	embedder DocumentEmbedder
}

func NewService(journalStore Store, embedder DocumentEmbedder) *Service {
	return &Service{store: journalStore, embedder: embedder}
}

func (s *Service) CreateEntry(ctx context.Context, userID int64, date, content string) (*store.JournalEntry, error) {
	entry, err := s.store.CreateJournalEntry(userID, date, content)
	if err != nil {
		return nil, fmt.Errorf("creating journal entry: %w", err)
	}

	embedding, err := s.embedder.EmbedDocument(ctx, content)
	if err != nil {
		// The entry exists but is not yet searchable. Keep it; a later write
		// of the embedding can repair the gap.
		log.Printf("Embedding generation failed for entry %s: %v", entry.ID, err)
		return entry, nil
	}
	if err := s.store.UpsertEmbedding(entry.ID, userID, embedding); err != nil {
		log.Printf("Storing embedding failed for entry %s: %v", entry.ID, err)
	}
	return entry, nil
}

func (s *Service) ListEntries(userID int64) ([]store.JournalEntry, error) {
	return s.store.GetJournalEntries(userID)
}

func (s *Service) GetEntry(entryID string, userID int64) (*store.JournalEntry, error) {
	return s.store.GetJournalEntry(entryID, userID)
}

// DeleteEntry removes the entry and its embedding together; the embedding is
// derived state and never outlives its entry.
func (s *Service) DeleteEntry(entryID string, userID int64) (bool, error) {
	return s.store.DeleteJournalEntry(entryID, userID)
}
