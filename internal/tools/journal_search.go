package tools

import (
	"context"
	"fmt"
	"log"
	"sort"
	"unicode/utf8"

	"github.com/viterin/vek/vek32"

	"github.com/axion-health/insight-engine/internal/store"
)

const excerptLimit = 240

// Embedder produces query-space vectors for search text.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingReader is the slice of the journal store the searcher needs. The
// implementation must apply the user scope inside its own query.
type EmbeddingReader interface {
	GetEmbeddings(userID int64) ([]store.JournalEmbedding, error)
}

// JournalSearcher ranks a user's journal entries against a query by cosine
// similarity in the shared embedding space. The tenant filter lives in the
// store query; as a second line of defense every candidate's owner is
// checked before ranking and a mismatch aborts with ErrCrossScope.
type JournalSearcher struct {
	embedder   Embedder
	embeddings EmbeddingReader
	floor      float64
}

func NewJournalSearcher(embedder Embedder, embeddings EmbeddingReader, similarityFloor float64) *JournalSearcher {
	return &JournalSearcher{
		embedder:   embedder,
		embeddings: embeddings,
		floor:      similarityFloor,
	}
}

func (s *JournalSearcher) Search(ctx context.Context, userID int64, params JournalSearchParams) (*JournalSearchReport, error) {
	topK := params.NResults
	if topK <= 0 {
		topK = 5
	}

	candidates, err := s.embeddings.GetEmbeddings(userID)
	if err != nil {
		return nil, fmt.Errorf("loading journal embeddings: %w", err)
	}

	report := &JournalSearchReport{Query: params.Query}
	if len(candidates) == 0 {
		return report, nil
	}

	queryVec, err := s.embedder.EmbedQuery(ctx, params.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	queryNorm := vek32.Norm(queryVec)
	if queryNorm == 0 {
		return report, nil
	}

	var matches []JournalMatch
	for _, c := range candidates {
		if c.UserID != userID {
			return nil, fmt.Errorf("%w: embedding for entry %s belongs to user %d, requester is %d",
				ErrCrossScope, c.EntryID, c.UserID, userID)
		}
		if len(c.Embedding) != len(queryVec) {
			log.Printf("Skipping entry %s: embedding dimension %d != query dimension %d", c.EntryID, len(c.Embedding), len(queryVec))
			continue
		}
		norm := vek32.Norm(c.Embedding)
		if norm == 0 {
			continue
		}
		similarity := float64(vek32.Dot(queryVec, c.Embedding) / (queryNorm * norm))
		if similarity < s.floor {
			continue
		}
		matches = append(matches, JournalMatch{
			EntryID:    c.EntryID,
			Date:       c.Date,
			Excerpt:    excerpt(c.Content),
			Similarity: similarity,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Similarity > matches[j].Similarity })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	report.Matches = matches
	return report, nil
}

func excerpt(content string) string {
	if len(content) <= excerptLimit {
		return content
	}
	// Back off to a rune boundary so the cut never splits a multi-byte
	// character.
	cut := excerptLimit
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}
