package store

import "time"

type User struct {
	ID             int64     `json:"id"`
	ExternalUserID string    `json:"external_user_id"`
	PasswordHash   string    `json:"-"` // Do not expose this in JSON responses
	CreatedAt      time.Time `json:"created_at"`
}

// HealthMetric is one raw measurement row. Value is TEXT in the schema so
// composite device readings survive ingestion unchanged; normalization to
// numeric happens in the health package.
type HealthMetric struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Timestamp  time.Time `json:"timestamp"`
	MetricType string    `json:"metric_type"`
	Value      string    `json:"value"`
	Unit       string    `json:"unit"`
	Source     string    `json:"source"`
}

type JournalEntry struct {
	ID        string    `json:"id"` // UUID
	UserID    int64     `json:"user_id"`
	Date      string    `json:"date"` // ISO date (YYYY-MM-DD)
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// JournalEmbedding is the derived vector for one entry. It lives and dies
// with its entry and is never authoritative on its own.
type JournalEmbedding struct {
	EntryID   string    `json:"entry_id"`
	UserID    int64     `json:"user_id"`
	Date      string    `json:"date"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
}
