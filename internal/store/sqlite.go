package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/axion-health/insight-engine/internal/health"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err = store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        external_user_id TEXT UNIQUE NOT NULL,
        password_hash TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS health_metrics (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        user_id INTEGER NOT NULL,
        timestamp DATETIME NOT NULL,
        metric_type TEXT NOT NULL,
        value TEXT NOT NULL,
        unit TEXT NOT NULL DEFAULT '',
        source TEXT NOT NULL DEFAULT 'manual',
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    CREATE INDEX IF NOT EXISTS idx_metrics_user_type_time
        ON health_metrics (user_id, metric_type, timestamp);

    CREATE TABLE IF NOT EXISTS journal_entries (
        id TEXT PRIMARY KEY, -- UUID
        user_id INTEGER NOT NULL,
        date TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (user_id) REFERENCES users (id)
    );
    CREATE INDEX IF NOT EXISTS idx_journal_user ON journal_entries (user_id);

    CREATE TABLE IF NOT EXISTS journal_embeddings (
        entry_id TEXT PRIMARY KEY,
        user_id INTEGER NOT NULL,
        embedding_json TEXT NOT NULL, -- JSON array of float32
        FOREIGN KEY (entry_id) REFERENCES journal_entries (id)
    );
    CREATE INDEX IF NOT EXISTS idx_embeddings_user ON journal_embeddings (user_id);
    `
	_, err := s.db.Exec(schema)
	return err
}

// User methods

func (s *SQLiteStore) GetUserByExternalID(externalUserID string) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE external_user_id = ?", externalUserID).
		Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

func (s *SQLiteStore) CreateUser(externalUserID, passwordHash string) (*User, error) {
	res, err := s.db.Exec("INSERT INTO users (external_user_id, password_hash) VALUES (?, ?)", externalUserID, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.getUserByID(id)
}

func (s *SQLiteStore) getUserByID(id int64) (*User, error) {
	var user User
	err := s.db.QueryRow("SELECT id, external_user_id, password_hash, created_at FROM users WHERE id = ?", id).
		Scan(&user.ID, &user.ExternalUserID, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &user, nil
}

// Metric methods

func (s *SQLiteStore) InsertMetric(userID int64, m HealthMetric) error {
	_, err := s.db.Exec(
		"INSERT INTO health_metrics (user_id, timestamp, metric_type, value, unit, source) VALUES (?, ?, ?, ?, ?, ?)",
		userID, m.Timestamp.UTC(), m.MetricType, m.Value, m.Unit, m.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to insert metric: %w", err)
	}
	return nil
}

// ReadMetricSeries returns the user's normalized series for one metric type
// over [from, to]. The user scope is applied in the query itself.
func (s *SQLiteStore) ReadMetricSeries(userID int64, metricType string, from, to time.Time) (health.MetricSeries, error) {
	rows, err := s.db.Query(
		"SELECT timestamp, value, unit FROM health_metrics WHERE user_id = ? AND metric_type = ? AND timestamp >= ? AND timestamp <= ? ORDER BY timestamp",
		userID, metricType, from.UTC(), to.UTC(),
	)
	if err != nil {
		return health.MetricSeries{}, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var readings []health.Reading
	for rows.Next() {
		var r health.Reading
		if err := rows.Scan(&r.Timestamp, &r.Value, &r.Unit); err != nil {
			return health.MetricSeries{}, fmt.Errorf("failed to scan metric row: %w", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return health.MetricSeries{}, fmt.Errorf("metric rows iteration: %w", err)
	}

	return health.Normalize(metricType, readings), nil
}

// ListMetricTypes returns the distinct metric types the user has readings for
// in the given window.
func (s *SQLiteStore) ListMetricTypes(userID int64, from, to time.Time) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT DISTINCT metric_type FROM health_metrics WHERE user_id = ? AND timestamp >= ? AND timestamp <= ? ORDER BY metric_type",
		userID, from.UTC(), to.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query metric types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan metric type: %w", err)
		}
		types = append(types, t)
	}
	return types, rows.Err()
}

// Journal methods

func (s *SQLiteStore) CreateJournalEntry(userID int64, date, content string) (*JournalEntry, error) {
	entry := JournalEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Date:      date,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		"INSERT INTO journal_entries (id, user_id, date, content, created_at) VALUES (?, ?, ?, ?, ?)",
		entry.ID, entry.UserID, entry.Date, entry.Content, entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return &entry, nil
}

func (s *SQLiteStore) GetJournalEntries(userID int64) ([]JournalEntry, error) {
	rows, err := s.db.Query(
		"SELECT id, user_id, date, content, created_at FROM journal_entries WHERE user_id = ? ORDER BY date DESC, created_at DESC",
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Date, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) GetJournalEntry(entryID string, userID int64) (*JournalEntry, error) {
	var e JournalEntry
	err := s.db.QueryRow(
		"SELECT id, user_id, date, content, created_at FROM journal_entries WHERE id = ? AND user_id = ?",
		entryID, userID,
	).Scan(&e.ID, &e.UserID, &e.Date, &e.Content, &e.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query journal entry: %w", err)
	}
	return &e, nil
}

// DeleteJournalEntry removes an entry and its derived embedding together.
func (s *SQLiteStore) DeleteJournalEntry(entryID string, userID int64) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("failed to begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec("DELETE FROM journal_entries WHERE id = ? AND user_id = ?", entryID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete journal entry: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.Exec("DELETE FROM journal_embeddings WHERE entry_id = ? AND user_id = ?", entryID, userID); err != nil {
		return false, fmt.Errorf("failed to delete journal embedding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return true, nil
}

// Embedding methods

func (s *SQLiteStore) UpsertEmbedding(entryID string, userID int64, embedding []float32) error {
	embeddingJSON, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO journal_embeddings (entry_id, user_id, embedding_json) VALUES (?, ?, ?) ON CONFLICT(entry_id) DO UPDATE SET embedding_json = excluded.embedding_json",
		entryID, userID, string(embeddingJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// GetEmbeddings returns all embeddings owned by the user, joined with their
// entries. The scope filter lives in the SQL so no cross-user vector can
// reach the similarity ranking even if a caller forgets to filter.
func (s *SQLiteStore) GetEmbeddings(userID int64) ([]JournalEmbedding, error) {
	rows, err := s.db.Query(
		`SELECT e.entry_id, e.user_id, j.date, j.content, e.embedding_json
         FROM journal_embeddings e
         JOIN journal_entries j ON j.id = e.entry_id AND j.user_id = e.user_id
         WHERE e.user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var embeddings []JournalEmbedding
	for rows.Next() {
		var emb JournalEmbedding
		var embeddingJSON string
		if err := rows.Scan(&emb.EntryID, &emb.UserID, &emb.Date, &emb.Content, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &emb.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding for entry %s: %w", emb.EntryID, err)
		}
		embeddings = append(embeddings, emb)
	}
	return embeddings, rows.Err()
}
