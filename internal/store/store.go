// Package store caches finished summaries in a local SQLite database.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"condense/internal/core"
)

// Store represents the SQLite-based summary cache
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new store instance with SQLite database
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "condense.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{
		db:   db,
		path: dbPath,
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

// initialize creates the necessary tables
func (s *Store) initialize() error {
	summariesTable := `
	CREATE TABLE IF NOT EXISTS summaries (
		id TEXT PRIMARY KEY,
		cache_key TEXT UNIQUE,
		url TEXT,
		provider TEXT,
		model TEXT,
		document TEXT,
		date_generated DATETIME
	);`

	if _, err := s.db.Exec(summariesTable); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// CacheKeyParams are the request attributes that make two summarizations
// interchangeable. Anything that changes the output belongs here.
type CacheKeyParams struct {
	URL              string
	Detail           string
	Language         string
	LanguageExcept   string
	UserInstructions string
	Model            string
	ContentHash      string
}

// CacheKey derives the lookup key for a summarization request.
func CacheKey(p CacheKeyParams) string {
	joined := strings.Join([]string{
		p.URL, p.Detail, p.Language, p.LanguageExcept,
		p.UserInstructions, p.Model, p.ContentHash,
	}, "\x00")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}

// ContentHash creates a cheap hash of extracted content for cache validation
func ContentHash(content string) string {
	if len(content) == 0 {
		return "empty"
	}
	return fmt.Sprintf("%d-%c-%c", len(content), content[0], content[len(content)-1])
}

// CacheSummary stores a finished summary document under its cache key
func (s *Store) CacheSummary(key, url string, doc *core.SummaryDocument) error {
	document, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	query := `
	INSERT OR REPLACE INTO summaries
	(id, cache_key, url, provider, model, document, date_generated)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.Exec(query,
		uuid.NewString(),
		key,
		url,
		doc.Provider,
		doc.Model,
		string(document),
		time.Now().UTC(),
	)

	return err
}

// GetCachedSummary retrieves a summary from the cache. Returns nil without
// error on a miss or when the entry is older than maxAge.
func (s *Store) GetCachedSummary(key string, maxAge time.Duration) (*core.SummaryDocument, error) {
	query := `
	SELECT document
	FROM summaries
	WHERE cache_key = ? AND date_generated > ?`

	cutoff := time.Now().UTC().Add(-maxAge)
	row := s.db.QueryRow(query, key, cutoff)

	var document string
	err := row.Scan(&document)
	if err == sql.ErrNoRows {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan summary: %w", err)
	}

	var doc core.SummaryDocument
	if err := json.Unmarshal([]byte(document), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	doc.EnsureDefaults()

	return &doc, nil
}

// CacheStats represents cache statistics
type CacheStats struct {
	SummaryCount int
	CacheSize    int64
	LastUpdated  time.Time
}

// GetCacheStats returns statistics about the cache
func (s *Store) GetCacheStats() (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRow("SELECT COUNT(*) FROM summaries").Scan(&stats.SummaryCount)
	if err != nil {
		return nil, fmt.Errorf("failed to get count: %w", err)
	}

	if fileInfo, err := os.Stat(s.path); err == nil {
		stats.CacheSize = fileInfo.Size()
		stats.LastUpdated = fileInfo.ModTime()
	}

	return stats, nil
}

// ClearCache removes all cached summaries
func (s *Store) ClearCache() error {
	if _, err := s.db.Exec("DELETE FROM summaries"); err != nil {
		return fmt.Errorf("failed to clear summaries table: %w", err)
	}

	// Vacuum to reclaim space
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}

	return nil
}

// CleanupOldCache removes entries older than maxAge
func (s *Store) CleanupOldCache(maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge)
	if _, err := s.db.Exec("DELETE FROM summaries WHERE date_generated < ?", cutoff); err != nil {
		return fmt.Errorf("failed to clean old summaries: %w", err)
	}
	return nil
}
