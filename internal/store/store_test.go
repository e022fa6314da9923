package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"condense/internal/core"
)

func testDocument() *core.SummaryDocument {
	doc := &core.SummaryDocument{
		TLDR:          "A short overview.",
		KeyTakeaways:  []string{"first", "second", "third"},
		Summary:       "The long form summary body.",
		NotableQuotes: []string{"a quote"},
		Conclusion:    "The conclusion.",
		ExtraSections: map[string]string{"Cheat Sheet": "content"},
		Provider:      "openai",
		Model:         "gpt-4o",
	}
	doc.EnsureDefaults()
	return doc
}

func TestNewStore(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if store.db == nil {
		t.Error("Store database should not be nil")
	}

	dbPath := filepath.Join(tmpDir, "condense.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should be created")
	}
}

func TestNewStore_InvalidDirectory(t *testing.T) {
	// Try to create store in a file (not directory)
	tmpDir := t.TempDir()
	invalidPath := filepath.Join(tmpDir, "file.txt")
	_ = os.WriteFile(invalidPath, []byte("test"), 0644)

	_, err := NewStore(invalidPath)
	if err == nil {
		t.Error("Expected error when creating store in invalid directory")
	}
}

func TestCacheSummary_GetCachedSummary(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	doc := testDocument()
	key := CacheKey(CacheKeyParams{
		URL:         "https://example.com/article",
		Detail:      "standard",
		Language:    "auto",
		Model:       "gpt-4o",
		ContentHash: ContentHash("some article text"),
	})

	err = store.CacheSummary(key, "https://example.com/article", doc)
	if err != nil {
		t.Fatalf("CacheSummary failed: %v", err)
	}

	cached, err := store.GetCachedSummary(key, 24*time.Hour)
	if err != nil {
		t.Fatalf("GetCachedSummary failed: %v", err)
	}
	if cached == nil {
		t.Fatal("Expected cached summary, got nil")
	}

	if cached.TLDR != doc.TLDR {
		t.Errorf("Expected TLDR %s, got %s", doc.TLDR, cached.TLDR)
	}
	if len(cached.KeyTakeaways) != len(doc.KeyTakeaways) {
		t.Errorf("Expected %d takeaways, got %d", len(doc.KeyTakeaways), len(cached.KeyTakeaways))
	}
	if cached.ExtraSections["Cheat Sheet"] != "content" {
		t.Errorf("Expected extra section to round-trip, got %v", cached.ExtraSections)
	}
	if cached.Provider != "openai" || cached.Model != "gpt-4o" {
		t.Errorf("Expected provider attribution to round-trip, got %s/%s", cached.Provider, cached.Model)
	}
	if cached.Tags == nil || cached.RelatedTopics == nil {
		t.Error("Expected defaults to be applied on load")
	}
}

func TestGetCachedSummary_CacheMiss(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	cached, err := store.GetCachedSummary("non-existent", 24*time.Hour)
	if err != nil {
		t.Fatalf("GetCachedSummary failed: %v", err)
	}
	if cached != nil {
		t.Error("Expected nil for cache miss")
	}
}

func TestCacheSummary_Replace(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	key := "fixed-key"
	first := testDocument()
	if err := store.CacheSummary(key, "https://example.com", first); err != nil {
		t.Fatalf("CacheSummary failed: %v", err)
	}

	second := testDocument()
	second.TLDR = "A replacement overview."
	if err := store.CacheSummary(key, "https://example.com", second); err != nil {
		t.Fatalf("CacheSummary failed: %v", err)
	}

	cached, err := store.GetCachedSummary(key, 24*time.Hour)
	if err != nil {
		t.Fatalf("GetCachedSummary failed: %v", err)
	}
	if cached == nil || cached.TLDR != "A replacement overview." {
		t.Error("Expected second write to replace the first")
	}

	stats, err := store.GetCacheStats()
	if err != nil {
		t.Fatalf("GetCacheStats failed: %v", err)
	}
	if stats.SummaryCount != 1 {
		t.Errorf("Expected 1 summary after replace, got %d", stats.SummaryCount)
	}
}

func TestCacheKey_Distinguishes(t *testing.T) {
	base := CacheKeyParams{
		URL:         "https://example.com",
		Detail:      "standard",
		Language:    "auto",
		Model:       "gpt-4o",
		ContentHash: "10-a-b",
	}

	detailed := base
	detailed.Detail = "detailed"
	german := base
	german.Language = "German"
	stale := base
	stale.ContentHash = "11-a-c"

	keys := map[string]bool{
		CacheKey(base):     true,
		CacheKey(detailed): true,
		CacheKey(german):   true,
		CacheKey(stale):    true,
	}
	if len(keys) != 4 {
		t.Errorf("Expected 4 distinct keys, got %d", len(keys))
	}

	if CacheKey(base) != CacheKey(base) {
		t.Error("Expected identical params to produce identical keys")
	}
}

func TestGetCacheStats(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.CacheSummary("key-1", "url-1", testDocument()); err != nil {
		t.Fatalf("CacheSummary failed: %v", err)
	}
	if err := store.CacheSummary("key-2", "url-2", testDocument()); err != nil {
		t.Fatalf("CacheSummary failed: %v", err)
	}

	stats, err := store.GetCacheStats()
	if err != nil {
		t.Fatalf("GetCacheStats failed: %v", err)
	}
	if stats.SummaryCount != 2 {
		t.Errorf("Expected 2 summaries, got %d", stats.SummaryCount)
	}
	if stats.CacheSize <= 0 {
		t.Error("Cache size should be greater than 0")
	}
}

func TestClearCache(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.CacheSummary("key-1", "url-1", testDocument()); err != nil {
		t.Fatalf("CacheSummary failed: %v", err)
	}

	if err := store.ClearCache(); err != nil {
		t.Fatalf("ClearCache failed: %v", err)
	}

	stats, err := store.GetCacheStats()
	if err != nil {
		t.Fatalf("GetCacheStats failed: %v", err)
	}
	if stats.SummaryCount != 0 {
		t.Errorf("Expected 0 summaries after clear, got %d", stats.SummaryCount)
	}
}

func TestCleanupOldCache(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	// Backdate one entry past the cleanup cutoff.
	if err := store.CacheSummary("old-key", "old-url", testDocument()); err != nil {
		t.Fatalf("CacheSummary failed: %v", err)
	}
	old := time.Now().UTC().Add(-48 * time.Hour)
	if _, err := store.db.Exec("UPDATE summaries SET date_generated = ? WHERE cache_key = ?", old, "old-key"); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	if err := store.CacheSummary("recent-key", "recent-url", testDocument()); err != nil {
		t.Fatalf("CacheSummary failed: %v", err)
	}

	if err := store.CleanupOldCache(24 * time.Hour); err != nil {
		t.Fatalf("CleanupOldCache failed: %v", err)
	}

	cachedOld, err := store.GetCachedSummary("old-key", 72*time.Hour)
	if err != nil {
		t.Fatalf("GetCachedSummary failed: %v", err)
	}
	if cachedOld != nil {
		t.Error("Old summary should be cleaned up")
	}

	cachedRecent, err := store.GetCachedSummary("recent-key", 24*time.Hour)
	if err != nil {
		t.Fatalf("GetCachedSummary failed: %v", err)
	}
	if cachedRecent == nil {
		t.Error("Recent summary should remain after cleanup")
	}
}

func TestGetCachedSummary_Expired(t *testing.T) {
	tmpDir := t.TempDir()
	store, err := NewStore(tmpDir)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	if err := store.CacheSummary("key", "url", testDocument()); err != nil {
		t.Fatalf("CacheSummary failed: %v", err)
	}
	old := time.Now().UTC().Add(-48 * time.Hour)
	if _, err := store.db.Exec("UPDATE summaries SET date_generated = ? WHERE cache_key = ?", old, "key"); err != nil {
		t.Fatalf("backdate failed: %v", err)
	}

	cached, err := store.GetCachedSummary("key", 24*time.Hour)
	if err != nil {
		t.Fatalf("GetCachedSummary failed: %v", err)
	}
	if cached != nil {
		t.Error("Expected nil for expired cache entry")
	}
}

func TestContentHash(t *testing.T) {
	testCases := []struct {
		content  string
		expected string
	}{
		{"", "empty"},
		{"a", "1-a-a"},
		{"hello", "5-h-o"},
		{"hello world", "11-h-d"},
	}

	for _, tc := range testCases {
		result := ContentHash(tc.content)
		if result != tc.expected {
			t.Errorf("ContentHash(%q) = %q, expected %q", tc.content, result, tc.expected)
		}
	}
}
