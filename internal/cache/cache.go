// Package cache stores crawl results keyed by URL.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Entry is a cached crawl result.
type Entry struct {
	URL              string    `json:"url"`
	StatusCode       int       `json:"status_code"`
	HTML             string    `json:"html"`
	CleanedHTML      string    `json:"cleaned_html"`
	Markdown         string    `json:"markdown"`
	ExtractedContent string    `json:"extracted_content,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Store persists entries. Get returns (nil, nil) on a miss.
type Store interface {
	Get(ctx context.Context, url string) (*Entry, error)
	Set(ctx context.Context, entry *Entry) error
	Delete(ctx context.Context, url string) error
	Close() error
}

// DefaultDir is where the file store lives when no DSN is given.
const DefaultDir = ".llmcrawl-cache"

// Open picks a store from dsn:
//
//	""                      file store in DefaultDir
//	"file:<dir>" or a path  file store in dir
//	"postgres://..."        postgres
//	"libsql://..."          libsql / Turso
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "":
		return NewFileStore(DefaultDir)
	case strings.HasPrefix(dsn, "file:"):
		return NewFileStore(strings.TrimPrefix(dsn, "file:"))
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return OpenSQL(ctx, "postgres", dsn)
	case strings.HasPrefix(dsn, "libsql://"), strings.HasPrefix(dsn, "wss://"), strings.HasPrefix(dsn, "https://"):
		return OpenSQL(ctx, "libsql", dsn)
	case strings.Contains(dsn, "://"):
		return nil, fmt.Errorf("unsupported cache dsn: %s", dsn)
	default:
		return NewFileStore(dsn)
	}
}

// Key hashes a URL into a stable identifier.
func Key(url string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(sum[:])
}

// FileStore keeps one JSON file per URL.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (c *FileStore) path(url string) string {
	return filepath.Join(c.dir, Key(url)+".json")
}

func (c *FileStore) Get(ctx context.Context, url string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	data, err := os.ReadFile(c.path(url))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s: %w", url, err)
	}
	return &e, nil
}

func (c *FileStore) Set(ctx context.Context, entry *Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path(entry.URL), data, 0644)
}

func (c *FileStore) Delete(ctx context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path(url))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (c *FileStore) Close() error { return nil }
