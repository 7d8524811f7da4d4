package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
)

const createTable = `
CREATE TABLE IF NOT EXISTS crawl_cache (
	url_key    TEXT PRIMARY KEY,
	url        TEXT NOT NULL,
	data       TEXT NOT NULL,
	created_at TEXT NOT NULL
)`

// SQLStore keeps entries in a crawl_cache table. The same SQL runs on
// postgres and libsql; only the placeholder style differs.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// OpenSQL connects, pings and creates the table.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s cache: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s cache: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache table: %w", err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) Get(ctx context.Context, url string) (*Entry, error) {
	var data string
	err := s.db.QueryRowContext(ctx, rebind(s.driver, `SELECT data FROM crawl_cache WHERE url_key = ?`), Key(url)).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var e Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("corrupt cache entry for %s: %w", url, err)
	}
	return &e, nil
}

func (s *SQLStore) Set(ctx context.Context, entry *Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO crawl_cache (url_key, url, data, created_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (url_key)
	DO UPDATE SET data = excluded.data, created_at = excluded.created_at
	`
	_, err = s.db.ExecContext(ctx, rebind(s.driver, query), Key(entry.URL), entry.URL, string(data), entry.CreatedAt.UTC().Format(time.RFC3339))
	return err
}

func (s *SQLStore) Delete(ctx context.Context, url string) error {
	_, err := s.db.ExecContext(ctx, rebind(s.driver, `DELETE FROM crawl_cache WHERE url_key = ?`), Key(url))
	return err
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
