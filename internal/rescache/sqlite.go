package rescache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prawko/prawko/internal/store"
)

// SQLiteStorage persists caches in the application database.
type SQLiteStorage struct {
	st *store.Store
}

// NewSQLiteStorage returns a Storage backed by st.
func NewSQLiteStorage(st *store.Store) *SQLiteStorage {
	return &SQLiteStorage{st: st}
}

func (s *SQLiteStorage) Open(ctx context.Context, name string) (Cache, error) {
	if _, err := s.st.DB().ExecContext(ctx,
		`INSERT OR IGNORE INTO cache_names (name) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("open cache %q: %w", name, err)
	}
	return &sqliteCache{st: s.st, name: name}, nil
}

func (s *SQLiteStorage) Names(ctx context.Context) ([]string, error) {
	rows, err := s.st.DB().QueryContext(ctx, `SELECT name FROM cache_names ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list caches: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLiteStorage) Delete(ctx context.Context, name string) (bool, error) {
	if _, err := s.st.DB().ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_name = ?`, name); err != nil {
		return false, fmt.Errorf("delete cache %q: %w", name, err)
	}
	res, err := s.st.DB().ExecContext(ctx, `DELETE FROM cache_names WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete cache %q: %w", name, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type sqliteCache struct {
	st   *store.Store
	name string
}

func (c *sqliteCache) Name() string { return c.name }

func (c *sqliteCache) Match(ctx context.Context, url string) (*Entry, error) {
	var (
		status   int
		header   string
		body     []byte
		storedAt int64
	)
	err := c.st.DB().QueryRowContext(ctx,
		`SELECT status, header, body, stored_at FROM cache_entries WHERE cache_name = ? AND url = ?`,
		c.name, url).Scan(&status, &header, &body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", url, err)
	}

	h := make(http.Header)
	if err := json.Unmarshal([]byte(header), &h); err != nil {
		// Unreadable headers are dropped; the body is still usable.
		h = make(http.Header)
	}
	return &Entry{
		URL:      url,
		Status:   status,
		Header:   h,
		Body:     body,
		StoredAt: time.UnixMilli(storedAt),
	}, nil
}

func (c *sqliteCache) Put(ctx context.Context, entry *Entry) error {
	seq, err := c.st.NextSequence(ctx)
	if err != nil {
		return err
	}
	header, err := json.Marshal(entry.Header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	_, err = c.st.DB().ExecContext(ctx,
		`INSERT INTO cache_entries (cache_name, url, seq, status, header, body, stored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_name, url) DO UPDATE SET
		   seq = excluded.seq, status = excluded.status, header = excluded.header,
		   body = excluded.body, stored_at = excluded.stored_at`,
		c.name, entry.URL, seq, entry.Status, string(header), entry.Body, entry.StoredAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("put %s: %w", entry.URL, err)
	}
	return nil
}

func (c *sqliteCache) Delete(ctx context.Context, url string) (bool, error) {
	res, err := c.st.DB().ExecContext(ctx,
		`DELETE FROM cache_entries WHERE cache_name = ? AND url = ?`, c.name, url)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", url, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *sqliteCache) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.st.DB().QueryContext(ctx,
		`SELECT url FROM cache_entries WHERE cache_name = ? ORDER BY seq`, c.name)
	if err != nil {
		return nil, fmt.Errorf("keys %s: %w", c.name, err)
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		keys = append(keys, u)
	}
	return keys, rows.Err()
}

func (c *sqliteCache) Len(ctx context.Context) (int, error) {
	var n int
	err := c.st.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM cache_entries WHERE cache_name = ?`, c.name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return n, nil
}
