package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// KV is a flat key-value table for small JSON documents: exam history,
// learn progress, offline flags and preferences.
type KV struct {
	db *sql.DB
}

// Get returns the value stored under key. ok is false when the key is absent.
func (kv *KV) Get(ctx context.Context, key string) (value []byte, ok bool, err error) {
	err = kv.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (kv *KV) Set(ctx context.Context, key string, value []byte) error {
	_, err := kv.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (kv *KV) Delete(ctx context.Context, key string) error {
	if _, err := kv.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// Keys returns all keys, sorted.
func (kv *KV) Keys(ctx context.Context) ([]string, error) {
	rows, err := kv.db.QueryContext(ctx, `SELECT key FROM kv ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Getter is the read side of KV. Tests substitute failing implementations.
type Getter interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
}

// Setter is the write side of KV.
type Setter interface {
	Set(ctx context.Context, key string, value []byte) error
}

// Backend is the full key-value contract consumed by the domain packages.
type Backend interface {
	Getter
	Setter
	Delete(ctx context.Context, key string) error
}

// LoadJSON decodes the document under key into dst. It reports false, and
// leaves dst untouched, when the key is missing, unreadable, or does not
// decode into dst's shape.
func LoadJSON(ctx context.Context, kv Getter, key string, dst any) bool {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return decodeInto(raw, dst)
}

// SaveJSON encodes v and stores it under key.
func SaveJSON(ctx context.Context, kv Setter, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	return kv.Set(ctx, key, raw)
}

func decodeInto(raw []byte, dst any) bool {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return false
	}
	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(raw, fresh.Interface()); err != nil {
		return false
	}
	rv.Elem().Set(fresh.Elem())
	return true
}
