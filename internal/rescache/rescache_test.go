package rescache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prawko/prawko/internal/store"
)

func storages(t *testing.T) map[string]Storage {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	out := map[string]Storage{
		"memory": NewMemoryStorage(),
		"sqlite": NewSQLiteStorage(st),
	}
	if url := os.Getenv("PRAWKO_TEST_REDIS_URL"); url != "" {
		rdb, err := NewRedisClient(context.Background(), url, zerolog.Nop())
		require.NoError(t, err)
		t.Cleanup(func() { rdb.Close() })
		out["redis"] = NewRedisStorage(rdb, "prawko-test-"+uuid.NewString())
	}
	return out
}

func entry(url, body string) *Entry {
	return &Entry{
		URL:      url,
		Status:   http.StatusOK,
		Header:   http.Header{"Content-Type": []string{"application/json"}},
		Body:     []byte(body),
		StoredAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStorageConformance(t *testing.T) {
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			c, err := s.Open(ctx, "prawko-v2-data")
			require.NoError(t, err)
			assert.Equal(t, "prawko-v2-data", c.Name())

			got, err := c.Match(ctx, "https://x/data/B.json")
			require.NoError(t, err)
			assert.Nil(t, got)

			require.NoError(t, c.Put(ctx, entry("https://x/data/B.json", `{"v":1}`)))
			require.NoError(t, c.Put(ctx, entry("https://x/data/C.json", `{"v":2}`)))

			got, err = c.Match(ctx, "https://x/data/B.json")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, http.StatusOK, got.Status)
			assert.Equal(t, `{"v":1}`, string(got.Body))
			assert.Equal(t, "application/json", got.Header.Get("Content-Type"))

			keys, err := c.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"https://x/data/B.json", "https://x/data/C.json"}, keys)

			// Re-put moves the entry to the end.
			require.NoError(t, c.Put(ctx, entry("https://x/data/B.json", `{"v":3}`)))
			keys, err = c.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"https://x/data/C.json", "https://x/data/B.json"}, keys)

			n, err := c.Len(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			removed, err := c.Delete(ctx, "https://x/data/C.json")
			require.NoError(t, err)
			assert.True(t, removed)
			removed, err = c.Delete(ctx, "https://x/data/C.json")
			require.NoError(t, err)
			assert.False(t, removed)

			_, err = s.Open(ctx, "prawko-v1-data")
			require.NoError(t, err)
			names, err := s.Names(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"prawko-v1-data", "prawko-v2-data"}, names)

			existed, err := s.Delete(ctx, "prawko-v2-data")
			require.NoError(t, err)
			assert.True(t, existed)
			names, err = s.Names(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"prawko-v1-data"}, names)

			reopened, err := s.Open(ctx, "prawko-v2-data")
			require.NoError(t, err)
			n, err = reopened.Len(ctx)
			require.NoError(t, err)
			assert.Zero(t, n, "deleting a cache drops its entries")
		})
	}
}

func TestCachesAreIsolated(t *testing.T) {
	for name, s := range storages(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			a, err := s.Open(ctx, "a")
			require.NoError(t, err)
			b, err := s.Open(ctx, "b")
			require.NoError(t, err)

			for i := range 3 {
				require.NoError(t, a.Put(ctx, entry(fmt.Sprintf("https://x/%d", i), "a")))
			}
			got, err := b.Match(ctx, "https://x/0")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestEntryResponse(t *testing.T) {
	e := entry("https://x/a", "hello")
	req, _ := http.NewRequest(http.MethodGet, "https://x/a", nil)

	resp := e.Response(req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "200 OK", resp.Status)
	assert.Equal(t, int64(5), resp.ContentLength)
	assert.Same(t, req, resp.Request)

	assert.Equal(t, "hello", readAll(t, resp))
}

func TestNewEntryKeepsBodyReadable(t *testing.T) {
	src := entry("https://x/a", "payload").Response(nil)
	e, err := NewEntry("https://x/a", src, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "payload", string(e.Body))
	assert.Equal(t, "payload", readAll(t, src))
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestEntryFromHash(t *testing.T) {
	fields := map[string]string{
		"status":    "200",
		"stored_at": "1740830400000",
		"header":    `{"Content-Type":["image/jpeg"]}`,
		"body":      "jpeg",
	}
	e := entryFromHash("https://cdn.example/img/a.jpg", fields)
	assert.Equal(t, 200, e.Status)
	assert.Equal(t, "image/jpeg", e.Header.Get("Content-Type"))
	assert.Equal(t, []byte("jpeg"), e.Body)
	assert.Equal(t, int64(1740830400000), e.StoredAt.UnixMilli())

	fields["header"] = "{not json"
	e = entryFromHash("https://cdn.example/img/a.jpg", fields)
	require.NotNil(t, e.Header)
	assert.Empty(t, e.Header)
	assert.Equal(t, []byte("jpeg"), e.Body, "body survives a corrupt header")
}
