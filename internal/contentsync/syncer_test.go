package contentsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/netcache"
	"github.com/prawko/prawko/internal/rescache"
	"github.com/prawko/prawko/internal/store"
)

const categoryB = `{"category":"B","questions":[{"id":1,"q":"Stop?","type":"basic","correct":"T"}]}`

func metaJSON(version string) string {
	return fmt.Sprintf(`{"version":%q,"categories":[{"id":"B","name":"B","questionCount":1}],`+
		`"exam":{"basicQuestions":20,"specialistQuestions":12,"basicTimeSeconds":20,"specialistTimeSeconds":50,`+
		`"totalTimeSeconds":1500,"basicPoints":[],"specialistPoints":[],"maxPoints":74,"passThreshold":68}}`, version)
}

func sum(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

type site struct {
	mu    sync.Mutex
	files map[string]string
}

func (s *site) set(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = body
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body, ok := s.files[r.URL.Path]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, body)
}

type fixture struct {
	site    *site
	srv     *httptest.Server
	storage *rescache.MemoryStorage
	kv      *store.KV
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		site: &site{files: map[string]string{
			"/":               "root",
			"/index.html":     "<html></html>",
			"/manifest.json":  "{}",
			"/data/meta.json": metaJSON("1.0.0"),
			"/data/B.json":    categoryB,
		}},
		storage: rescache.NewMemoryStorage(),
	}
	f.srv = httptest.NewServer(f.site)
	t.Cleanup(f.srv.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "sync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	f.kv = st.KV()
	return f
}

func (f *fixture) syncer(t *testing.T, version string) (*Syncer, *netcache.Worker) {
	t.Helper()
	w, err := netcache.NewWorker(f.storage, nil, netcache.Options{
		Origin:  f.srv.URL + "/",
		Version: version,
		Log:     zerolog.Nop(),
	})
	require.NoError(t, err)
	c, err := content.NewClient(f.srv.URL+"/", &http.Client{Transport: w}, zerolog.Nop())
	require.NoError(t, err)
	return New(w, f.storage, c, f.kv, f.srv.Client(), zerolog.Nop()), w
}

func TestSync_FirstRunPopulatesCaches(t *testing.T) {
	f := newFixture(t)
	s, w := f.syncer(t, "v2")
	ctx := context.Background()

	var stages []string
	report, err := s.Sync(ctx, func(p Progress) { stages = append(stages, p.Stage) })
	require.NoError(t, err)
	assert.True(t, report.Updated)
	assert.Equal(t, "1.0.0", report.Version)
	assert.Equal(t, 1, report.Categories)
	assert.Equal(t, 1, report.Questions)
	assert.Equal(t, []string{"install", "check", "download", "activate", "done"}, stages)
	assert.Equal(t, "1.0.0", s.StoredVersion(ctx))

	data, err := f.storage.Open(ctx, w.DataCache())
	require.NoError(t, err)
	e, err := data.Match(ctx, f.srv.URL+"/data/B.json")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, categoryB, string(e.Body))

	report, err = s.Sync(ctx, nil)
	require.NoError(t, err)
	assert.False(t, report.Updated, "same version")
}

func TestSync_NewVersionDropsOldCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old, _ := f.syncer(t, "v1")
	_, err := old.Sync(ctx, nil)
	require.NoError(t, err)

	f.site.set("/data/meta.json", metaJSON("1.1.0"))
	s, w := f.syncer(t, "v2")
	report, err := s.Sync(ctx, nil)
	require.NoError(t, err)

	assert.True(t, report.Updated)
	assert.Equal(t, "1.0.0", report.Previous)
	assert.ElementsMatch(t, []string{"prawko-v1-shell", "prawko-v1-data"}, report.Removed)

	names, err := f.storage.Names(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, w.DataCache())
	assert.NotContains(t, names, "prawko-v1-data")
}

func TestSync_ChecksumMismatchEvicts(t *testing.T) {
	f := newFixture(t)
	f.site.set("/data/checksums.txt", fmt.Sprintf("%s  meta.json\n%s  B.json\n", sum(metaJSON("1.0.0")), sum("something else")))
	s, w := f.syncer(t, "v2")
	ctx := context.Background()

	_, err := s.Sync(ctx, nil)
	require.ErrorIs(t, err, ErrChecksum)
	assert.Empty(t, s.StoredVersion(ctx))

	data, err := f.storage.Open(ctx, w.DataCache())
	require.NoError(t, err)
	e, err := data.Match(ctx, f.srv.URL+"/data/B.json")
	require.NoError(t, err)
	assert.Nil(t, e)
}

func TestSync_ChecksumsMatch(t *testing.T) {
	f := newFixture(t)
	f.site.set("/data/checksums.txt", fmt.Sprintf("%s  meta.json\n%s  B.json\n", sum(metaJSON("1.0.0")), sum(categoryB)))
	s, _ := f.syncer(t, "v2")

	_, err := s.Sync(context.Background(), nil)
	require.NoError(t, err)
}

func TestSync_MissingCategory(t *testing.T) {
	f := newFixture(t)
	f.site.set("/data/meta.json", `{"categories":[{"id":"Z"}],"exam":{}}`)
	s, _ := f.syncer(t, "v2")

	_, err := s.Sync(context.Background(), nil)
	assert.Error(t, err)
}

func TestParseChecksums(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]string
	}{
		{
			name:  "normal",
			input: "abc123  meta.json\ndef456  B.json\n",
			want: map[string]string{
				"meta.json": "abc123",
				"B.json":    "def456",
			},
		},
		{
			name:  "empty",
			input: "",
			want:  map[string]string{},
		},
		{
			name:  "malformed lines skipped",
			input: "abc123  A.json\nbadline\n  \nfoo  bar  baz\nghi789  C.json\n",
			want: map[string]string{
				"A.json": "abc123",
				"C.json": "ghi789",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseChecksums([]byte(tt.input)))
		})
	}
}

func TestVerifyChecksum(t *testing.T) {
	data := []byte("payload")
	require.NoError(t, verifyChecksum(data, sum("payload")))
	err := verifyChecksum(data, sum("other"))
	assert.ErrorIs(t, err, ErrChecksum)
}

func TestIsNewer(t *testing.T) {
	tests := []struct {
		latest, current string
		want            bool
	}{
		{"1.0.0", "", true},
		{"", "1.0.0", false},
		{"1.1.0", "1.0.0", true},
		{"v1.0.0", "1.0.0", false},
		{"1.0.0", "1.2.0", false},
		{"2025-06", "2025-05", true},
		{"2025-05", "2025-05", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isNewer(tt.latest, tt.current), "%q vs %q", tt.latest, tt.current)
	}
}
