package offline

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/netcache"
	"github.com/prawko/prawko/internal/rescache"
	"github.com/prawko/prawko/internal/store"
)

type fakeProvider map[string]*content.CategoryData

func (p fakeProvider) FetchMeta(context.Context) (*content.Meta, error) {
	return &content.Meta{}, nil
}

func (p fakeProvider) FetchCategory(_ context.Context, id string) (*content.CategoryData, error) {
	d, ok := p[id]
	if !ok {
		return nil, content.ErrNotFound
	}
	return d, nil
}

// mediaServer serves every path under /media/ except the ones marked
// broken, and can hold requests until released.
type mediaServer struct {
	mu     sync.Mutex
	hits   int
	broken map[string]bool
	short  map[string]bool
	hold   chan struct{}
	seen   chan struct{}
}

func (m *mediaServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.hits++
	broken, short := m.broken[r.URL.Path], m.short[r.URL.Path]
	hold, seen := m.hold, m.seen
	m.mu.Unlock()

	if hold != nil {
		select {
		case seen <- struct{}{}:
		default:
		}
		select {
		case <-hold:
		case <-r.Context().Done():
			return
		}
	}
	if broken {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	if short {
		// The connection closes after five of the announced bytes.
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("short"))
		return
	}
	w.Write([]byte("media:" + r.URL.Path))
}

func (m *mediaServer) breakPath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broken[path] = true
}

func (m *mediaServer) truncatePath(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.short[path] = true
}

func (m *mediaServer) holdRequests(hold, seen chan struct{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = hold
	m.seen = seen
}

func (m *mediaServer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits
}

type fixture struct {
	media    *mediaServer
	srv      *httptest.Server
	storage  *rescache.MemoryStorage
	worker   *netcache.Worker
	kv       *store.KV
	provider fakeProvider
	d        *Downloader
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		media:    &mediaServer{broken: map[string]bool{}, short: map[string]bool{}},
		storage:  rescache.NewMemoryStorage(),
		provider: fakeProvider{},
	}
	f.srv = httptest.NewServer(f.media)
	t.Cleanup(f.srv.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "offline.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	f.kv = st.KV()

	f.worker, err = netcache.NewWorker(f.storage, nil, netcache.Options{
		Origin:  "http://app.invalid/",
		Version: "v2",
		Log:     zerolog.Nop(),
	})
	require.NoError(t, err)

	f.d = New(Options{
		KV:           f.kv,
		Content:      f.provider,
		Client:       &http.Client{Transport: f.worker},
		Storage:      f.storage,
		MediaCache:   f.worker.MediaCache(),
		MediaBaseURL: f.srv.URL + "/media",
		Log:          zerolog.Nop(),
	})
	return f
}

// addCategory registers a category with n distinct media plus one
// duplicate reference.
func (f *fixture) addCategory(id string, n int) {
	var qs []content.Question
	for i := range n {
		qs = append(qs, content.Question{
			ID: i + 1, Type: content.TypeBasic, Correct: content.AnswerYes,
			Media: &content.Media{ID: fmt.Sprintf("%s_%d.jpg", id, i), Kind: content.MediaImage},
		})
	}
	if n > 0 {
		qs = append(qs, content.Question{ID: 999, Type: content.TypeBasic, Correct: content.AnswerNo, Media: qs[0].Media})
	}
	qs = append(qs, content.Question{ID: 1000, Type: content.TypeBasic, Correct: content.AnswerNo})
	f.provider[id] = &content.CategoryData{Category: id, Questions: qs}
}

func (f *fixture) mediaCache(t *testing.T) rescache.Cache {
	t.Helper()
	c, err := f.storage.Open(context.Background(), f.worker.MediaCache())
	require.NoError(t, err)
	return c
}

type progressLog struct {
	mu      sync.Mutex
	reports []Progress
}

func (p *progressLog) add(pr Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, pr)
}

func TestDownload_Success(t *testing.T) {
	f := newFixture(t)
	f.addCategory("B", 8)
	ctx := context.Background()
	var progress progressLog

	res, err := f.d.Download(ctx, "B", progress.add)
	require.NoError(t, err)
	assert.Equal(t, Result{Success: true, Total: 8}, res)
	assert.Equal(t, []Progress{
		{Completed: 6, Total: 8},
		{Completed: 8, Total: 8},
	}, progress.reports)

	assert.True(t, f.d.Downloaded(ctx)["B"])
	manifest, ok := f.d.Manifest(ctx, "B")
	require.True(t, ok)
	assert.Len(t, manifest, 8)
	assert.Equal(t, 8, f.media.count(), "duplicates fetched once")

	n, err := f.mediaCache(t).Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.True(t, f.d.Reconcile(ctx)["B"])
}

func TestDownload_ZeroMedia(t *testing.T) {
	f := newFixture(t)
	f.addCategory("T", 0)
	ctx := context.Background()
	var progress progressLog

	res, err := f.d.Download(ctx, "T", progress.add)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []Progress{{Completed: 1, Total: 1}}, progress.reports)
	assert.True(t, f.d.Downloaded(ctx)["T"])
	assert.True(t, f.d.Reconcile(ctx)["T"])
}

func TestDownload_FailureClearsPreviousMark(t *testing.T) {
	f := newFixture(t)
	f.addCategory("B", 3)
	ctx := context.Background()

	_, err := f.d.Download(ctx, "B", nil)
	require.NoError(t, err)
	require.True(t, f.d.Downloaded(ctx)["B"])

	// Evict one file so the retry has to go to the network, where it fails.
	manifest, _ := f.d.Manifest(ctx, "B")
	_, err = f.mediaCache(t).Delete(ctx, manifest[1])
	require.NoError(t, err)
	f.media.breakPath("/media/img/B_1.jpg")

	var progress progressLog
	res, err := f.d.Download(ctx, "B", progress.add)
	require.NoError(t, err)
	assert.Equal(t, Result{Total: 3, Failed: 1}, res)
	assert.Equal(t, []Progress{{Completed: 3, Total: 3, Failed: 1}}, progress.reports)

	assert.False(t, f.d.Downloaded(ctx)["B"])
	_, ok := f.d.Manifest(ctx, "B")
	assert.False(t, ok)
}

func TestDownload_TruncatedBodyFails(t *testing.T) {
	f := newFixture(t)
	f.addCategory("B", 1)
	f.media.truncatePath("/media/img/B_0.jpg")
	ctx := context.Background()

	direct := New(Options{
		KV:           f.kv,
		Content:      f.provider,
		Client:       f.srv.Client(),
		Storage:      f.storage,
		MediaCache:   f.worker.MediaCache(),
		MediaBaseURL: f.srv.URL + "/media",
		Log:          zerolog.Nop(),
	})
	for name, d := range map[string]*Downloader{"through worker": f.d, "direct": direct} {
		t.Run(name, func(t *testing.T) {
			res, err := d.Download(ctx, "B", nil)
			require.NoError(t, err)
			assert.Equal(t, Result{Total: 1, Failed: 1}, res)
			assert.False(t, d.Downloaded(ctx)["B"])
			_, ok := d.Manifest(ctx, "B")
			assert.False(t, ok)

			n, err := f.mediaCache(t).Len(ctx)
			require.NoError(t, err)
			assert.Zero(t, n, "nothing cached from a truncated body")
		})
	}
}

func TestDownload_CancelAfterLastBatchStillRecords(t *testing.T) {
	f := newFixture(t)
	f.addCategory("B", 3)
	ctx := context.Background()

	res, err := f.d.Download(ctx, "B", func(p Progress) {
		if p.Completed == p.Total {
			f.d.Cancel()
		}
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, f.d.Downloaded(ctx)["B"])
	manifest, ok := f.d.Manifest(ctx, "B")
	require.True(t, ok)
	assert.Len(t, manifest, 3)
}

func TestDownload_CancelAfterFirstBatch(t *testing.T) {
	f := newFixture(t)
	f.addCategory("C", 10)
	ctx := context.Background()

	var progress progressLog
	res, err := f.d.Download(ctx, "C", func(p Progress) {
		progress.add(p)
		f.d.Cancel()
	})
	require.NoError(t, err)

	assert.True(t, res.Cancelled)
	assert.False(t, res.Success)
	assert.Equal(t, 10, res.Total)
	assert.Equal(t, []Progress{{Completed: 6, Total: 10}}, progress.reports)
	assert.Equal(t, 6, f.media.count(), "second batch never started")

	assert.False(t, f.d.Downloaded(ctx)["C"])
	_, ok := f.d.Manifest(ctx, "C")
	assert.False(t, ok)
}

func TestDownload_LastRequestWins(t *testing.T) {
	f := newFixture(t)
	f.addCategory("A", 2)
	f.addCategory("B", 0)
	ctx := context.Background()

	hold, seen := make(chan struct{}), make(chan struct{}, 1)
	f.media.holdRequests(hold, seen)
	defer close(hold)

	done := make(chan Result, 1)
	go func() {
		res, err := f.d.Download(ctx, "A", nil)
		assert.NoError(t, err)
		done <- res
	}()

	select {
	case <-seen:
	case <-time.After(5 * time.Second):
		t.Fatal("first download never reached the network")
	}

	res, err := f.d.Download(ctx, "B", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)

	select {
	case first := <-done:
		assert.True(t, first.Cancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("first download was not aborted")
	}

	downloaded := f.d.Downloaded(ctx)
	assert.True(t, downloaded["B"])
	assert.False(t, downloaded["A"])
}

func TestDownload_CategoryLoadFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, store.SaveJSON(ctx, f.kv, downloadedKey, []string{"X"}))

	_, err := f.d.Download(ctx, "X", nil)
	assert.ErrorIs(t, err, content.ErrNotFound)
	assert.False(t, f.d.Downloaded(ctx)["X"])
}

func TestReconcile(t *testing.T) {
	f := newFixture(t)
	f.addCategory("B", 3)
	f.addCategory("C", 2)
	ctx := context.Background()
	for _, c := range []string{"B", "C"} {
		_, err := f.d.Download(ctx, c, nil)
		require.NoError(t, err)
	}

	manifest, _ := f.d.Manifest(ctx, "B")
	_, err := f.mediaCache(t).Delete(ctx, manifest[2])
	require.NoError(t, err)

	// A category marked without any manifest, and a manifest without a mark.
	require.NoError(t, store.SaveJSON(ctx, f.kv, downloadedKey, []string{"B", "C", "ghost"}))
	manifests := f.d.loadManifests(ctx)
	manifests["orphan"] = []string{}
	require.NoError(t, store.SaveJSON(ctx, f.kv, manifestsKey, manifests))

	got := f.d.Reconcile(ctx)
	assert.Equal(t, map[string]bool{"C": true}, got)
	_, ok := f.d.Manifest(ctx, "B")
	assert.False(t, ok)
	assert.False(t, got["orphan"], "reconcile never promotes")
}

func TestReconcile_MalformedStateIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.kv.Set(ctx, downloadedKey, []byte(`{"B":true}`)))
	require.NoError(t, f.kv.Set(ctx, manifestsKey, []byte(`[`)))

	assert.Empty(t, f.d.Downloaded(ctx))
	assert.Empty(t, f.d.Reconcile(ctx))
}

func TestReconciler_RunOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, store.SaveJSON(ctx, f.kv, downloadedKey, []string{"ghost"}))

	NewReconciler(f.d, 0, zerolog.Nop()).Run(ctx)
	assert.Empty(t, f.d.Downloaded(ctx))
}

func TestMediaURLsAreCacheKeys(t *testing.T) {
	f := newFixture(t)
	f.provider["S"] = &content.CategoryData{Category: "S", Questions: []content.Question{{
		ID: 1, Correct: content.AnswerYes,
		Media: &content.Media{ID: "znak A-1 (nowy).mp4", Kind: content.MediaVideo},
	}}}
	ctx := context.Background()

	res, err := f.d.Download(ctx, "S", nil)
	require.NoError(t, err)
	require.True(t, res.Success)
	manifest, _ := f.d.Manifest(ctx, "S")
	require.Len(t, manifest, 1)
	assert.True(t, strings.Contains(manifest[0], "/media/vid/"))
	assert.True(t, f.d.Reconcile(ctx)["S"])
}

func TestPreloader_WarmsMediaCache(t *testing.T) {
	f := newFixture(t)
	p := NewPreloader(f.d)
	m := content.Media{ID: "look_ahead.jpg", Kind: content.MediaImage}

	p.Preload(m)
	p.Preload(m)
	p.Wait()

	e, err := f.mediaCache(t).Match(context.Background(), content.MediaURL(f.srv.URL+"/media", m))
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.LessOrEqual(t, f.media.count(), 2)

	p.Preload(m)
	p.Wait()
	assert.LessOrEqual(t, f.media.count(), 2, "cached media is served by the worker")
}
