package netcache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prawko/prawko/internal/rescache"
)

// origin is a fake content server with mutable bodies.
type origin struct {
	mu     sync.Mutex
	bodies map[string]string
	hits   map[string]int
}

func newOrigin() *origin {
	return &origin{bodies: map[string]string{}, hits: map[string]int{}}
}

func (o *origin) set(path, body string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.bodies[path] = body
}

func (o *origin) count(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

func (o *origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.hits[r.URL.Path]++
	body, ok := o.bodies[r.URL.Path]
	o.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	io.WriteString(w, body)
}

// flakyTransport fails every request while down is set.
type flakyTransport struct {
	down atomic.Bool
}

func (f *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.down.Load() {
		return nil, errors.New("network down")
	}
	return http.DefaultTransport.RoundTrip(req)
}

type fixture struct {
	origin    *origin
	srv       *httptest.Server
	transport *flakyTransport
	storage   *rescache.MemoryStorage
	worker    *Worker
	client    *http.Client
}

func newFixture(t *testing.T, mutate func(*Options)) *fixture {
	t.Helper()
	f := &fixture{origin: newOrigin(), transport: &flakyTransport{}, storage: rescache.NewMemoryStorage()}
	f.srv = httptest.NewServer(f.origin)
	t.Cleanup(f.srv.Close)

	opts := Options{
		Origin:     f.srv.URL + "/",
		MediaHosts: []string{"backblazeb2.com"},
		Version:    "v2",
		MediaLimit: 500,
		Shell:      []string{"", "index.html"},
		Transport:  f.transport,
		Log:        zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	w, err := NewWorker(f.storage, nil, opts)
	require.NoError(t, err)
	f.worker = w
	f.client = &http.Client{Transport: w}
	return f
}

func (f *fixture) get(t *testing.T, path string) (int, string, error) {
	t.Helper()
	resp, err := f.client.Get(f.srv.URL + path)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b), nil
}

func (f *fixture) cacheLen(t *testing.T, name string) int {
	t.Helper()
	c, err := f.storage.Open(context.Background(), name)
	require.NoError(t, err)
	n, err := c.Len(context.Background())
	require.NoError(t, err)
	return n
}

func TestClassify(t *testing.T) {
	w, err := NewWorker(rescache.NewMemoryStorage(), nil, Options{
		Origin:     "https://prawko.example/app/",
		MediaHosts: []string{"backblazeb2.com"},
	})
	require.NoError(t, err)

	tests := []struct {
		method string
		url    string
		want   Class
	}{
		{"GET", "https://prawko.example/app/data/B.json", ClassData},
		{"GET", "https://prawko.example/app/data/i18n/en/B.json", ClassData},
		{"GET", "https://prawko.example/app/data/meta.json", ClassShell},
		{"GET", "https://prawko.example/app/data/", ClassShell},
		{"GET", "https://prawko.example/app/index.html", ClassShell},
		{"GET", "https://prawko.example/app/media/img/a.jpg", ClassMedia},
		{"GET", "https://f003.backblazeb2.com/file/prawko/img/a.jpg", ClassMedia},
		{"GET", "https://elsewhere.example/data/B.json", ClassNone},
		{"GET", "http://prawko.example/app/data/B.json", ClassNone},
		{"POST", "https://prawko.example/app/data/B.json", ClassNone},
		{"GET", "ftp://prawko.example/app/data/B.json", ClassNone},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.url, nil)
		assert.Equal(t, tt.want, w.Classify(req), "%s %s", tt.method, tt.url)
	}
}

func TestData_StaleWhileRevalidate(t *testing.T) {
	f := newFixture(t, nil)
	events, unsubscribe := f.worker.Notifier().Subscribe(4)
	defer unsubscribe()

	f.origin.set("/data/B.json", `{"v":1}`)
	_, body, err := f.get(t, "/data/B.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, body)
	f.worker.Wait()
	assert.Empty(t, events, "first fetch has nothing to compare against")

	f.origin.set("/data/B.json", `{"v":2}`)
	_, body, err = f.get(t, "/data/B.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, body, "stale copy served first")

	f.worker.Wait()
	select {
	case e := <-events:
		assert.Equal(t, EventDataUpdated, e.Type)
		assert.Equal(t, f.srv.URL+"/data/B.json", e.URL)
	default:
		t.Fatal("expected data-updated event")
	}

	_, body, err = f.get(t, "/data/B.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":2}`, body)
	f.worker.Wait()
	assert.Empty(t, events, "unchanged body does not notify")
	assert.Equal(t, 3, f.origin.count("/data/B.json"))
}

func TestData_NetworkFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.origin.set("/data/B.json", `{"v":1}`)
	_, _, err := f.get(t, "/data/B.json")
	require.NoError(t, err)
	f.worker.Wait()

	f.transport.down.Store(true)
	_, body, err := f.get(t, "/data/B.json")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, body)
	f.worker.Wait()

	_, _, err = f.get(t, "/data/C.json")
	assert.Error(t, err, "nothing cached, failure propagates")
}

func TestData_ErrorsAreNotCached(t *testing.T) {
	f := newFixture(t, nil)
	status, _, err := f.get(t, "/data/missing.json")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Zero(t, f.cacheLen(t, f.worker.DataCache()))
}

func TestShell_InstallAndRootFallback(t *testing.T) {
	f := newFixture(t, nil)
	f.origin.set("/", "root")
	f.origin.set("/index.html", "<html>app</html>")

	require.NoError(t, f.worker.Install(context.Background()))
	assert.Equal(t, 2, f.cacheLen(t, f.worker.ShellCache()))

	f.transport.down.Store(true)
	_, body, err := f.get(t, "/index.html")
	require.NoError(t, err)
	assert.Equal(t, "<html>app</html>", body)

	_, body, err = f.get(t, "/learn/B")
	require.NoError(t, err)
	assert.Equal(t, "<html>app</html>", body, "unknown path falls back to the root document")
	f.worker.Wait()
}

func TestShell_UpdateNotifies(t *testing.T) {
	f := newFixture(t, nil)
	events, unsubscribe := f.worker.Notifier().Subscribe(4)
	defer unsubscribe()
	f.origin.set("/", "root")
	f.origin.set("/index.html", "one")
	require.NoError(t, f.worker.Install(context.Background()))

	f.origin.set("/index.html", "two")
	_, body, err := f.get(t, "/index.html")
	require.NoError(t, err)
	assert.Equal(t, "one", body)
	f.worker.Wait()

	require.Len(t, events, 1)
	assert.Equal(t, EventShellUpdated, (<-events).Type)
}

func TestInstall_AllOrNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.origin.set("/", "root")

	err := f.worker.Install(context.Background())
	assert.ErrorIs(t, err, ErrInstall)
	assert.Zero(t, f.cacheLen(t, f.worker.ShellCache()))
}

func TestMedia_CacheFirst(t *testing.T) {
	f := newFixture(t, nil)
	f.origin.set("/media/img/a.jpg", "A")

	for range 3 {
		status, body, err := f.get(t, "/media/img/a.jpg")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, "A", body)
	}
	assert.Equal(t, 1, f.origin.count("/media/img/a.jpg"))
}

func TestMedia_Unavailable(t *testing.T) {
	f := newFixture(t, nil)
	f.transport.down.Store(true)

	status, _, err := f.get(t, "/media/img/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestMedia_EvictsOldestBeyondLimit(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.MediaLimit = 3 })
	names := []string{"a", "b", "c", "d", "e"}
	for _, n := range names {
		f.origin.set("/media/img/"+n+".jpg", n)
	}

	for _, n := range names {
		_, _, err := f.get(t, "/media/img/"+n+".jpg")
		require.NoError(t, err)
		assert.LessOrEqual(t, f.cacheLen(t, f.worker.MediaCache()), 3)
	}

	c, err := f.storage.Open(context.Background(), f.worker.MediaCache())
	require.NoError(t, err)
	keys, err := c.Keys(context.Background())
	require.NoError(t, err)
	want := []string{
		f.srv.URL + "/media/img/c.jpg",
		f.srv.URL + "/media/img/d.jpg",
		f.srv.URL + "/media/img/e.jpg",
	}
	assert.Equal(t, want, keys)
}

func TestPassThrough(t *testing.T) {
	f := newFixture(t, nil)
	f.origin.set("/data/B.json", "x")

	resp, err := f.client.Post(f.srv.URL+"/data/B.json", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Zero(t, f.cacheLen(t, f.worker.DataCache()))
}

func TestActivate_DeletesOtherVersions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, name := range []string{"prawko-v1-shell", "prawko-v1-media", "prawko-v2-data", "other-cache"} {
		_, err := f.storage.Open(ctx, name)
		require.NoError(t, err)
	}

	deleted, err := f.worker.Activate(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"prawko-v1-shell", "prawko-v1-media"}, deleted)

	names, err := f.storage.Names(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"prawko-v2-data", "other-cache"}, names)
}

func TestNotifier_UnsubscribeCloses(t *testing.T) {
	n := NewNotifier()
	ch, unsubscribe := n.Subscribe(1)
	n.Publish(Event{Type: EventDataUpdated})
	n.Publish(Event{Type: EventDataUpdated}) // dropped, buffer full
	unsubscribe()
	unsubscribe()

	var got []Event
	for e := range ch {
		got = append(got, e)
	}
	assert.Len(t, got, 1)
	assert.Zero(t, n.Subscribers())
}

func TestServer(t *testing.T) {
	f := newFixture(t, nil)
	f.origin.set("/data/B.json", `{"v":1}`)
	api := httptest.NewServer(NewServer(f.worker, ServerOptions{Log: zerolog.Nop()}))
	defer api.Close()

	resp, err := http.Get(api.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(api.URL + "/data/B.json")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, `{"v":1}`, string(body))
	f.worker.Wait()

	wsURL := "ws" + strings.TrimPrefix(api.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.worker.Notifier().Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.origin.set("/data/B.json", `{"v":2}`)
	resp, err = http.Get(api.URL + "/data/B.json")
	require.NoError(t, err)
	resp.Body.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var e Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, EventDataUpdated, e.Type)
	f.worker.Wait()
}

func TestServerRefusesForeignHosts(t *testing.T) {
	f := newFixture(t, nil)
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("intranet"))
	}))
	defer foreign.Close()
	api := httptest.NewServer(NewServer(f.worker, ServerOptions{Log: zerolog.Nop()}))
	defer api.Close()

	for _, path := range []string{"/x", "/media/img/a.jpg", "/data/B.json"} {
		resp, err := http.Get(api.URL + "/" + foreign.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.NotContains(t, string(body), "intranet", path)
	}
}
