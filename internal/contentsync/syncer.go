// Package contentsync refreshes the offline copy of the question bank:
// the app shell, meta.json and every category payload.
package contentsync

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/mod/semver"

	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/netcache"
	"github.com/prawko/prawko/internal/rescache"
	"github.com/prawko/prawko/internal/store"
)

var ErrChecksum = errors.New("checksum verification failed")

const versionKey = "content_version"

// Progress describes the current stage of a sync.
type Progress struct {
	Stage   string
	Message string
}

// Report summarizes a sync.
type Report struct {
	Version    string
	Previous   string
	Updated    bool
	Categories int
	Questions  int
	Removed    []string
}

// Syncer pulls content through the network worker so that every payload
// ends up in its caches.
type Syncer struct {
	worker  *netcache.Worker
	storage rescache.Storage
	content *content.Client
	kv      store.Backend
	// network bypasses the worker, for files that must not be cached.
	network *http.Client
	log     zerolog.Logger
}

// New returns a Syncer. network reaches the origin directly.
func New(worker *netcache.Worker, storage rescache.Storage, c *content.Client, kv store.Backend, network *http.Client, log zerolog.Logger) *Syncer {
	if network == nil {
		network = http.DefaultClient
	}
	return &Syncer{
		worker:  worker,
		storage: storage,
		content: c,
		kv:      kv,
		network: network,
		log:     log.With().Str("component", "contentsync").Logger(),
	}
}

// StoredVersion returns the content version of the last successful sync.
func (s *Syncer) StoredVersion(ctx context.Context) string {
	var v string
	store.LoadJSON(ctx, s.kv, versionKey, &v)
	return v
}

// Sync installs the shell, refreshes meta.json and all category payloads,
// verifies them against data/checksums.txt when the origin publishes one,
// and drops caches of other versions.
func (s *Syncer) Sync(ctx context.Context, progress func(Progress)) (*Report, error) {
	if progress == nil {
		progress = func(Progress) {}
	}

	progress(Progress{Stage: "install", Message: "Installing app shell..."})
	if err := s.worker.Install(ctx); err != nil {
		s.log.Warn().Err(err).Msg("shell not installed, continuing with content")
	}

	sums, err := s.checksums(ctx)
	if err != nil {
		return nil, fmt.Errorf("download checksums: %w", err)
	}

	progress(Progress{Stage: "check", Message: "Checking content version..."})
	rawMeta, err := s.load(ctx, s.worker.ShellCache(), s.content.MetaURL())
	if err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}
	if err := s.verify(ctx, s.worker.ShellCache(), s.content.MetaURL(), rawMeta, sums); err != nil {
		return nil, err
	}
	meta, err := content.DecodeMeta(rawMeta)
	if err != nil {
		return nil, fmt.Errorf("load meta: %w", err)
	}

	report := &Report{Version: meta.Version, Previous: s.StoredVersion(ctx)}
	report.Updated = isNewer(report.Version, report.Previous)

	for i, cat := range meta.Categories {
		progress(Progress{Stage: "download", Message: fmt.Sprintf("Downloading %s (%d/%d)...", cat.ID, i+1, len(meta.Categories))})
		u := s.content.CategoryURL(cat.ID)
		raw, err := s.load(ctx, s.worker.DataCache(), u)
		if err != nil {
			return report, fmt.Errorf("load category %s: %w", cat.ID, err)
		}
		if err := s.verify(ctx, s.worker.DataCache(), u, raw, sums); err != nil {
			return report, err
		}
		data, err := content.DecodeCategory(raw)
		if err != nil {
			return report, fmt.Errorf("load category %s: %w", cat.ID, err)
		}
		report.Categories++
		report.Questions += len(data.Questions)
	}

	progress(Progress{Stage: "activate", Message: "Removing old caches..."})
	removed, err := s.worker.Activate(ctx)
	if err != nil {
		return report, err
	}
	report.Removed = removed

	if report.Version != "" {
		if err := store.SaveJSON(ctx, s.kv, versionKey, report.Version); err != nil {
			return report, fmt.Errorf("save content version: %w", err)
		}
	}
	s.content.Invalidate()

	msg := "Content is up to date"
	if report.Updated {
		msg = fmt.Sprintf("Updated content to %s", report.Version)
	}
	progress(Progress{Stage: "done", Message: msg})
	s.log.Info().Str("version", report.Version).Str("previous", report.Previous).
		Int("categories", report.Categories).Msg("content synced")
	return report, nil
}

// load requests u through the worker, waits for background revalidation
// and returns the freshest copy in cacheName.
func (s *Syncer) load(ctx context.Context, cacheName, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.worker.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, u)
	}

	s.worker.Wait()
	cache, err := s.storage.Open(ctx, cacheName)
	if err != nil {
		return body, nil
	}
	if e, err := cache.Match(ctx, req.URL.String()); err == nil && e != nil {
		return e.Body, nil
	}
	return body, nil
}

// verify checks raw against the published sum for u's file name. A bad
// copy is evicted so it is not served offline.
func (s *Syncer) verify(ctx context.Context, cacheName, u string, raw []byte, sums map[string]string) error {
	name := path.Base(u)
	expected, ok := sums[name]
	if !ok {
		return nil
	}
	if err := verifyChecksum(raw, expected); err != nil {
		key := u
		if pu, perr := url.Parse(u); perr == nil {
			key = pu.String()
		}
		if cache, cerr := s.storage.Open(ctx, cacheName); cerr == nil {
			cache.Delete(ctx, key)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// checksums downloads data/checksums.txt. A missing file is not an error.
func (s *Syncer) checksums(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.content.ChecksumsURL(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.network.Do(req)
	if err != nil {
		s.log.Debug().Err(err).Msg("checksums unavailable")
		return nil, nil
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, s.content.ChecksumsURL())
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseChecksums(data), nil
}

func parseChecksums(data []byte) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}
		result[parts[1]] = parts[0]
	}
	return result
}

func verifyChecksum(data []byte, expectedHex string) error {
	h := sha256.Sum256(data)
	actual := hex.EncodeToString(h[:])
	if actual != strings.ToLower(expectedHex) {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksum, expectedHex, actual)
	}
	return nil
}

// isNewer reports whether latest should replace current. Versions that
// are not semver compare by inequality.
func isNewer(latest, current string) bool {
	if latest == "" {
		return false
	}
	if current == "" {
		return true
	}
	l, c := canonical(latest), canonical(current)
	if semver.IsValid(l) && semver.IsValid(c) {
		return semver.Compare(l, c) > 0
	}
	return latest != current
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
