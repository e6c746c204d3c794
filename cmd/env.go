package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/prawko/prawko/internal/config"
	"github.com/prawko/prawko/internal/content"
	"github.com/prawko/prawko/internal/history"
	"github.com/prawko/prawko/internal/logging"
	"github.com/prawko/prawko/internal/netcache"
	"github.com/prawko/prawko/internal/offline"
	"github.com/prawko/prawko/internal/rescache"
	"github.com/prawko/prawko/internal/store"
)

// env is the wiring shared by every command: persistence, the caching
// worker in front of the network and the services built on top of it.
type env struct {
	cfg *config.Config
	log zerolog.Logger

	store   *store.Store
	redis   *redis.Client
	storage rescache.Storage

	worker  *netcache.Worker
	content *content.Client
	// client routes through the worker; network bypasses it.
	client  *http.Client
	network *http.Client

	offline *offline.Downloader
	history *history.Store
}

// openEnv builds the shared services, loading the configuration when cfg
// is nil. Logs go to logOut, or stderr when nil.
func openEnv(cmd *cobra.Command, cfg *config.Config, logOut io.Writer) (*env, error) {
	var err error
	if cfg == nil {
		if cfg, err = loadConfig(cmd); err != nil {
			return nil, err
		}
	}
	log := logging.Setup(cfg.LogLevel, cfg.LogFormat, logOut)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	e := &env{cfg: cfg, log: log, store: st}

	switch cfg.CacheBackend {
	case "redis":
		rdb, err := rescache.NewRedisClient(cmd.Context(), cfg.RedisURL, log)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.redis = rdb
		e.storage = rescache.NewRedisStorage(rdb, "prawko")
	default:
		e.storage = rescache.NewSQLiteStorage(st)
	}

	e.network = &http.Client{Timeout: cfg.HTTPTimeout}
	e.worker, err = netcache.NewWorker(e.storage, netcache.NewNotifier(), netcache.Options{
		Origin:     cfg.DataURL,
		MediaHosts: cfg.MediaHosts,
		Version:    cfg.CacheVersion,
		MediaLimit: cfg.MediaCacheLimit,
		Log:        log,
	})
	if err != nil {
		e.Close()
		return nil, err
	}
	e.client = &http.Client{Transport: e.worker, Timeout: cfg.HTTPTimeout}

	e.content, err = content.NewClient(cfg.DataURL, e.client, log)
	if err != nil {
		e.Close()
		return nil, err
	}

	kv := st.KV()
	e.offline = offline.New(offline.Options{
		KV:           kv,
		Content:      e.content,
		Client:       e.client,
		Storage:      e.storage,
		MediaCache:   e.worker.MediaCache(),
		MediaBaseURL: cfg.MediaBaseURL,
		BatchSize:    cfg.DownloadBatchSize,
		Log:          log,
	})
	e.history = history.New(kv, log)
	return e, nil
}

// Close waits for background revalidations and releases connections.
func (e *env) Close() {
	if e.worker != nil {
		e.worker.Wait()
	}
	if e.redis != nil {
		e.redis.Close()
	}
	e.store.Close()
}

// fetchMeta loads meta.json with a bounded wait.
func (e *env) fetchMeta(ctx context.Context) (*content.Meta, error) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.HTTPTimeout)
	defer cancel()
	return e.content.FetchMeta(ctx)
}
