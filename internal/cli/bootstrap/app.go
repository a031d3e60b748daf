// Package bootstrap собирает клиентские компоненты из конфигурации.
package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"MDShelf/internal/cli/api"
	"MDShelf/internal/cli/netstatus"
	"MDShelf/internal/cli/offline"
	fsrepo "MDShelf/internal/cli/repo/fs"
	"MDShelf/internal/cli/service"
	"MDShelf/internal/cli/store"
	"MDShelf/internal/config"

	"go.uber.org/zap"
)

// CoreResources — ресурсы веб-оболочки, предзагружаемые при установке кэша.
var CoreResources = []string{"/", "/static/app.css", "/static/app.js", "/static/icon.svg"}

// OfflinePage — страница, отдаваемая при недоступной навигации.
const OfflinePage = "/offline.html"

// App — собранный клиент. Close освобождает хранилища.
type App struct {
	Cfg      *config.Config
	Logger   *zap.SugaredLogger
	Stores   *store.Manager
	Library  *service.Library
	Sync     *service.SyncEngine
	Articles *service.ArticleService
	Cache    *offline.Worker
	Net      *netstatus.Monitor
	Prober   *netstatus.Prober
	Auth     fsrepo.AuthFSStore
	HTTP     *http.Client

	closers []func() error
}

// Options позволяет подменить части App в тестах.
type Options struct {
	Logger    *zap.SugaredLogger
	Status    service.StatusFunc
	Transport http.RoundTripper
	// Online — начальное состояние сети; nil: проверить сервер.
	Online *bool
}

// NewLogger создаёт логгер CLI с уровнем level (debug|info|warn|error).
func NewLogger(level string) (*zap.SugaredLogger, error) {
	zcfg := zap.NewProductionConfig()
	zcfg.Encoding = "console"
	zcfg.OutputPaths = []string{"stderr"}
	if level != "" {
		if err := zcfg.Level.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
			return nil, err
		}
	}
	l, err := zcfg.Build()
	if err != nil {
		return nil, err
	}
	return l.Sugar(), nil
}

// Open собирает App по конфигурации.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	app := &App{Cfg: cfg, Logger: logger, Auth: fsrepo.AuthFSStore{TokenPath: cfg.TokenFile}}

	stores, err := store.NewManager(store.Options{
		Dir:        cfg.ClientDBPath,
		Migrations: service.Migrations(),
		OpTimeout:  cfg.OpTimeout,
		Logger:     logger.Named("store"),
	})
	if err != nil {
		return nil, err
	}
	app.Stores = stores
	app.closers = append(app.closers, stores.Close)

	cacheStorage, err := openCacheStorage(cfg)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if c, ok := cacheStorage.(interface{ Close() error }); ok {
		app.closers = append(app.closers, c.Close)
	}
	next := opts.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	worker, err := offline.New(offline.Options{
		Prefix:        cfg.CachePrefix,
		Version:       cfg.CacheVersion,
		BaseURL:       cfg.ServerURL,
		CoreResources: CoreResources,
		OfflinePage:   OfflinePage,
		TrustedHosts:  cfg.CacheTrustedHosts,
		Storage:       cacheStorage,
		Transport:     next,
		Timeout:       cfg.OpTimeout,
		Logger:        logger.Named("cache"),
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Cache = worker
	app.HTTP = &http.Client{Transport: worker, Timeout: cfg.OpTimeout}

	// установленное поколение сразу берёт управление, как после перезапуска
	if installed, err := worker.Installed(ctx); err == nil && installed {
		if _, err := worker.Activate(ctx); err != nil {
			logger.Warnw("cache activate failed", "error", err)
		}
	}

	app.Net = netstatus.NewMonitor(false)
	app.Prober = &netstatus.Prober{
		Monitor: app.Net,
		Client:  &http.Client{Transport: next},
		URL:     cfg.ServerURL + "/ping",
		Timeout: cfg.OpTimeout,
		Logger:  logger.Named("net"),
	}
	if opts.Online != nil {
		app.Net.Set(*opts.Online)
	} else {
		app.Prober.Check(ctx)
	}

	storeCfg := store.Config{Name: cfg.StoreName, Version: cfg.StoreVersion}
	remote := &api.ArticlesRemote{BaseURL: cfg.ServerURL, Client: app.HTTP, Tokens: app.Auth}
	app.Library = service.NewLibrary(stores, storeCfg, nil, logger.Named("library"), opts.Status)
	app.Sync = service.NewSyncEngine(stores, storeCfg, remote, app.Net, service.SyncOptions{
		MaxAttempts: cfg.SyncMaxAttempts,
		Logger:      logger.Named("sync"),
		Status:      opts.Status,
	})
	app.Articles = service.NewArticleService(stores, storeCfg, app.Sync, logger.Named("articles"), opts.Status)
	return app, nil
}

func openCacheStorage(cfg *config.Config) (offline.Storage, error) {
	if cfg.CacheBackend == "memory" || cfg.ClientDBPath == "" {
		return offline.NewMemoryStorage(1024)
	}
	if err := os.MkdirAll(cfg.ClientDBPath, 0o700); err != nil {
		return nil, err
	}
	return offline.OpenSQLite(filepath.Join(cfg.ClientDBPath, "cache.sqlite"))
}

// Close останавливает синхронизацию и закрывает хранилища. Повторный вызов безопасен.
func (a *App) Close() error {
	if a.Sync != nil {
		a.Sync.Stop()
	}
	if a.Cache != nil {
		a.Cache.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
