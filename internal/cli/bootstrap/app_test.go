package bootstrap

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"MDShelf/internal/cli/model"
	"MDShelf/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ServerURL:       serverURL,
		ClientDBPath:    filepath.Join(dir, "db"),
		TokenFile:       filepath.Join(dir, "token"),
		StoreName:       config.DefaultStoreName,
		OpTimeout:       5 * time.Second,
		SyncMaxAttempts: 3,
		CacheVersion:    "v1",
		CachePrefix:     "shelf",
		CacheBackend:    "sqlite",
	}
}

func TestOpen_WiresComponents(t *testing.T) {
	offlineNow := false
	cfg := testConfig(t, "http://127.0.0.1:1")
	app, err := Open(context.Background(), cfg, Options{Online: &offlineNow})
	require.NoError(t, err)
	defer app.Close()

	assert.False(t, app.Net.Online())
	assert.False(t, app.Cache.Controlling())
	assert.Equal(t, 3, app.Sync.MaxAttempts())

	ctx := context.Background()
	_, err = app.Articles.Save(ctx, model.Article{Title: "offline draft"})
	require.NoError(t, err)
	pending, err := app.Sync.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	// файлы хранилища и кэша лежат в CLIENT_DB_PATH
	_, err = os.Stat(filepath.Join(cfg.ClientDBPath, config.DefaultStoreName+".sqlite"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.ClientDBPath, "cache.sqlite"))
	assert.NoError(t, err)

	assert.NoError(t, app.Close())
	assert.NoError(t, app.Close())
}

func TestOpen_ProbesServerAndActivatesInstalledCache(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()
	cfg := testConfig(t, ts.URL)
	cfg.CacheBackend = "sqlite"

	app, err := Open(context.Background(), cfg, Options{})
	require.NoError(t, err)
	assert.True(t, app.Net.Online())
	require.NoError(t, app.Cache.Install(context.Background()))
	require.NoError(t, app.Close())

	// при следующем запуске установленное поколение активируется сразу
	app, err = Open(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer app.Close()
	assert.True(t, app.Cache.Controlling())
}

func TestOpen_MemoryCacheBackend(t *testing.T) {
	online := false
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.CacheBackend = "memory"
	app, err := Open(context.Background(), cfg, Options{Online: &online})
	require.NoError(t, err)
	defer app.Close()
	_, err = os.Stat(filepath.Join(cfg.ClientDBPath, "cache.sqlite"))
	assert.True(t, os.IsNotExist(err))
}

func TestOpen_NilConfig(t *testing.T) {
	_, err := Open(context.Background(), nil, Options{})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("debug")
	require.NoError(t, err)
	assert.NotNil(t, l)
	_, err = NewLogger("loud")
	assert.Error(t, err)
}
