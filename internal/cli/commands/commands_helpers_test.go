package commands

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"MDShelf/internal/cli/bootstrap"
	"MDShelf/internal/config"

	"github.com/stretchr/testify/require"
)

// testConfig возвращает конфигурацию клиента, все файлы которой лежат во временном каталоге.
func testConfig(t *testing.T, serverURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	if serverURL == "" {
		serverURL = "http://127.0.0.1:1"
	}
	return &config.Config{
		ServerURL:       serverURL,
		ClientDBPath:    filepath.Join(dir, "db"),
		TokenFile:       filepath.Join(dir, "auth_token"),
		LogLevel:        "error",
		StoreName:       config.DefaultStoreName,
		OpTimeout:       5 * time.Second,
		SyncMaxAttempts: config.DefaultSyncMaxAttempts,
		CacheVersion:    "v1",
		CachePrefix:     "shelf",
		CacheBackend:    "sqlite",
	}
}

// withOptions подменяет openApp на время теста.
func withOptions(t *testing.T, opts bootstrap.Options) {
	t.Helper()
	old := openApp
	opts.Status = printStatus
	openApp = func(ctx context.Context, cfg *config.Config) (*bootstrap.App, error) {
		return bootstrap.Open(ctx, cfg, opts)
	}
	t.Cleanup(func() { openApp = old })
}

// withOnline: сеть считается online/offline без проверки сервера.
func withOnline(t *testing.T, online bool) {
	t.Helper()
	withOptions(t, bootstrap.Options{Online: &online})
}

// syncBuffer — writer, безопасный для записи из фоновых горутин.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// перехват stdout на время теста
func withStdoutCapture(t *testing.T, fn func()) string {
	t.Helper()
	buf := &syncBuffer{}
	defer SetOut(buf)()
	fn()
	return buf.String()
}

// run выполняет команду и возвращает её вывод.
func run(t *testing.T, cmd Command, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	var err error
	out := withStdoutCapture(t, func() {
		err = cmd.Run(context.Background(), cfg, args)
	})
	return out, err
}

// writeZip создаёт zip-архив из пар путь → содержимое.
func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for p, content := range files {
		w, err := zw.Create(p)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}
