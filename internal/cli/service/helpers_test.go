package service

import (
	"archive/zip"
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"MDShelf/internal/cli/codec"
	"MDShelf/internal/cli/model"
	"MDShelf/internal/cli/store"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Мок удалённого эндпоинта ---
type remoteMock struct{ mock.Mock }

func (m *remoteMock) Push(ctx context.Context, item model.SyncQueueItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

var _ Remote = (*remoteMock)(nil)

// statusRecorder собирает статусы, переданные через StatusFunc.
type statusRecorder struct {
	mu   sync.Mutex
	msgs map[string][]string
}

func (r *statusRecorder) fn() StatusFunc {
	return func(kind, message string) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.msgs == nil {
			r.msgs = map[string][]string{}
		}
		r.msgs[kind] = append(r.msgs[kind], message)
	}
}

func (r *statusRecorder) get(kind string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs[kind]...)
}

func newStores(t *testing.T) *store.Manager {
	t.Helper()
	m, err := store.NewManager(store.Options{Migrations: Migrations(), OpTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

var testStore = store.Config{Name: "ShelfDB"}

// zipBlob собирает zip-архив из пар путь → содержимое.
func zipBlob(t *testing.T, name string, files map[string]string) codec.Blob {
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
	b := buf.Bytes()
	return codec.Blob{Name: name, Size: int64(len(b)), R: bytes.NewReader(b)}
}
