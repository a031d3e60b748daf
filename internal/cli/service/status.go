package service

import (
	"context"
	"fmt"

	"MDShelf/internal/cli/store"

	"go.uber.org/zap"
)

// StatusFunc получает человекочитаемые статусы (kind, message). nil: тихий режим.
type StatusFunc func(kind, message string)

// Виды статусов.
const (
	StatusStoreOpen     = "store-open"
	StatusImport        = "import"
	StatusError         = "error"
	StatusSync          = "sync"
	StatusSyncAbandoned = "sync-abandoned"
)

func (f StatusFunc) emit(kind, format string, args ...any) {
	if f == nil {
		return
	}
	f(kind, fmt.Sprintf(format, args...))
}

func nopLogger(l *zap.SugaredLogger) *zap.SugaredLogger {
	if l == nil {
		return zap.NewNop().Sugar()
	}
	return l
}

// opener открывает хранилище через общий менеджер и сообщает о первом открытии.
type opener struct {
	stores *store.Manager
	cfg    store.Config
	status StatusFunc
	logger *zap.SugaredLogger
}

func (o opener) open(ctx context.Context) (*store.Handle, error) {
	fresh := o.stores.State(o.cfg.Name) != store.StateOpen
	h, err := o.stores.Open(ctx, o.cfg)
	if err != nil {
		o.status.emit(StatusError, "store %s: %v", o.cfg.Name, err)
		return nil, err
	}
	if fresh {
		o.logger.Infow("store open", "store", h.Name(), "version", h.Version(), "table", h.StoreName())
		o.status.emit(StatusStoreOpen, "store %s v%d is open", h.Name(), h.Version())
	}
	return h, nil
}
