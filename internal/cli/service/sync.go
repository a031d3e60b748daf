package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"MDShelf/internal/apperr"
	"MDShelf/internal/cli/model"
	"MDShelf/internal/cli/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SyncQueueTable — логическая таблица очереди синхронизации.
const SyncQueueTable = "syncQueue"

// DefaultMaxAttempts — потолок попыток отправки одного элемента.
const DefaultMaxAttempts = 3

// Remote выполняет сетевую операцию элемента очереди. nil: сервер подтвердил.
type Remote interface {
	Push(ctx context.Context, item model.SyncQueueItem) error
}

// Connectivity — признак online и подписка на его изменения.
type Connectivity interface {
	Online() bool
	Subscribe(fn func(online bool)) (unsubscribe func())
}

// SyncOptions — параметры движка синхронизации.
type SyncOptions struct {
	MaxAttempts int
	Logger      *zap.SugaredLogger
	Status      StatusFunc
}

// DrainResult — итог одного прохода по очереди.
type DrainResult struct {
	Sent      int // подтверждены и удалены
	Failed    int // неудачные попытки в этом проходе
	Abandoned int // элементы на потолке попыток после прохода
}

// SyncEngine — офлайн-очередь изменений. Элементы отправляются по одному в порядке
// поступления; неудача увеличивает attempts и не прерывает проход. Элемент, достигший
// потолка, больше не отправляется, остаётся в очереди и сообщается через статус
// sync-abandoned до явного Retry или Purge.
type SyncEngine struct {
	opener
	remote      Remote
	net         Connectivity
	maxAttempts int
	now         func() time.Time
	group       singleflight.Group

	mu     sync.Mutex
	unsub  func()
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSyncEngine создаёт движок поверх хранилища storeCfg.Name. Пустой StoreName: "syncQueue".
func NewSyncEngine(stores *store.Manager, storeCfg store.Config, remote Remote, net Connectivity, opts SyncOptions) *SyncEngine {
	if storeCfg.StoreName == "" {
		storeCfg.StoreName = SyncQueueTable
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return &SyncEngine{
		opener:      opener{stores: stores, cfg: storeCfg, status: opts.Status, logger: nopLogger(opts.Logger)},
		remote:      remote,
		net:         net,
		maxAttempts: opts.MaxAttempts,
		now:         time.Now,
	}
}

// MaxAttempts возвращает потолок попыток.
func (e *SyncEngine) MaxAttempts() int { return e.maxAttempts }

func (e *SyncEngine) queue(ctx context.Context) (*store.Table[model.SyncQueueItem, *model.SyncQueueItem], error) {
	h, err := e.open(ctx)
	if err != nil {
		return nil, err
	}
	return store.TableOf[model.SyncQueueItem](h, h.StoreName())
}

// Enqueue ставит изменение в очередь и, если сеть доступна, сразу запускает проход.
// Ошибки отправки не возвращаются: они остаются в очереди.
func (e *SyncEngine) Enqueue(ctx context.Context, typ model.MutationType, payload any) (int64, error) {
	if !typ.Valid() {
		return 0, apperr.New(apperr.KindInvalid, "enqueue", "unknown mutation type %q", typ)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInvalid, "enqueue", err)
	}
	tbl, err := e.queue(ctx)
	if err != nil {
		return 0, err
	}
	item := model.SyncQueueItem{
		Type:           typ,
		Data:           data,
		Timestamp:      e.now().UTC(),
		IdempotencyKey: uuid.NewString(),
	}
	id, err := tbl.Add(ctx, &item)
	if err != nil {
		return 0, err
	}
	e.logger.Debugw("sync item queued", "id", id, "type", typ)
	e.drainQueued(ctx, tbl, id)
	return id, nil
}

// drainQueued отправляет только что добавленный элемент. Проход, начатый до Add,
// элемент не видит: если после него элемент не тронут, запускается ещё один проход.
// Проход, начатый после Add, элемент уже включает, поэтому двух вызовов достаточно.
func (e *SyncEngine) drainQueued(ctx context.Context, tbl *store.Table[model.SyncQueueItem, *model.SyncQueueItem], id int64) {
	for pass := 0; pass < 2; pass++ {
		if e.net == nil || !e.net.Online() {
			return
		}
		if _, err := e.Drain(ctx); err != nil {
			e.logger.Warnw("drain after enqueue failed", "error", err)
			return
		}
		it, err := tbl.Get(ctx, id)
		if err != nil || it.Attempts > 0 {
			// отправлен и удалён либо попытка уже учтена
			return
		}
	}
}

// Start подписывается на переход offline → online и запускает проход при каждом переходе.
func (e *SyncEngine) Start(ctx context.Context) {
	if e.net == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unsub != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.unsub = e.net.Subscribe(func(online bool) {
		if !online || ctx.Err() != nil {
			return
		}
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			if _, err := e.Drain(ctx); err != nil {
				e.logger.Warnw("drain on reconnect failed", "error", err)
			}
		}()
	})
}

// Stop отписывается от сети и дожидается запущенных проходов.
func (e *SyncEngine) Stop() {
	e.mu.Lock()
	unsub, cancel := e.unsub, e.cancel
	e.unsub, e.cancel = nil, nil
	e.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	if cancel != nil {
		cancel()
	}
	e.wg.Wait()
}

// Drain выполняет один проход по очереди. Параллельные вызовы разделяют один проход.
// Ошибка возвращается только если очередь не удалось прочитать.
func (e *SyncEngine) Drain(ctx context.Context) (DrainResult, error) {
	v, err, _ := e.group.Do("drain", func() (any, error) {
		return e.drain(ctx)
	})
	if err != nil {
		return DrainResult{}, err
	}
	return v.(DrainResult), nil
}

func (e *SyncEngine) drain(ctx context.Context) (DrainResult, error) {
	var res DrainResult
	skipped := 0
	tbl, err := e.queue(ctx)
	if err != nil {
		return res, err
	}
	items, err := tbl.GetAll(ctx)
	if err != nil {
		return res, err
	}
	for _, it := range items {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if it.Abandoned(e.maxAttempts) {
			res.Abandoned++
			skipped++
			continue
		}
		pushErr := e.remote.Push(ctx, it)
		if pushErr == nil {
			// элемент мог быть удалён параллельно (Purge): это не ошибка
			if err := tbl.Delete(ctx, it.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
				e.logger.Errorw("sync item delete failed", "id", it.ID, "error", err)
			}
			res.Sent++
			continue
		}

		it.Attempts++
		it.Timestamp = e.now().UTC()
		it.LastError = pushErr.Error()
		res.Failed++
		if err := tbl.Replace(ctx, &it); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			e.logger.Errorw("sync item requeue failed", "id", it.ID, "error", err)
		}
		e.logger.Warnw("sync item failed", "id", it.ID, "type", it.Type, "attempts", it.Attempts, "error", pushErr)
		if it.Abandoned(e.maxAttempts) {
			res.Abandoned++
			e.status.emit(StatusSyncAbandoned, "%s #%d abandoned after %d attempts: %v", it.Type, it.ID, it.Attempts, pushErr)
		}
	}
	if res.Sent > 0 || res.Failed > 0 {
		e.status.emit(StatusSync, "sync: %d sent, %d failed", res.Sent, res.Failed)
	}
	// о достигших потолка в этом проходе уже сообщено по отдельности
	if skipped > 0 {
		e.status.emit(StatusSyncAbandoned, "%d change(s) stopped retrying; use queue --retry=<id> or queue --purge", skipped)
	}
	return res, nil
}

// Pending возвращает элементы, которые ещё будут отправляться.
func (e *SyncEngine) Pending(ctx context.Context) ([]model.SyncQueueItem, error) {
	return e.filter(ctx, func(it model.SyncQueueItem) bool { return !it.Abandoned(e.maxAttempts) })
}

// Abandoned возвращает элементы, исчерпавшие попытки.
func (e *SyncEngine) Abandoned(ctx context.Context) ([]model.SyncQueueItem, error) {
	return e.filter(ctx, func(it model.SyncQueueItem) bool { return it.Abandoned(e.maxAttempts) })
}

func (e *SyncEngine) filter(ctx context.Context, keep func(model.SyncQueueItem) bool) ([]model.SyncQueueItem, error) {
	tbl, err := e.queue(ctx)
	if err != nil {
		return nil, err
	}
	items, err := tbl.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.SyncQueueItem, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Retry сбрасывает счётчик попыток элемента, возвращая его в очередь.
func (e *SyncEngine) Retry(ctx context.Context, id int64) error {
	tbl, err := e.queue(ctx)
	if err != nil {
		return err
	}
	it, err := tbl.Get(ctx, id)
	if err != nil {
		return err
	}
	it.Attempts = 0
	it.LastError = ""
	it.Timestamp = e.now().UTC()
	return tbl.Replace(ctx, it)
}

// Purge удаляет брошенные элементы и возвращает их число.
func (e *SyncEngine) Purge(ctx context.Context) (int, error) {
	abandoned, err := e.Abandoned(ctx)
	if err != nil {
		return 0, err
	}
	tbl, err := e.queue(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, it := range abandoned {
		if err := tbl.Delete(ctx, it.ID); err != nil {
			if errors.Is(err, apperr.ErrNotFound) {
				continue
			}
			return n, err
		}
		n++
	}
	if n > 0 {
		e.logger.Infow("abandoned sync items purged", "count", n)
	}
	return n, nil
}
