// Package offline — слой кэширования исходящих GET-запросов с офлайн-резервом.
//
// Worker реализует http.RoundTripper. Ответы раскладываются по трём бакетам текущего
// поколения (static, dynamic, offline); при активации бакеты прошлых поколений удаляются.
package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Заголовки, которыми Worker помечает ответы не из сети.
const (
	HeaderCache    = "X-Shelf-Cache"    // hit
	HeaderFallback = "X-Shelf-Fallback" // offline-page | asset-unavailable | placeholder | network-error
)

// Виды резервных ответов.
const (
	FallbackOfflinePage      = "offline-page"
	FallbackAssetUnavailable = "asset-unavailable"
	FallbackPlaceholder      = "placeholder"
	FallbackNetworkError     = "network-error"
)

// PlaceholderSVG — изображение-заглушка для недоступных картинок.
const PlaceholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="64" height="64" viewBox="0 0 64 64"><rect width="64" height="64" fill="#e5e7eb"/><path d="M16 44l10-12 8 9 6-7 8 10z" fill="#9ca3af"/></svg>`

// installMarker — ключ в бакете offline, записываемый после полной установки поколения.
// Не является URL, поэтому с ответами не пересекается.
const installMarker = "shelf:install-complete"

// Names — имена бакетов одного поколения.
type Names struct {
	Static  string
	Dynamic string
	Offline string
}

// Generation возвращает имена бакетов поколения version.
func Generation(prefix, version string) Names {
	return Names{
		Static:  prefix + "-static-" + version,
		Dynamic: prefix + "-dynamic-" + version,
		Offline: prefix + "-offline-" + version,
	}
}

// Has сообщает, принадлежит ли бакет поколению.
func (n Names) Has(bucket string) bool {
	return bucket == n.Static || bucket == n.Dynamic || bucket == n.Offline
}

// Options — параметры Worker.
type Options struct {
	Prefix  string
	Version string
	// BaseURL — адрес, относительно которого разрешаются CoreResources и OfflinePage.
	BaseURL string
	// CoreResources предзагружаются в static при Install.
	CoreResources []string
	// OfflinePage предзагружается в offline и отдаётся при недоступной навигации.
	OfflinePage  string
	TrustedHosts []string
	Storage      Storage
	// Transport — сеть. nil: http.DefaultTransport.
	Transport http.RoundTripper
	// Timeout ограничивает фоновое обновление. 0: 10 секунд.
	Timeout time.Duration
	Logger  *zap.SugaredLogger
}

// Worker перехватывает запросы и применяет политику по классу запроса.
// До Activate все запросы проходят в сеть напрямую.
type Worker struct {
	opts        Options
	names       Names
	next        http.RoundTripper
	logger      *zap.SugaredLogger
	controlling atomic.Bool
	bg          sync.WaitGroup
}

// New создаёт Worker.
func New(opts Options) (*Worker, error) {
	if opts.Storage == nil {
		return nil, errors.New("offline: storage is required")
	}
	if opts.Prefix == "" || opts.Version == "" {
		return nil, errors.New("offline: prefix and version are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	next := opts.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Worker{
		opts:   opts,
		names:  Generation(opts.Prefix, opts.Version),
		next:   next,
		logger: logger,
	}, nil
}

// Names возвращает бакеты текущего поколения.
func (w *Worker) Names() Names { return w.names }

// Controlling сообщает, перехватывает ли Worker запросы.
func (w *Worker) Controlling() bool { return w.controlling.Load() }

func (w *Worker) resolve(ref string) (string, error) {
	if w.opts.BaseURL == "" {
		return ref, nil
	}
	base, err := url.Parse(w.opts.BaseURL)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(r).String(), nil
}

// Install предзагружает базовые ресурсы в static и офлайн-страницу в offline.
// Любая неудача прерывает установку: поколение без полного набора не активируется.
func (w *Worker) Install(ctx context.Context) error {
	type target struct{ bucket, ref string }
	var targets []target
	for _, ref := range w.opts.CoreResources {
		targets = append(targets, target{w.names.Static, ref})
	}
	if w.opts.OfflinePage != "" {
		targets = append(targets, target{w.names.Offline, w.opts.OfflinePage})
	}
	for _, t := range targets {
		u, err := w.resolve(t.ref)
		if err != nil {
			return fmt.Errorf("install %s: %w", t.ref, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return fmt.Errorf("install %s: %w", t.ref, err)
		}
		e, err := w.fetch(req)
		if err != nil {
			return fmt.Errorf("install %s: %w", u, err)
		}
		if !ok(e.Status) {
			return fmt.Errorf("install %s: status %d", u, e.Status)
		}
		if err := w.opts.Storage.Put(ctx, t.bucket, u, *e); err != nil {
			return fmt.Errorf("install %s: %w", u, err)
		}
	}
	marker := Entry{Status: http.StatusOK, StoredAt: time.Now().UTC()}
	if err := w.opts.Storage.Put(ctx, w.names.Offline, installMarker, marker); err != nil {
		return fmt.Errorf("install: %w", err)
	}
	w.logger.Infow("cache generation installed", "version", w.opts.Version, "resources", len(targets))
	return nil
}

// Installed сообщает, завершилась ли установка текущего поколения. Бакеты, частично
// заполненные прерванным Install, установкой не считаются.
func (w *Worker) Installed(ctx context.Context) (bool, error) {
	_, found, err := w.opts.Storage.Get(ctx, w.names.Offline, installMarker)
	if err != nil {
		return false, err
	}
	return found, nil
}

// Activate удаляет все бакеты, не принадлежащие текущему поколению, и включает перехват.
// Возвращает имена удалённых бакетов.
func (w *Worker) Activate(ctx context.Context) ([]string, error) {
	buckets, err := w.opts.Storage.Buckets(ctx)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, b := range buckets {
		if w.names.Has(b) {
			continue
		}
		if err := w.opts.Storage.DeleteBucket(ctx, b); err != nil {
			return removed, fmt.Errorf("delete bucket %s: %w", b, err)
		}
		removed = append(removed, b)
	}
	w.controlling.Store(true)
	if len(removed) > 0 {
		w.logger.Infow("stale cache buckets removed", "buckets", removed)
	}
	return removed, nil
}

// Wait дожидается фоновых обновлений кэша.
func (w *Worker) Wait() { w.bg.Wait() }

// RoundTrip применяет политику кэширования к GET-запросам. Ошибки сети и хранилища
// не возвращаются: вместо них отдаётся типизированный резервный ответ.
func (w *Worker) RoundTrip(req *http.Request) (*http.Response, error) {
	if !w.controlling.Load() || req.Method != http.MethodGet {
		return w.next.RoundTrip(req)
	}
	switch Classify(req, w.opts.TrustedHosts) {
	case ClassNavigation:
		return w.networkFirst(req), nil
	case ClassAsset:
		return w.cacheFirst(req, w.names.Static, assetUnavailable), nil
	case ClassImage:
		return w.cacheFirst(req, w.names.Static, placeholder), nil
	default:
		return w.staleWhileRevalidate(req), nil
	}
}

func key(req *http.Request) string { return req.URL.String() }

func ok(status int) bool { return status >= 200 && status <= 299 }

// fetch читает ответ сети целиком.
func (w *Worker) fetch(req *http.Request) (*Entry, error) {
	resp, err := w.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Entry{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body, StoredAt: time.Now().UTC()}, nil
}

// lookup ищет ответ в бакетах по порядку. Ошибки хранилища считаются промахом.
func (w *Worker) lookup(req *http.Request, buckets ...string) *Entry {
	for _, b := range buckets {
		e, found, err := w.opts.Storage.Get(req.Context(), b, key(req))
		if err != nil {
			w.logger.Warnw("cache read failed", "bucket", b, "url", key(req), "error", err)
			continue
		}
		if found {
			return e
		}
	}
	return nil
}

func (w *Worker) store(ctx context.Context, bucket string, req *http.Request, e *Entry) {
	if err := w.opts.Storage.Put(ctx, bucket, key(req), *e); err != nil {
		w.logger.Warnw("cache write failed", "bucket", bucket, "url", key(req), "error", err)
	}
}

func (w *Worker) networkFirst(req *http.Request) *http.Response {
	e, err := w.fetch(req)
	if err == nil {
		if ok(e.Status) {
			w.store(req.Context(), w.names.Dynamic, req, e)
		}
		return response(req, e, "", "")
	}
	w.logger.Debugw("navigation offline", "url", key(req), "error", err)
	if cached := w.lookup(req, w.names.Dynamic, w.names.Static); cached != nil {
		return response(req, cached, "hit", "")
	}
	if w.opts.OfflinePage != "" {
		if u, rerr := w.resolve(w.opts.OfflinePage); rerr == nil {
			if page, found, gerr := w.opts.Storage.Get(req.Context(), w.names.Offline, u); gerr == nil && found {
				return response(req, page, "hit", FallbackOfflinePage)
			}
		}
	}
	return errorResponse(req, http.StatusServiceUnavailable, FallbackNetworkError, err)
}

func (w *Worker) cacheFirst(req *http.Request, bucket string, fallback func(*http.Request, error) *http.Response) *http.Response {
	if cached := w.lookup(req, bucket); cached != nil {
		return response(req, cached, "hit", "")
	}
	e, err := w.fetch(req)
	if err != nil {
		return fallback(req, err)
	}
	if ok(e.Status) {
		w.store(req.Context(), bucket, req, e)
	}
	return response(req, e, "", "")
}

func (w *Worker) staleWhileRevalidate(req *http.Request) *http.Response {
	cached := w.lookup(req, w.names.Dynamic)
	if cached == nil {
		e, err := w.fetch(req)
		if err != nil {
			return errorResponse(req, http.StatusServiceUnavailable, FallbackNetworkError, err)
		}
		if ok(e.Status) {
			w.store(req.Context(), w.names.Dynamic, req, e)
		}
		return response(req, e, "", "")
	}
	// обновление не ждём: вызывающий получает кэш сразу
	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), w.opts.Timeout)
	bgReq := req.Clone(ctx)
	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		defer cancel()
		e, err := w.fetch(bgReq)
		if err != nil {
			w.logger.Debugw("background refresh failed", "url", key(bgReq), "error", err)
			return
		}
		if ok(e.Status) {
			w.store(ctx, w.names.Dynamic, bgReq, e)
		}
	}()
	return response(req, cached, "hit", "")
}

func response(req *http.Request, e *Entry, cache, fallback string) *http.Response {
	h := e.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	if cache != "" {
		h.Set(HeaderCache, cache)
	}
	if fallback != "" {
		h.Set(HeaderFallback, fallback)
	}
	return &http.Response{
		Status:        strconv.Itoa(e.Status) + " " + http.StatusText(e.Status),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

func errorResponse(req *http.Request, status int, kind string, cause error) *http.Response {
	msg := kind
	if cause != nil {
		msg = cause.Error()
	}
	body, _ := json.Marshal(map[string]string{"error": kind, "url": key(req), "message": strings.TrimSpace(msg)})
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return response(req, &Entry{Status: status, Header: h, Body: body}, "", kind)
}

func assetUnavailable(req *http.Request, err error) *http.Response {
	return errorResponse(req, http.StatusServiceUnavailable, FallbackAssetUnavailable, err)
}

func placeholder(req *http.Request, _ error) *http.Response {
	h := http.Header{}
	h.Set("Content-Type", "image/svg+xml")
	return response(req, &Entry{Status: http.StatusOK, Header: h, Body: []byte(PlaceholderSVG)}, "", FallbackPlaceholder)
}
