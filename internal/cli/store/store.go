// Package store — версионированное локальное объектное хранилище поверх SQLite.
//
// Каждое физическое хранилище (Config.Name): отдельный файл SQLite. Логические таблицы
// хранят записи как JSON-документы с автоинкрементным ключом; вторичные индексы строятся
// по выражению json_extract. Схема обновляется упорядоченным списком миграций в отдельной
// фазе Open; текущая версия лежит в PRAGMA user_version.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"MDShelf/internal/apperr"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"
)

// Config выбирает физическое хранилище, требуемую версию схемы и логическую таблицу.
type Config struct {
	Name      string
	Version   int
	StoreName string
}

// State — состояние открытия хранилища.
type State int32

const (
	StateClosed State = iota
	StateOpening
	StateUpgrading
	StateOpen
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateUpgrading:
		return "upgrading"
	case StateOpen:
		return "open"
	case StateFailed:
		return "failed"
	default:
		return "closed"
	}
}

// Options — параметры менеджера.
type Options struct {
	// Dir — каталог файлов хранилищ. Пустая строка: хранилище в памяти.
	Dir        string
	Migrations []Migration
	// OpTimeout ограничивает каждую операцию хранилища. 0: без ограничения.
	OpTimeout time.Duration
	Logger    *zap.SugaredLogger
}

// Manager открывает хранилища и кэширует открытые соединения по имени.
type Manager struct {
	opts   Options
	logger *zap.SugaredLogger
	group  singleflight.Group

	mu     sync.Mutex
	conns  map[string]*conn
	states map[string]State
}

// NewManager создаёт менеджер. Миграции сортируются по версии.
func NewManager(opts Options) (*Manager, error) {
	migs, err := sortMigrations(opts.Migrations)
	if err != nil {
		return nil, err
	}
	opts.Migrations = migs
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Manager{
		opts:   opts,
		logger: logger,
		conns:  make(map[string]*conn),
		states: make(map[string]State),
	}, nil
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidateIdent проверяет, что имя хранилища/таблицы безопасно для SQL и файловой системы.
func ValidateIdent(name string) error {
	if name == "" {
		return apperr.New(apperr.KindInvalid, "store", "name is required")
	}
	if !identRe.MatchString(name) {
		return apperr.New(apperr.KindInvalid, "store", "invalid name: %q (allowed: letters, digits, _)", name)
	}
	return nil
}

// LatestVersion возвращает наибольшую версию из списка миграций.
func (m *Manager) LatestVersion() int {
	if len(m.opts.Migrations) == 0 {
		return 1
	}
	return m.opts.Migrations[len(m.opts.Migrations)-1].Version
}

// State возвращает состояние хранилища name.
func (m *Manager) State(name string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[name]
}

func (m *Manager) setState(name string, s State) {
	m.mu.Lock()
	m.states[name] = s
	m.mu.Unlock()
}

// Open открывает (и при необходимости обновляет) хранилище. Повторные вызовы, пришедшие
// до завершения открытия, разделяют одно открытие; уже открытое хранилище переиспользуется.
func (m *Manager) Open(ctx context.Context, cfg Config) (*Handle, error) {
	if cfg.Version <= 0 {
		cfg.Version = m.LatestVersion()
	}
	if err := ValidateIdent(cfg.Name); err != nil {
		return nil, err
	}
	if cfg.StoreName != "" {
		if err := ValidateIdent(cfg.StoreName); err != nil {
			return nil, err
		}
	}

	c := m.cached(cfg)
	if c == nil {
		key := fmt.Sprintf("%s@%d", cfg.Name, cfg.Version)
		// открытие разделяют все ожидающие: отмена одного из них его не прерывает,
		// ограничивает только OpTimeout
		ch := m.group.DoChan(key, func() (any, error) {
			if c := m.cached(cfg); c != nil {
				return c, nil
			}
			return m.open(context.WithoutCancel(ctx), cfg)
		})
		select {
		case <-ctx.Done():
			return nil, apperr.Wrap(apperr.KindOpenFailure, "open "+cfg.Name, ctx.Err())
		case r := <-ch:
			if r.Err != nil {
				return nil, r.Err
			}
			c = r.Val.(*conn)
		}
	}
	// storeName, не объявленный миграциями, объявляется при открытии
	if cfg.StoreName != "" && !c.hasTable(cfg.StoreName) {
		if err := c.ensureTable(ctx, TableSpec{Name: cfg.StoreName}); err != nil {
			return nil, apperr.Wrap(apperr.KindOpenFailure, "open "+cfg.Name, err)
		}
	}
	return &Handle{c: c, storeName: cfg.StoreName}, nil
}

// cached возвращает открытое соединение, если его версия не ниже требуемой.
func (m *Manager) cached(cfg Config) *conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[cfg.Name]
	if !ok || c.State() != StateOpen || c.version < cfg.Version {
		return nil
	}
	return c
}

func (m *Manager) dsn(name string) (string, error) {
	if m.opts.Dir == "" {
		return ":memory:", nil
	}
	if err := os.MkdirAll(m.opts.Dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(m.opts.Dir, name+".sqlite") + "?_pragma=busy_timeout(5000)", nil
}

func (m *Manager) open(ctx context.Context, cfg Config) (*conn, error) {
	// соединение с меньшей версией закрываем: все его хэндлы становятся непригодны,
	// как при versionchange
	m.mu.Lock()
	if old, ok := m.conns[cfg.Name]; ok {
		delete(m.conns, cfg.Name)
		m.mu.Unlock()
		_ = old.close()
	} else {
		m.mu.Unlock()
	}

	m.setState(cfg.Name, StateOpening)
	fail := func(err error) (*conn, error) {
		m.setState(cfg.Name, StateFailed)
		m.logger.Errorw("store open failed", "store", cfg.Name, "version", cfg.Version, "error", err)
		return nil, apperr.Wrap(apperr.KindOpenFailure, "open "+cfg.Name, err)
	}

	dsn, err := m.dsn(cfg.Name)
	if err != nil {
		return fail(err)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fail(err)
	}
	// один коннект: SQLite сериализует запись, а :memory: живёт в пределах соединения
	db.SetMaxOpenConns(1)

	c := &conn{
		db:        db,
		name:      cfg.Name,
		opTimeout: m.opts.OpTimeout,
		logger:    m.logger,
		tables:    make(map[string]TableSpec),
	}
	octx, cancel := c.deadline(ctx)
	defer cancel()

	if err := db.PingContext(octx); err != nil {
		_ = db.Close()
		return fail(err)
	}
	current, err := schemaVersion(octx, db)
	if err != nil {
		_ = db.Close()
		return fail(err)
	}
	if cfg.Version < current {
		_ = db.Close()
		return fail(fmt.Errorf("requested version %d is lower than stored version %d", cfg.Version, current))
	}

	if cfg.Version > current {
		m.setState(cfg.Name, StateUpgrading)
		m.logger.Infow("store upgrade", "store", cfg.Name, "from", current, "to", cfg.Version)
		if err := upgrade(octx, db, m.opts.Migrations, current, cfg.Version); err != nil {
			_ = db.Close()
			return fail(err)
		}
	}

	for _, spec := range tablesUpTo(m.opts.Migrations, cfg.Version) {
		c.tables[spec.Name] = spec
	}
	// таблицы, объявленные ранее через storeName, есть в файле, но не в миграциях
	adhoc, err := existingTables(octx, db)
	if err != nil {
		_ = db.Close()
		return fail(err)
	}
	for _, name := range adhoc {
		if _, ok := c.tables[name]; !ok {
			c.tables[name] = TableSpec{Name: name}
		}
	}
	c.version = cfg.Version
	c.state.Store(int32(StateOpen))
	c.onClose = func() {
		m.mu.Lock()
		if m.conns[cfg.Name] == c {
			delete(m.conns, cfg.Name)
			m.states[cfg.Name] = StateClosed
		}
		m.mu.Unlock()
	}

	m.mu.Lock()
	m.conns[cfg.Name] = c
	m.states[cfg.Name] = StateOpen
	m.mu.Unlock()
	m.logger.Debugw("store opened", "store", cfg.Name, "version", cfg.Version)
	return c, nil
}

// Close закрывает все открытые хранилища.
func (m *Manager) Close() error {
	m.mu.Lock()
	conns := make([]*conn, 0, len(m.conns))
	for _, c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()
	var firstErr error
	for _, c := range conns {
		if err := c.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// conn — разделяемое соединение с одним физическим хранилищем.
type conn struct {
	db        *sql.DB
	name      string
	version   int
	state     atomic.Int32
	opTimeout time.Duration
	logger    *zap.SugaredLogger
	tablesMu  sync.RWMutex
	tables    map[string]TableSpec
	onClose   func()
	closeOnce sync.Once
}

func (c *conn) State() State { return State(c.state.Load()) }

func (c *conn) hasTable(name string) bool {
	_, ok := c.table(name)
	return ok
}

func (c *conn) table(name string) (TableSpec, bool) {
	c.tablesMu.RLock()
	defer c.tablesMu.RUnlock()
	spec, ok := c.tables[name]
	return spec, ok
}

// ensureTable идемпотентно создаёт таблицу на уже открытом соединении.
func (c *conn) ensureTable(ctx context.Context, spec TableSpec) error {
	err := c.tx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return createTable(ctx, tx, spec)
	})
	if err != nil {
		return err
	}
	c.tablesMu.Lock()
	if _, ok := c.tables[spec.Name]; !ok {
		c.tables[spec.Name] = spec
	}
	c.tablesMu.Unlock()
	return nil
}

func (c *conn) deadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opTimeout)
}

func (c *conn) close() error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		err = c.db.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
	return err
}

// tx выполняет fn в транзакции, ограниченной одной таблицей и дедлайном операции.
func (c *conn) tx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if c.State() != StateOpen {
		return apperr.New(apperr.KindOpenFailure, c.name, "store is %s", c.State())
	}
	ctx, cancel := c.deadline(ctx)
	defer cancel()
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		// если коммита не было: откат
		_ = tx.Rollback()
	}()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// Handle — открытое хранилище с выбранной логической таблицей по умолчанию.
type Handle struct {
	c         *conn
	storeName string
}

// StoreName возвращает логическую таблицу по умолчанию.
func (h *Handle) StoreName() string { return h.storeName }

// Name возвращает имя физического хранилища.
func (h *Handle) Name() string { return h.c.name }

// Version возвращает версию схемы.
func (h *Handle) Version() int { return h.c.version }

// State возвращает текущее состояние соединения.
func (h *Handle) State() State { return h.c.State() }

// Tables возвращает объявленные таблицы.
func (h *Handle) Tables() []string {
	h.c.tablesMu.RLock()
	defer h.c.tablesMu.RUnlock()
	out := make([]string, 0, len(h.c.tables))
	for name := range h.c.tables {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Close закрывает соединение. Все хэндлы этого хранилища становятся непригодны.
func (h *Handle) Close() error { return h.c.close() }
