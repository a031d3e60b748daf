// Package netstatus хранит признак доступности сети и оповещает подписчиков о переходах.
package netstatus

import (
	"context"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Monitor — текущее состояние online/offline.
type Monitor struct {
	mu     sync.Mutex
	online bool
	subs   map[int]func(online bool)
	nextID int
}

// NewMonitor создаёт монитор с начальным состоянием.
func NewMonitor(online bool) *Monitor {
	return &Monitor{online: online, subs: make(map[int]func(bool))}
}

// Online возвращает текущее состояние.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set задаёт состояние. Подписчики вызываются только при смене состояния,
// синхронно и вне блокировки.
func (m *Monitor) Set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()
	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe регистрирует обработчик переходов. Возвращает функцию отписки.
func (m *Monitor) Subscribe(fn func(online bool)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Prober периодически проверяет доступность сервера и обновляет Monitor.
// Любой HTTP-ответ означает online, сетевая ошибка: offline.
type Prober struct {
	Monitor  *Monitor
	Client   *http.Client
	URL      string
	Interval time.Duration
	Timeout  time.Duration
	Logger   *zap.SugaredLogger
}

// Check выполняет одну проверку и возвращает результат. Проверка, прерванная отменой
// ctx, состояние Monitor не меняет.
func (p *Prober) Check(ctx context.Context) bool {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	parent := ctx
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	online := false
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL, nil)
	if err == nil {
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			online = true
		} else if p.Logger != nil {
			p.Logger.Debugw("connectivity probe failed", "url", p.URL, "error", err)
		}
	}
	if parent.Err() != nil {
		return p.Monitor.Online()
	}
	p.Monitor.Set(online)
	return online
}

// Run проверяет доступность с интервалом до отмены ctx.
func (p *Prober) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	p.Check(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}
