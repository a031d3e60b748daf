package netstatus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitor_NotifiesOnlyOnTransitions(t *testing.T) {
	m := NewMonitor(false)
	var got []bool
	unsub := m.Subscribe(func(online bool) { got = append(got, online) })

	m.Set(false) // без перехода
	m.Set(true)
	m.Set(true)
	m.Set(false)
	assert.Equal(t, []bool{true, false}, got)

	unsub()
	m.Set(true)
	assert.Len(t, got, 2)
	assert.True(t, m.Online())
}

func TestProber_Check(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	m := NewMonitor(false)
	p := &Prober{Monitor: m, URL: ts.URL}

	// любой ответ сервера: online
	assert.True(t, p.Check(context.Background()))
	assert.True(t, m.Online())

	ts.Close()
	assert.False(t, p.Check(context.Background()))
	assert.False(t, m.Online())
}

func TestProber_CancelledCheckKeepsState(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()
	m := NewMonitor(true)
	var got []bool
	m.Subscribe(func(online bool) { got = append(got, online) })
	p := &Prober{Monitor: m, URL: ts.URL}

	// остановка Run не должна выглядеть как потеря сети
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, p.Check(ctx))
	assert.True(t, m.Online())
	assert.Empty(t, got)

	m.Set(false)
	got = nil
	assert.False(t, p.Check(ctx))
	assert.False(t, m.Online())
	assert.Empty(t, got)
}
