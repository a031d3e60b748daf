package commands

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authServer(t *testing.T, path string, status int) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, path, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		if status == http.StatusOK {
			http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: "tok-123"})
			_, _ = w.Write([]byte(`{"ok":true}`))
			return
		}
		http.Error(w, "boom", status)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestLogin_Run_SuccessAndErrors(t *testing.T) {
	ts := authServer(t, "/api/user/login", http.StatusOK)
	cfg := testConfig(t, ts.URL)

	out, err := run(t, loginCmd{}, cfg, "alice", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in")

	// токен и логин сохранены рядом
	tok, err := os.ReadFile(cfg.TokenFile)
	require.NoError(t, err)
	assert.Equal(t, "tok-123", strings.TrimSpace(string(tok)))
	login, err := os.ReadFile(cfg.TokenFile + ".login")
	require.NoError(t, err)
	assert.Equal(t, "alice", strings.TrimSpace(string(login)))

	_, err = run(t, loginCmd{}, testConfig(t, authServer(t, "/api/user/login", http.StatusUnauthorized).URL), "alice", "bad")
	assert.EqualError(t, err, "invalid login or password")

	_, err = run(t, loginCmd{}, testConfig(t, authServer(t, "/api/user/login", http.StatusInternalServerError).URL), "a", "b")
	assert.ErrorContains(t, err, "server error")

	_, err = run(t, loginCmd{}, cfg, "onlyLogin")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestRegister_Run_SuccessAndErrors(t *testing.T) {
	ts := authServer(t, "/api/user/register", http.StatusOK)
	cfg := testConfig(t, ts.URL)

	_, err := run(t, registerCmd{}, cfg, "bob", "pwd")
	require.NoError(t, err)
	_, err = os.Stat(cfg.TokenFile + ".login")
	assert.NoError(t, err)

	_, err = run(t, registerCmd{}, testConfig(t, authServer(t, "/api/user/register", http.StatusConflict).URL), "bob", "pwd")
	assert.EqualError(t, err, "login already in use")

	_, err = run(t, registerCmd{}, testConfig(t, authServer(t, "/api/user/register", http.StatusInternalServerError).URL), "bob", "pwd")
	assert.Error(t, err)

	_, err = run(t, registerCmd{}, cfg, "bob")
	assert.ErrorIs(t, err, ErrUsage)
}

func TestLogin_UnreachableServer(t *testing.T) {
	_, err := run(t, loginCmd{}, testConfig(t, ""), "alice", "secret")
	assert.Error(t, err)
}
