package fs

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setTempCfg перенастраивает пользовательский конфиг‑каталог в temp для изоляции тестов.
func setTempCfg(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if runtime.GOOS == "windows" {
		t.Setenv("APPDATA", dir)
	} else {
		t.Setenv("XDG_CONFIG_HOME", dir)
	}
	return dir
}

func TestAuthFSStore_SaveLoad_Token_TrimsWhitespace(t *testing.T) {
	dir := t.TempDir()
	st := AuthFSStore{TokenPath: filepath.Join(dir, "nested", "token")}
	require.NoError(t, st.Save("tok-123\n\n"))

	// Дозапишем вручную лишние пробелы в конец файла, чтобы проверить trim
	f, err := os.OpenFile(st.TokenPath, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	_, _ = f.WriteString("  \r\n")
	_ = f.Close()

	tok, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-123", tok)
}

func TestAuthFSStore_Load_TokenMissingOrEmpty(t *testing.T) {
	st := AuthFSStore{TokenPath: filepath.Join(t.TempDir(), "token")}
	// отсутствует файл
	_, err := st.Load()
	assert.Error(t, err)
	// пустой файл
	require.NoError(t, os.WriteFile(st.TokenPath, []byte(" \n"), 0o600))
	_, err = st.Load()
	assert.Error(t, err)
}

func TestAuthFSStore_DefaultPathUnderConfigDir(t *testing.T) {
	dir := setTempCfg(t)
	st := AuthFSStore{}
	require.NoError(t, st.Save("tok"))
	_, err := os.Stat(filepath.Join(dir, "MDShelf", "auth_token"))
	assert.NoError(t, err)
}

func TestAuthFSStore_Login_And_Clear(t *testing.T) {
	st := AuthFSStore{TokenPath: filepath.Join(t.TempDir(), "token")}
	assert.Error(t, st.SaveLogin(""))

	require.NoError(t, st.SaveLogin("alice\n"))
	require.NoError(t, st.Save("tok"))
	login, err := st.LoadLogin()
	require.NoError(t, err)
	assert.Equal(t, "alice", login)

	require.NoError(t, st.Clear())
	_, err = st.LoadLogin()
	assert.Error(t, err)
	_, err = st.Load()
	assert.Error(t, err)
	// повторная очистка не падает
	assert.NoError(t, st.Clear())
}
