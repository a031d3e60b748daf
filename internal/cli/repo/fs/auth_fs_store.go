package fs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"MDShelf/internal/cli/repo"
)

// AuthFSStore — файловое хранилище токена и контекста пользователя для CLI.
// TokenPath — путь к файлу токена; логин хранится рядом, в TokenPath + ".login".
// Пустой TokenPath: файл auth_token в пользовательском конфиг-каталоге.
type AuthFSStore struct {
	TokenPath string
}

var _ repo.AuthStore = AuthFSStore{}

func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "MDShelf"), nil
}

func (s AuthFSStore) tokenPath() (string, error) {
	p := s.TokenPath
	if p == "" {
		dir, err := configDir()
		if err != nil {
			return "", err
		}
		p = filepath.Join(dir, "auth_token")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return "", err
	}
	return p, nil
}

func (s AuthFSStore) loginPath() (string, error) {
	p, err := s.tokenPath()
	if err != nil {
		return "", err
	}
	return p + ".login", nil
}

func readTrimmed(p, emptyMsg string) (string, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	// обрезаем завершающие переводы строки/пробелы
	v := strings.TrimRight(string(b), " \t\r\n")
	if v == "" {
		return "", errors.New(emptyMsg)
	}
	return v, nil
}

// Save сохраняет auth‑токен в файл.
func (s AuthFSStore) Save(token string) error {
	p, err := s.tokenPath()
	if err != nil {
		return err
	}
	return os.WriteFile(p, []byte(token), 0o600)
}

// Load читает auth‑токен из файла.
func (s AuthFSStore) Load() (string, error) {
	p, err := s.tokenPath()
	if err != nil {
		return "", err
	}
	return readTrimmed(p, "empty token file")
}

// SaveLogin сохраняет логин пользователя в файл.
func (s AuthFSStore) SaveLogin(login string) error {
	if strings.TrimSpace(login) == "" {
		return errors.New("empty login")
	}
	p, err := s.loginPath()
	if err != nil {
		return err
	}
	return os.WriteFile(p, []byte(login), 0o600)
}

// LoadLogin читает логин пользователя из файла.
func (s AuthFSStore) LoadLogin() (string, error) {
	p, err := s.loginPath()
	if err != nil {
		return "", err
	}
	return readTrimmed(p, "no stored login")
}

// Clear удаляет токен и логин.
func (s AuthFSStore) Clear() error {
	for _, get := range []func() (string, error){s.tokenPath, s.loginPath} {
		p, err := get()
		if err != nil {
			return err
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
