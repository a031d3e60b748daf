package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"MDShelf/internal/cli/api"
	fsrepo "MDShelf/internal/cli/repo/fs"
	"MDShelf/internal/config"
)

type credentials struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// authenticate отправляет учётные данные на endpoint и сохраняет токен и логин.
func authenticate(ctx context.Context, cfg *config.Config, endpoint, login, password string) (int, string, error) {
	url := strings.TrimRight(cfg.ServerURL, "/") + endpoint
	resp, body, err := api.PostJSON(ctx, url, credentials{Login: login, Password: password}, "")
	if err != nil {
		return 0, "", err
	}
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, string(body), nil
	}
	store := fsrepo.AuthFSStore{TokenPath: cfg.TokenFile}
	if err := api.PersistAuthFromResponse(resp, store); err != nil {
		return resp.StatusCode, "", fmt.Errorf("saving auth: %w", err)
	}
	if err := store.SaveLogin(login); err != nil {
		return resp.StatusCode, "", fmt.Errorf("saving login: %w", err)
	}
	return resp.StatusCode, "", nil
}

type loginCmd struct{}

func (loginCmd) Name() string        { return "login" }
func (loginCmd) Description() string { return "Login and store auth cookie" }
func (loginCmd) Usage() string       { return "login <login> <password>" }

func (loginCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	code, body, err := authenticate(ctx, cfg, "/api/user/login", args[0], args[1])
	if err != nil {
		return err
	}
	switch code {
	case http.StatusOK:
		fmt.Fprintln(stdout, "✓ Logged in successfully")
		return nil
	case http.StatusUnauthorized:
		return errors.New("invalid login or password")
	default:
		return fmt.Errorf("server error: %s", body)
	}
}

type registerCmd struct{}

func (registerCmd) Name() string        { return "register" }
func (registerCmd) Description() string { return "Register a new user and login" }
func (registerCmd) Usage() string       { return "register <login> <password>" }

func (registerCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	code, body, err := authenticate(ctx, cfg, "/api/user/register", args[0], args[1])
	if err != nil {
		return err
	}
	switch code {
	case http.StatusOK:
		fmt.Fprintln(stdout, "✓ Registered and logged in")
		return nil
	case http.StatusConflict:
		return errors.New("login already in use")
	default:
		return fmt.Errorf("server error: %s", body)
	}
}

type logoutCmd struct{}

func (logoutCmd) Name() string        { return "logout" }
func (logoutCmd) Description() string { return "Forget stored auth token and login" }
func (logoutCmd) Usage() string       { return "logout" }

func (logoutCmd) Run(_ context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	if err := (fsrepo.AuthFSStore{TokenPath: cfg.TokenFile}).Clear(); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "✓ Logged out")
	return nil
}

func init() {
	RegisterCmd(loginCmd{})
	RegisterCmd(registerCmd{})
	RegisterCmd(logoutCmd{})
}
