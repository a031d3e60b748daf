package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"MDShelf/internal/cli/bootstrap"
	"MDShelf/internal/cli/offline"
	"MDShelf/internal/config"
)

type cacheInstallCmd struct{}

func (cacheInstallCmd) Name() string { return "cache-install" }
func (cacheInstallCmd) Description() string {
	return "Загрузить ресурсы веб-оболочки и активировать кэш"
}
func (cacheInstallCmd) Usage() string { return "cache-install" }

func (cacheInstallCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		fmt.Fprintf(stdout, "→ Установка поколения %s…\n", cfg.CacheVersion)
		if err := app.Cache.Install(ctx); err != nil {
			return err
		}
		return activate(ctx, app)
	})
}

type cacheActivateCmd struct{}

func (cacheActivateCmd) Name() string { return "cache-activate" }
func (cacheActivateCmd) Description() string {
	return "Удалить бакеты прошлых поколений"
}
func (cacheActivateCmd) Usage() string { return "cache-activate" }

func (cacheActivateCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		return activate(ctx, app)
	})
}

func activate(ctx context.Context, app *bootstrap.App) error {
	removed, err := app.Cache.Activate(ctx)
	if err != nil {
		return err
	}
	for _, b := range removed {
		fmt.Fprintf(stdout, "• удалён бакет %s\n", b)
	}
	fmt.Fprintf(stdout, "✓ Кэш %s активен\n", app.Cfg.CacheVersion)
	return nil
}

type fetchCmd struct{}

func (fetchCmd) Name() string        { return "fetch" }
func (fetchCmd) Description() string { return "GET через кэш с офлайн-резервом" }
func (fetchCmd) Usage() string       { return "fetch [--nav] [--body] <path|url>" }

func (fetchCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	nav := fs.Bool("nav", false, "запрос навигации (страница)")
	body := fs.Bool("body", false, "вывести тело ответа")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return ErrUsage
	}
	target, err := resolveURL(cfg.ServerURL, fs.Arg(0))
	if err != nil {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return err
		}
		if *nav {
			req.Header.Set("Sec-Fetch-Mode", "navigate")
			req.Header.Set("Accept", "text/html")
		}
		resp, err := app.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		source := "network"
		if resp.Header.Get(offline.HeaderCache) != "" {
			source = "cache"
		}
		if fb := resp.Header.Get(offline.HeaderFallback); fb != "" {
			source = "fallback:" + fb
		}
		fmt.Fprintf(stdout, "%d %s %s (%d bytes)\n", resp.StatusCode, source, resp.Header.Get("Content-Type"), len(b))
		if *body {
			fmt.Fprintln(stdout, strings.TrimSpace(string(b)))
		}
		return nil
	})
}

func resolveURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func init() {
	RegisterCmd(cacheInstallCmd{})
	RegisterCmd(cacheActivateCmd{})
	RegisterCmd(fetchCmd{})
}
