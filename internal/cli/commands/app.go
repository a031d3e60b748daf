package commands

import (
	"context"
	"fmt"

	"MDShelf/internal/cli/bootstrap"
	"MDShelf/internal/cli/service"
	"MDShelf/internal/config"
)

// statusMarks — префиксы строк статуса в выводе CLI.
var statusMarks = map[string]string{
	service.StatusImport:        "✓",
	service.StatusSync:          "•",
	service.StatusSyncAbandoned: "!",
	service.StatusError:         "×",
}

// printStatus выводит статусы компонентов; открытие хранилища только логируется.
func printStatus(kind, message string) {
	mark, ok := statusMarks[kind]
	if !ok {
		return
	}
	fmt.Fprintf(stdout, "%s %s\n", mark, message)
}

// openApp собирает клиент для одной команды. Переопределяется в тестах.
var openApp = func(ctx context.Context, cfg *config.Config) (*bootstrap.App, error) {
	logger, err := bootstrap.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return bootstrap.Open(ctx, cfg, bootstrap.Options{Logger: logger, Status: printStatus})
}

// withApp открывает клиент, выполняет fn и закрывает клиент.
func withApp(ctx context.Context, cfg *config.Config, fn func(app *bootstrap.App) error) error {
	app, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = app.Close()
	}()
	return fn(app)
}
