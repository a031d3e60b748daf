package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"MDShelf/internal/cli/bootstrap"
	"MDShelf/internal/config"
)

type syncCmd struct{}

func (syncCmd) Name() string { return "sync" }
func (syncCmd) Description() string {
	return "Отправить очередь изменений на сервер"
}
func (syncCmd) Usage() string { return "sync [--force]" }

func (syncCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	force := fs.Bool("force", false, "отправлять даже без связи с сервером")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		if !app.Net.Online() && !*force {
			fmt.Fprintln(stdout, "! Сервер недоступен, изменения остаются в очереди")
			return nil
		}
		fmt.Fprintln(stdout, "→ Отправка очереди изменений…")
		res, err := app.Sync.Drain(ctx)
		if err != nil {
			return err
		}
		if res.Sent == 0 && res.Failed == 0 {
			fmt.Fprintln(stdout, "• Нечего отправлять")
		}
		return nil
	})
}

type queueCmd struct{}

func (queueCmd) Name() string { return "queue" }
func (queueCmd) Description() string {
	return "Очередь изменений: просмотр, повтор, очистка брошенных"
}
func (queueCmd) Usage() string { return "queue [--retry=<id>] [--purge]" }

func (queueCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("queue", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	retry := fs.Int64("retry", 0, "вернуть брошенный элемент в очередь")
	purge := fs.Bool("purge", false, "удалить брошенные элементы")
	if err := fs.Parse(args); err != nil || fs.NArg() != 0 || (*retry != 0 && *purge) {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		switch {
		case *retry != 0:
			if err := app.Sync.Retry(ctx, *retry); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "✓ Элемент %d возвращён в очередь\n", *retry)
			return nil
		case *purge:
			n, err := app.Sync.Purge(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "✓ Удалено брошенных элементов: %d\n", n)
			return nil
		}

		pending, err := app.Sync.Pending(ctx)
		if err != nil {
			return err
		}
		abandoned, err := app.Sync.Abandoned(ctx)
		if err != nil {
			return err
		}
		if len(pending)+len(abandoned) == 0 {
			fmt.Fprintln(stdout, "Очередь пуста")
			return nil
		}
		for _, it := range pending {
			fmt.Fprintf(stdout, "• %d\t%s\tattempts=%d/%d\n", it.ID, it.Type, it.Attempts, app.Sync.MaxAttempts())
		}
		for _, it := range abandoned {
			fmt.Fprintf(stdout, "! %d\t%s\tattempts=%d/%d\t%s\n", it.ID, it.Type, it.Attempts, app.Sync.MaxAttempts(), it.LastError)
		}
		return nil
	})
}

func init() {
	RegisterCmd(syncCmd{})
	RegisterCmd(queueCmd{})
}
