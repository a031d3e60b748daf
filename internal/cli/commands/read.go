package commands

import (
	"context"
	"fmt"
	"strconv"

	"MDShelf/internal/cli/bootstrap"
	"MDShelf/internal/config"
)

// readCmd — read/unread/toggle: одна команда на операцию над отметкой прочтения.
type readCmd struct {
	name string
	desc string
	op   func(app *bootstrap.App) func(ctx context.Context, id int64, path string) (bool, error)
}

func (c readCmd) Name() string        { return c.name }
func (c readCmd) Description() string { return c.desc }
func (c readCmd) Usage() string       { return c.name + " <archive-id> <path>" }

func (c readCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return ErrUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		changed, err := c.op(app)(ctx, id, args[1])
		if err != nil {
			return err
		}
		if changed {
			fmt.Fprintf(stdout, "✓ %s\n", args[1])
		} else {
			fmt.Fprintf(stdout, "• %s: без изменений\n", args[1])
		}
		return nil
	})
}

func init() {
	RegisterCmd(readCmd{name: "read", desc: "Отметить документ прочитанным",
		op: func(app *bootstrap.App) func(context.Context, int64, string) (bool, error) {
			return app.Library.MarkRead
		}})
	RegisterCmd(readCmd{name: "unread", desc: "Снять отметку прочтения",
		op: func(app *bootstrap.App) func(context.Context, int64, string) (bool, error) {
			return app.Library.MarkUnread
		}})
	RegisterCmd(readCmd{name: "toggle", desc: "Переключить отметку прочтения",
		op: func(app *bootstrap.App) func(context.Context, int64, string) (bool, error) {
			return app.Library.ToggleRead
		}})
}
