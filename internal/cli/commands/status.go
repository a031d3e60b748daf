package commands

import (
	"context"
	"fmt"

	"MDShelf/internal/cli/bootstrap"
	"MDShelf/internal/config"
)

type statusCmd struct{}

func (statusCmd) Name() string        { return "status" }
func (statusCmd) Description() string { return "Сеть, очередь изменений и кэш" }
func (statusCmd) Usage() string       { return "status" }

func (statusCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		if app.Net.Online() {
			fmt.Fprintf(stdout, "✓ online  %s\n", cfg.ServerURL)
		} else {
			fmt.Fprintf(stdout, "× offline %s\n", cfg.ServerURL)
		}
		if login, err := app.Auth.LoadLogin(); err == nil {
			fmt.Fprintf(stdout, "• user: %s\n", login)
		} else {
			fmt.Fprintln(stdout, "• user: not logged in")
		}

		archives, err := app.Library.ListArchives(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "• archives: %d\n", len(archives))

		pending, err := app.Sync.Pending(ctx)
		if err != nil {
			return err
		}
		abandoned, err := app.Sync.Abandoned(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "• queue: %d pending, %d abandoned\n", len(pending), len(abandoned))
		if len(abandoned) > 0 {
			fmt.Fprintln(stdout, "! some changes stopped retrying: see `queue`")
		}

		names := app.Cache.Names()
		state := "not installed"
		if app.Cache.Controlling() {
			state = "active"
		}
		fmt.Fprintf(stdout, "• cache: %s (%s)\n", names.Static, state)
		return nil
	})
}

func init() { RegisterCmd(statusCmd{}) }
