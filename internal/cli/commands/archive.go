package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"

	"MDShelf/internal/cli/bootstrap"
	"MDShelf/internal/cli/model/view"
	"MDShelf/internal/cli/readstate"
	"MDShelf/internal/config"
)

type importCmd struct{}

func (importCmd) Name() string { return "import" }
func (importCmd) Description() string {
	return "Импортировать zip-архив документов"
}
func (importCmd) Usage() string { return "import <archive.zip>" }

func (importCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		id, err := app.Library.ImportFile(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "id=%d\n", id)
		return nil
	})
}

type archivesCmd struct{}

func (archivesCmd) Name() string { return "archives" }
func (archivesCmd) Description() string {
	return "Список импортированных архивов"
}
func (archivesCmd) Usage() string { return "archives" }

func (archivesCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		list, err := app.Library.ListArchives(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(stdout, "Нет архивов")
			return nil
		}
		for _, a := range list {
			fmt.Fprintf(stdout, "%d\t%s\tread=%d/%d\tsize=%d\t%s\n",
				a.ID, a.Name, a.ReadCount(), a.FileCount, a.TotalSize, a.Timestamp.Local().Format("2006-01-02 15:04"))
		}
		fmt.Fprintf(stdout, "Всего: %d\n", len(list))
		return nil
	})
}

type filesCmd struct{}

func (filesCmd) Name() string        { return "files" }
func (filesCmd) Description() string { return "Документы архива" }
func (filesCmd) Usage() string {
	return "files [--sort=unread_first|read_first|recency|alphabet] <archive-id>"
}

func (filesCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("files", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	sortMode := fs.String("sort", string(readstate.SortUnreadFirst), "режим сортировки")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return ErrUsage
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		rec, err := app.Library.GetArchive(ctx, id)
		if err != nil {
			return err
		}
		for _, f := range readstate.Sort(rec.Files, readstate.ParseMode(*sortMode)) {
			row := view.FileRow{Path: f.Path, Title: f.Name(), Size: f.Size, IsRead: f.IsRead, ReadDate: f.ReadDate}
			fmt.Fprintf(stdout, "%s %s\t%s\t%d\n", row.Mark(), row.Path, row.Title, row.Size)
		}
		return nil
	})
}

type removeCmd struct{}

func (removeCmd) Name() string        { return "remove" }
func (removeCmd) Description() string { return "Удалить архив" }
func (removeCmd) Usage() string       { return "remove <archive-id>" }

func (removeCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		if err := app.Library.DeleteArchive(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "✓ Архив %d удалён\n", id)
		return nil
	})
}

type clearCmd struct{}

func (clearCmd) Name() string        { return "clear" }
func (clearCmd) Description() string { return "Удалить все архивы" }
func (clearCmd) Usage() string       { return "clear" }

func (clearCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		if err := app.Library.ClearArchives(ctx); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "✓ Все архивы удалены")
		return nil
	})
}

func init() {
	RegisterCmd(importCmd{})
	RegisterCmd(archivesCmd{})
	RegisterCmd(filesCmd{})
	RegisterCmd(removeCmd{})
	RegisterCmd(clearCmd{})
}
