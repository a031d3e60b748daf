package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"MDShelf/internal/cli/bootstrap"
	"MDShelf/internal/cli/model"
	"MDShelf/internal/config"
)

type articleSaveCmd struct{}

func (articleSaveCmd) Name() string { return "article-save" }
func (articleSaveCmd) Description() string {
	return "Создать или изменить статью"
}
func (articleSaveCmd) Usage() string {
	return "article-save [--id=<local-id>] [--url=<url>] [--tags=a,b] <title> [content]"
}

func (articleSaveCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("article-save", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	localID := fs.Int64("id", 0, "локальный id изменяемой статьи")
	url := fs.String("url", "", "ссылка")
	tags := fs.String("tags", "", "теги через запятую")
	if err := fs.Parse(args); err != nil || fs.NArg() < 1 || fs.NArg() > 2 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		a := model.Article{}
		if *localID != 0 {
			cur, err := app.Articles.Get(ctx, *localID)
			if err != nil {
				return err
			}
			a = *cur
		}
		a.Title = fs.Arg(0)
		if fs.NArg() == 2 {
			a.Content = fs.Arg(1)
		}
		if *url != "" {
			a.URL = *url
		}
		if *tags != "" {
			a.Tags = splitTags(*tags)
		}
		saved, err := app.Articles.Save(ctx, a)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "✓ Сохранено: id=%d uuid=%s\n", saved.LocalID, saved.ID)
		return nil
	})
}

func splitTags(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

type articleDeleteCmd struct{}

func (articleDeleteCmd) Name() string        { return "article-delete" }
func (articleDeleteCmd) Description() string { return "Удалить статью" }
func (articleDeleteCmd) Usage() string       { return "article-delete <local-id>" }

func (articleDeleteCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return ErrUsage
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		if err := app.Articles.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "✓ Статья %d удалена\n", id)
		return nil
	})
}

type articlesCmd struct{}

func (articlesCmd) Name() string        { return "articles" }
func (articlesCmd) Description() string { return "Список статей" }
func (articlesCmd) Usage() string       { return "articles" }

func (articlesCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	if len(args) != 0 {
		return ErrUsage
	}
	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		list, err := app.Articles.List(ctx)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(stdout, "Нет статей")
			return nil
		}
		for _, a := range list {
			fmt.Fprintf(stdout, "%d\t%s\t%s\t%s\n", a.LocalID, a.Title, strings.Join(a.Tags, ","), a.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return nil
	})
}

func init() {
	RegisterCmd(articleSaveCmd{})
	RegisterCmd(articleDeleteCmd{})
	RegisterCmd(articlesCmd{})
}
