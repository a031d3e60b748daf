package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"MDShelf/internal/cli/bootstrap"
	"MDShelf/internal/config"

	"github.com/fsnotify/fsnotify"
)

// watchSettle — пауза после последнего события файла перед импортом.
var watchSettle = 300 * time.Millisecond

type watchCmd struct{}

func (watchCmd) Name() string { return "watch" }
func (watchCmd) Description() string {
	return "Импортировать новые zip-архивы каталога и досылать очередь при появлении сети"
}
func (watchCmd) Usage() string { return "watch [--existing] <dir>" }

func (watchCmd) Run(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	existing := fs.Bool("existing", false, "сначала импортировать архивы, уже лежащие в каталоге")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return ErrUsage
	}
	dir := fs.Arg(0)
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}

	return withApp(ctx, cfg, func(app *bootstrap.App) error {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		if err := w.Add(dir); err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		app.Sync.Start(ctx)
		go app.Prober.Run(ctx)

		imp := &dirImporter{app: app, seen: map[string]fileStamp{}}
		if *existing {
			entries, err := os.ReadDir(dir)
			if err != nil {
				return err
			}
			for _, e := range entries {
				if !e.IsDir() && isArchive(e.Name()) {
					imp.importFile(ctx, filepath.Join(dir, e.Name()))
				}
			}
		}

		fmt.Fprintf(stdout, "→ Наблюдение за %s (Ctrl+C для выхода)\n", dir)
		ready := make(chan string, 16)
		deb := &debouncer{delay: watchSettle, fire: func(p string) {
			select {
			case ready <- p:
			case <-ctx.Done():
			}
		}}
		defer deb.stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if (ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write)) && isArchive(ev.Name) {
					deb.touch(ev.Name)
				}
			case p := <-ready:
				imp.importFile(ctx, p)
			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				app.Logger.Warnw("watch error", "dir", dir, "error", err)
			}
		}
	})
}

func isArchive(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}

type fileStamp struct {
	size int64
	mod  time.Time
}

// dirImporter импортирует файл один раз на каждую версию содержимого.
type dirImporter struct {
	app  *bootstrap.App
	seen map[string]fileStamp
}

func (d *dirImporter) importFile(ctx context.Context, path string) {
	st, err := os.Stat(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			d.app.Logger.Warnw("watch stat failed", "path", path, "error", err)
		}
		return
	}
	stamp := fileStamp{size: st.Size(), mod: st.ModTime()}
	if prev, ok := d.seen[path]; ok && prev == stamp {
		return
	}
	d.seen[path] = stamp
	if _, err := d.app.Library.ImportFile(ctx, path); err != nil {
		d.app.Logger.Debugw("watch import failed", "path", path, "error", err)
	}
}

// debouncer откладывает fire(path) до тишины в delay после последнего touch(path).
type debouncer struct {
	delay  time.Duration
	fire   func(path string)
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func (d *debouncer) touch(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timers == nil {
		d.timers = map[string]*time.Timer{}
	}
	if t, ok := d.timers[path]; ok {
		t.Stop()
	}
	d.timers[path] = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		delete(d.timers, path)
		d.mu.Unlock()
		d.fire(path)
	})
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for p, t := range d.timers {
		t.Stop()
		delete(d.timers, p)
	}
}
