package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"MDShelf/internal/config"
)

// ErrUsage is returned by a command when arguments are invalid and usage should be shown.
var ErrUsage = errors.New("usage")

// Command represents a CLI subcommand.
type Command interface {
	// Name returns the command name as typed by the user, e.g. "login".
	Name() string
	// Description is a short human-readable description shown in help.
	Description() string
	// Usage returns the exact usage string, e.g. "login <login> <password>".
	Usage() string
	// Run executes the command with provided args (without the command name).
	Run(ctx context.Context, cfg *config.Config, args []string) error
}

// registry holds available commands by name.
var registry = map[string]Command{}

// Out — общий writer для вывода CLI. По умолчанию os.Stdout, в тестах заменяется через SetOut.
var Out io.Writer = os.Stdout

// outMu сериализует запись в Out: статусы приходят и из фоновых проходов синхронизации.
var outMu sync.Mutex

// stdout — вывод команд; каждая строка пишется в Out под outMu.
var stdout io.Writer = lockedOut{}

type lockedOut struct{}

func (lockedOut) Write(p []byte) (int, error) {
	outMu.Lock()
	defer outMu.Unlock()
	return Out.Write(p)
}

// SetOut заменяет Out и возвращает функцию, восстанавливающую прежний writer.
func SetOut(w io.Writer) (restore func()) {
	outMu.Lock()
	prev := Out
	Out = w
	outMu.Unlock()
	return func() {
		outMu.Lock()
		Out = prev
		outMu.Unlock()
	}
}

// RegisterCmd adds a command to the registry. Should be called from init() of each command.
func RegisterCmd(cmd Command) {
	registry[cmd.Name()] = cmd
}

// Get returns a command by name.
func Get(name string) (Command, bool) {
	c, ok := registry[name]
	return c, ok
}

// List returns all registered commands sorted by name.
func List() []Command {
	list := make([]Command, 0, len(registry))
	for _, c := range registry {
		list = append(list, c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

// helpSections — порядок разделов справки. Команды вне разделов попадают в "Other".
var helpSections = []struct {
	title string
	names []string
}{
	{"Library", []string{"import", "archives", "files", "read", "unread", "toggle", "remove", "clear", "watch"}},
	{"Articles & sync", []string{"article-save", "article-delete", "articles", "sync", "queue"}},
	{"Cache", []string{"cache-install", "cache-activate", "fetch"}},
	{"Account", []string{"register", "login", "logout", "status"}},
}

// FormatGlobalUsage builds a help text for all commands.
func FormatGlobalUsage() string {
	lines := []string{
		"MDShelf CLI",
		"",
		"Usage:",
		"  shelf [--base-url <host:port>] [--client-db <dir>] <command> [args]",
	}
	listed := make(map[string]bool, len(registry))
	section := func(title string, cmds []Command) {
		if len(cmds) == 0 {
			return
		}
		lines = append(lines, "", title+":")
		for _, c := range cmds {
			listed[c.Name()] = true
			lines = append(lines, fmt.Sprintf("  %-44s %s", c.Usage(), c.Description()))
		}
	}
	for _, sec := range helpSections {
		var cmds []Command
		for _, name := range sec.names {
			if c, ok := Get(name); ok {
				cmds = append(cmds, c)
			}
		}
		section(sec.title, cmds)
	}
	var rest []Command
	for _, c := range List() {
		if !listed[c.Name()] {
			rest = append(rest, c)
		}
	}
	section("Other", rest)
	return strings.Join(lines, "\n") + "\n"
}
