package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Index — вторичный индекс по полю JSON-документа.
type Index struct {
	Name    string
	KeyPath string // путь поля, например "name" или "meta.kind"
}

// TableSpec — объявление логической таблицы.
type TableSpec struct {
	Name    string
	Indexes []Index
}

// Migration — шаг обновления схемы до Version. Шаг обязан быть идемпотентным:
// таблицы и индексы создаются только при отсутствии.
type Migration struct {
	Version     int
	Description string
	Tables      []TableSpec
	// Up — дополнительная работа шага (перенос данных и т.п.), необязательна.
	Up func(ctx context.Context, tx *sql.Tx) error
}

var keyPathRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

func sortMigrations(in []Migration) ([]Migration, error) {
	out := make([]Migration, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	seen := make(map[int]bool, len(out))
	for _, m := range out {
		if m.Version <= 0 {
			return nil, fmt.Errorf("migration version must be positive, got %d", m.Version)
		}
		if seen[m.Version] {
			return nil, fmt.Errorf("duplicate migration version %d", m.Version)
		}
		seen[m.Version] = true
		for _, t := range m.Tables {
			if err := ValidateIdent(t.Name); err != nil {
				return nil, err
			}
			for _, idx := range t.Indexes {
				if err := ValidateIdent(idx.Name); err != nil {
					return nil, err
				}
				if !keyPathRe.MatchString(idx.KeyPath) {
					return nil, fmt.Errorf("invalid key path %q for index %s.%s", idx.KeyPath, t.Name, idx.Name)
				}
			}
		}
	}
	return out, nil
}

// tablesUpTo собирает объявления таблиц всех шагов до версии включительно.
// Поздний шаг может добавить индексы к уже объявленной таблице.
func tablesUpTo(migs []Migration, version int) []TableSpec {
	byName := make(map[string]*TableSpec)
	var order []string
	for _, m := range migs {
		if m.Version > version {
			break
		}
		for _, t := range m.Tables {
			spec, ok := byName[t.Name]
			if !ok {
				spec = &TableSpec{Name: t.Name}
				byName[t.Name] = spec
				order = append(order, t.Name)
			}
			spec.Indexes = append(spec.Indexes, t.Indexes...)
		}
	}
	out := make([]TableSpec, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out
}

func schemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var v int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

// upgrade применяет шаги (from, to] в одной транзакции и фиксирует новую версию.
func upgrade(ctx context.Context, db *sql.DB, migs []Migration, from, to int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upgrade: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()
	for _, m := range migs {
		if m.Version <= from || m.Version > to {
			continue
		}
		for _, t := range m.Tables {
			if err := createTable(ctx, tx, t); err != nil {
				return fmt.Errorf("migration %d: %w", m.Version, err)
			}
		}
		if m.Up != nil {
			if err := m.Up(ctx, tx); err != nil {
				return fmt.Errorf("migration %d: %w", m.Version, err)
			}
		}
	}
	// PRAGMA не принимает параметры; to: целое число
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, to)); err != nil {
		return fmt.Errorf("write schema version: %w", err)
	}
	return tx.Commit()
}

func indexExpr(keyPath string) string {
	return fmt.Sprintf(`json_extract(data, '$.%s')`, keyPath)
}

// createTable идемпотентно создаёт таблицу и её индексы.
func createTable(ctx context.Context, tx *sql.Tx, spec TableSpec) error {
	ddl := []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  data TEXT NOT NULL
)`, spec.Name)}
	for _, idx := range spec.Indexes {
		ddl = append(ddl, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q(%s)`,
			"idx_"+spec.Name+"_"+idx.Name, spec.Name, indexExpr(idx.KeyPath)))
	}
	for _, q := range ddl {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create %s: %w", spec.Name, err)
		}
	}
	return nil
}

// existingTables возвращает пользовательские таблицы файла.
func existingTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if strings.HasPrefix(name, "sqlite_") {
			continue
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
