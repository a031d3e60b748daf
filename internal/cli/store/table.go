package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"MDShelf/internal/apperr"
)

// Record — запись с ключом, назначаемым хранилищем.
type Record interface {
	StoreKey() int64
	SetStoreKey(id int64)
}

type recordPtr[T any] interface {
	*T
	Record
}

// Table — типизированный доступ к одной логической таблице. Каждая операция: отдельная
// транзакция по этой таблице; вызывающий получает десериализованную копию.
type Table[T any, P recordPtr[T]] struct {
	c    *conn
	spec TableSpec
}

// TableOf возвращает таблицу name открытого хранилища.
func TableOf[T any, P recordPtr[T]](h *Handle, name string) (*Table[T, P], error) {
	spec, ok := h.c.table(name)
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "table", "table %q is not declared in store %q", name, h.c.name)
	}
	return &Table[T, P]{c: h.c, spec: spec}, nil
}

// Name возвращает имя таблицы.
func (t *Table[T, P]) Name() string { return t.spec.Name }

func (t *Table[T, P]) decode(id int64, data string) (*T, error) {
	var v T
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return nil, fmt.Errorf("decode %s/%d: %w", t.spec.Name, id, err)
	}
	P(&v).SetStoreKey(id)
	return &v, nil
}

// Add вставляет новую запись. Нулевой ключ назначается хранилищем; явный ключ,
// уже занятый в таблице, даёт KeyConflict.
func (t *Table[T, P]) Add(ctx context.Context, rec *T) (int64, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", t.spec.Name, err)
	}
	key := P(rec).StoreKey()
	var id int64
	err = t.c.tx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if key != 0 {
			var one int
			err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %q WHERE id = ?`, t.spec.Name), key).Scan(&one)
			if err == nil {
				return apperr.New(apperr.KindKeyConflict, "add", "key %d already exists in %q", key, t.spec.Name)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if _, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %q(id, data) VALUES(?, ?)`, t.spec.Name), key, string(data)); err != nil {
				return err
			}
			id = key
			return nil
		}
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %q(data) VALUES(?)`, t.spec.Name), string(data))
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Put вставляет или заменяет запись целиком.
func (t *Table[T, P]) Put(ctx context.Context, rec *T) (int64, error) {
	key := P(rec).StoreKey()
	if key == 0 {
		return t.Add(ctx, rec)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", t.spec.Name, err)
	}
	err = t.c.tx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %q(id, data) VALUES(?, ?)
ON CONFLICT(id) DO UPDATE SET data = excluded.data`, t.spec.Name), key, string(data))
		return err
	})
	if err != nil {
		return 0, err
	}
	return key, nil
}

// Replace перезаписывает существующую запись; отсутствующий ключ: NotFound.
func (t *Table[T, P]) Replace(ctx context.Context, rec *T) error {
	key := P(rec).StoreKey()
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", t.spec.Name, err)
	}
	return t.c.tx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %q SET data = ? WHERE id = ?`, t.spec.Name), string(data), key)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.New(apperr.KindNotFound, "replace", "record with id %d not found in %q", key, t.spec.Name)
		}
		return nil
	})
}

// Get возвращает запись по ключу или NotFound.
func (t *Table[T, P]) Get(ctx context.Context, key int64) (*T, error) {
	var out *T
	err := t.c.tx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var data string
		err := tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %q WHERE id = ?`, t.spec.Name), key).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.KindNotFound, "get", "record with id %d not found in %q", key, t.spec.Name)
		}
		if err != nil {
			return err
		}
		out, err = t.decode(key, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Table[T, P]) query(ctx context.Context, q string, args ...any) ([]T, error) {
	var out []T
	err := t.c.tx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, q, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var data string
			if err := rows.Scan(&id, &data); err != nil {
				return err
			}
			v, err := t.decode(id, data)
			if err != nil {
				return err
			}
			out = append(out, *v)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}

// GetAll возвращает все записи в порядке ключей.
func (t *Table[T, P]) GetAll(ctx context.Context) ([]T, error) {
	return t.query(ctx, fmt.Sprintf(`SELECT id, data FROM %q ORDER BY id`, t.spec.Name))
}

// GetAllByIndex возвращает записи, у которых индексированное поле равно value.
func (t *Table[T, P]) GetAllByIndex(ctx context.Context, indexName string, value any) ([]T, error) {
	var idx *Index
	for i := range t.spec.Indexes {
		if t.spec.Indexes[i].Name == indexName {
			idx = &t.spec.Indexes[i]
			break
		}
	}
	if idx == nil {
		return nil, apperr.New(apperr.KindInvalid, "getAllByIndex", "unknown index %q on %q", indexName, t.spec.Name)
	}
	return t.query(ctx, fmt.Sprintf(`SELECT id, data FROM %q WHERE %s = ? ORDER BY id`,
		t.spec.Name, indexExpr(idx.KeyPath)), value)
}

// Delete удаляет запись по ключу; отсутствующий ключ: NotFound.
func (t *Table[T, P]) Delete(ctx context.Context, key int64) error {
	return t.c.tx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, t.spec.Name), key)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return apperr.New(apperr.KindNotFound, "delete", "record with id %d not found in %q", key, t.spec.Name)
		}
		return nil
	})
}

// Clear удаляет все записи таблицы.
func (t *Table[T, P]) Clear(ctx context.Context) error {
	return t.c.tx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q`, t.spec.Name))
		return err
	})
}

// Count возвращает число записей.
func (t *Table[T, P]) Count(ctx context.Context) (int, error) {
	var n int
	err := t.c.tx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, t.spec.Name)).Scan(&n)
	})
	return n, err
}
