package service

import "MDShelf/internal/cli/store"

// Migrations возвращает упорядоченные шаги схемы клиентского хранилища.
// Шаги идемпотентны; новые версии только добавляются в конец.
func Migrations() []store.Migration {
	return []store.Migration{
		{
			Version:     1,
			Description: "archives and sync queue",
			Tables: []store.TableSpec{
				{Name: ArchivesTable, Indexes: []store.Index{
					{Name: "name", KeyPath: "name"},
					{Name: "timestamp", KeyPath: "timestamp"},
				}},
				{Name: SyncQueueTable, Indexes: []store.Index{
					{Name: "timestamp", KeyPath: "timestamp"},
					{Name: "type", KeyPath: "type"},
				}},
			},
		},
		{
			Version:     2,
			Description: "articles",
			Tables: []store.TableSpec{
				{Name: ArticlesTable, Indexes: []store.Index{
					{Name: "uuid", KeyPath: "id"},
					{Name: "updatedAt", KeyPath: "updatedAt"},
				}},
			},
		},
	}
}
