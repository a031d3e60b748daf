package model

import "time"

// Article — синхронизируемая сущность. LocalID: ключ локального хранилища,
// ID (UUID): идентификатор на сервере.
type Article struct {
	LocalID   int64     `json:"localId,omitempty"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Content   string    `json:"content,omitempty"`
	Tags      []string  `json:"tags,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *Article) StoreKey() int64      { return a.LocalID }
func (a *Article) SetStoreKey(id int64) { a.LocalID = id }

// ArticleRef — полезная нагрузка удаления.
type ArticleRef struct {
	ID string `json:"id"`
}
