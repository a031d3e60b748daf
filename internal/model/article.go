package model

import "time"

// Article — серверная копия статьи пользователя. Клиент присылает состояние целиком,
// последняя запись побеждает.
type Article struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID int64  `gorm:"not null;index" json:"-"` // ссылка на users.id

	// Связи
	User *User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`

	Title   string   `gorm:"not null" json:"title"`
	URL     string   `json:"url,omitempty"`
	Content string   `json:"content,omitempty"`
	Tags    []string `gorm:"serializer:json" json:"tags,omitempty"`

	UpdatedAt  time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"` // время изменения на клиенте
	ReceivedAt time.Time `gorm:"autoUpdateTime" json:"receivedAt"`
}

// IdempotencyKey — ключ уже обработанного изменения.
type IdempotencyKey struct {
	Key       string    `gorm:"primaryKey;column:idempotency_key"`
	UserID    int64     `gorm:"not null;index"`
	ArticleID string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
