package repo

import (
	"context"

	"MDShelf/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KeyRepository хранит ключи идемпотентности обработанных изменений.
type KeyRepository interface {
	// CreateIfAbsent пытается записать ключ. Если он уже есть: ничего не делает.
	// Возвращает created=true, если ключ записан в этой операции.
	CreateIfAbsent(ctx context.Context, key string, userID int64, articleID string) (created bool, err error)
	// Forget удаляет ключ, чтобы повтор изменения снова был обработан.
	Forget(ctx context.Context, key string) error
}

type keyRepo struct {
	db *gorm.DB
}

// NewKeyRepository создаёт реализацию репозитория ключей.
func NewKeyRepository(db *gorm.DB) KeyRepository {
	return &keyRepo{db: db}
}

func (r *keyRepo) CreateIfAbsent(ctx context.Context, key string, userID int64, articleID string) (bool, error) {
	k := &model.IdempotencyKey{Key: key, UserID: userID, ArticleID: articleID}
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(k)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *keyRepo) Forget(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("idempotency_key = ?", key).Delete(&model.IdempotencyKey{}).Error
}
