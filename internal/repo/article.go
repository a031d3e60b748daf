package repo

import (
	"context"
	"errors"

	"MDShelf/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ArticleRepository — доступ к статьям пользователей.
type ArticleRepository interface {
	// GetByID ищет статью по id без учёта владельца; gorm.ErrRecordNotFound, если её нет.
	GetByID(ctx context.Context, id string) (*model.Article, error)
	// Upsert вставляет статью или целиком заменяет существующую с тем же id.
	Upsert(ctx context.Context, a *model.Article) error
	// Delete удаляет статью пользователя; возвращает false, если удалять было нечего.
	Delete(ctx context.Context, userID int64, id string) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]model.Article, error)
}

type articleRepo struct {
	db *gorm.DB
}

// NewArticleRepository создаёт реализацию репозитория статей.
func NewArticleRepository(db *gorm.DB) ArticleRepository {
	return &articleRepo{db: db}
}

func (r *articleRepo) GetByID(ctx context.Context, id string) (*model.Article, error) {
	var a model.Article
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, gorm.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *articleRepo) Upsert(ctx context.Context, a *model.Article) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "url", "content", "tags", "updated_at", "received_at"}),
	}).Create(a).Error
}

func (r *articleRepo) Delete(ctx context.Context, userID int64, id string) (bool, error) {
	tx := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&model.Article{})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *articleRepo) ListByUser(ctx context.Context, userID int64) ([]model.Article, error) {
	out := []model.Article{}
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("updated_at DESC, id").Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
