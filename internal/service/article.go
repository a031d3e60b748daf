package service

import (
	"context"
	"errors"
	"strings"

	"MDShelf/internal/model"
	"MDShelf/internal/repo"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrForbidden — статья с таким id принадлежит другому пользователю.
	ErrForbidden = errors.New("article belongs to another user")
	// ErrInvalidArticle — нет id или заголовка.
	ErrInvalidArticle = errors.New("article id and title are required")
)

// ArticleService принимает изменения статей от очереди синхронизации клиента.
// Каждое изменение обрабатывается не более одного раза на ключ идемпотентности.
type ArticleService struct {
	articles repo.ArticleRepository
	keys     repo.KeyRepository
	logger   *zap.SugaredLogger
}

func NewArticleService(articles repo.ArticleRepository, keys repo.KeyRepository, logger *zap.SugaredLogger) *ArticleService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ArticleService{articles: articles, keys: keys, logger: logger}
}

// claim записывает ключ изменения. false: изменение уже обработано.
func (s *ArticleService) claim(ctx context.Context, key string, userID int64, articleID string) (bool, error) {
	if key == "" || s.keys == nil {
		return true, nil
	}
	return s.keys.CreateIfAbsent(ctx, key, userID, articleID)
}

// release освобождает ключ после неудачной обработки, чтобы повтор прошёл заново.
func (s *ArticleService) release(ctx context.Context, key string) {
	if key == "" || s.keys == nil {
		return
	}
	if err := s.keys.Forget(ctx, key); err != nil {
		s.logger.Errorw("idempotency key release failed", "key", key, "error", err)
	}
}

// owned проверяет, что статья id либо не существует, либо принадлежит userID.
func (s *ArticleService) owned(ctx context.Context, userID int64, id string) error {
	cur, err := s.articles.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if cur.UserID != userID {
		return ErrForbidden
	}
	return nil
}

// Save создаёт или заменяет статью. applied=false: дубликат уже обработанного изменения.
func (s *ArticleService) Save(ctx context.Context, userID int64, key string, a model.Article) (bool, error) {
	if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.Title) == "" {
		return false, ErrInvalidArticle
	}
	if err := s.owned(ctx, userID, a.ID); err != nil {
		return false, err
	}
	created, err := s.claim(ctx, key, userID, a.ID)
	if err != nil {
		return false, err
	}
	if !created {
		s.logger.Infow("duplicate article change ignored", "user_id", userID, "id", a.ID, "key", key)
		return false, nil
	}
	a.UserID = userID
	if err := s.articles.Upsert(ctx, &a); err != nil {
		s.release(ctx, key)
		return false, err
	}
	return true, nil
}

// Delete удаляет статью. Отсутствующая статья не ошибка: удаление идемпотентно.
func (s *ArticleService) Delete(ctx context.Context, userID int64, key, id string) (bool, error) {
	if err := s.owned(ctx, userID, id); err != nil {
		return false, err
	}
	created, err := s.claim(ctx, key, userID, id)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}
	deleted, err := s.articles.Delete(ctx, userID, id)
	if err != nil {
		s.release(ctx, key)
		return false, err
	}
	return deleted, nil
}

// List возвращает статьи пользователя, новые первыми.
func (s *ArticleService) List(ctx context.Context, userID int64) ([]model.Article, error) {
	return s.articles.ListByUser(ctx, userID)
}
