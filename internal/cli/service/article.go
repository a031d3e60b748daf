package service

import (
	"context"
	"strings"
	"time"

	"MDShelf/internal/apperr"
	"MDShelf/internal/cli/model"
	"MDShelf/internal/cli/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ArticlesTable — логическая таблица статей.
const ArticlesTable = "articles"

// ArticleService сохраняет статьи локально и ставит изменения в очередь синхронизации.
// Запись статьи и постановка в очередь: две отдельные транзакции.
type ArticleService struct {
	opener
	sync *SyncEngine
	now  func() time.Time
}

// NewArticleService создаёт сервис статей. Пустой StoreName: "articles".
func NewArticleService(stores *store.Manager, storeCfg store.Config, sync *SyncEngine, logger *zap.SugaredLogger, status StatusFunc) *ArticleService {
	if storeCfg.StoreName == "" {
		storeCfg.StoreName = ArticlesTable
	}
	return &ArticleService{
		opener: opener{stores: stores, cfg: storeCfg, status: status, logger: nopLogger(logger)},
		sync:   sync,
		now:    time.Now,
	}
}

func (s *ArticleService) articles(ctx context.Context) (*store.Table[model.Article, *model.Article], error) {
	h, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	return store.TableOf[model.Article](h, h.StoreName())
}

// Save создаёт (пустой ID) или обновляет статью и ставит create/update в очередь.
func (s *ArticleService) Save(ctx context.Context, a model.Article) (model.Article, error) {
	if strings.TrimSpace(a.Title) == "" {
		return a, apperr.New(apperr.KindInvalid, "saveArticle", "title is required")
	}
	tbl, err := s.articles(ctx)
	if err != nil {
		return a, err
	}
	typ := model.MutationUpdate
	if a.ID == "" {
		a.ID = uuid.NewString()
		typ = model.MutationCreate
	} else if a.LocalID == 0 {
		existing, err := tbl.GetAllByIndex(ctx, "uuid", a.ID)
		if err != nil {
			return a, err
		}
		if len(existing) == 0 {
			typ = model.MutationCreate
		} else {
			a.LocalID = existing[0].LocalID
		}
	}
	a.UpdatedAt = s.now().UTC()
	if _, err := tbl.Put(ctx, &a); err != nil {
		return a, err
	}
	if err := s.enqueue(ctx, typ, a); err != nil {
		return a, err
	}
	return a, nil
}

// Delete удаляет статью локально и ставит delete в очередь.
func (s *ArticleService) Delete(ctx context.Context, localID int64) error {
	tbl, err := s.articles(ctx)
	if err != nil {
		return err
	}
	a, err := tbl.Get(ctx, localID)
	if err != nil {
		return err
	}
	if err := tbl.Delete(ctx, localID); err != nil {
		return err
	}
	return s.enqueue(ctx, model.MutationDelete, model.ArticleRef{ID: a.ID})
}

func (s *ArticleService) enqueue(ctx context.Context, typ model.MutationType, payload any) error {
	if s.sync == nil {
		return nil
	}
	if a, ok := payload.(model.Article); ok {
		// локальный ключ на сервер не уходит
		a.LocalID = 0
		payload = a
	}
	_, err := s.sync.Enqueue(ctx, typ, payload)
	return err
}

// Get возвращает статью по локальному ключу.
func (s *ArticleService) Get(ctx context.Context, localID int64) (*model.Article, error) {
	tbl, err := s.articles(ctx)
	if err != nil {
		return nil, err
	}
	return tbl.Get(ctx, localID)
}

// List возвращает все статьи.
func (s *ArticleService) List(ctx context.Context) ([]model.Article, error) {
	tbl, err := s.articles(ctx)
	if err != nil {
		return nil, err
	}
	return tbl.GetAll(ctx)
}
