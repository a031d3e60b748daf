package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"MDShelf/internal/middleware"
	"MDShelf/internal/model"
	"MDShelf/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// IdempotencyHeader — ключ изменения из очереди клиента.
const IdempotencyHeader = "Idempotency-Key"

// ArticleHandler принимает изменения статей из очереди синхронизации.
type ArticleHandler struct {
	ArticleService *service.ArticleService
	Logger         *zap.SugaredLogger
}

func NewArticleHandler(articleService *service.ArticleService, logger *zap.SugaredLogger) *ArticleHandler {
	return &ArticleHandler{ArticleService: articleService, Logger: logger}
}

type saveResponse struct {
	ID      string `json:"id"`
	Applied bool   `json:"applied"`
}

func (h *ArticleHandler) fail(w http.ResponseWriter, err error, userID int64, op string) {
	switch {
	case errors.Is(err, service.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, service.ErrInvalidArticle):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.Logger.Errorw(op+" failed", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// Save создаёт или заменяет статью. Повтор с тем же ключом отвечает 200 без изменений.
func (h *ArticleHandler) Save(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.GetUserIDFromContext(r.Context())

	var a model.Article
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	applied, err := h.ArticleService.Save(r.Context(), uid, r.Header.Get(IdempotencyHeader), a)
	if err != nil {
		h.fail(w, err, uid, "save article")
		return
	}
	status := http.StatusOK
	if applied {
		status = http.StatusCreated
	}
	writeJSON(w, status, saveResponse{ID: a.ID, Applied: applied})
}

// Delete удаляет статью; отсутствующая статья тоже даёт 204.
func (h *ArticleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	if _, err := h.ArticleService.Delete(r.Context(), uid, r.Header.Get(IdempotencyHeader), id); err != nil {
		h.fail(w, err, uid, "delete article")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// List возвращает статьи пользователя.
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.GetUserIDFromContext(r.Context())
	list, err := h.ArticleService.List(r.Context(), uid)
	if err != nil {
		h.fail(w, err, uid, "list articles")
		return
	}
	writeJSON(w, http.StatusOK, list)
}
