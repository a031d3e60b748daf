package handlers

import (
	"encoding/json"
	"net/http"

	"MDShelf/internal/config"
	"MDShelf/internal/middleware"
	"MDShelf/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Router chi.Router
}

// NewHandler разводящий для хендлеров
func NewHandler(
	userService *service.UserService,
	articleService *service.ArticleService,
	logger *zap.SugaredLogger,
	config *config.Config,
) *Handler {
	r := chi.NewRouter()

	r.Use(middleware.WithGzip)
	r.Use(middleware.WithLogging)
	r.Use(middleware.WithAuth(config.AuthSecret))

	// Handlers
	userHandler := NewUserHandler(userService, logger, config)
	articleHandler := NewArticleHandler(articleService, logger)
	shell := NewShellHandler()

	// User routes
	r.Post("/api/user/register", userHandler.Register)
	r.Post("/api/user/login", userHandler.Login)
	r.Post("/api/user/test", userHandler.Status)

	// Article routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/api/articles", articleHandler.List)
		r.Post("/api/articles", articleHandler.Save)
		r.Delete("/api/articles/{id}", articleHandler.Delete)
	})

	// Проба доступности для клиента
	r.Get("/ping", Ping)
	r.Head("/ping", Ping)

	// Оболочка приложения, которую кэширует клиент
	r.Get("/", shell.Index)
	r.Get("/offline.html", shell.ServeHTTP)
	r.Get("/static/*", shell.ServeHTTP)

	return &Handler{Router: r}
}

// Ping отвечает 204 без тела.
func Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
