package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"MDShelf/internal/config"
	"MDShelf/internal/middleware"
	"MDShelf/internal/service"

	"go.uber.org/zap"
)

// UserHandler — регистрация, вход и проверка авторизации.
type UserHandler struct {
	UserService *service.UserService
	Logger      *zap.SugaredLogger
	Config      *config.Config
}

func NewUserHandler(userService *service.UserService, logger *zap.SugaredLogger, cfg *config.Config) *UserHandler {
	return &UserHandler{UserService: userService, Logger: logger, Config: cfg}
}

type credentialsRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentialsRequest, bool) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

// Register создаёт пользователя и сразу выставляет auth cookie.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	user, err := h.UserService.Register(r.Context(), req.Login, req.Password)
	switch {
	case errors.Is(err, service.ErrEmptyCredentials):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, service.ErrLoginTaken):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.Logger.Errorw("register failed", "login", req.Login, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.login(w, user.ID)
}

// Login проверяет пароль и выставляет auth cookie.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeCredentials(w, r)
	if !ok {
		return
	}
	user, err := h.UserService.Login(r.Context(), req.Login, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	case err != nil:
		h.Logger.Errorw("login failed", "login", req.Login, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.login(w, user.ID)
}

func (h *UserHandler) login(w http.ResponseWriter, userID int64) {
	if err := middleware.SetLoginCookie(w, userID, h.Config.AuthSecret); err != nil {
		h.Logger.Errorw("sign token failed", "user_id", userID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID})
}

// Status сообщает, кем сервер считает клиента.
func (h *UserHandler) Status(w http.ResponseWriter, r *http.Request) {
	result := "anonymous"
	if uid, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		result = fmt.Sprintf("User ID = %d", uid)
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}
