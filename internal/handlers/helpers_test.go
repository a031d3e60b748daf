package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"MDShelf/internal/config"
	"MDShelf/internal/handlers"
	"MDShelf/internal/middleware"
	"MDShelf/internal/model"
	"MDShelf/internal/repo"
	"MDShelf/internal/service"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	args := m.Called(ctx, user)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	args := m.Called(ctx, login)
	if u, ok := args.Get(0).(*model.User); ok {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

var _ repo.UserRepository = (*mockUserRepo)(nil)

// newTestDB — отдельная in-memory база на тест
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := repo.InitDB(repo.SQLitePrefix + "file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// newTestRouter собирает роутер: пользователи через мок, статьи через sqlite.
func newTestRouter(t *testing.T, ur repo.UserRepository) (http.Handler, *gorm.DB) {
	t.Helper()
	cfg := &config.Config{AuthSecret: testSecret}
	logger := zap.NewNop().Sugar()
	db := newTestDB(t)

	userSvc := service.NewUserService(ur)
	articleSvc := service.NewArticleService(repo.NewArticleRepository(db), repo.NewKeyRepository(db), logger)
	return handlers.NewHandler(userSvc, articleSvc, logger, cfg).Router, db
}

// seedUser заводит владельца статей напрямую в базе.
func seedUser(t *testing.T, db *gorm.DB, login string) int64 {
	t.Helper()
	u, err := repo.NewUserRepository(db).CreateUser(context.Background(), &model.User{Login: login, Password: "h"})
	require.NoError(t, err)
	return u.ID
}

func addAuthCookie(t *testing.T, req *http.Request, userID int64) {
	t.Helper()
	rr := httptest.NewRecorder()
	require.NoError(t, middleware.SetLoginCookie(rr, userID, testSecret))
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
}

func do(router http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
