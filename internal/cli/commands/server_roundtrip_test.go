package commands

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"

	"MDShelf/internal/config"
	"MDShelf/internal/handlers"
	"MDShelf/internal/repo"
	"MDShelf/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	gormlogger "gorm.io/gorm/logger"
)

// startSyncServer поднимает настоящий сервер синхронизации на in-memory SQLite.
func startSyncServer(t *testing.T) (*httptest.Server, *service.ArticleService) {
	t.Helper()
	name := strings.NewReplacer("/", "_").Replace(t.Name())
	db, err := repo.InitDB(repo.SQLitePrefix + "file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	db.Logger = gormlogger.Default.LogMode(gormlogger.Silent)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	log := zap.NewNop().Sugar()
	articles := service.NewArticleService(repo.NewArticleRepository(db), repo.NewKeyRepository(db), log)
	h := handlers.NewHandler(service.NewUserService(repo.NewUserRepository(db)), articles, log,
		&config.Config{AuthSecret: "roundtrip-secret"})
	srv := httptest.NewServer(h.Router)
	t.Cleanup(srv.Close)
	return srv, articles
}

// Тест: изменения, накопленные офлайн, доходят до сервера после входа
func TestRoundTrip_OfflineEditsReachServer(t *testing.T) {
	srv, articles := startSyncServer(t)
	cfg := testConfig(t, srv.URL)

	out, err := run(t, registerCmd{}, cfg, "alice", "pw")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered and logged in")

	withOnline(t, false)
	_, err = run(t, articleSaveCmd{}, cfg, "--tags=go", "Draft", "# Draft")
	require.NoError(t, err)
	_, err = run(t, articleSaveCmd{}, cfg, "--id=1", "Final")
	require.NoError(t, err)
	_, err = run(t, articleSaveCmd{}, cfg, "Scratch")
	require.NoError(t, err)
	_, err = run(t, articleDeleteCmd{}, cfg, "2")
	require.NoError(t, err)

	out, err = run(t, queueCmd{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(out, "attempts=0/3"), out)

	withOnline(t, true)
	out, err = run(t, syncCmd{}, cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "sync: 4 sent, 0 failed")

	// на сервере только итоговое состояние
	list, err := articles.List(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Final", list[0].Title)

	out, err = run(t, queueCmd{}, cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Очередь пуста")
}

// Тест: без входа сервер отвечает 401, и попытки засчитываются
func TestRoundTrip_UnauthorizedCountsAttempts(t *testing.T) {
	srv, _ := startSyncServer(t)
	cfg := testConfig(t, srv.URL)
	withOnline(t, true)

	out, err := run(t, articleSaveCmd{}, cfg, "Anon")
	require.NoError(t, err)
	assert.Contains(t, out, "sync: 0 sent, 1 failed")

	out, err = run(t, queueCmd{}, cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "attempts=1/3")

	_, err = run(t, loginCmd{}, cfg, "bob", "pw")
	require.Error(t, err)

	_, err = run(t, registerCmd{}, cfg, "bob", "pw")
	require.NoError(t, err)
	out, err = run(t, syncCmd{}, cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "sync: 1 sent, 0 failed")
}
