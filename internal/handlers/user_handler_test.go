package handlers_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"MDShelf/internal/middleware"
	"MDShelf/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func hasAuthCookie(rr *httptest.ResponseRecorder) bool {
	for _, c := range rr.Result().Cookies() {
		if c.Name == middleware.CookieName && c.Value != "" {
			return true
		}
	}
	return false
}

func TestUser_Register(t *testing.T) {
	m := new(mockUserRepo)
	router, _ := newTestRouter(t, m)

	t.Run("ok", func(t *testing.T) {
		m.ExpectedCalls = nil
		m.On("GetUserByLogin", mock.Anything, "john").Return(nil, gorm.ErrRecordNotFound).Once()
		created := &model.User{ID: 42, Login: "john"}
		m.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *model.User) bool { return u.Login == "john" && u.Password != "p" })).Return(created, nil).Once()

		rr := do(router, postJSON("/api/user/register", `{"login":"john","password":"p"}`))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, hasAuthCookie(rr), "Set-Cookie auth_token expected")
		m.AssertExpectations(t)
	})

	t.Run("conflict", func(t *testing.T) {
		m.ExpectedCalls = nil
		m.On("GetUserByLogin", mock.Anything, "john").Return(&model.User{ID: 1, Login: "john"}, nil).Once()

		rr := do(router, postJSON("/api/user/register", `{"login":"john","password":"p"}`))
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.False(t, hasAuthCookie(rr))
		m.AssertExpectations(t)
	})

	t.Run("empty credentials", func(t *testing.T) {
		m.ExpectedCalls = nil
		rr := do(router, postJSON("/api/user/register", `{"login":" ","password":""}`))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		m.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
	})

	t.Run("broken body", func(t *testing.T) {
		rr := do(router, postJSON("/api/user/register", `{`))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		m.ExpectedCalls = nil
		m.On("GetUserByLogin", mock.Anything, "bob").Return(nil, errors.New("db down")).Once()
		rr := do(router, postJSON("/api/user/register", `{"login":"bob","password":"p"}`))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestUser_Login(t *testing.T) {
	m := new(mockUserRepo)
	router, _ := newTestRouter(t, m)

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	alice := &model.User{ID: 2, Login: "alice", Password: string(hash)}

	t.Run("ok", func(t *testing.T) {
		m.ExpectedCalls = nil
		m.On("GetUserByLogin", mock.Anything, "alice").Return(alice, nil).Once()

		rr := do(router, postJSON("/api/user/login", `{"login":"alice","password":"secret"}`))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, hasAuthCookie(rr))

		var body struct {
			UserID int64 `json:"user_id"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, int64(2), body.UserID)
		m.AssertExpectations(t)
	})

	t.Run("wrong password", func(t *testing.T) {
		m.ExpectedCalls = nil
		m.On("GetUserByLogin", mock.Anything, "alice").Return(alice, nil).Once()

		rr := do(router, postJSON("/api/user/login", `{"login":"alice","password":"bad"}`))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		m.AssertExpectations(t)
	})

	t.Run("unknown login", func(t *testing.T) {
		m.ExpectedCalls = nil
		m.On("GetUserByLogin", mock.Anything, "ghost").Return(nil, gorm.ErrRecordNotFound).Once()

		rr := do(router, postJSON("/api/user/login", `{"login":"ghost","password":"x"}`))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestUser_Status(t *testing.T) {
	router, _ := newTestRouter(t, new(mockUserRepo))

	result := func(rr *httptest.ResponseRecorder) string {
		var body struct {
			Result string `json:"result"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		return body.Result
	}

	t.Run("anonymous", func(t *testing.T) {
		rr := do(router, httptest.NewRequest(http.MethodPost, "/api/user/test", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "anonymous", result(rr))
	})

	t.Run("authorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/user/test", nil)
		addAuthCookie(t, req, 77)
		rr := do(router, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "User ID = 77", result(rr))
	})
}
