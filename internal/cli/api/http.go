// Package api — HTTP-клиент CLI к серверу синхронизации.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"MDShelf/internal/apperr"
	"MDShelf/internal/cli/model"
	"MDShelf/internal/cli/repo"
)

// AuthCookie — имя cookie с JWT.
const AuthCookie = "auth_token"

// IdempotencyHeader — заголовок, по которому сервер отбрасывает повторы.
const IdempotencyHeader = "Idempotency-Key"

// Do выполняет запрос и читает тело ответа целиком. Если token непустой, он передаётся как auth cookie.
func Do(ctx context.Context, client *http.Client, method, url string, body []byte, token string, header http.Header) (*http.Response, []byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: AuthCookie, Value: token})
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, err
	}
	return resp, bytes.TrimSpace(b), nil
}

// PostJSON sends a JSON POST request. If token is non-empty, it is passed as auth cookie.
func PostJSON(ctx context.Context, url string, payload any, token string) (*http.Response, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}
	return Do(ctx, nil, http.MethodPost, url, b, token, nil)
}

// PersistAuthFromResponse извлекает auth cookie из ответа и сохраняет его в store.
func PersistAuthFromResponse(resp *http.Response, store repo.TokenStore) error {
	for _, c := range resp.Cookies() {
		if c.Name == AuthCookie && c.Value != "" {
			return store.Save(c.Value)
		}
	}
	return fmt.Errorf("no auth cookie in response")
}

// ArticlesRemote отправляет изменения статей на сервер. create/update отправляются как POST
// сериализованной статьи, delete как DELETE по id. Любой не-2xx ответ считается ошибкой.
type ArticlesRemote struct {
	BaseURL string
	Client  *http.Client
	Tokens  repo.TokenStore
}

// Push выполняет сетевую операцию, соответствующую элементу очереди.
func (r *ArticlesRemote) Push(ctx context.Context, item model.SyncQueueItem) error {
	token := ""
	if r.Tokens != nil {
		// без токена запрос всё равно уходит: сервер ответит 401, и попытка будет засчитана
		token, _ = r.Tokens.Load()
	}
	header := http.Header{}
	if item.IdempotencyKey != "" {
		header.Set(IdempotencyHeader, item.IdempotencyKey)
	}
	base := strings.TrimRight(r.BaseURL, "/") + "/api/articles"

	var method, url string
	var body []byte
	switch item.Type {
	case model.MutationCreate, model.MutationUpdate:
		method, url, body = http.MethodPost, base, item.Data
	case model.MutationDelete:
		var ref model.ArticleRef
		if err := json.Unmarshal(item.Data, &ref); err != nil || ref.ID == "" {
			return apperr.New(apperr.KindInvalid, "push", "delete payload without id: %s", string(item.Data))
		}
		method, url = http.MethodDelete, base+"/"+ref.ID
	default:
		return apperr.New(apperr.KindInvalid, "push", "unknown mutation type %q", item.Type)
	}

	resp, respBody, err := Do(ctx, r.Client, method, url, body, token, header)
	if err != nil {
		return apperr.Wrap(apperr.KindNetworkFailure, method+" "+url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.New(apperr.KindNetworkFailure, method+" "+url, "server returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
