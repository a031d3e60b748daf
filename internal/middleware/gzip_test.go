package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hello = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	// Content-Length должен быть снят при сжатии
	w.Header().Set("Content-Length", "5")
	_, _ = w.Write([]byte("hello"))
})

// Тест: без Accept-Encoding: gzip ответ не сжимается
func TestWithGzip_NoAcceptEncoding(t *testing.T) {
	rr := serve(WithGzip(hello), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Content-Encoding"))
	assert.Equal(t, "hello", rr.Body.String())
}

// Тест: с Accept-Encoding: gzip ответ сжат и распаковывается
func TestWithGzip_WithAcceptEncoding(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rr := serve(WithGzip(hello), req)

	assert.Equal(t, "gzip", rr.Header().Get("Content-Encoding"))
	assert.Empty(t, rr.Header().Get("Content-Length"))

	gr, err := gzip.NewReader(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	defer gr.Close()
	data, err := io.ReadAll(gr)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWithGzip_HeadIsNotCompressed(t *testing.T) {
	req := httptest.NewRequest(http.MethodHead, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rr := serve(WithGzip(hello), req)
	assert.Empty(t, rr.Header().Get("Content-Encoding"))
}

func TestWithGzip_DecodesRequestBody(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"title":"x"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	echo := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_, _ = w.Write(b)
	})
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Encoding", "gzip")
	rr := serve(WithGzip(echo), req)
	assert.Equal(t, `{"title":"x"}`, rr.Body.String())

	bad := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader([]byte("plain")))
	bad.Header.Set("Content-Encoding", "gzip")
	rr = serve(WithGzip(echo), bad)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
