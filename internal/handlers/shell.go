package handlers

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed web
var webFS embed.FS

// ShellHandler отдаёт статическую оболочку приложения: страницу, офлайн-страницу и ассеты.
type ShellHandler struct {
	files http.Handler
	root  fs.FS
}

func NewShellHandler() *ShellHandler {
	root, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}
	return &ShellHandler{files: http.FileServer(http.FS(root)), root: root}
}

func (h *ShellHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.files.ServeHTTP(w, r)
}

// Index отдаёт index.html по корневому пути.
func (h *ShellHandler) Index(w http.ResponseWriter, r *http.Request) {
	b, err := fs.ReadFile(h.root, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}
