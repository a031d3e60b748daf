// Package codec разбирает загруженный архив документов в список записей.
package codec

import (
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"unicode/utf8"
)

// ErrParse — архив не удалось разобрать.
var ErrParse = errors.New("archive parse error")

// Entry — один документ архива.
type Entry struct {
	Path    string
	Content string
	Size    int64
	Title   string // первый заголовок "# ..." документа
}

// Archive — результат разбора.
type Archive struct {
	Name      string
	Size      int64
	FileCount int
	TotalSize int64
	Files     []Entry
}

// Blob — исходный файл архива.
type Blob struct {
	Name string
	Size int64
	R    io.ReaderAt
}

// MaxEntrySize ограничивает размер одного документа.
const MaxEntrySize = 16 << 20

var textExt = map[string]bool{".md": true, ".markdown": true, ".txt": true}

// Zip разбирает zip-архивы с markdown/текстовыми документами.
type Zip struct{}

// Parse читает архив полностью; при любой ошибке возвращает ErrParse-обёртку.
func (Zip) Parse(ctx context.Context, blob Blob) (*Archive, error) {
	zr, err := zip.NewReader(blob.R, blob.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, blob.Name, err)
	}
	out := &Archive{Name: blob.Name, Size: blob.Size}
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !accept(f) {
			continue
		}
		if f.UncompressedSize64 > MaxEntrySize {
			return nil, fmt.Errorf("%w: %s: entry %s is too large (%d bytes)", ErrParse, blob.Name, f.Name, f.UncompressedSize64)
		}
		content, err := readEntry(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s: %v", ErrParse, blob.Name, f.Name, err)
		}
		if !utf8.ValidString(content) {
			continue
		}
		e := Entry{
			Path:    f.Name,
			Content: content,
			Size:    int64(len(content)),
			Title:   firstHeading(content),
		}
		out.Files = append(out.Files, e)
		out.TotalSize += e.Size
	}
	if len(out.Files) == 0 {
		return nil, fmt.Errorf("%w: %s: no readable documents", ErrParse, blob.Name)
	}
	out.FileCount = len(out.Files)
	return out, nil
}

func accept(f *zip.File) bool {
	if f.FileInfo().IsDir() {
		return false
	}
	name := f.Name
	if strings.HasPrefix(name, "__MACOSX/") {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if strings.HasPrefix(part, ".") {
			return false
		}
	}
	return textExt[strings.ToLower(path.Ext(name))]
}

func readEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// firstHeading возвращает текст первого заголовка первого уровня.
func firstHeading(content string) string {
	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), MaxEntrySize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return ""
}
