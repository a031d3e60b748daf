package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"MDShelf/internal/apperr"
	"MDShelf/internal/cli/codec"
	"MDShelf/internal/cli/model"
	"MDShelf/internal/cli/readstate"
	"MDShelf/internal/cli/store"

	"go.uber.org/zap"
)

// ArchivesTable — логическая таблица архивов.
const ArchivesTable = "archives"

// Codec разбирает загруженный файл архива.
type Codec interface {
	Parse(ctx context.Context, blob codec.Blob) (*codec.Archive, error)
}

// Library — импорт архивов и операции над сохранёнными ArchiveRecord.
type Library struct {
	opener
	codec Codec
	now   func() time.Time
}

// NewLibrary создаёт библиотеку поверх хранилища storeCfg.Name. Пустой StoreName: "archives".
func NewLibrary(stores *store.Manager, storeCfg store.Config, c Codec, logger *zap.SugaredLogger, status StatusFunc) *Library {
	if storeCfg.StoreName == "" {
		storeCfg.StoreName = ArchivesTable
	}
	if c == nil {
		c = codec.Zip{}
	}
	return &Library{
		opener: opener{stores: stores, cfg: storeCfg, status: status, logger: nopLogger(logger)},
		codec:  c,
		now:    time.Now,
	}
}

func (l *Library) archives(ctx context.Context) (*store.Table[model.ArchiveRecord, *model.ArchiveRecord], error) {
	h, err := l.open(ctx)
	if err != nil {
		return nil, err
	}
	return store.TableOf[model.ArchiveRecord](h, h.StoreName())
}

// ImportArchive разбирает архив целиком и сохраняет его одной записью.
// Ошибки разбора и записи возвращаются без изменений.
func (l *Library) ImportArchive(ctx context.Context, blob codec.Blob) (int64, error) {
	tbl, err := l.archives(ctx)
	if err != nil {
		return 0, err
	}
	arc, err := l.codec.Parse(ctx, blob)
	if err != nil {
		l.logger.Warnw("import parse failed", "archive", blob.Name, "error", err)
		l.status.emit(StatusError, "import of %s failed: %v", blob.Name, err)
		return 0, err
	}
	rec := model.ArchiveRecord{
		Name:      arc.Name,
		Size:      arc.Size,
		FileCount: arc.FileCount,
		TotalSize: arc.TotalSize,
		Timestamp: l.now().UTC(),
		Files:     make([]model.FileEntry, 0, len(arc.Files)),
	}
	for _, e := range arc.Files {
		rec.Files = append(rec.Files, model.FileEntry{
			Path:        e.Path,
			Content:     e.Content,
			Size:        e.Size,
			DisplayName: e.Title,
		})
	}
	id, err := tbl.Add(ctx, &rec)
	if err != nil {
		l.logger.Errorw("import persist failed", "archive", blob.Name, "error", err)
		l.status.emit(StatusError, "import of %s failed: %v", blob.Name, err)
		return 0, err
	}
	l.logger.Infow("archive imported", "id", id, "archive", rec.Name, "files", rec.FileCount)
	l.status.emit(StatusImport, "imported %s: %d documents", rec.Name, rec.FileCount)
	return id, nil
}

// ImportFile импортирует архив с диска.
func (l *Library) ImportFile(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return l.ImportArchive(ctx, codec.Blob{Name: filepath.Base(path), Size: st.Size(), R: f})
}

// UpdateArchive перезаписывает ранее загруженную запись по её id.
// Отсутствующий id: NotFound.
func (l *Library) UpdateArchive(ctx context.Context, rec model.ArchiveRecord) error {
	tbl, err := l.archives(ctx)
	if err != nil {
		return err
	}
	if err := tbl.Replace(ctx, &rec); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return notFound("updateArchive", rec.ID)
		}
		return err
	}
	return nil
}

// ListArchives возвращает все архивы в порядке импорта.
func (l *Library) ListArchives(ctx context.Context) ([]model.ArchiveRecord, error) {
	tbl, err := l.archives(ctx)
	if err != nil {
		return nil, err
	}
	return tbl.GetAll(ctx)
}

// FindByName возвращает архивы с указанным именем файла.
func (l *Library) FindByName(ctx context.Context, name string) ([]model.ArchiveRecord, error) {
	tbl, err := l.archives(ctx)
	if err != nil {
		return nil, err
	}
	return tbl.GetAllByIndex(ctx, "name", name)
}

// GetArchive возвращает архив по id; отсутствующий id: NotFound.
func (l *Library) GetArchive(ctx context.Context, id int64) (*model.ArchiveRecord, error) {
	tbl, err := l.archives(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := tbl.Get(ctx, id)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, notFound("getArchive", id)
		}
		return nil, err
	}
	return rec, nil
}

// DeleteArchive удаляет архив по id.
func (l *Library) DeleteArchive(ctx context.Context, id int64) error {
	tbl, err := l.archives(ctx)
	if err != nil {
		return err
	}
	if err := tbl.Delete(ctx, id); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return notFound("deleteArchive", id)
		}
		return err
	}
	return nil
}

// ClearArchives удаляет все архивы.
func (l *Library) ClearArchives(ctx context.Context) error {
	tbl, err := l.archives(ctx)
	if err != nil {
		return err
	}
	return tbl.Clear(ctx)
}

func notFound(op string, id int64) error {
	return apperr.New(apperr.KindNotFound, op, "archive with id %d not found", id)
}

// MarkRead отмечает документ прочитанным. false: документа нет или он уже прочитан.
func (l *Library) MarkRead(ctx context.Context, id int64, path string) (bool, error) {
	return l.setRead(ctx, id, path, func(bool) bool { return true })
}

// MarkUnread снимает отметку прочтения. false: документа нет или он не был прочитан.
func (l *Library) MarkUnread(ctx context.Context, id int64, path string) (bool, error) {
	return l.setRead(ctx, id, path, func(bool) bool { return false })
}

// ToggleRead переключает отметку прочтения. false: документа нет.
func (l *Library) ToggleRead(ctx context.Context, id int64, path string) (bool, error) {
	return l.setRead(ctx, id, path, func(cur bool) bool { return !cur })
}

// setRead: загрузить свежую копию, применить чистое преобразование, проверить
// результат, записать запись целиком.
func (l *Library) setRead(ctx context.Context, id int64, path string, next func(cur bool) bool) (bool, error) {
	rec, err := l.GetArchive(ctx, id)
	if err != nil {
		return false, err
	}
	i := rec.FindFile(path)
	if i < 0 {
		return false, nil
	}
	want := next(rec.Files[i].IsRead)
	if rec.Files[i].IsRead == want {
		return false, nil
	}
	out := readstate.SetReadStateAt(*rec, path, want, l.now())
	if readstate.IsRead(&out, path) != want {
		return false, nil
	}
	if err := l.UpdateArchive(ctx, out); err != nil {
		return false, err
	}
	return true, nil
}
