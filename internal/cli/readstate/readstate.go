// Package readstate — чистые функции над уже загруженным ArchiveRecord:
// отметка прочтения и сортировка документов. Хранилище здесь не используется,
// входные значения никогда не изменяются.
package readstate

import (
	"sort"
	"time"

	"MDShelf/internal/cli/model"
)

// SortMode — режим сортировки списка документов.
type SortMode string

const (
	SortUnreadFirst SortMode = "unread_first"
	SortReadFirst   SortMode = "read_first"
	SortRecency     SortMode = "recency"
	SortAlphabet    SortMode = "alphabet"
)

// Modes перечисляет известные режимы (для справки в CLI).
var Modes = []SortMode{SortUnreadFirst, SortReadFirst, SortRecency, SortAlphabet}

// SetReadState возвращает копию записи, в которой документ path отмечен как
// прочитанный/непрочитанный. Если path не найден, возвращается неизменённая копия.
func SetReadState(rec model.ArchiveRecord, path string, isRead bool) model.ArchiveRecord {
	return SetReadStateAt(rec, path, isRead, time.Now())
}

// SetReadStateAt — SetReadState с явным временем отметки.
func SetReadStateAt(rec model.ArchiveRecord, path string, isRead bool, at time.Time) model.ArchiveRecord {
	out := rec.Clone()
	i := out.FindFile(path)
	if i < 0 {
		return out
	}
	f := &out.Files[i]
	f.IsRead = isRead
	if isRead {
		f.ReadDate = at.UTC().Format(time.RFC3339Nano)
	} else {
		f.ReadDate = ""
	}
	return out
}

// IsRead сообщает, отмечен ли документ path как прочитанный. Для nil-записи,
// записи без документов и отсутствующего пути: false.
func IsRead(rec *model.ArchiveRecord, path string) bool {
	if rec == nil || len(rec.Files) == 0 {
		return false
	}
	i := rec.FindFile(path)
	return i >= 0 && rec.Files[i].IsRead
}

// ParseReadDate разбирает ReadDate. Отсутствующая или нечитаемая дата даёт нулевое
// время: такой документ считается прочитанным раньше всех остальных.
func ParseReadDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}

// Sort возвращает новый отсортированный срез; входной срез не меняется.
// Неизвестный режим сортирует по алфавиту.
func Sort(files []model.FileEntry, mode SortMode) []model.FileEntry {
	out := make([]model.FileEntry, len(files))
	copy(out, files)
	if len(out) < 2 {
		return out
	}
	less := lessFunc(mode)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func alpha(a, b model.FileEntry) bool { return a.Name() < b.Name() }

func lessFunc(mode SortMode) func(a, b model.FileEntry) bool {
	switch mode {
	case SortUnreadFirst:
		return func(a, b model.FileEntry) bool {
			if a.IsRead != b.IsRead {
				return !a.IsRead
			}
			return alpha(a, b)
		}
	case SortReadFirst:
		return func(a, b model.FileEntry) bool {
			if a.IsRead != b.IsRead {
				return a.IsRead
			}
			return alpha(a, b)
		}
	case SortRecency:
		return func(a, b model.FileEntry) bool {
			switch {
			case a.IsRead && b.IsRead:
				ta, tb := ParseReadDate(a.ReadDate), ParseReadDate(b.ReadDate)
				if !ta.Equal(tb) {
					return ta.After(tb)
				}
				return alpha(a, b)
			case a.IsRead != b.IsRead:
				return a.IsRead
			default:
				return alpha(a, b)
			}
		}
	default:
		return alpha
	}
}

// ParseMode приводит строку к режиму; неизвестные значения: SortAlphabet.
func ParseMode(s string) SortMode {
	for _, m := range Modes {
		if string(m) == s {
			return m
		}
	}
	return SortAlphabet
}
